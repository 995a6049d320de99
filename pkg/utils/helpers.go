package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// genID builds a "<kind>-<ns>-<seq>" identifier from the current UTC
// nanosecond timestamp and an atomic sequence number. IDs of the same kind
// are monotonic within a process and never reused.
func genID(kind string) string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("%s-%d-%06d", kind, n, s)
}

// GenPostID generates a unique post ID.
func GenPostID() string { return genID("post") }

// GenCommentID generates a unique comment ID.
func GenCommentID() string { return genID("comment") }

// GenMessageID generates a unique message ID.
func GenMessageID() string { return genID("msg") }

// GenUserID generates a unique user ID.
func GenUserID() string { return genID("user") }
