// Package live keeps an already-rendered sequence of items reconciled
// with the server by re-polling the newest page on a fixed cadence and
// interleaving fresh arrivals without disturbing held entries.
package live

import (
	"sort"
	"sync"
)

// Entry is one reconcilable item: a stable identity, an ordering
// timestamp and the rendered payload.
type Entry struct {
	ID      string
	TS      int64
	Payload any
}

// Sequence is the client-held, presentation-ordered item list. Entries
// are kept ascending by (TS, ID); identities never repeat.
type Sequence struct {
	mu      sync.Mutex
	entries []Entry
	ids     map[string]struct{}
	// followLive tracks whether the viewport sits at the live edge.
	// Merges never change it; only a local append forces it true.
	followLive bool
}

// NewSequence returns an empty sequence following the live edge.
func NewSequence() *Sequence {
	return &Sequence{ids: map[string]struct{}{}, followLive: true}
}

// Merge interleaves entries not already held into the sequence by
// ordering key. Held entries are left untouched and the viewport
// follow state does not change.
func (s *Sequence) Merge(fresh []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var add []Entry
	for _, e := range fresh {
		if _, ok := s.ids[e.ID]; ok {
			continue
		}
		add = append(add, e)
		s.ids[e.ID] = struct{}{}
	}
	if len(add) == 0 {
		return 0
	}
	sort.Slice(add, func(i, j int) bool {
		if add[i].TS != add[j].TS {
			return add[i].TS < add[j].TS
		}
		return add[i].ID < add[j].ID
	})
	merged := make([]Entry, 0, len(s.entries)+len(add))
	i, j := 0, 0
	for i < len(s.entries) || j < len(add) {
		switch {
		case j >= len(add):
			merged = append(merged, s.entries[i])
			i++
		case i >= len(s.entries):
			merged = append(merged, add[j])
			j++
		case less(s.entries[i], add[j]):
			merged = append(merged, s.entries[i])
			i++
		default:
			merged = append(merged, add[j])
			j++
		}
	}
	s.entries = merged
	return len(add)
}

func less(a, b Entry) bool {
	if a.TS != b.TS {
		return a.TS < b.TS
	}
	return a.ID < b.ID
}

// LocalAppend adds an entry produced by the local viewer and snaps the
// viewport back to the live edge.
func (s *Sequence) LocalAppend(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[e.ID]; ok {
		s.followLive = true
		return
	}
	s.entries = append(s.entries, e)
	s.ids[e.ID] = struct{}{}
	s.followLive = true
}

// SetFollowLive records the viewport scrolling to or away from the edge.
func (s *Sequence) SetFollowLive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followLive = v
}

// FollowLive reports whether the viewport tracks the live edge.
func (s *Sequence) FollowLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followLive
}

// Has reports whether an identity is already held.
func (s *Sequence) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Entries returns a copy of the held sequence in presentation order.
func (s *Sequence) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of held entries.
func (s *Sequence) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
