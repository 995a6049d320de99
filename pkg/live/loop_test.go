package live

import (
	"context"
	"testing"
	"time"

	"flockd/pkg/serrors"
)

func TestTickMergesFreshEntries(t *testing.T) {
	seq := NewSequence()
	seq.Merge([]Entry{entry("a", 10)})
	fresh := []Entry{entry("a", 10), entry("b", 20)}
	l := NewLoop(seq, func(ctx context.Context) ([]Entry, error) {
		return fresh, nil
	}, Options{})

	var merged int
	l.OnMerge(func(added int) { merged = added })

	l.Tick(context.Background())
	if merged != 1 {
		t.Fatalf("expected 1 merged entry, got %d", merged)
	}
	if seq.Len() != 2 || !seq.Has("b") {
		t.Fatalf("expected b merged into the sequence")
	}

	// a poll with nothing new fires no merge callback
	merged = 0
	l.Tick(context.Background())
	if merged != 0 {
		t.Fatalf("expected no merge callback without additions, got %d", merged)
	}
}

func TestTickDiscardsPollAfterCancellation(t *testing.T) {
	seq := NewSequence()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(seq, func(fctx context.Context) ([]Entry, error) {
		// the view is deactivated while the fetch is in flight
		cancel()
		return []Entry{entry("stale", 10)}, nil
	}, Options{})

	l.Tick(ctx)
	if seq.Len() != 0 {
		t.Fatalf("poll completing after cancellation must be discarded, got %d entries", seq.Len())
	}
}

func TestStallAfterConsecutiveFailures(t *testing.T) {
	seq := NewSequence()
	fail := true
	l := NewLoop(seq, func(ctx context.Context) ([]Entry, error) {
		if fail {
			return nil, serrors.ErrTransientFetch
		}
		return []Entry{entry("a", 10)}, nil
	}, Options{MaxRetries: 3})

	stalls := 0
	l.OnStalled(func(err error) { stalls++ })

	l.Tick(context.Background())
	l.Tick(context.Background())
	if l.Stalled() || stalls != 0 {
		t.Fatalf("stall reported before the retry budget ran out")
	}
	l.Tick(context.Background())
	if !l.Stalled() || stalls != 1 {
		t.Fatalf("expected stall exactly at the third consecutive failure, stalls=%d", stalls)
	}
	// further failures do not re-notify
	l.Tick(context.Background())
	if stalls != 1 {
		t.Fatalf("stall handler fired again without an intervening success")
	}

	// a success clears the stall and resets the budget
	fail = false
	l.Tick(context.Background())
	if l.Stalled() {
		t.Fatalf("success must clear the stalled state")
	}
	if seq.Len() != 1 {
		t.Fatalf("successful poll should merge, got %d entries", seq.Len())
	}
	fail = true
	l.Tick(context.Background())
	l.Tick(context.Background())
	l.Tick(context.Background())
	if stalls != 2 {
		t.Fatalf("expected a second stall after reset, stalls=%d", stalls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	seq := NewSequence()
	l := NewLoop(seq, func(ctx context.Context) ([]Entry, error) {
		return nil, nil
	}, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}

func TestLoopDefaults(t *testing.T) {
	l := NewLoop(NewSequence(), func(ctx context.Context) ([]Entry, error) { return nil, nil }, Options{})
	if l.opts.Interval != DefaultInterval || l.opts.FetchTimeout != DefaultFetchTimeout || l.opts.MaxRetries != DefaultMaxRetries {
		t.Fatalf("zero options must take defaults, got %+v", l.opts)
	}
}
