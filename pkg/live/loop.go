package live

import (
	"context"
	"sync"
	"time"

	"flockd/pkg/logger"
)

// Fetcher retrieves the newest page of entries for one view. It must
// honor the context's deadline.
type Fetcher func(ctx context.Context) ([]Entry, error)

const (
	// DefaultInterval is the reconciliation cadence.
	DefaultInterval = 5 * time.Second
	// DefaultFetchTimeout bounds a single poll.
	DefaultFetchTimeout = 3 * time.Second
	// DefaultMaxRetries is the consecutive failure tolerance before a
	// view is reported stalled.
	DefaultMaxRetries = 3
)

// Options tunes a reconciliation loop. Zero values take the defaults.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	MaxRetries   int
}

// Loop re-polls one view's newest page and merges fresh arrivals into
// its sequence. The loop stops when its context is canceled; a poll
// completing after cancellation is discarded, never merged.
type Loop struct {
	seq   *Sequence
	fetch Fetcher
	opts  Options

	mu       sync.Mutex
	failures int
	stalled  bool

	// onStalled fires once when the failure budget is exhausted and
	// again only after an intervening success.
	onStalled func(err error)
	onMerge   func(added int)
}

// NewLoop builds a loop for the given sequence and fetcher.
func NewLoop(seq *Sequence, fetch Fetcher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Loop{seq: seq, fetch: fetch, opts: opts}
}

// OnStalled registers the stall handler, typically surfacing an error
// banner in the presentation layer.
func (l *Loop) OnStalled(fn func(err error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStalled = fn
}

// OnMerge registers a handler invoked after each poll that merged at
// least one new entry.
func (l *Loop) OnMerge(fn func(added int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMerge = fn
}

// Stalled reports whether the failure budget is currently exhausted.
func (l *Loop) Stalled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stalled
}

// Run polls until ctx is canceled. The first poll happens after one
// interval, matching a view that rendered an initial fetch already.
func (l *Loop) Run(ctx context.Context) {
	t := time.NewTicker(l.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one poll and merge. The view's context is re-checked
// after the fetch returns: a poll whose view was deactivated mid-flight
// is discarded instead of merging into a replaced sequence.
func (l *Loop) Tick(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	entries, err := l.fetch(fctx)
	cancel()

	if ctx.Err() != nil {
		logger.Debug("live_poll_discarded", "reason", ctx.Err())
		return
	}
	if err != nil {
		l.mu.Lock()
		l.failures++
		notify := l.failures == l.opts.MaxRetries
		if notify {
			l.stalled = true
		}
		fn := l.onStalled
		l.mu.Unlock()
		logger.Warn("live_poll_failed", "failures", l.failures, "error", err)
		if notify && fn != nil {
			fn(err)
		}
		return
	}

	l.mu.Lock()
	l.failures = 0
	l.stalled = false
	fn := l.onMerge
	l.mu.Unlock()

	added := l.seq.Merge(entries)
	if added > 0 {
		logger.Debug("live_poll_merged", "added", added)
		if fn != nil {
			fn(added)
		}
	}
}
