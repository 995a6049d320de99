// Package overlay tracks per-viewer interaction state (liked, reposted,
// and the associated counts) for rendered feed items. Toggles apply
// optimistically and are reconciled against the confirmed outcome: a
// failed toggle rolls back, a confirmed one adopts server truth.
package overlay

import (
	"context"
	"sync"

	"flockd/pkg/logger"
)

// State is the per-post annotation attached to a rendered item.
type State struct {
	Liked       bool `json:"liked"`
	Reposted    bool `json:"reposted"`
	LikeCount   int  `json:"like_count"`
	RepostCount int  `json:"repost_count"`
}

// Toggler is the confirming side of a toggle. Implementations return the
// resulting marker state and the authoritative aggregate count.
type Toggler interface {
	ToggleLike(ctx context.Context, viewer, postID string) (liked bool, count int, err error)
	ToggleRepost(ctx context.Context, viewer, postID string) (reposted bool, count int, err error)
}

// Result reports the settled state after a toggle round-trip. Corrected
// is set when the confirmed state disagreed with the optimistic guess.
type Result struct {
	State     State
	Corrected bool
}

// Overlay holds the viewer's interaction states keyed by post ID.
type Overlay struct {
	mu       sync.Mutex
	viewer   string
	svc      Toggler
	states   map[string]State
	onChange func(postID string, st State)
}

// New returns an overlay for one viewer backed by the given toggler.
func New(viewer string, svc Toggler) *Overlay {
	return &Overlay{viewer: viewer, svc: svc, states: map[string]State{}}
}

// OnChange registers a callback invoked whenever a post's state settles
// or changes, so affected items can re-render without a page re-fetch.
func (o *Overlay) OnChange(fn func(postID string, st State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = fn
}

// Seed installs the known state for a post, typically from a fetched page.
func (o *Overlay) Seed(postID string, st State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[postID] = st
}

// Get returns the tracked state for a post.
func (o *Overlay) Get(postID string) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[postID]
	return st, ok
}

func (o *Overlay) notify(postID string, st State) {
	if o.onChange != nil {
		o.onChange(postID, st)
	}
}

// ToggleLike flips the like state optimistically, confirms it, and
// reconciles. On error the pre-toggle state is restored and returned
// with the error.
func (o *Overlay) ToggleLike(ctx context.Context, postID string) (Result, error) {
	o.mu.Lock()
	prev := o.states[postID]
	guess := prev
	guess.Liked = !prev.Liked
	if guess.Liked {
		guess.LikeCount = prev.LikeCount + 1
	} else if prev.LikeCount > 0 {
		guess.LikeCount = prev.LikeCount - 1
	}
	o.states[postID] = guess
	o.notify(postID, guess)
	o.mu.Unlock()

	liked, count, err := o.svc.ToggleLike(ctx, o.viewer, postID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.states[postID] = prev
		o.notify(postID, prev)
		logger.Warn("like_toggle_rolled_back", "post", postID, "viewer", o.viewer, "error", err)
		return Result{State: prev}, err
	}
	// Adopt confirmed truth wholesale; never adjust the count a second time.
	truth := o.states[postID]
	truth.Liked = liked
	truth.LikeCount = count
	corrected := truth.Liked != guess.Liked || truth.LikeCount != guess.LikeCount
	o.states[postID] = truth
	o.notify(postID, truth)
	return Result{State: truth, Corrected: corrected}, nil
}

// ToggleRepost is the repost analogue of ToggleLike.
func (o *Overlay) ToggleRepost(ctx context.Context, postID string) (Result, error) {
	o.mu.Lock()
	prev := o.states[postID]
	guess := prev
	guess.Reposted = !prev.Reposted
	if guess.Reposted {
		guess.RepostCount = prev.RepostCount + 1
	} else if prev.RepostCount > 0 {
		guess.RepostCount = prev.RepostCount - 1
	}
	o.states[postID] = guess
	o.notify(postID, guess)
	o.mu.Unlock()

	reposted, count, err := o.svc.ToggleRepost(ctx, o.viewer, postID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.states[postID] = prev
		o.notify(postID, prev)
		logger.Warn("repost_toggle_rolled_back", "post", postID, "viewer", o.viewer, "error", err)
		return Result{State: prev}, err
	}
	truth := o.states[postID]
	truth.Reposted = reposted
	truth.RepostCount = count
	corrected := truth.Reposted != guess.Reposted || truth.RepostCount != guess.RepostCount
	o.states[postID] = truth
	o.notify(postID, truth)
	return Result{State: truth, Corrected: corrected}, nil
}
