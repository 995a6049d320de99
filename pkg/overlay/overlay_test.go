package overlay

import (
	"context"
	"errors"
	"testing"

	"flockd/pkg/serrors"
)

// fakeToggler keeps truthful marker state per (viewer, post) and can be
// scripted to fail or to disagree with the optimistic guess.
type fakeToggler struct {
	liked    map[string]bool
	reposted map[string]bool
	likes    map[string]int
	reposts  map[string]int
	fail     error
}

func newFakeToggler() *fakeToggler {
	return &fakeToggler{
		liked:    map[string]bool{},
		reposted: map[string]bool{},
		likes:    map[string]int{},
		reposts:  map[string]int{},
	}
}

func (f *fakeToggler) ToggleLike(_ context.Context, _, postID string) (bool, int, error) {
	if f.fail != nil {
		return false, 0, f.fail
	}
	f.liked[postID] = !f.liked[postID]
	if f.liked[postID] {
		f.likes[postID]++
	} else if f.likes[postID] > 0 {
		f.likes[postID]--
	}
	return f.liked[postID], f.likes[postID], nil
}

func (f *fakeToggler) ToggleRepost(_ context.Context, _, postID string) (bool, int, error) {
	if f.fail != nil {
		return false, 0, f.fail
	}
	f.reposted[postID] = !f.reposted[postID]
	if f.reposted[postID] {
		f.reposts[postID]++
	} else if f.reposts[postID] > 0 {
		f.reposts[postID]--
	}
	return f.reposted[postID], f.reposts[postID], nil
}

func TestToggleLikeOptimisticThenConfirmed(t *testing.T) {
	svc := newFakeToggler()
	o := New("viewer", svc)
	o.Seed("p1", State{LikeCount: 0})

	var changes []State
	o.OnChange(func(_ string, st State) { changes = append(changes, st) })

	res, err := o.ToggleLike(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if !res.State.Liked || res.State.LikeCount != 1 {
		t.Fatalf("expected liked with count 1, got %+v", res.State)
	}
	if res.Corrected {
		t.Fatalf("confirmed state matched the guess; Corrected must be false")
	}
	// first change is the optimistic flip, second the settled truth
	if len(changes) != 2 || !changes[0].Liked || changes[0].LikeCount != 1 {
		t.Fatalf("expected optimistic notification first, got %+v", changes)
	}
}

func TestToggleLikeRoundTripIdempotent(t *testing.T) {
	svc := newFakeToggler()
	o := New("viewer", svc)
	o.Seed("p1", State{LikeCount: 0})

	if _, err := o.ToggleLike(context.Background(), "p1"); err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	res, err := o.ToggleLike(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if res.State.Liked || res.State.LikeCount != 0 {
		t.Fatalf("expected state back to unliked count 0, got %+v", res.State)
	}
}

func TestToggleLikeRollsBackOnError(t *testing.T) {
	svc := newFakeToggler()
	svc.fail = serrors.ErrTransientFetch
	o := New("viewer", svc)
	seed := State{Liked: false, LikeCount: 7}
	o.Seed("p1", seed)

	res, err := o.ToggleLike(context.Background(), "p1")
	if !errors.Is(err, serrors.ErrTransientFetch) {
		t.Fatalf("expected confirm error surfaced, got %v", err)
	}
	if res.State != seed {
		t.Fatalf("expected rollback to %+v, got %+v", seed, res.State)
	}
	st, _ := o.Get("p1")
	if st != seed {
		t.Fatalf("tracked state not restored: %+v", st)
	}
}

func TestToggleLikeAdoptsServerTruth(t *testing.T) {
	svc := newFakeToggler()
	// other viewers liked the post since the page was fetched
	svc.likes["p1"] = 4
	o := New("viewer", svc)
	o.Seed("p1", State{Liked: false, LikeCount: 2})

	res, err := o.ToggleLike(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	// guess said 3; server says 5 and the count is adopted wholesale
	if res.State.LikeCount != 5 || !res.State.Liked {
		t.Fatalf("expected server truth {liked,5}, got %+v", res.State)
	}
	if !res.Corrected {
		t.Fatalf("expected Corrected when confirmed count disagrees")
	}
}

func TestToggleRepostOptimisticAndRollback(t *testing.T) {
	svc := newFakeToggler()
	o := New("viewer", svc)
	o.Seed("p1", State{RepostCount: 1, Reposted: true})

	res, err := o.ToggleRepost(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ToggleRepost failed: %v", err)
	}
	// fake had no prior marker so confirmed truth is reposted=true, and the
	// optimistic un-repost guess gets corrected
	if !res.Corrected {
		t.Fatalf("expected correction when server disagrees, got %+v", res)
	}
	if !res.State.Reposted || res.State.RepostCount != 1 {
		t.Fatalf("expected server truth adopted, got %+v", res.State)
	}

	svc.fail = serrors.ErrTransientFetch
	prev, _ := o.Get("p1")
	if _, err := o.ToggleRepost(context.Background(), "p1"); err == nil {
		t.Fatalf("expected error from failing confirm")
	}
	st, _ := o.Get("p1")
	if st != prev {
		t.Fatalf("expected rollback to %+v, got %+v", prev, st)
	}
}

func TestCountNeverGoesNegative(t *testing.T) {
	svc := newFakeToggler()
	svc.liked["p1"] = true // viewer already liked server-side
	o := New("viewer", svc)
	o.Seed("p1", State{Liked: true, LikeCount: 0})

	res, err := o.ToggleLike(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if res.State.LikeCount < 0 {
		t.Fatalf("count went negative: %+v", res.State)
	}
}
