package timeline

import (
	"context"
	"errors"
	"fmt"

	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/serrors"
	"flockd/pkg/store"
)

// Item types. A repost of a followed user's post and the original post by
// a followed author are distinct items, never collapsed.
const (
	ItemPost   = "post"
	ItemRepost = "repost"
)

// Item is one entry of a composed feed.
type Item struct {
	Type string `json:"type"`
	// SortTS is the effective ordering timestamp: the post's creation
	// time for authored items, the repost time for repost items.
	SortTS int64       `json:"sort_ts"`
	Post   models.Post `json:"post"`
	// RepostedBy is set only on repost items.
	RepostedBy *models.User `json:"reposted_by,omitempty"`
	// Per-viewer overlay annotations.
	IsLiked    bool `json:"is_liked"`
	IsReposted bool `json:"is_reposted"`
}

// Page is one feed page plus its continuation token. NextCursor is empty
// when the feed is exhausted.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// Compose returns up to limit feed items for the viewer, strictly older
// than the cursor, merged from the follow set's authored posts and
// reposts. Ordering is (SortTS desc, identity desc); ties never split
// across a page boundary inconsistently. An empty follow set yields an
// empty page. Posts deleted between fetches are skipped silently.
func Compose(ctx context.Context, viewer string, followSet []string, limit int, cursor string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	ok, err := store.UserExists(viewer)
	if err != nil {
		return Page{}, err
	}
	if !ok {
		return Page{}, fmt.Errorf("viewer %s: %w", viewer, serrors.ErrNotFound)
	}
	if limit <= 0 {
		return Page{}, fmt.Errorf("limit must be positive: %w", serrors.ErrValidation)
	}
	if len(followSet) == 0 {
		return Page{}, nil
	}

	before, err := DecodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	// Fetch one extra candidate per stream to detect continuation.
	posts, err := store.ListPostRefsByAuthors(followSet, before, limit+1)
	if err != nil {
		return Page{}, err
	}
	reposts, err := store.ListRepostRefsByUsers(followSet, before, limit+1)
	if err != nil {
		return Page{}, err
	}

	raw := mergeRefs(posts, reposts, limit+1)
	hasMore := len(raw) > limit
	if hasMore {
		raw = raw[:limit]
	}

	page := Page{}
	for _, c := range raw {
		item, ok, err := hydrate(viewer, c)
		if err != nil {
			return Page{}, err
		}
		if !ok {
			continue
		}
		page.Items = append(page.Items, item)
	}
	if hasMore && len(raw) > 0 {
		page.NextCursor = EncodeCursor(raw[len(raw)-1])
	}
	logger.Debug("feed_composed", "viewer", viewer, "items", len(page.Items), "has_more", hasMore)
	return page, nil
}

// mergeRefs interleaves two already-descending candidate streams by
// (SortTS desc, identity desc) without materializing the union. The
// identity tie-break keeps a post and a same-timestamp repost of it as
// two distinct, stably ordered entries.
func mergeRefs(posts, reposts []store.Ref, limit int) []store.Ref {
	out := make([]store.Ref, 0, limit)
	i, j := 0, 0
	for len(out) < limit && (i < len(posts) || j < len(reposts)) {
		takePost := false
		switch {
		case j >= len(reposts):
			takePost = true
		case i >= len(posts):
			takePost = false
		case posts[i].SortTS != reposts[j].SortTS:
			takePost = posts[i].SortTS > reposts[j].SortTS
		default:
			takePost = posts[i].TieKey() > reposts[j].TieKey()
		}
		if takePost {
			out = append(out, posts[i])
			i++
		} else {
			out = append(out, reposts[j])
			j++
		}
	}
	return out
}

// hydrate resolves a candidate into a full item. It reports ok=false for
// candidates that must be skipped: deleted or vanished posts, and posts
// the viewer may not see.
func hydrate(viewer string, c store.Ref) (Item, bool, error) {
	p, err := store.GetPost(c.PostID)
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	if p.Deleted {
		return Item{}, false, nil
	}
	if p.Privacy == models.PrivacyPrivate && p.Author != viewer {
		return Item{}, false, nil
	}
	liked, err := store.LikedByViewer(p.ID, viewer)
	if err != nil {
		return Item{}, false, err
	}
	reposted, err := store.RepostedByViewer(p.ID, viewer)
	if err != nil {
		return Item{}, false, err
	}
	item := Item{
		Type:       ItemPost,
		SortTS:     c.SortTS,
		Post:       p,
		IsLiked:    liked,
		IsReposted: reposted,
	}
	if c.Repost {
		item.Type = ItemRepost
		u, err := store.GetUser(c.Actor)
		if err != nil {
			if !errors.Is(err, serrors.ErrNotFound) {
				return Item{}, false, err
			}
			u = models.User{ID: c.Actor}
		}
		item.RepostedBy = &u
	}
	return item, true, nil
}
