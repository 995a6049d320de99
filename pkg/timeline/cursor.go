package timeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"flockd/pkg/serrors"
	"flockd/pkg/store"
)

// cursorPayload is the decoded form of a continuation token: the full
// ordering key of the last candidate the caller has seen. Kind and By
// distinguish a post from reposts of that same post, so a timestamp tie
// at a page boundary resumes without dropping either item.
type cursorPayload struct {
	TS   int64  `json:"ts"`
	ID   string `json:"id"`
	Kind string `json:"kind,omitempty"`
	By   string `json:"by,omitempty"`
}

// EncodeCursor packs a candidate's ordering key into an opaque token.
func EncodeCursor(ref store.Ref) string {
	p := cursorPayload{TS: ref.SortTS, ID: ref.PostID, Kind: ItemPost, By: ref.Actor}
	if ref.Repost {
		p.Kind = ItemRepost
	}
	b, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeCursor unpacks a continuation token into an exclusive scan
// bound. An empty token means "start" and yields a nil bound.
func DecodeCursor(s string) (*store.Bound, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad cursor encoding: %w", serrors.ErrValidation)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("bad cursor payload: %w", serrors.ErrValidation)
	}
	if p.ID == "" && p.TS == 0 {
		return nil, fmt.Errorf("empty cursor payload: %w", serrors.ErrValidation)
	}
	return &store.Bound{
		TS:     p.TS,
		ID:     p.ID,
		Repost: p.Kind == ItemRepost,
		Actor:  p.By,
	}, nil
}
