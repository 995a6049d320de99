package models

// Privacy controls who may see a post.
type Privacy string

const (
	PrivacyPublic    Privacy = "public"
	PrivacyFollowers Privacy = "followers"
	PrivacyPrivate   Privacy = "private"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

type Post struct {
	ID string `json:"id"`
	// Author is an opaque identity id (clients manage meaning)
	Author  string `json:"author"`
	Content string `json:"content"`
	// ImageURL references an externally served attachment, if any
	ImageURL string  `json:"image_url,omitempty"`
	Privacy  Privacy `json:"privacy,omitempty"`
	// Created timestamp (ns); also the post's effective timeline position
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last content/privacy edit
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	Edited    bool  `json:"edited,omitempty"`
	// Aggregate counts. Eventually consistent with the union of all
	// viewers' like/repost records; maintained by atomic toggle
	// transitions and the recount sweeper.
	LikeCount    int `json:"like_count"`
	CommentCount int `json:"comment_count"`
	RepostCount  int `json:"repost_count"`
	// Deleted marks a post as soft-deleted; index entries are retained and
	// readers skip the reference.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

// Repost records one user surfacing an existing post at a point in time.
// The action time, not the post's creation time, orders it in a feed.
type Repost struct {
	Post string `json:"post"`
	User string `json:"user"`
	TS   int64  `json:"ts"`
}

type Comment struct {
	ID        string `json:"id"`
	Post      string `json:"post"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedTS int64  `json:"created_ts,omitempty"`
	UpdatedTS int64  `json:"updated_ts,omitempty"`
	Edited    bool   `json:"edited,omitempty"`
}
