package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/serrors"
)

var db *pebble.DB
var dbPath string

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// toggleMu serializes read-modify-write cycles on post records so that
// aggregate counts and their marker keys never drift apart.
var toggleMu sync.Mutex

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

func getJSON(key []byte, out any) error {
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return fmt.Errorf("%s: %w", string(key), serrors.ErrNotFound)
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(v, out)
}

func setJSON(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return db.Set(key, b, pebble.Sync)
}

func hasKey(key []byte) (bool, error) {
	_, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// --- users ---

// SaveUser stores (or overwrites) a user record.
func SaveUser(u models.User) error {
	if db == nil {
		return notOpened()
	}
	if err := setJSON(userKey(u.ID), u); err != nil {
		logger.Error("save_user_failed", "user", u.ID, "error", err)
		return err
	}
	recordOp("save_user")
	logger.Info("user_saved", "user", u.ID)
	return nil
}

// GetUser returns the user record for the given ID.
func GetUser(id string) (models.User, error) {
	var u models.User
	if db == nil {
		return u, notOpened()
	}
	err := getJSON(userKey(id), &u)
	return u, err
}

// UserExists reports whether a user record is present.
func UserExists(id string) (bool, error) {
	if db == nil {
		return false, notOpened()
	}
	return hasKey(userKey(id))
}

// --- follows ---

// Follow records that viewer follows author.
func Follow(viewer, author string) error {
	if db == nil {
		return notOpened()
	}
	ts := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	if err := db.Set(followKey(viewer, author), []byte(ts), pebble.Sync); err != nil {
		logger.Error("follow_failed", "viewer", viewer, "author", author, "error", err)
		return err
	}
	recordOp("follow")
	logger.Info("follow_saved", "viewer", viewer, "author", author)
	return nil
}

// Unfollow removes the follow edge from viewer to author.
func Unfollow(viewer, author string) error {
	if db == nil {
		return notOpened()
	}
	if err := db.Delete(followKey(viewer, author), pebble.Sync); err != nil {
		logger.Error("unfollow_failed", "viewer", viewer, "author", author, "error", err)
		return err
	}
	recordOp("unfollow")
	logger.Info("follow_removed", "viewer", viewer, "author", author)
	return nil
}

// IsFollowing reports whether viewer follows author.
func IsFollowing(viewer, author string) (bool, error) {
	if db == nil {
		return false, notOpened()
	}
	return hasKey(followKey(viewer, author))
}

// ListFollowing returns the author IDs the viewer follows.
func ListFollowing(viewer string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := followPrefix(viewer)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, string(iter.Key()[len(prefix):]))
	}
	return out, iter.Error()
}

// --- posts ---

// SavePost stores a new post and writes its authored-index entry.
func SavePost(p models.Post) error {
	if db == nil {
		return notOpened()
	}
	if err := setJSON(postKey(p.ID), p); err != nil {
		logger.Error("save_post_failed", "post", p.ID, "error", err)
		return err
	}
	if err := db.Set(authorIdxKey(p.Author, p.CreatedTS, p.ID), []byte(p.ID), pebble.Sync); err != nil {
		logger.Error("save_post_index_failed", "post", p.ID, "error", err)
		return err
	}
	recordOp("save_post")
	logger.Info("post_saved", "post", p.ID, "author", p.Author)
	return nil
}

// GetPost returns the post record for the given ID. Deleted posts are
// returned with the tombstone flag set; callers decide visibility.
func GetPost(id string) (models.Post, error) {
	var p models.Post
	if db == nil {
		return p, notOpened()
	}
	err := getJSON(postKey(id), &p)
	return p, err
}

// UpdatePost applies fn to the stored post under the store mutex and
// persists the result. It refuses to touch deleted posts.
func UpdatePost(id string, fn func(*models.Post)) (models.Post, error) {
	var p models.Post
	if db == nil {
		return p, notOpened()
	}
	toggleMu.Lock()
	defer toggleMu.Unlock()
	if err := getJSON(postKey(id), &p); err != nil {
		return p, err
	}
	if p.Deleted {
		return p, fmt.Errorf("post %s: %w", id, serrors.ErrNotFound)
	}
	fn(&p)
	if err := setJSON(postKey(id), p); err != nil {
		logger.Error("update_post_failed", "post", id, "error", err)
		return p, err
	}
	recordOp("update_post")
	return p, nil
}

// SoftDeletePost marks a post as deleted. Index entries stay in place;
// feed composition skips tombstoned records.
func SoftDeletePost(id, actor string) error {
	if db == nil {
		return notOpened()
	}
	toggleMu.Lock()
	defer toggleMu.Unlock()
	var p models.Post
	if err := getJSON(postKey(id), &p); err != nil {
		logger.Error("soft_delete_load_failed", "post", id, "error", err)
		return err
	}
	if p.Deleted {
		return nil
	}
	p.Deleted = true
	p.DeletedTS = time.Now().UTC().UnixNano()
	if err := setJSON(postKey(id), p); err != nil {
		logger.Error("soft_delete_save_failed", "post", id, "error", err)
		return err
	}
	recordOp("soft_delete_post")
	logger.Info("post_soft_deleted", "post", id, "actor", actor)
	return nil
}

// Ref is a candidate feed entry read from an ordered index, before the
// canonical record is hydrated.
type Ref struct {
	PostID string
	SortTS int64
	// Actor is the author for authored entries and the reposting user
	// for repost entries.
	Actor string
	// Repost marks entries read from a reposter index. The same post may
	// appear once as an authored entry and once per reposting user; each
	// is a distinct feed item.
	Repost bool
}

// tieKey is the identity component of the feed ordering key. Entries
// with equal SortTS order by this string descending, so a post, a
// repost of it, and reposts by different users keep a stable relative
// order and pagination never collapses them.
func tieKey(postID string, repost bool, actor string) string {
	kind := "post"
	if repost {
		kind = "repost"
	}
	return postID + "\x00" + kind + "\x00" + actor
}

// TieKey returns the ref's identity component for same-timestamp ordering.
func (r Ref) TieKey() string { return tieKey(r.PostID, r.Repost, r.Actor) }

// Bound is an exclusive upper bound for descending scans: the full item
// identity of the last candidate a previous page ended on.
type Bound struct {
	TS     int64
	ID     string
	Repost bool
	Actor  string
}

func (b Bound) tie() string { return tieKey(b.ID, b.Repost, b.Actor) }

func sortRefsDesc(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SortTS != refs[j].SortTS {
			return refs[i].SortTS > refs[j].SortTS
		}
		return refs[i].TieKey() > refs[j].TieKey()
	})
}

// scanIdxDesc walks one author-ordered index namespace newest-first and
// returns up to limit refs. When before is set, entries strictly older
// than it pass; entries at the bound timestamp pass only when their
// identity sorts below the bound's, so a tie shared between streams
// resumes without loss.
func scanIdxDesc(prefix []byte, actor string, repost bool, before *Bound, limit int) ([]Ref, error) {
	upper := prefixUpperBound(prefix)
	if before != nil {
		upper = append(append([]byte(nil), prefix...), fmt.Sprintf("%020d", before.TS+1)...)
	}
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Ref
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		suffix := iter.Key()[len(prefix):]
		if len(suffix) < 22 {
			continue
		}
		ts, err := strconv.ParseInt(string(suffix[:20]), 10, 64)
		if err != nil {
			continue
		}
		ref := Ref{
			PostID: string(append([]byte(nil), iter.Value()...)),
			SortTS: ts,
			Actor:  actor,
			Repost: repost,
		}
		if before != nil && ts == before.TS && ref.TieKey() >= before.tie() {
			continue
		}
		out = append(out, ref)
	}
	return out, iter.Error()
}

// ListPostRefsByAuthors returns up to limit authored-post candidates from
// the given authors, newest first, strictly older than before when set.
func ListPostRefsByAuthors(authors []string, before *Bound, limit int) ([]Ref, error) {
	if db == nil {
		return nil, notOpened()
	}
	if limit <= 0 {
		return nil, nil
	}
	var merged []Ref
	for _, a := range authors {
		refs, err := scanIdxDesc(authorIdxPrefix(a), a, false, before, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, refs...)
	}
	sortRefsDesc(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// ListRepostRefsByUsers returns up to limit repost candidates made by the
// given users, newest first, strictly older than before when set.
func ListRepostRefsByUsers(users []string, before *Bound, limit int) ([]Ref, error) {
	if db == nil {
		return nil, notOpened()
	}
	if limit <= 0 {
		return nil, nil
	}
	var merged []Ref
	for _, u := range users {
		refs, err := scanIdxDesc(reposterIdxPrefix(u), u, true, before, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, refs...)
	}
	sortRefsDesc(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// --- interaction state ---

// ToggleLike flips the viewer's like marker on a post and returns the
// resulting state plus the authoritative count. The marker key and the
// aggregate count move together under the store mutex.
func ToggleLike(postID, viewer string) (bool, int, error) {
	if db == nil {
		return false, 0, notOpened()
	}
	toggleMu.Lock()
	defer toggleMu.Unlock()
	var p models.Post
	if err := getJSON(postKey(postID), &p); err != nil {
		return false, 0, err
	}
	if p.Deleted {
		return false, 0, fmt.Errorf("post %s: %w", postID, serrors.ErrNotFound)
	}
	mk := likeKey(postID, viewer)
	present, err := hasKey(mk)
	if err != nil {
		return false, 0, err
	}
	liked := !present
	if present {
		if err := db.Delete(mk, pebble.Sync); err != nil {
			return false, 0, err
		}
		if p.LikeCount > 0 {
			p.LikeCount--
		}
	} else {
		ts := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
		if err := db.Set(mk, []byte(ts), pebble.Sync); err != nil {
			return false, 0, err
		}
		p.LikeCount++
	}
	if err := setJSON(postKey(postID), p); err != nil {
		return false, 0, err
	}
	recordOp("toggle_like")
	logger.Info("like_toggled", "post", postID, "viewer", viewer, "liked", liked, "count", p.LikeCount)
	return liked, p.LikeCount, nil
}

// ToggleRepost flips the viewer's repost of a post. Toggling on writes a
// repost-index entry so the repost shows up in follower feeds; toggling
// off removes it again.
func ToggleRepost(postID, viewer string) (bool, int, error) {
	if db == nil {
		return false, 0, notOpened()
	}
	toggleMu.Lock()
	defer toggleMu.Unlock()
	var p models.Post
	if err := getJSON(postKey(postID), &p); err != nil {
		return false, 0, err
	}
	if p.Deleted {
		return false, 0, fmt.Errorf("post %s: %w", postID, serrors.ErrNotFound)
	}
	mk := repostMarkKey(postID, viewer)
	v, closer, err := db.Get(mk)
	reposted := false
	switch {
	case err == nil:
		// marker value holds the index sort suffix written at repost time
		suffix := append([]byte(nil), v...)
		closer.Close()
		idxKey := append(append([]byte(nil), reposterIdxPrefix(viewer)...), suffix...)
		if err := db.Delete(idxKey, pebble.Sync); err != nil {
			return false, 0, err
		}
		if err := db.Delete(mk, pebble.Sync); err != nil {
			return false, 0, err
		}
		if p.RepostCount > 0 {
			p.RepostCount--
		}
	case errors.Is(err, pebble.ErrNotFound):
		reposted = true
		ts := time.Now().UTC().UnixNano()
		suffix := sortSuffix(ts, postID)
		if err := db.Set(mk, []byte(suffix), pebble.Sync); err != nil {
			return false, 0, err
		}
		if err := db.Set(reposterIdxKey(viewer, ts, postID), []byte(postID), pebble.Sync); err != nil {
			return false, 0, err
		}
		p.RepostCount++
	default:
		return false, 0, err
	}
	if err := setJSON(postKey(postID), p); err != nil {
		return false, 0, err
	}
	recordOp("toggle_repost")
	logger.Info("repost_toggled", "post", postID, "viewer", viewer, "reposted", reposted, "count", p.RepostCount)
	return reposted, p.RepostCount, nil
}

// LikedByViewer reports whether the viewer has liked the post.
func LikedByViewer(postID, viewer string) (bool, error) {
	if db == nil {
		return false, notOpened()
	}
	return hasKey(likeKey(postID, viewer))
}

// RepostedByViewer reports whether the viewer has reposted the post.
func RepostedByViewer(postID, viewer string) (bool, error) {
	if db == nil {
		return false, notOpened()
	}
	return hasKey(repostMarkKey(postID, viewer))
}

func countPrefix(prefix []byte) (int, error) {
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// CountLikes recomputes a post's like count from its marker keys.
func CountLikes(postID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	return countPrefix(likePrefix(postID))
}

// CountReposts recomputes a post's repost count from its marker keys.
func CountReposts(postID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	return countPrefix(repostMarkPrefix(postID))
}

// CountComments recomputes a post's comment count from stored comments.
func CountComments(postID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	return countPrefix(commentPrefix(postID))
}

// --- comments ---

// SaveComment stores a comment and bumps the post's comment count in the
// same critical section.
func SaveComment(c models.Comment) error {
	if db == nil {
		return notOpened()
	}
	toggleMu.Lock()
	defer toggleMu.Unlock()
	var p models.Post
	if err := getJSON(postKey(c.Post), &p); err != nil {
		return err
	}
	if p.Deleted {
		return fmt.Errorf("post %s: %w", c.Post, serrors.ErrNotFound)
	}
	if err := setJSON(commentKey(c.Post, c.CreatedTS, c.ID), c); err != nil {
		logger.Error("save_comment_failed", "comment", c.ID, "post", c.Post, "error", err)
		return err
	}
	p.CommentCount++
	if err := setJSON(postKey(c.Post), p); err != nil {
		return err
	}
	recordOp("save_comment")
	logger.Info("comment_saved", "comment", c.ID, "post", c.Post)
	return nil
}

// ListComments returns a post's comments oldest first, up to limit when
// limit is positive.
func ListComments(postID string, limit int) ([]models.Comment, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := commentPrefix(postID)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Comment
	for iter.First(); iter.Valid(); iter.Next() {
		var c models.Comment
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// --- conversations ---

// SaveConversation stores conversation metadata and membership index
// entries for each member.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return notOpened()
	}
	if err := setJSON(convMetaKey(c.ID), c); err != nil {
		logger.Error("save_conversation_failed", "conv", c.ID, "error", err)
		return err
	}
	for _, m := range c.Members {
		if err := db.Set(convIdxKey(m, c.ID), []byte(c.ID), pebble.Sync); err != nil {
			return err
		}
	}
	recordOp("save_conversation")
	logger.Info("conversation_saved", "conv", c.ID, "members", len(c.Members))
	return nil
}

// GetConversation returns the conversation metadata for the given ID.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpened()
	}
	err := getJSON(convMetaKey(id), &c)
	return c, err
}

// ListConversations returns the conversations the user is a member of,
// most recently updated first.
func ListConversations(user string) ([]models.Conversation, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := convIdxPrefix(user)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.First(); iter.Valid(); iter.Next() {
		var c models.Conversation
		if err := getJSON(convMetaKey(string(iter.Value())), &c); err != nil {
			if errors.Is(err, serrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

// SaveConvMessage appends a message to a conversation under a sortable
// timestamp key and bumps the conversation's updated timestamp.
func SaveConvMessage(m models.Message) error {
	if db == nil {
		return notOpened()
	}
	var c models.Conversation
	if err := getJSON(convMetaKey(m.Conv), &c); err != nil {
		return err
	}
	s := atomic.AddUint64(&seq, 1)
	key := convMsgKey(m.Conv, m.TS, s)
	if err := setJSON(key, m); err != nil {
		logger.Error("save_message_failed", "conv", m.Conv, "key", string(key), "error", err)
		return err
	}
	c.UpdatedTS = m.TS
	if err := setJSON(convMetaKey(m.Conv), c); err != nil {
		return err
	}
	recordOp("save_message")
	logger.Info("message_saved", "conv", m.Conv, "msg", m.ID)
	return nil
}

// ListMessagePage returns one page of a conversation's messages newest
// first. Pages are 1-based; a short or empty page means the history is
// exhausted.
func ListMessagePage(convID string, page, pageSize int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("page and page size must be positive: %w", serrors.ErrValidation)
	}
	var c models.Conversation
	if err := getJSON(convMetaKey(convID), &c); err != nil {
		return nil, err
	}
	prefix := convMsgPrefix(convID)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	skip := (page - 1) * pageSize
	var out []models.Message
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if skip > 0 {
			skip--
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
		if len(out) >= pageSize {
			break
		}
	}
	return out, iter.Error()
}

// CountMessages returns the number of messages stored for a conversation.
func CountMessages(convID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	return countPrefix(convMsgPrefix(convID))
}

// --- raw access ---

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", notOpened()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", key, serrors.ErrNotFound)
		}
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

// SaveKey stores an arbitrary key/value pair. Callers should choose a
// safe namespace.
func SaveKey(key string, value []byte) error {
	if db == nil {
		return notOpened()
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// DBIter returns a raw Pebble iterator for low-level operations. Caller
// must close the iterator when done.
func DBIter() (*pebble.Iterator, error) {
	if db == nil {
		return nil, notOpened()
	}
	return db.NewIter(&pebble.IterOptions{})
}

// DBSet writes a raw key into the DB. Used by admin utilities.
func DBSet(key, value []byte) error {
	if db == nil {
		return notOpened()
	}
	return db.Set(key, value, pebble.Sync)
}
