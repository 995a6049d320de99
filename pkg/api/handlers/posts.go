package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"flockd/pkg/auth"
	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/store"
	"flockd/pkg/utils"
	"flockd/pkg/validation"
)

// RegisterPosts registers HTTP handlers for post, interaction and
// comment endpoints.
func RegisterPosts(r *mux.Router) {
	r.HandleFunc("/posts", createPost).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}", getPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", updatePost).Methods(http.MethodPut)
	r.HandleFunc("/posts/{id}", deletePost).Methods(http.MethodDelete)

	r.HandleFunc("/posts/{id}/like", toggleLike).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/repost", toggleRepost).Methods(http.MethodPost)

	r.HandleFunc("/posts/{id}/comments", createComment).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/comments", listComments).Methods(http.MethodGet)
}

func createPost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var p models.Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	viewer, status, msg := auth.ResolveViewerFromRequest(r, p.Author)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	p.Author = viewer
	if p.ID == "" {
		p.ID = utils.GenPostID()
	}
	if p.CreatedTS == 0 {
		p.CreatedTS = time.Now().UTC().UnixNano()
	}
	if p.Privacy == "" {
		p.Privacy = models.PrivacyPublic
	}
	// counts and tombstones are server-owned
	p.LikeCount, p.CommentCount, p.RepostCount = 0, 0, 0
	p.Edited, p.Deleted, p.DeletedTS, p.UpdatedTS = false, false, 0, 0
	if err := validation.ValidatePost(p); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if err := store.SavePost(p); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("post_created", "post", p.ID, "author", p.Author)
	_ = json.NewEncoder(w).Encode(p)
}

// postView is a post plus the caller's overlay annotations.
type postView struct {
	models.Post
	IsLiked    bool `json:"is_liked"`
	IsReposted bool `json:"is_reposted"`
}

func getPost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	p, err := store.GetPost(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if p.Deleted {
		http.Error(w, `{"error":"post not found"}`, http.StatusNotFound)
		return
	}
	view := postView{Post: p}
	if viewer := viewerHint(r); viewer != "" {
		view.IsLiked, _ = store.LikedByViewer(id, viewer)
		view.IsReposted, _ = store.RepostedByViewer(id, viewer)
	}
	_ = json.NewEncoder(w).Encode(view)
}

func updatePost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if err := validation.ValidateContent(body.Content); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	p, err := store.GetPost(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if p.Author != viewer {
		http.Error(w, `{"error":"only the author may edit a post"}`, http.StatusForbidden)
		return
	}
	updated, err := store.UpdatePost(id, func(p *models.Post) {
		p.Content = body.Content
		p.Edited = true
		p.UpdatedTS = time.Now().UTC().UnixNano()
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("post_edited", "post", id, "author", viewer)
	_ = json.NewEncoder(w).Encode(updated)
}

func deletePost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	p, err := store.GetPost(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if p.Author != viewer && !isAdmin(r) {
		http.Error(w, `{"error":"only the author may delete a post"}`, http.StatusForbidden)
		return
	}
	if err := store.SoftDeletePost(id, viewer); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toggleLike(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	liked, count, err := store.ToggleLike(id, viewer)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Post      string `json:"post"`
		Liked     bool   `json:"liked"`
		LikeCount int    `json:"like_count"`
	}{Post: id, Liked: liked, LikeCount: count})
}

func toggleRepost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	reposted, count, err := store.ToggleRepost(id, viewer)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Post        string `json:"post"`
		Reposted    bool   `json:"reposted"`
		RepostCount int    `json:"repost_count"`
	}{Post: id, Reposted: reposted, RepostCount: count})
}

func createComment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	postID := mux.Vars(r)["id"]
	var c models.Comment
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	viewer, status, msg := auth.ResolveViewerFromRequest(r, c.Author)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	c.Author = viewer
	c.Post = postID
	if c.ID == "" {
		c.ID = utils.GenCommentID()
	}
	if c.CreatedTS == 0 {
		c.CreatedTS = time.Now().UTC().UnixNano()
	}
	if err := validation.ValidateComment(c); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if err := store.SaveComment(c); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("comment_created", "comment", c.ID, "post", postID)
	_ = json.NewEncoder(w).Encode(c)
}

func listComments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	postID := mux.Vars(r)["id"]
	p, err := store.GetPost(postID)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	// deleting a post orphans its comments
	if p.Deleted {
		http.Error(w, `{"error":"post not found"}`, http.StatusNotFound)
		return
	}
	limit := queryInt(r, "limit", 0, 0)
	comments, err := store.ListComments(postID, limit)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Post     string           `json:"post"`
		Comments []models.Comment `json:"comments"`
	}{Post: postID, Comments: comments})
}
