package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"flockd/pkg/auth"
	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/serrors"
	"flockd/pkg/store"
	"flockd/pkg/utils"
)

// RegisterUsers registers HTTP handlers for user and follow-graph endpoints.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/follow", followUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/follow", unfollowUser).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/following", listFollowing).Methods(http.MethodGet)
}

func createUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	// user provisioning is a backend concern
	if !isAdmin(r) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(u.Username) == "" {
		http.Error(w, `{"error":"username required"}`, http.StatusBadRequest)
		return
	}
	if u.ID == "" {
		u.ID = utils.GenUserID()
	}
	if u.CreatedTS == 0 {
		u.CreatedTS = time.Now().UTC().UnixNano()
	}
	if err := store.SaveUser(u); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("user_created", "user", u.ID, "username", u.Username)
	_ = json.NewEncoder(w).Encode(u)
}

func getUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	u, err := store.GetUser(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(u)
}

func followUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	author := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if viewer == author {
		http.Error(w, `{"error":"cannot follow yourself"}`, http.StatusBadRequest)
		return
	}
	ok, err := store.UserExists(author)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if !ok {
		writeStoreErr(w, serrors.ErrNotFound)
		return
	}
	if err := store.Follow(viewer, author); err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"viewer": viewer, "author": author, "following": true})
}

func unfollowUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	author := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if err := store.Unfollow(viewer, author); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listFollowing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	following, err := store.ListFollowing(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		User      string   `json:"user"`
		Following []string `json:"following"`
	}{User: id, Following: following})
}
