package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"flockd/pkg/auth"
	"flockd/pkg/config"
	"flockd/pkg/logger"
	"flockd/pkg/models"
	"flockd/pkg/store"
	"flockd/pkg/telemetry"
	"flockd/pkg/utils"
	"flockd/pkg/validation"
)

var (
	convPageSize    = config.DefaultConversationPageSize
	convMaxPageSize = config.DefaultConversationMaxPage
)

// ConfigureConversations sets the default and maximum message page sizes.
func ConfigureConversations(def, max int) {
	if def > 0 {
		convPageSize = def
	}
	if max > 0 {
		convMaxPageSize = max
	}
}

// RegisterConversations registers HTTP handlers for conversation and
// message endpoints.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", listMessagePage).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", sendMessage).Methods(http.MethodPost)
}

func memberOf(c models.Conversation, user string) bool {
	for _, m := range c.Members {
		if m == user {
			return true
		}
	}
	return false
}

func createConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var c models.Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	if !memberOf(c, viewer) {
		c.Members = append(c.Members, viewer)
	}
	if len(c.Members) < 2 {
		http.Error(w, `{"error":"a conversation needs at least two members"}`, http.StatusBadRequest)
		return
	}
	if c.ID == "" {
		c.ID = utils.GenConvID()
	}
	now := time.Now().UTC().UnixNano()
	if c.CreatedTS == 0 {
		c.CreatedTS = now
	}
	if c.UpdatedTS == 0 {
		c.UpdatedTS = c.CreatedTS
	}
	if err := store.SaveConversation(c); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("conversation_created", "conv", c.ID, "members", len(c.Members))
	_ = json.NewEncoder(w).Encode(c)
}

func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	convs, err := store.ListConversations(viewer)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: convs})
}

func getConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	c, err := store.GetConversation(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if !memberOf(c, viewer) {
		http.Error(w, `{"error":"not a member of this conversation"}`, http.StatusForbidden)
		return
	}
	_ = json.NewEncoder(w).Encode(c)
}

// listMessagePage serves one newest-first page. A page shorter than the
// requested size tells the client the history is exhausted.
func listMessagePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := mux.Vars(r)["id"]
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	c, err := store.GetConversation(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if !memberOf(c, viewer) {
		http.Error(w, `{"error":"not a member of this conversation"}`, http.StatusForbidden)
		return
	}
	page := queryInt(r, "page", 1, 0)
	pageSize := queryInt(r, "page_size", convPageSize, convMaxPageSize)
	msgs, err := store.ListMessagePage(id, page, pageSize)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Conv      string           `json:"conv"`
		Page      int              `json:"page"`
		PageSize  int              `json:"page_size"`
		Messages  []models.Message `json:"messages"`
		Exhausted bool             `json:"exhausted"`
	}{Conv: id, Page: page, PageSize: pageSize, Messages: msgs, Exhausted: len(msgs) < pageSize})
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	telemetry.SetRequestOp(r.Context(), "send_message")
	id := mux.Vars(r)["id"]
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	viewer, status, msg := auth.ResolveViewerFromRequest(r, m.Author)
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	c, err := store.GetConversation(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if !memberOf(c, viewer) {
		http.Error(w, `{"error":"not a member of this conversation"}`, http.StatusForbidden)
		return
	}
	m.Conv = id
	m.Author = viewer
	if m.ID == "" {
		m.ID = utils.GenMessageID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	if err := validation.ValidateMessage(m); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if err := store.SaveConvMessage(m); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("message_sent", "conv", id, "msg", m.ID)
	_ = json.NewEncoder(w).Encode(m)
}
