package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"flockd/pkg/auth"
	"flockd/pkg/config"
	"flockd/pkg/store"
	"flockd/pkg/timeline"
	"flockd/pkg/utils"
)

var (
	feedPageSize    = config.DefaultFeedPageSize
	feedMaxPageSize = config.DefaultFeedMaxPageSize
)

// ConfigureFeed sets the default and maximum feed page sizes.
func ConfigureFeed(def, max int) {
	if def > 0 {
		feedPageSize = def
	}
	if max > 0 {
		feedMaxPageSize = max
	}
}

// RegisterFeed registers the composed timeline endpoint.
func RegisterFeed(r *mux.Router) {
	r.HandleFunc("/feed", getFeed).Methods(http.MethodGet)
}

func getFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	viewer, status, msg := auth.ResolveViewerFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	limit := queryInt(r, "limit", feedPageSize, feedMaxPageSize)
	cursor := r.URL.Query().Get("cursor")

	// The viewer's own posts ride along with the follow set.
	followSet, err := store.ListFollowing(viewer)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	followSet = append(followSet, viewer)

	page, err := timeline.Compose(r.Context(), viewer, followSet, limit, cursor)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if page.Items == nil {
		page.Items = []timeline.Item{}
	}
	_ = json.NewEncoder(w).Encode(page)
}
