package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"flockd/pkg/logger"
	"flockd/pkg/utils"
)

// RegisterSigning mounts POST /_sign. Backend services call it to mint
// the X-User-Signature a frontend must present for a viewer; the
// caller's own API key is the signing secret, so signatures verify
// against the configured signing keys without extra state.
func RegisterSigning(r *mux.Router) {
	r.HandleFunc("/_sign", signViewer).Methods(http.MethodPost)
}

func signViewer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if role := r.Header.Get("X-Role-Name"); role != "backend" {
		logger.Warn("sign_forbidden", "role", role, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	key := callerAPIKey(r)
	if key == "" {
		logger.Warn("sign_missing_api_key", "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusUnauthorized, "missing api key")
		return
	}

	var payload struct {
		ViewerID string `json:"viewer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ViewerID == "" {
		utils.JSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload.ViewerID))
	sig := hex.EncodeToString(mac.Sum(nil))
	logger.Info("viewer_signed", "remote", r.RemoteAddr)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"viewer_id": payload.ViewerID,
		"signature": sig,
	})
}

func callerAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return r.Header.Get("X-API-Key")
}
