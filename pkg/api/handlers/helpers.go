package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"flockd/pkg/auth"
	"flockd/pkg/serrors"
)

// writeStoreErr maps sentinel errors onto HTTP statuses.
func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case serrors.IsNotFound(err):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusNotFound)
	case serrors.IsValidation(err):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
	default:
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
	}
}

// viewerHint returns the caller's identity for read paths where a signed
// viewer is preferred but an unsigned hint is acceptable.
func viewerHint(r *http.Request) string {
	if id := auth.ViewerIDFromContext(r.Context()); id != "" {
		return id
	}
	if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" {
		return h
	}
	return strings.TrimSpace(r.URL.Query().Get("viewer"))
}

// queryInt parses an integer query param, falling back to def and
// clamping to max when max is positive.
func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func isAdmin(r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	return role == "admin" || role == "backend"
}
