package auth

import (
	"net/http"
	"strings"

	"flockd/pkg/logger"
)

func validateViewer(v string) (bool, string) {
	if v == "" {
		return false, "viewer required"
	}
	if len(v) > 128 {
		return false, "viewer too long"
	}
	return true, ""
}

// ResolveViewerFromRequest is the single canonical resolver handlers should
// call. It prefers a signature-verified viewer (in context). If a signature
// is present it is authoritative; any conflicting viewer provided via
// header, body or query causes a 403. When no signature is present,
// backend/admin roles may supply a viewer via body, header (X-User-ID) or
// query (fallback). Frontend callers require a signature and receive 401
// when it is missing.
func ResolveViewerFromRequest(r *http.Request, bodyViewer string) (string, int, string) {
	// Prefer signature-verified viewer from context
	if id := ViewerIDFromContext(r.Context()); id != "" {
		// If other provided viewers conflict with the signature, reject.
		if q := strings.TrimSpace(r.URL.Query().Get("viewer")); q != "" && q != id {
			logger.Warn("viewer_mismatch_signature_query", "signature", id, "query", q, "remote", r.RemoteAddr, "path", r.URL.Path)
			return "", http.StatusForbidden, "viewer mismatch between signature and query param"
		}
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" && h != id {
			logger.Warn("viewer_mismatch_signature_header", "signature", id, "header", h, "remote", r.RemoteAddr, "path", r.URL.Path)
			return "", http.StatusForbidden, "viewer mismatch between signature and header"
		}
		if bodyViewer != "" && bodyViewer != id {
			logger.Warn("viewer_mismatch_signature_body", "signature", id, "body", bodyViewer, "remote", r.RemoteAddr, "path", r.URL.Path)
			return "", http.StatusForbidden, "viewer mismatch between signature and body"
		}
		logger.Debug("viewer_resolved_signature", "viewer", id, "path", r.URL.Path)
		return id, 0, ""
	}

	// No signature; allow backend/admins to supply a viewer via body/header/query.
	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		for _, cand := range []string{
			bodyViewer,
			strings.TrimSpace(r.Header.Get("X-User-ID")),
			strings.TrimSpace(r.URL.Query().Get("viewer")),
		} {
			if cand == "" {
				continue
			}
			if ok, msg := validateViewer(cand); !ok {
				logger.Warn("invalid_backend_viewer", "user", cand, "remote", r.RemoteAddr, "path", r.URL.Path)
				return "", http.StatusBadRequest, msg
			}
			logger.Debug("viewer_resolved_backend", "viewer", cand, "path", r.URL.Path)
			return cand, 0, ""
		}
		logger.Warn("backend_missing_viewer", "remote", r.RemoteAddr, "path", r.URL.Path)
		return "", http.StatusBadRequest, "viewer required for backend requests"
	}

	// Otherwise require signature
	logger.Warn("missing_viewer_signature", "role", role, "remote", r.RemoteAddr, "path", r.URL.Path)
	return "", http.StatusUnauthorized, "missing or invalid viewer signature"
}
