package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"flockd/pkg/config"
	"flockd/pkg/logger"
	"flockd/pkg/utils"
)

type ctxViewerKey struct{}

// RequireSignedViewer verifies the X-User-ID/X-User-Signature pair and
// injects the verified viewer id into the request context. Backend and
// admin callers may omit the signature; frontend callers must present
// one minted by a backend via /_sign.
func RequireSignedViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// role was resolved by the gateway
		role := r.Header.Get("X-Role-Name")
		viewerID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if sig == "" {
			if role == "backend" || role == "admin" {
				// trusted caller, viewer may arrive via header, query or body
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}
		if viewerID == "" {
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}
		if !signatureValid(viewerID, sig, keys) {
			logger.Warn("invalid_signature", "viewer", viewerID)
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		logger.Debug("signature_verified", "viewer", viewerID)
		ctx := context.WithValue(r.Context(), ctxViewerKey{}, viewerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// signatureValid checks the signature against every configured signing
// key so key rotation does not invalidate in-flight clients.
func signatureValid(viewerID, sig string, keys map[string]struct{}) bool {
	for k := range keys {
		mac := hmac.New(sha256.New, []byte(k))
		mac.Write([]byte(viewerID))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

// ViewerIDFromContext returns the verified viewer id or empty string.
func ViewerIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxViewerKey{}).(string); ok {
		return s
	}
	return ""
}
