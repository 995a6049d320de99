package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"flockd/pkg/config"
)

func setSigningKey(t *testing.T, key string) {
	t.Helper()
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: map[string]struct{}{key: {}}})
	t.Cleanup(func() { config.SetRuntime(nil) })
}

func sign(key, user string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(user))
	return hex.EncodeToString(mac.Sum(nil))
}

func echoViewer() (http.Handler, *string) {
	var got string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ViewerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &got
}

func TestSignedViewerInjectedIntoContext(t *testing.T) {
	setSigningKey(t, "secret")
	inner, got := echoViewer()
	h := RequireSignedViewer(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d %s", rr.Code, rr.Body.String())
	}
	if *got != "alice" {
		t.Fatalf("viewer not injected, got %q", *got)
	}
}

func TestMissingSignatureRejectedForFrontend(t *testing.T) {
	setSigningKey(t, "secret")
	inner, _ := echoViewer()
	h := RequireSignedViewer(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "frontend")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	setSigningKey(t, "secret")
	inner, _ := echoViewer()
	h := RequireSignedViewer(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("wrong", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rr.Code)
	}
}

func TestBackendMayOmitSignature(t *testing.T) {
	setSigningKey(t, "secret")
	inner, got := echoViewer()
	h := RequireSignedViewer(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", "alice")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected backend pass-through, got %d", rr.Code)
	}
	// no signature means no verified viewer in context
	if *got != "" {
		t.Fatalf("unsigned backend call must not produce a verified viewer, got %q", *got)
	}
}

func TestResolveViewerConflicts(t *testing.T) {
	setSigningKey(t, "secret")

	var status int
	var viewer string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, status, _ = ResolveViewerFromRequest(r, "")
		w.WriteHeader(http.StatusOK)
	})
	h := RequireSignedViewer(inner)

	// signed viewer vs conflicting query param
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?viewer=mallory", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret", "alice"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for conflicting viewer, got %d", status)
	}

	// agreeing query param is fine
	req = httptest.NewRequest(http.MethodGet, "/v1/feed?viewer=alice", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", sign("secret", "alice"))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if status != 0 || viewer != "alice" {
		t.Fatalf("expected signed viewer resolved, got status=%d viewer=%q", status, viewer)
	}
}

func TestResolveViewerBackendFallback(t *testing.T) {
	setSigningKey(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?viewer=bob", nil)
	req.Header.Set("X-Role-Name", "backend")
	viewer, status, _ := ResolveViewerFromRequest(req, "")
	if status != 0 || viewer != "bob" {
		t.Fatalf("expected backend query fallback, got status=%d viewer=%q", status, viewer)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "backend")
	_, status, _ = ResolveViewerFromRequest(req, "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 when backend supplies no viewer, got %d", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-Role-Name", "frontend")
	_, status, _ = ResolveViewerFromRequest(req, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned frontend, got %d", status)
	}
}
