package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func gatewayHandler(cfg SecConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(r.Header.Get("X-Role-Name")))
	})
	return AuthenticateRequestMiddleware(cfg)(ok)
}

func baseSecConfig() SecConfig {
	return SecConfig{
		BackendKeys:  map[string]struct{}{"backend-key": {}},
		FrontendKeys: map[string]struct{}{"frontend-key": {}},
		AdminKeys:    map[string]struct{}{"admin-key": {}},
	}
}

func TestGatewayRejectsMissingKey(t *testing.T) {
	h := gatewayHandler(baseSecConfig())
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api key, got %d", rr.Code)
	}
}

func TestGatewayResolvesRoles(t *testing.T) {
	h := gatewayHandler(baseSecConfig())
	cases := []struct {
		key  string
		want string
	}{
		{"backend-key", "backend"},
		{"admin-key", "admin"},
		{"frontend-key", "frontend"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
		req.Header.Set("Authorization", "Bearer "+c.key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("key %s: expected 200, got %d", c.key, rr.Code)
		}
		if rr.Body.String() != c.want {
			t.Fatalf("key %s: expected role %s, got %q", c.key, c.want, rr.Body.String())
		}
	}

	// X-API-Key works as a fallback to the bearer header
	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("X-API-Key", "backend-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "backend" {
		t.Fatalf("x-api-key fallback failed: %d %q", rr.Code, rr.Body.String())
	}
}

func TestGatewayFrontendScope(t *testing.T) {
	h := gatewayHandler(baseSecConfig())
	allowed := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/feed"},
		{http.MethodPost, "/v1/posts"},
		{http.MethodPost, "/v1/posts/p1/like"},
		{http.MethodGet, "/v1/conversations"},
		{http.MethodPost, "/v1/conversations/c1/messages"},
		{http.MethodGet, "/v1/users/alice"},
		{http.MethodPost, "/v1/users/alice/follow"},
	}
	for _, c := range allowed {
		req := httptest.NewRequest(c.method, c.path, nil)
		req.Header.Set("Authorization", "Bearer frontend-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s %s: expected frontend access, got %d", c.method, c.path, rr.Code)
		}
	}

	denied := []struct {
		method, path string
	}{
		{http.MethodPost, "/v1/users"},
		{http.MethodGet, "/v1/admin/stats"},
		{http.MethodPost, "/v1/admin/recount"},
	}
	for _, c := range denied {
		req := httptest.NewRequest(c.method, c.path, nil)
		req.Header.Set("Authorization", "Bearer frontend-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 for frontend, got %d", c.method, c.path, rr.Code)
		}
	}
}

func TestGatewayHealthProbesSkipAuth(t *testing.T) {
	h := gatewayHandler(baseSecConfig())
	for _, p := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected unauthenticated probe to pass, got %d", p, rr.Code)
		}
	}
}

func TestGatewayIPWhitelist(t *testing.T) {
	cfg := baseSecConfig()
	cfg.IPWhitelist = []string{"10.0.0.1"}
	h := gatewayHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	req.Header.Set("Authorization", "Bearer backend-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-whitelisted ip, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("Authorization", "Bearer backend-key")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected whitelisted ip to pass, got %d", rr.Code)
	}
}

func TestGatewayCORSPreflight(t *testing.T) {
	cfg := baseSecConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	h := gatewayHandler(cfg)

	req := httptest.NewRequest(http.MethodOptions, "/v1/feed", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing CORS headers: %v", rr.Header())
	}

	// unknown origins get no CORS headers
	req = httptest.NewRequest(http.MethodOptions, "/v1/feed", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("CORS headers leaked to unknown origin")
	}
}

func TestGatewayRateLimit(t *testing.T) {
	cfg := baseSecConfig()
	cfg.RPS = 1
	cfg.Burst = 2
	h := gatewayHandler(cfg)

	limited := false
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
		req.Header.Set("Authorization", "Bearer backend-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected rate limiting to kick in within the burst window")
	}
}
