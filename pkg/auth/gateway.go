package auth

import (
	"net"
	"net/http"
	"strings"

	"flockd/pkg/logger"
	"flockd/pkg/telemetry"
	"flockd/pkg/utils"
)

// gateway enforces the edge checks every request passes through before
// reaching a handler: CORS, IP whitelist, API-key role resolution,
// frontend route scoping and per-key rate limiting.
type gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

// AuthenticateRequestMiddleware builds the edge middleware from the
// resolved security config.
func AuthenticateRequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	gw := &gateway{cfg: cfg, limiters: newLimiterPool(cfg)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gw.serve(w, r, next)
		})
	}
}

func (g *gateway) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	logger.LogRequest(r)

	g.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(g.cfg.IPWhitelist) > 0 {
		ip := clientIP(r)
		if !g.ipAllowed(ip) {
			logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
			utils.JSONError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	authSpan := telemetry.StartSpan(r.Context(), "auth.authenticate")
	role, key, hasAPIKey := g.resolveRole(r)
	authSpan()

	// probes stay unauthenticated so orchestrators can reach them
	if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
		r.Header.Set("X-Role-Name", role.Name())
		next.ServeHTTP(w, r)
		return
	}

	if role == RoleUnauth || !hasAPIKey {
		logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	r.Header.Set("X-Role-Name", role.Name())

	if role == RoleFrontend && !frontendAllowed(r) {
		logger.Warn("request_forbidden", "reason", "frontend_not_allowed", "path", r.URL.Path)
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	rlSpan := telemetry.StartSpan(r.Context(), "auth.rate_limit")
	allowed := g.limiters.Allow(key)
	rlSpan()
	if !allowed {
		logger.Warn("rate_limited", "path", r.URL.Path)
		utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	logger.Info("request_allowed", "method", r.Method, "path", r.URL.Path, "role", role.Name())
	next.ServeHTTP(w, r)
}

func (g *gateway) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !g.originAllowed(origin) {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
	h.Set("Access-Control-Max-Age", "600")
	h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Signature")
	h.Set("Access-Control-Expose-Headers", "X-Role-Name")
}

func (g *gateway) originAllowed(origin string) bool {
	for _, a := range g.cfg.AllowedOrigins {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (g *gateway) ipAllowed(ip string) bool {
	for _, allowed := range g.cfg.IPWhitelist {
		if ip == allowed {
			return true
		}
	}
	return false
}

// resolveRole maps the request's API key to a role. Bearer tokens win
// over X-API-Key. Keyless requests rate-limit by client IP.
func (g *gateway) resolveRole(r *http.Request) (Role, string, bool) {
	auth := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return RoleUnauth, clientIP(r), false
	}
	if _, ok := g.cfg.AdminKeys[key]; ok {
		return RoleAdmin, key, true
	}
	if _, ok := g.cfg.BackendKeys[key]; ok {
		return RoleBackend, key, true
	}
	if _, ok := g.cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key, true
	}
	return RoleUnauth, key, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// frontendAllowed scopes frontend keys to viewer-facing routes. User
// provisioning and admin operations stay backend or admin only.
func frontendAllowed(r *http.Request) bool {
	p := r.URL.Path
	if p == "/v1/feed" && r.Method == http.MethodGet {
		return true
	}
	if strings.HasPrefix(p, "/v1/posts") {
		return true
	}
	if strings.HasPrefix(p, "/v1/conversations") {
		return true
	}
	if strings.HasPrefix(p, "/v1/users/") {
		if strings.HasSuffix(p, "/follow") {
			return true
		}
		return r.Method == http.MethodGet
	}
	return false
}
