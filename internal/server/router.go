package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/THL-Leo/llmail/internal/audit"
	"github.com/THL-Leo/llmail/internal/config"
	"github.com/THL-Leo/llmail/internal/database"
	"github.com/THL-Leo/llmail/internal/middleware"
	"github.com/THL-Leo/llmail/internal/profile"
	"github.com/THL-Leo/llmail/internal/session"
)

// Server wires the HTTP surface. Any of the service fields may be nil when
// the corresponding configuration is missing; handlers degrade to JSON
// error payloads instead of crashing, so a half-configured deployment can
// still be diagnosed through /api/env-test and friends.
type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	sessions    *session.Manager
	oauth       *session.OAuth
	provisioner *profile.Provisioner
	inspector   *database.Inspector
	audit       *audit.Service
	guard       *middleware.Guard
	authLimiter *middleware.RateLimiter // 5 req/s, burst 10 for auth endpoints
	appDB       *pgxpool.Pool
	metrics     *metrics
	corsOrigins map[string]bool
}

func New(
	cfg *config.Config,
	appDB *pgxpool.Pool,
	sessions *session.Manager,
	oauth *session.OAuth,
	provisioner *profile.Provisioner,
	inspector *database.Inspector,
	auditSvc *audit.Service,
) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		cfg:         cfg,
		sessions:    sessions,
		oauth:       oauth,
		provisioner: provisioner,
		inspector:   inspector,
		audit:       auditSvc,
		authLimiter: middleware.NewRateLimiter(5, 10, cfg.TrustProxy), // 5 req/s, burst 10
		appDB:       appDB,
		metrics:     newMetrics(),
		corsOrigins: allowedOrigins(cfg),
	}

	s.guard = middleware.NewGuard(s)
	s.registerRoutes()
	return s
}

// FromRequest resolves the session cookie; nil when unauthenticated or when
// sessions are not configured. Satisfies middleware.SessionResolver.
func (s *Server) FromRequest(r *http.Request) *session.Session {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.FromRequest(r)
}

func (s *Server) Handler() http.Handler {
	return securityHeaders(s.cors(s.guard.Middleware(s.mux)))
}

// securityHeaders adds security headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		// Strict CSP for API routes, relaxed CSP for the server-rendered pages
		if isAPIRoute(r.URL.Path) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		} else {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; frame-ancestors 'none'")
		}

		// HSTS — enable in production behind TLS
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/health" || path == "/metrics"
}

// maxBody limits request body size to prevent DoS via large payloads.
func maxBody(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	// Health check with DB ping
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if s.appDB == nil || s.appDB.Ping(r.Context()) != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.Handle("GET /metrics", s.metrics.handler())

	// OAuth session flow (rate-limited)
	s.mux.Handle("GET /api/auth/signin", s.authLimiter.Middleware(http.HandlerFunc(s.handleSignIn)))
	s.mux.Handle("GET /api/auth/callback", s.authLimiter.Middleware(http.HandlerFunc(s.handleCallback)))
	s.mux.HandleFunc("GET /api/auth/signout", s.handleSignOut)
	s.mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	s.mux.HandleFunc("GET /api/auth/session", s.handleSession)

	// Diagnostics and database administration
	s.mux.HandleFunc("GET /api/env-test", s.handleEnvTest)
	s.mux.HandleFunc("GET /api/db-status", s.handleDBStatus)
	s.mux.HandleFunc("GET /api/check-rls", s.handleCheckRLS)
	s.mux.HandleFunc("GET /api/check-policies", s.handleCheckPolicies)
	s.mux.Handle("POST /api/apply-production-policies", maxBody(http.HandlerFunc(s.handleApplyProductionPolicies), 1<<20))
	s.mux.Handle("POST /api/setup-db", maxBody(http.HandlerFunc(s.handleSetupDB), 1<<20))
	s.mux.HandleFunc("GET /api/sql-helper", s.handleSQLHelper)
	s.mux.HandleFunc("GET /api/db-test", s.handleDBTest)
	s.mux.HandleFunc("GET /api/db-direct", s.handleDBDirect)
	s.mux.HandleFunc("GET /api/create-profile", s.handleCreateProfile)

	// Server-rendered pages
	s.mux.HandleFunc("GET /{$}", s.handleHomePage)
	s.mux.HandleFunc("GET /signin", s.handleSignInPage)
	s.mux.HandleFunc("GET /profile", s.handleProfilePage)
	s.mux.HandleFunc("GET /emails", s.handleEmailsPage)
	s.mux.HandleFunc("GET /db-setup", s.handleDBSetupPage)
	s.mux.HandleFunc("GET /security-policies", s.handleSecurityPoliciesPage)
}

// ---------- Helpers ----------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// allowedOrigins returns the origins permitted for CORS, the app's own
// BASE_URL plus anything from ALLOWED_ORIGINS.
func allowedOrigins(cfg *config.Config) map[string]bool {
	origins := map[string]bool{
		"http://localhost:3000": true,
	}
	if cfg.BaseURL != "" {
		origins[strings.TrimSuffix(cfg.BaseURL, "/")] = true
	}
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}
	return origins
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow whitelisted origins with credentials
		if origin != "" && s.corsOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else if origin == "" {
			// No Origin header (same-origin or non-browser) — allow without credentials
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Unknown origin — allow without credentials (no cookies sent)
			w.Header().Set("Access-Control-Allow-Origin", origin)
			// Deliberately NOT setting Allow-Credentials for unknown origins
		}

		w.Header().Set("Vary", "Origin")

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
