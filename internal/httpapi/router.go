// Package httpapi exposes the Engine over HTTP for the marketplace client.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/middleware"
)

// Auth is the part of *marketAuth.Engine the handlers use.
type Auth interface {
	Signup(ctx context.Context, req marketAuth.SignupRequest) (*marketAuth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*marketAuth.AuthResult, error)
	ValidateToken(ctx context.Context, token string) (*marketAuth.Claims, error)
	CurrentUser(ctx context.Context, userID string) (marketAuth.PublicUser, error)
}

// RouterConfig wires the router. Auth is required.
type RouterConfig struct {
	Auth        Auth
	Logger      *zap.Logger
	CORSOrigins []string
	Timeout     time.Duration
	// Health reports backend readiness for GET /health. Nil always reports ok.
	Health func(ctx context.Context) error
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := &handler{auth: cfg.Auth, log: log}

	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimid.Recoverer)
	r.Use(chimid.Timeout(timeout))
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(engineContext)

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.signup)
		r.Post("/login", h.login)
		r.With(middleware.Guard(cfg.Auth)).Get("/me", h.me)
	})

	return r
}

// engineContext forwards the request ID and client IP to the Engine, which
// uses them for audit events and per-IP signup throttling.
func engineContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := marketAuth.WithRequestID(r.Context(), chimid.GetReqID(r.Context()))
		ctx = marketAuth.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimid.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("request_id", chimid.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
