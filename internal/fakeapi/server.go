// Package fakeapi is an in-memory implementation of the personal finance REST
// API. It backs the CLI's local mode and the end-to-end tests, and exposes
// hooks to inject failures and to observe refresh traffic.
package fakeapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pft/internal/log"
	"pft/internal/middleware/trace"
)

const (
	DefaultPrefix     = "/api/v1"
	RefreshCookieName = "refresh_token"
)

type Config struct {
	// Addr is used by ListenAndServe.
	Addr string
	// Prefix mounts the API, default /api/v1.
	Prefix string
	// Secret signs tokens. A random secret is generated when empty.
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// LoginRateLimit caps login attempts per client IP per minute. Zero
	// disables limiting.
	LoginRateLimit int
	Logger         *log.Logger
	Now            func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8000",
		Prefix:         DefaultPrefix,
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		LoginRateLimit: 20,
	}
}

// Server serves the API from a Store.
type Server struct {
	http.Server

	prefix      string
	store       *Store
	tokens      *tokenIssuer
	rateLimiter *rateLimiter
	logger      *log.Logger

	refreshCalls atomic.Int64
	hooksMu      sync.Mutex
	failures     []failure
	calls        map[string]int

	shutdownOnce sync.Once
}

type failure struct {
	method string
	path   string
	status int
	detail string
}

func New(cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte(uuid.NewString())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		prefix: strings.TrimRight(cfg.Prefix, "/"),
		store:  NewStore(),
		tokens: &tokenIssuer{
			secret:     cfg.Secret,
			accessTTL:  cfg.AccessTTL,
			refreshTTL: cfg.RefreshTTL,
			now:        now,
		},
		rateLimiter: newRateLimiter(cfg.LoginRateLimit),
		logger:      log.OrNop(cfg.Logger).WithComponent(log.ComponentFakeAPI),
		calls:       make(map[string]int),
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Store exposes the backing data for seeding.
func (s *Server) Store() *Store { return s.store }

// Prefix is the path the API is mounted under.
func (s *Server) Prefix() string { return s.prefix }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withRequestLogging)

	r.Get("/healthz", handleHealth)

	r.Route(s.prefix, func(r chi.Router) {
		r.Use(s.withInjectedFailures)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.With(s.withLoginRateLimit).Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
			r.With(s.requireUser).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Patch("/transactions/{id}", s.handleUpdateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)

			r.Get("/budgets", s.handleListBudgets)
			r.Get("/budgets/{id}", s.handleGetBudget)
			r.Post("/budgets", s.handleCreateBudget)
			r.Patch("/budgets/{id}", s.handleUpdateBudget)
			r.Delete("/budgets/{id}", s.handleDeleteBudget)

			r.Get("/dashboard/summary", s.handleDashboardSummary)
			r.Get("/reports", s.handleReport)
		})
	})
	return r
}

// Shutdown stops the rate limiter and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Close releases background resources without an HTTP shutdown. Used when
// the handler is served by another server, as in tests.
func (s *Server) Close() {
	s.rateLimiter.stop()
}

// RefreshCalls counts requests to the refresh endpoint.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// Calls counts requests for "METHOD /path" below the prefix, e.g.
// "GET /categories".
func (s *Server) Calls(method, path string) int {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	return s.calls[method+" "+path]
}

// FailNext makes the next request matching method and path (below the
// prefix) answer status with detail instead of reaching the handler.
func (s *Server) FailNext(method, path string, status int, detail string) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, detail: detail})
}

// RevokeAccessTokens invalidates every access token issued so far. Refresh
// cookies stay valid.
func (s *Server) RevokeAccessTokens() {
	s.tokens.version.Add(1)
}

func (s *Server) withInjectedFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, s.prefix)

		s.hooksMu.Lock()
		s.calls[r.Method+" "+path]++
		var injected *failure
		for i, f := range s.failures {
			if f.method == r.Method && f.path == path {
				injected = &f
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				break
			}
		}
		s.hooksMu.Unlock()

		if injected != nil {
			s.logger.InfoContext(r.Context(), "Injected failure",
				log.FieldMethod, r.Method,
				log.FieldPath, path,
				log.FieldStatusCode, injected.status,
			)
			writeDetail(w, injected.status, injected.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLoginRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeDetail(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLogging tags each request with an id, sets security headers and
// logs completion.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(trace.HeaderRequestID)
		if requestID == "" {
			requestID = trace.GenerateRequestID()
		}
		ctx := trace.WithRequestID(r.Context(), requestID)
		ctx = log.NewContext(ctx, s.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		setSecurityHeaders(w.Header())
		w.Header().Set(trace.HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.DebugContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			"client_ip", extractClientIP(r),
		)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
