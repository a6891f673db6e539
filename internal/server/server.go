// Package server implements the StudySync REST API.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asifchowdhury1/studysync/internal/auth"
	"github.com/asifchowdhury1/studysync/internal/config"
	"github.com/asifchowdhury1/studysync/internal/db"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server that serves the REST API.
type Server struct {
	mu      sync.RWMutex
	cfg     config.Config
	db      *db.DB
	signer  *auth.TokenSigner
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration

	// now is the clock; tests may freeze it.
	now func() time.Time
}

// New creates a new Server.
func New(
	cfg config.Config, database *db.DB,
	signer *auth.TokenSigner, opts ...Option,
) *Server {
	s := &Server{
		cfg:    cfg,
		db:     database,
		signer: signer,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithClock overrides the server clock. Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("POST /api/v1/auth/register", s.withTimeout(s.handleRegister))
	s.mux.Handle("POST /api/v1/auth/login", s.withTimeout(s.handleLogin))
	s.mux.Handle("GET /api/v1/auth/me", s.secure(s.handleMe))
	s.mux.Handle("PUT /api/v1/auth/profile", s.secure(s.handleUpdateProfile))

	s.mux.Handle("GET /api/v1/subjects", s.secure(s.handleListSubjects))
	s.mux.Handle("POST /api/v1/subjects", s.secure(s.handleCreateSubject))
	s.mux.Handle("GET /api/v1/subjects/{id}", s.secure(s.handleGetSubject))
	s.mux.Handle("PUT /api/v1/subjects/{id}", s.secure(s.handleUpdateSubject))
	s.mux.Handle(
		"DELETE /api/v1/subjects/{id}", s.secure(s.handleDeleteSubject),
	)

	s.mux.Handle("GET /api/v1/sessions", s.secure(s.handleListSessions))
	s.mux.Handle("POST /api/v1/sessions", s.secure(s.handleCreateSession))
	s.mux.Handle("GET /api/v1/sessions/{id}", s.secure(s.handleGetSession))
	s.mux.Handle("PUT /api/v1/sessions/{id}", s.secure(s.handleUpdateSession))
	s.mux.Handle(
		"DELETE /api/v1/sessions/{id}", s.secure(s.handleDeleteSession),
	)

	s.mux.Handle(
		"GET /api/v1/analytics/dashboard", s.secure(s.handleDashboard),
	)
	s.mux.Handle(
		"GET /api/v1/analytics/time-series", s.secure(s.handleTimeSeries),
	)
	s.mux.Handle(
		"GET /api/v1/analytics/subjects", s.secure(s.handleSubjectAnalytics),
	)
	s.mux.Handle(
		"GET /api/v1/analytics/patterns", s.secure(s.handlePatterns),
	)

	s.mux.Handle("GET /api/v1/stats", s.withTimeout(s.handleGetStats))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
}

// secure wraps a handler with authentication and the write timeout.
func (s *Server) secure(h authedHandler) http.Handler {
	return s.withTimeout(s.requireAuth(h))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleGetStats(
	w http.ResponseWriter, r *http.Request,
) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		log.Printf("stats error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set(
				"Access-Control-Allow-Origin", "*",
			)
			w.Header().Set(
				"Access-Control-Allow-Methods",
				"GET, POST, PUT, DELETE, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type, Authorization",
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
