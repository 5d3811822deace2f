package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkgen/inkgen/internal/history"
	"github.com/inkgen/inkgen/internal/orchestrator"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Server holds the HTTP handlers and dependencies.
type Server struct {
	orch       *orchestrator.Orchestrator
	history    history.Log
	corsOrigin string
	imageDir   string
	mux        *http.ServeMux
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithCORSOrigin sets the allowed CORS origin (default "*").
func WithCORSOrigin(origin string) ServerOption {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithImageDir exposes a local directory of generated images under /images/.
func WithImageDir(dir string) ServerOption {
	return func(s *Server) { s.imageDir = dir }
}

// New creates a new API server.
func New(orch *orchestrator.Orchestrator, hist history.Log, opts ...ServerOption) *Server {
	srv := &Server{
		orch:       orch,
		history:    hist,
		corsOrigin: "*",
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return requestLog(s.corsMiddleware(limitBody(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /api/test", s.handleTest)
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	if s.imageDir != "" {
		s.mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(s.imageDir))))
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// requestLog tags each request with a correlation ID and logs it. Cache hits
// and misses differ by orders of magnitude in duration, so the access log is
// the first place to look when latency shifts.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
