// Package http exposes the JSON API: expense CRUD, CSV import, analysis
// runs, and maintenance.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finbuddy/internal/cache"
	"finbuddy/internal/core"
)

type Server struct {
	http.Server
	expenses    *expenseHandlers
	imports     *importHandlers
	analysis    *analysisHandlers
	maintenance *maintenanceHandlers
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// Deps carries the services the handlers delegate to.
type Deps struct {
	Expenses    ExpenseAPI
	Imports     ImportAPI
	Analysis    AnalysisAPI
	Maintenance MaintenanceAPI
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		expenses: &expenseHandlers{api: deps.Expenses},
		imports:  &importHandlers{api: deps.Imports},
		analysis: &analysisHandlers{
			api:       deps.Analysis,
			snapshots: cache.NewLRUCache[[]core.Snapshot](1, 30*time.Second),
		},
		maintenance: &maintenanceHandlers{api: deps.Maintenance},
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/expenses", s.withMiddleware(s.expenses.handleCollection))
	mux.HandleFunc("/expenses/", s.withMiddleware(s.expenses.handleItem))
	mux.HandleFunc("/import/csv", s.withMiddleware(s.imports.handleImportCSV))
	mux.HandleFunc("/import/undo", s.withMiddleware(s.imports.handleUndo))
	mux.HandleFunc("/analysis/run", s.withMiddleware(s.analysis.handleRun))
	mux.HandleFunc("/analysis/latest", s.withMiddleware(s.analysis.handleLatest))
	mux.HandleFunc("/analysis", s.withMiddleware(s.analysis.handleList))
	mux.HandleFunc("/maintenance/reset", s.withMiddleware(s.maintenance.handleReset))

	return s
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutations only
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the rate limiter cleanup goroutine and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
