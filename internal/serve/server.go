package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/events"
	"github.com/marcus/cadence/internal/lifecycle"
	"github.com/marcus/cadence/internal/registry"
	"github.com/marcus/cadence/internal/transfer"
)

// ServeConfig holds the configuration for the HTTP server.
type ServeConfig struct {
	Port       int
	Addr       string
	Token      string
	CORSOrigin string
}

// Server is the cadence HTTP server.
type Server struct {
	db        *db.DB
	registry  *registry.Registry
	transfer  *transfer.Orchestrator
	lifecycle *lifecycle.Manager
	config    ServeConfig
	mux       *http.ServeMux
	http      *http.Server
}

// NewServer creates a new Server, registers all routes, and sets up the
// middleware chain.
func NewServer(database *db.DB, sink events.Sink, config ServeConfig) *Server {
	s := &Server{
		db:        database,
		registry:  registry.New(database),
		transfer:  transfer.New(database, sink),
		lifecycle: lifecycle.New(database),
		config:    config,
		mux:       http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)

	// Wrap order: outermost first when applied, so we apply innermost first.
	// Final order (outermost to innermost):
	//   recovery -> logging -> CORS -> auth -> handler
	h = s.authMiddleware(h)
	h = s.corsMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)

	return h
}

// ListenAndServe starts the HTTP server on the configured address and port,
// and handles graceful shutdown when the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Addr, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server. If the server has not been
// started, this is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// registerRoutes registers all API routes.
func (s *Server) registerRoutes() {
	// Health (read)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Scopes and iterations (read; listing provisions lazily)
	s.mux.HandleFunc("GET /scopes", s.handleListScopes)
	s.mux.HandleFunc("GET /scopes/{id}/iterations", s.handleListIterations)
	s.mux.HandleFunc("GET /iterations/{id}", s.handleGetIteration)

	// Mutations
	s.mux.HandleFunc("POST /scopes/{id}/iterations", s.handleCreateIteration)
	s.mux.HandleFunc("POST /iterations/{id}/items", s.handleAddItems)
	s.mux.HandleFunc("DELETE /iterations/{id}/items/{itemID}", s.handleRemoveItem)
	s.mux.HandleFunc("POST /iterations/{id}/transfer", s.handleTransfer)
	s.mux.HandleFunc("POST /iterations/{id}/archive", s.handleArchiveIteration)
	s.mux.HandleFunc("POST /iterations/{id}/unarchive", s.handleUnarchiveIteration)
}

// ============================================================================
// Middleware
// ============================================================================

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				WriteError(w, ErrInternal, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.config.Token {
				WriteError(w, ErrUnauthorized, "missing or invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
