// Package httpapi is the HTTP surface of the chat backend: history reads,
// chat turns, the model catalog, and file uploads.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/madlen/chat-backend/internal/observability"
	"github.com/madlen/chat-backend/pkg/catalog"
	"github.com/madlen/chat-backend/pkg/chat"
	"github.com/madlen/chat-backend/pkg/history"
	"github.com/madlen/chat-backend/pkg/uploads"
)

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Host string
	Port int
	Env  string
}

// Server serves the chat API.
type Server struct {
	options      ServerOptions
	server       *http.Server
	store        *history.Store
	cache        *catalog.Cache
	orchestrator *chat.Orchestrator
	uploads      *uploads.Store
	logger       zerolog.Logger

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates the API server.
func NewServer(
	options ServerOptions,
	store *history.Store,
	cache *catalog.Cache,
	orchestrator *chat.Orchestrator,
	uploadStore *uploads.Store,
	logger zerolog.Logger,
) (*Server, error) {
	if options.Port == 0 {
		options.Port = 4000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}

	if store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("model catalog is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("chat orchestrator is required")
	}
	if uploadStore == nil {
		return nil, fmt.Errorf("upload store is required")
	}

	return &Server{
		options:      options,
		store:        store,
		cache:        cache,
		orchestrator: orchestrator,
		uploads:      uploadStore,
		logger:       logger.With().Str("component", "httpapi").Logger(),
	}, nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploads.Dir()))))
	mux.Handle("/metrics", observability.Handler())

	return s.withCORS(s.trackRequests(mux))
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, draining in-flight requests first.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down API server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// trackRequests counts in-flight requests and refuses new ones once
// shutdown has begun.
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		shuttingDown := s.isShuttingDown
		s.shutdownMu.RUnlock()
		if shuttingDown {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()
		next.ServeHTTP(w, r)
	})
}

// withCORS mirrors the permissive CORS policy of the original deployment,
// which sits behind its own frontend proxy.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
