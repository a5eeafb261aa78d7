// Package api provides the HTTP/WebSocket server for the Rikugan
// visualization backend. It exposes REST endpoints for model control
// and plain inference, Prometheus metrics, and the activation
// streaming WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
	"github.com/rikugan-dev/rikugan/pkg/config"
	"github.com/rikugan-dev/rikugan/pkg/session"
	"github.com/rikugan-dev/rikugan/pkg/trace"
)

// Server is the Rikugan HTTP API server.
type Server struct {
	httpServer *http.Server
	router     *Router
	config     config.ServerConfig
	log        zerolog.Logger

	// mu protects server state
	mu      sync.RWMutex
	running bool
}

// Deps are the collaborators the server's handlers need. Trace may be
// nil when turn recording is disabled.
type Deps struct {
	Registry *adapter.Registry
	State    *session.State
	Model    config.ModelConfig
	Trace    *trace.Recorder
	Metrics  *Metrics
	Log      zerolog.Logger
}

// NewServer creates an API server with all routes registered.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8321
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}

	router := NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		log:    deps.Log.With().Str("component", "api").Logger(),
	}

	s.registerRoutes(deps)
	return s
}

// registerRoutes wires every handler onto the router.
func (s *Server) registerRoutes(deps Deps) {
	s.router.GET("/health", s.handleHealth(deps.State))
	s.router.GET("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	NewModelsHandler(deps.Registry, deps.State, deps.Model, deps.Log).RegisterRoutes(s.router)
	NewInferenceHandler(deps.State, deps.Log).RegisterRoutes(s.router)

	stream := NewStreamHandler(deps.State, deps.Metrics, deps.Trace, makeOriginChecker(s.config.AllowedOrigins), deps.Log)
	s.router.GET("/ws", stream.HandleFunc())
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	ModelID string `json:"model_id,omitempty"`
}

func (s *Server) handleHealth(state *session.State) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if _, modelID, ok := state.Active(); ok {
			resp.ModelID = modelID
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// Address returns the server address in host:port format.
func (s *Server) Address() string {
	return s.config.Addr()
}

// Router returns the underlying router. Exposed for tests.
func (s *Server) Router() *Router {
	return s.router
}

// Handler returns the router wrapped in the full middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router

	handler = Chain(handler,
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(s.config.AllowedOrigins),
		func(next http.Handler) http.Handler { return RequestIDMiddleware(next) },
		func(next http.Handler) http.Handler { return ContentTypeMiddleware(next) },
	)
	return handler
}

// Start starts the HTTP server in a goroutine.
// It returns immediately after starting. Use Shutdown() to stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.running = true

	// Use error channel to detect binding failures
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Address()).Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("server error")
			errCh <- err
		}
		close(errCh)
	}()

	// Wait briefly to catch immediate binding errors (e.g., port in use)
	select {
	case err := <-errCh:
		s.running = false
		return fmt.Errorf("server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Shutdown gracefully shuts down the server with a timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.log.Info().Msg("shutting down server")
	s.running = false

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// makeOriginChecker creates a function that validates WebSocket
// origins against the configured origin list.
func makeOriginChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(r *http.Request) bool {
				return true
			}
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// No origin header (same-origin request) - allow
			return true
		}
		return allowed[origin]
	}
}
