package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/models"
	"meetpoint/internal/observability"
	"meetpoint/internal/resilience"
)

// Computer computes a meeting point for a transport-level request
type Computer interface {
	ComputeForRequest(ctx context.Context, req models.MeetingPointRequest) (*models.MeetingPointResult, error)
}

// HealthCheck reports the health of a local dependency such as the cache store
type HealthCheck func(ctx context.Context) error

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *Handler
	listener   net.Listener
	addr       string
	logger     *zap.Logger
}

// Config holds server configuration
type Config struct {
	Addr         string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Engine   Computer
	Breakers []*resilience.CircuitBreaker
	Checks   map[string]HealthCheck
	Metrics  *observability.Collector
	Logger   *zap.Logger
}

// New creates the server (does not start it)
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("server: engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	handler := &Handler{
		Engine:   cfg.Engine,
		Breakers: cfg.Breakers,
		Checks:   cfg.Checks,
		Metrics:  cfg.Metrics,
		Logger:   logger,
	}

	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(logger, cfg.Metrics, corsMiddleware(cfg.CORSOrigins, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		addr:       cfg.Addr,
		logger:     logger,
	}, nil
}

// Handler returns the root HTTP handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.logger.Info("starting server", zap.String("addr", actualAddr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/meeting-point", handler.HandleMeetingPoint)
	mux.HandleFunc("POST /api/v1/meeting-point/kml", handler.HandleMeetingPointKML)
	mux.HandleFunc("GET /api/v1/health", handler.HandleHealthCheck)
	mux.HandleFunc("GET /api/v1/health/external", handler.HandleExternalHealth)

	metrics := http.NotFoundHandler()
	if handler.Metrics != nil {
		metrics = handler.Metrics.Handler()
	}
	mux.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Metrics.SetBreakerStates(handler.Breakers...)
		metrics.ServeHTTP(w, r)
	}))

	return mux
}
