// Package server exposes the commitment ledger over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server/handler"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server/middleware"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client IP, 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Commitments *handler.CommitmentHandler
	Allocations *handler.AllocationHandler
	Registry    *handler.RegistryHandler
	Audit       *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API server for the commitment
// ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, auth) and attaches
// the WebSocket hub. The limiter may be nil; rate limiting is then disabled.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Commitment lifecycle.
	mux.HandleFunc("POST /api/commitments", handlers.Commitments.Create)
	mux.HandleFunc("GET /api/commitments", handlers.Commitments.List)
	mux.HandleFunc("GET /api/commitments/{id}", handlers.Commitments.Get)
	mux.HandleFunc("POST /api/commitments/{id}/value", handlers.Commitments.UpdateValue)
	mux.HandleFunc("GET /api/commitments/{id}/violations", handlers.Commitments.Violations)
	mux.HandleFunc("POST /api/commitments/{id}/settle", handlers.Commitments.Settle)
	mux.HandleFunc("POST /api/commitments/{id}/early-exit", handlers.Commitments.EarlyExit)

	// Allocation sub-ledger.
	mux.HandleFunc("GET /api/commitments/{id}/balance", handlers.Allocations.FreeBalance)
	mux.HandleFunc("GET /api/commitments/{id}/allocations", handlers.Allocations.Tracking)
	mux.HandleFunc("POST /api/commitments/{id}/allocations", handlers.Allocations.Allocate)
	mux.HandleFunc("POST /api/commitments/{id}/deallocations", handlers.Allocations.Deallocate)

	// Registry.
	mux.HandleFunc("POST /api/registry/init", handlers.Registry.Initialize)
	mux.HandleFunc("GET /api/registry", handlers.Registry.Status)
	mux.HandleFunc("PUT /api/registry/authorizations", handlers.Registry.SetAuthorization)
	mux.HandleFunc("GET /api/registry/authorizations/{principal}", handlers.Registry.GetAuthorization)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-IP rate limiting when a limiter is wired.
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
