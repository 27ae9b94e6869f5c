package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Benrishty/finsync/internal/core/ports/driven"
	"github.com/Benrishty/finsync/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// WebhookVerifier validates the signature on raw webhook deliveries.
type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, signedJWT string) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	linkService    driving.LinkService
	itemService    driving.ItemService
	webhookService driving.WebhookService

	// Infrastructure
	taskQueue driven.TaskQueue
	verifier  WebhookVerifier // nil disables signature verification
	db        Pinger          // PostgreSQL health check
	redis     Pinger          // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	linkService driving.LinkService,
	itemService driving.ItemService,
	webhookService driving.WebhookService,
	taskQueue driven.TaskQueue,
	verifier WebhookVerifier, // can be nil
	db Pinger,
	redis Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		linkService:    linkService,
		itemService:    itemService,
		webhookService: webhookService,
		taskQueue:      taskQueue,
		verifier:       verifier,
		db:             db,
		redis:          redis,
	}

	var handler http.Handler = s.router
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Link flow
	s.router.HandleFunc("POST /api/v1/link/token", s.handleCreateLinkToken)
	s.router.HandleFunc("POST /api/v1/link/exchange", s.handleExchangeToken)

	// Items
	s.router.HandleFunc("GET /api/v1/items", s.handleListItems)
	s.router.HandleFunc("GET /api/v1/items/{id}", s.handleGetItem)
	s.router.HandleFunc("DELETE /api/v1/items/{id}", s.handleRemoveItem)
	s.router.HandleFunc("POST /api/v1/items/{id}/clear-error", s.handleClearItemError)

	// Sync triggers (async via task queue)
	s.router.HandleFunc("POST /api/v1/items/{id}/sync", s.handleSyncItem)
	s.router.HandleFunc("POST /api/v1/sync", s.handleSyncAll)
	s.router.HandleFunc("POST /api/v1/items/{id}/backfill", s.handleBackfill)
	s.router.HandleFunc("POST /api/v1/balances/refresh", s.handleRefreshBalances)
	s.router.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)

	// Reporting reads
	s.router.HandleFunc("GET /api/v1/accounts", s.handleListAccounts)
	s.router.HandleFunc("GET /api/v1/accounts/{id}/balances", s.handleBalanceHistory)
	s.router.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)

	// Provider webhook intake
	s.router.HandleFunc("POST /api/v1/webhook", s.handleWebhook)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
