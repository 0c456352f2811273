package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lyftr/webhookd/internal/message"
	"github.com/lyftr/webhookd/internal/metrics"
	"github.com/lyftr/webhookd/internal/webhook"
)

// IngestionPipeline runs the webhook write path on raw request bytes.
type IngestionPipeline interface {
	Process(ctx context.Context, body []byte, signatureHex string) webhook.Result
}

// MessageQuerier serves the read paths.
type MessageQuerier interface {
	List(ctx context.Context, f message.Filter, limit, offset int) ([]message.Message, int, error)
	Stats(ctx context.Context) (message.Stats, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Listen string

	// SecretConfigured gates readiness: without a shared secret the
	// service serves traffic but never reports ready.
	SecretConfigured bool

	// MaxBodySize is the maximum accepted webhook body in bytes
	// (default 1 MB).
	MaxBodySize int64
}

const DefaultMaxBodySize = 1048576 // 1 MB

// Server represents the HTTP server.
type Server struct {
	config   Config
	pipeline IngestionPipeline
	messages MessageQuerier
	recorder *metrics.Recorder
	ping     func(ctx context.Context) error
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new server instance. ping is the storage reachability
// probe used by /health/ready.
func New(config Config, pipeline IngestionPipeline, messages MessageQuerier, recorder *metrics.Recorder, ping func(ctx context.Context) error, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Server{
		config:   config,
		pipeline: pipeline,
		messages: messages,
		recorder: recorder,
		ping:     ping,
		logger:   logger,
	}
}

// Start starts the HTTP server (blocking until ctx is cancelled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("server starting", "listen", s.config.Listen)

	// Run server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(s.outcomeMiddleware)
	r.Use(middleware.Recoverer)

	// Routes
	r.Post("/webhook", s.handleWebhook)
	r.Get("/messages", s.handleListMessages)
	r.Get("/stats", s.handleStats)
	r.Get("/health/live", s.handleHealthLive)
	r.Get("/health/ready", s.handleHealthReady)
	r.Method(http.MethodGet, "/metrics", s.recorder.Handler())

	return r
}
