package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/talon/internal/detector"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/history"
	"github.com/opensource-finance/talon/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *detector.Engine, overlay *rules.Engine, scenarios *rules.ScenarioEngine, hist *history.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, overlay, scenarios, hist, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Get("/metrics", handler.Metrics)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Fraud detection
		r.Post("/detect", handler.Detect)
		r.Post("/detect/batch", handler.DetectBatch)

		// Detection retrieval
		r.Get("/detections/{id}", handler.GetDetection)

		// Transaction retrieval
		r.Get("/transactions/{id}", handler.GetTransaction)

		// Alerts
		r.Get("/alerts", handler.ListAlerts)

		// Overlay rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)

		// Scenario management
		r.Get("/scenarios", handler.ListScenarios)
		r.Get("/scenarios/{id}", handler.GetScenario)
		r.Post("/scenarios", handler.CreateScenario)
		r.Put("/scenarios/{id}", handler.UpdateScenario)
		r.Delete("/scenarios/{id}", handler.DeleteScenario)
		r.Post("/scenarios/reload", handler.ReloadScenarios)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
