// Package server exposes the pipeline, capsule, planner, quiz and chat
// services as a small JSON API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"civicbriefs/internal/config"
	"civicbriefs/internal/logger"
	"civicbriefs/internal/metrics"
	"civicbriefs/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	services   *pipeline.Services
	config     config.Server
	log        *slog.Logger

	// runMu keeps pipeline runs, ingestion and mapping to one at a time
	runMu sync.Mutex
}

// New creates a new HTTP server instance
func New(services *pipeline.Services, cfg config.Server) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		services: services,
		config:   cfg,
		log:      logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Pipeline runs fetch feeds and pages, so allow more than a typical request
	s.router.Use(middleware.Timeout(2 * time.Minute))

	s.router.Use(securityHeaders)
	s.router.Use(countRequests)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)

		r.Post("/pipeline/run", s.handleRunPipeline)
		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/resummarize", s.handleResummarize)
		r.Post("/mapping", s.handleMapping)

		r.Route("/capsule", func(r chi.Router) {
			r.Get("/today", s.handleTodayCapsule)
			r.Post("/rebuild", s.handleRebuildCapsule)
		})

		r.Get("/pyqs/related", s.handleRelatedPyqs)

		r.Route("/plan/{userID}", func(r chi.Router) {
			r.Get("/", s.handleGetPlan)
			r.Post("/generate", s.handleGeneratePlan)
			r.Post("/test-result", s.handleTestResult)
			r.Post("/recompute", s.handleRecomputePlan)
			r.Get("/progress", s.handleProgress)
			r.Get("/history", s.handleHistory)
		})

		r.Route("/quiz", func(r chi.Router) {
			r.Get("/today", s.handleTodayQuiz)
			r.Post("/submit", s.handleSubmitQuiz)
		})

		r.Post("/chat", s.handleChat)
		r.Get("/report/weekly", s.handleWeeklyReport)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
