package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/Digesta/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Digesta/internal/api/middlewares"
	"github.com/markdave123-py/Digesta/internal/config"
)

const requestTimeout = 60 * time.Second

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Documents *handlers.DocumentHandler
	Summaries *handlers.SummaryHandler
	History   *handlers.HistoryHandler
	Health    *handlers.HealthHandler
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter mounts the API routes behind CORS and the per-IP rate limiter.
func NewRouter(cfg *config.Config, h Handlers) http.Handler {
	limiter := appMiddleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.NotFound(handlers.NotFound)

	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Handler)

		api.Post("/upload", h.Documents.UploadDocument)
		api.Post("/summarize", h.Summaries.Summarize)
		api.Get("/summaries", h.History.ListSummaries)
		api.Get("/summaries/{id}", h.History.GetSummary)
		api.Get("/summaries/{id}/original", h.History.GetOriginal)
		api.Delete("/summaries/{id}", h.History.DeleteSummary)
		api.Get("/health", h.Health.Health)
	})
	return r
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
