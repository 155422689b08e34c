// Package server provides the HTTP server and routing for Lodestar.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/karvelas/lodestar/internal/config"
	"github.com/karvelas/lodestar/internal/di"
	brokershandlers "github.com/karvelas/lodestar/internal/modules/brokers/handlers"
	portfoliohandlers "github.com/karvelas/lodestar/internal/modules/portfolio/handlers"
	pricinghandlers "github.com/karvelas/lodestar/internal/modules/pricing/handlers"
	scoringhandlers "github.com/karvelas/lodestar/internal/modules/scoring/handlers"
	settingshandlers "github.com/karvelas/lodestar/internal/modules/settings/handlers"
	strategieshandlers "github.com/karvelas/lodestar/internal/modules/strategies/handlers"
	tradinghandlers "github.com/karvelas/lodestar/internal/modules/trading/handlers"
	universehandlers "github.com/karvelas/lodestar/internal/modules/universe/handlers"
)

// Server is the HTTP front door. All state lives in the DI container;
// the server only wires handlers onto routes.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
}

// New creates a new HTTP server
func New(cfg *config.Config, container *di.Container, log zerolog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		container: container,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// SSE stream first: it must bypass the timeout-sensitive handlers.
		eventsStream := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStream.ServeHTTP)

		systemHandlers := NewSystemHandlers(
			s.cfg.DataDir,
			s.container.Databases(),
			s.container.Scheduler,
			s.container.JobRuns,
			s.container.BackupService,
			s.log,
		)
		systemHandlers.RegisterRoutes(r)

		universehandlers.NewUniverseHandlers(s.container.UniverseService, s.log).RegisterRoutes(r)
		pricinghandlers.NewPricingHandlers(s.container.PricingService, s.log).RegisterRoutes(r)
		strategieshandlers.NewHandler(s.container.StrategiesService, s.log).RegisterRoutes(r)
		scoringhandlers.NewHandler(s.container.ScoringService, s.log).RegisterRoutes(r)
		brokershandlers.NewHandler(s.container.BrokerProfiles, s.log).RegisterRoutes(r)
		portfoliohandlers.NewHandler(s.container.PortfolioService, s.log).RegisterRoutes(r)
		tradinghandlers.NewHandler(s.container.TradingService, s.log).RegisterRoutes(r)
		settingshandlers.NewHandler(s.container.SettingsService, s.log).RegisterRoutes(r)
	})
}

// handleHealth pings every database; any failure degrades the status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true
	for _, db := range s.container.Databases() {
		if err := db.QuickCheck(ctx); err != nil {
			checks[db.Name()] = err.Error()
			healthy = false
		} else {
			checks[db.Name()] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSONStatus(w, status, map[string]interface{}{
		"status":    state,
		"databases": checks,
	})
}

// Router exposes the routing tree, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
