// Package server provides the HTTP API for simulations, optimization,
// scenarios and price history.
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

	"github.com/aristath/stresslab/internal/clients/scenarioai"
	"github.com/aristath/stresslab/internal/modules/calculations"
	"github.com/aristath/stresslab/internal/modules/hedging"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/modules/simulation"
)

// Config holds the server's collaborators.
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	SimEngine    *simulation.Engine
	Optimizer    *optimization.Optimizer
	Estimator    *market.Estimator
	PriceRepo    *history.PriceRepository
	Ingestor     *history.Ingestor
	ParamCache   *calculations.ParamCache
	ScenarioRepo *scenarios.Repository
	ScenarioSvc  *scenarios.Service
	HedgePlanner *hedging.Planner
	AIClient     *scenarioai.Client
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates the server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))

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

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api/simulation", func(r chi.Router) {
		r.Post("/run", s.handleSimulationRun)
		r.Post("/compare", s.handleSimulationCompare)
	})

	s.router.Post("/api/optimization/run", s.handleOptimizationRun)
	s.router.Post("/api/hedging/plan", s.handleHedgingPlan)

	s.router.Route("/api/history", func(r chi.Router) {
		r.Get("/tickers", s.handleHistoryTickers)
		r.Post("/ingest/{ticker}", s.handleHistoryIngest)
	})

	s.router.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", s.handleScenarioList)
		r.Post("/", s.handleScenarioCreate)
		r.Post("/load-predefined", s.handleScenarioLoadPredefined)
		r.Post("/generate-ai", s.handleScenarioGenerateAI)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleScenarioGet)
			r.Put("/", s.handleScenarioUpdate)
			r.Delete("/", s.handleScenarioDelete)
			r.Post("/run", s.handleScenarioRun)
			r.Get("/results", s.handleScenarioResults)
		})
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
