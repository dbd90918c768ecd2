// Package server provides the HTTP server and routing for the allocator.
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
	"golang.org/x/time/rate"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/modules/assets"
	assetshandlers "github.com/aristath/allocator/internal/modules/assets/handlers"
	"github.com/aristath/allocator/internal/modules/historical"
	historicalhandlers "github.com/aristath/allocator/internal/modules/historical/handlers"
	"github.com/aristath/allocator/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/allocator/internal/modules/optimization/handlers"
	riskhandlers "github.com/aristath/allocator/internal/modules/risk/handlers"
	riskprofilehandlers "github.com/aristath/allocator/internal/modules/riskprofile/handlers"
)

// Config holds server configuration and the services it exposes
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	HistoryDB *database.DB
	CacheDB   *database.DB

	Optimization *optimization.Service
	Historical   *historical.Service // nil: optimize and metrics need inline returns
	History      *historical.HistoryDB
	Importer     *historical.Importer
	Assets       *assets.Manager
	Cache        CacheCounter
	Jobs         JobRunner
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	deps           Config
	systemHandlers *SystemHandlers
	logHandlers    *LogHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	var databases []*database.DB
	for _, db := range []*database.DB{cfg.HistoryDB, cfg.CacheDB} {
		if db != nil {
			databases = append(databases, db)
		}
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		deps:           cfg,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, databases, cfg.Cache, cfg.Jobs),
		logHandlers:    NewLogHandlers(cfg.Config.LogFile, cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database-stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)
			r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
			r.Post("/jobs/{name}/run", s.systemHandlers.HandleTriggerJob)
			r.Get("/logs", s.logHandlers.HandleGetLogs)
		})

		riskprofilehandlers.NewHandler(s.log).RegisterRoutes(r)

		if s.deps.Optimization != nil {
			optimizationhandlers.NewHandler(
				s.deps.Optimization,
				returnsBuilder(s.deps.Historical),
				s.cfg.DefaultFrequency,
				s.optimizeLimiter(),
				s.log,
			).RegisterRoutes(r)
		}

		riskhandlers.NewHandler(
			riskReturnsBuilder(s.deps.Historical),
			s.cfg.DefaultFrequency,
			s.cfg.RiskFreeRate,
			s.log,
		).RegisterRoutes(r)

		if s.deps.Assets != nil {
			assetshandlers.NewHandler(s.deps.Assets, s.log).RegisterRoutes(r)
		}

		if s.deps.History != nil {
			historicalhandlers.NewHandler(s.deps.History, s.deps.Importer, s.log).RegisterRoutes(r)
		}
	})
}

// optimizeLimiter returns nil when rate limiting is disabled
func (s *Server) optimizeLimiter() *rate.Limiter {
	if s.cfg.OptimizeRateLimit <= 0 {
		return nil
	}
	burst := s.cfg.OptimizeRateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.cfg.OptimizeRateLimit), burst)
}

// returnsBuilder keeps a nil service from becoming a non-nil interface
func returnsBuilder(svc *historical.Service) optimizationhandlers.ReturnsBuilder {
	if svc == nil {
		return nil
	}
	return svc
}

func riskReturnsBuilder(svc *historical.Service) riskhandlers.ReturnsBuilder {
	if svc == nil {
		return nil
	}
	return svc
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
