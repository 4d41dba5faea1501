// Package server provides the HTTP API of the decision engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/xfw5/Market-Research/internal/database"
	"github.com/xfw5/Market-Research/internal/events"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/execution"
	"github.com/xfw5/Market-Research/internal/modules/paper"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/scheduler"
)

// Engine is the part of the orchestrator the API exposes
type Engine interface {
	RunCycle(ctx context.Context) (*execution.CycleReport, error)
	Status() execution.Status
	LastReport() *execution.CycleReport
	History() *market_regime.RegimeHistory
	Monitor() *risk.ProfitMonitor
}

// FillSource lists executed paper orders
type FillSource interface {
	Fills(limit int) ([]paper.Fill, error)
}

// JobSource lists scheduled jobs
type JobSource interface {
	Jobs() []scheduler.JobStatus
}

// Config holds server configuration. Fills, Jobs, Gatherer and Events are optional.
type Config struct {
	Log       zerolog.Logger
	Engine    Engine
	Fills     FillSource
	Jobs      JobSource
	Databases []*database.DB
	Events    *events.Bus
	Gatherer  prometheus.Gatherer
	DataDir   string
	Port      int
	DevMode   bool

	// Manual cycle trigger limit
	CycleRunPerMinute float64
	CycleRunBurst     int
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         Config
	cycleLimit  *rate.Limiter
	system      *SystemHandlers
	stream      *EventsStreamHandler
	startupTime time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	perMinute := cfg.CycleRunPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	burst := cfg.CycleRunBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg,
		cycleLimit:  rate.NewLimiter(rate.Limit(perMinute/60), burst),
		system:      NewSystemHandlers(cfg.DataDir, cfg.Databases, cfg.Log),
		stream:      NewEventsStreamHandler(cfg.Events, cfg.Log),
		startupTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event stream connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	gatherer := s.cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived stream, no timeout
		r.Get("/events", s.stream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5, "application/json"))
			}

			r.Get("/status", s.handleStatus)
			r.Get("/cycle/last", s.handleLastCycle)
			r.With(s.rateLimit).Post("/cycle/run", s.handleRunCycle)
			r.Get("/regime/history", s.handleRegimeHistory)
			r.Get("/risk/profit-monitor", s.handleProfitMonitor)
			r.Get("/paper/fills", s.handleFills)
			r.Get("/scheduler/jobs", s.handleJobs)
			r.Get("/system", s.system.HandleSystemStatus)
		})
	})
}

// Handler returns the router, used by tests
func (s *Server) Handler() http.Handler {
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

// rateLimit rejects requests above the manual trigger budget
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cycleLimit.Allow() {
			s.log.Warn().Str("path", r.URL.Path).Msg("Rate limit exceeded")
			s.writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "too many cycle requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
