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

	"github.com/shadedclan/killboard/internal/config"
	"github.com/shadedclan/killboard/internal/locking"
	"github.com/shadedclan/killboard/internal/modules/leaderboard"
	"github.com/shadedclan/killboard/internal/modules/matches"
	"github.com/shadedclan/killboard/internal/modules/roster"
	"github.com/shadedclan/killboard/internal/modules/stats"
	kbsync "github.com/shadedclan/killboard/internal/modules/sync"
)

// Config holds server configuration and dependencies.
type Config struct {
	Port    int
	Log     zerolog.Logger
	Cfg     *config.Config
	DevMode bool

	Board     *leaderboard.Service
	Snapshots *leaderboard.SnapshotRepository
	Roster    *roster.Repository
	Matches   *matches.Repository
	State     *kbsync.StateRepository
	Locks     *locking.Manager
	SyncJob   *kbsync.Job
	Stats     *stats.Service
}

// Server is the read API the leaderboard front-end consumes, plus a couple of
// admin write endpoints.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	board     *leaderboard.Service
	snapshots *leaderboard.SnapshotRepository
	roster    *roster.Repository
	matches   *matches.Repository
	state     *kbsync.StateRepository
	locks     *locking.Manager
	syncJob   *kbsync.Job
	stats     *stats.Service

	now func() time.Time
}

// New creates the HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Cfg,
		board:     cfg.Board,
		snapshots: cfg.Snapshots,
		roster:    cfg.Roster,
		matches:   cfg.Matches,
		state:     cfg.State,
		locks:     cfg.Locks,
		syncJob:   cfg.SyncJob,
		stats:     cfg.Stats,
		now:       time.Now,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Covers the on-demand sync trigger, which can spend minutes against
	// the upstream API.
	s.router.Use(middleware.Timeout(10 * time.Minute))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
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
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/alerts/consume", s.handleAlertConsume)

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/last", s.handleLeaderboardLast)

		r.Post("/sync", s.handleSyncNow)

		r.Get("/roster", s.handleRosterList)
		r.Post("/roster", s.handleRosterRegister)
		r.Delete("/roster/{accountID}", s.handleRosterDeactivate)

		r.Get("/players/{name}/stats", s.handlePlayerStats)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
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
