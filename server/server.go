package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pulseboard/github-activity/cache"
	"github.com/pulseboard/github-activity/config"
	gh "github.com/pulseboard/github-activity/github"
	"github.com/pulseboard/github-activity/ratelimit"
	"github.com/pulseboard/github-activity/redis"
)

// Server is the HTTP surface over the GitHub access façade.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     *config.Config
	log     *zap.Logger
	github  *gh.Client
	tracker *ratelimit.Tracker
	pacer   *ratelimit.Pacer
	cache   *cache.Cache
	shared  *redis.Cache // nil when Redis is not configured
}

func New(cfg *config.Config, logger *zap.Logger, client *gh.Client, tracker *ratelimit.Tracker, pacer *ratelimit.Pacer, memCache *cache.Cache, shared *redis.Cache) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		log:     logger,
		github:  client,
		tracker: tracker,
		pacer:   pacer,
		cache:   memCache,
		shared:  shared,
	}

	s.router.Use(chimw.RealIP)
	s.router.Use(RequestID)
	s.router.Use(s.accessLog)
	s.router.Use(s.recovery)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "the requested resource was not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "the requested method is not allowed for this resource")
	})

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/github", func(r chi.Router) {
		r.Get("/auth/status", s.handleAuthStatus)
		r.Get("/rate-limit", s.handleRateLimit)
		r.Get("/users/batch-activity-summary", s.handleBatchActivity)
		r.Get("/users/{username}", s.handleGetUser)
		r.Get("/users/{username}/pr-stats", s.handleUserPRStats)
		r.Get("/repos/{owner}/{repo}", s.handleGetRepository)
		r.Get("/repos/{owner}/{repo}/pulls", s.handleListPulls)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	s.log.Info("starting HTTP server", zap.String("addr", s.cfg.HTTPAddr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
