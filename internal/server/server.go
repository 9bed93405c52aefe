package server

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/handler"
	"github.com/dukerupert/planwise/internal/metrics"
	"github.com/dukerupert/planwise/internal/middleware"
	"github.com/dukerupert/planwise/internal/store"
	ws "github.com/dukerupert/planwise/internal/websocket"
)

// Config carries the collaborators the HTTP surface is built from.
type Config struct {
	Events store.Source
	Users  *store.UserStore
	Tasks  handler.TaskSource

	// Profiles is nil when Google sign-in is disabled.
	Profiles handler.ProfileSource

	// Planner is nil when no model API key is configured.
	Planner      handler.Suggester
	Issuer       *auth.TokenIssuer
	Revoker      auth.Revoker
	CookieSecure bool
	Origins      []string
	Checks       map[string]handler.Pinger
}

type Server struct {
	hub         *ws.Hub
	eventH      *handler.EventHandler
	authH       *handler.AuthHandler
	planH       *handler.PlanHandler
	taskH       *handler.TaskHandler
	healthH     *handler.HealthHandler
	issuer      *auth.TokenIssuer
	revoker     auth.Revoker
	origins     []string
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	return &Server{
		hub:         hub,
		eventH:      handler.NewEventHandler(cfg.Events, hub, logger.With("component", "events")),
		authH:       handler.NewAuthHandler(cfg.Users, cfg.Issuer, cfg.Revoker, cfg.Profiles, cfg.CookieSecure, logger.With("component", "auth")),
		planH:       handler.NewPlanHandler(cfg.Planner, logger.With("component", "planner")),
		taskH:       handler.NewTaskHandler(cfg.Tasks, logger.With("component", "tasks")),
		healthH:     handler.NewHealthHandler(cfg.Checks),
		issuer:      cfg.Issuer,
		revoker:     cfg.Revoker,
		origins:     cfg.Origins,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthH.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("POST /auth/register", s.limit("register", middleware.RealIP, middleware.AuthLimit, s.authH.Register))
	mux.Handle("POST /auth/login", s.limit("login", middleware.RealIP, middleware.AuthLimit, s.authH.Login))
	mux.Handle("POST /auth/google", s.limit("google", middleware.RealIP, middleware.AuthLimit, s.authH.GoogleLogin))
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)

	protect := middleware.RequireAuth(s.issuer, s.revoker, s.logger.With("component", "auth"))
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	handle("GET /auth/me", s.authH.Me)

	// Events
	handle("GET /events/{userId}", s.eventH.List)
	handle("POST /events/{userId}", s.eventH.Create)
	handle("GET /events/{userId}/export.ics", s.eventH.Export)
	handle("GET /events/{userId}/{eventId}", s.eventH.Get)
	handle("PUT /events/{userId}/{eventId}", s.eventH.Update)
	handle("DELETE /events/{userId}/{eventId}", s.eventH.Delete)

	handle("POST /plan", s.limit("plan", middleware.IdentityKey, middleware.PlanLimit, s.planH.Plan).ServeHTTP)
	handle("GET /tasks", s.taskH.List)

	// WebSocket
	handle("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.Metrics(mux))
}

func (s *Server) limit(scope string, key func(*http.Request) string, l middleware.Limit, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, scope, key, l)(h)
}
