package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/planwise/internal/auth"
	"github.com/dukerupert/planwise/internal/config"
	"github.com/dukerupert/planwise/internal/database"
	"github.com/dukerupert/planwise/internal/gcal"
	"github.com/dukerupert/planwise/internal/handler"
	"github.com/dukerupert/planwise/internal/logging"
	"github.com/dukerupert/planwise/internal/metrics"
	"github.com/dukerupert/planwise/internal/mongostore"
	"github.com/dukerupert/planwise/internal/planner"
	"github.com/dukerupert/planwise/internal/server"
	"github.com/dukerupert/planwise/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// Accounts always live in sqlite; events follow the configured backend.
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	checks := map[string]handler.Pinger{"database": db}
	tasks := gcal.NewProvider(gcal.NewService)

	var events store.Source
	switch cfg.Backend {
	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			slog.Error("failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(context.Background())
		events, err = mongostore.New(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			slog.Error("failed to prepare mongo store", "error", err)
			os.Exit(1)
		}
		checks["mongo"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		})
	case config.BackendGoogle:
		events = tasks
	default:
		events = store.NewEventStore(db)
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.RedisURL != "" {
		rr, err := auth.NewRedisRevoker(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rr.Close()
		revoker = rr
	}

	srvCfg := server.Config{
		Events:       metrics.InstrumentSource(cfg.Backend, events),
		Users:        store.NewUserStore(db),
		Tasks:        tasks,
		Profiles:     gcal.NewProfileFetcher(gcal.NewUserinfoService),
		Issuer:       auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Revoker:      revoker,
		CookieSecure: cfg.CookieSecure,
		Origins:      cfg.AllowedOrigins,
		Checks:       checks,
	}
	if cfg.PlannerEnabled() {
		srvCfg.Planner = planner.NewService(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger.With("component", "planner"))
	} else {
		slog.Warn("planner disabled, no OpenAI API key configured")
	}

	srv := server.New(srvCfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					slog.Debug("dropped expired rate limit windows", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("planwise starting", "addr", ":"+cfg.Port, "backend", cfg.Backend, "timezone", cfg.Location().String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
