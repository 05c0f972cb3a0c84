package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Cheertaboi/jewelry-storefront/internal/api"
	"github.com/Cheertaboi/jewelry-storefront/internal/api/middleware"
	"github.com/Cheertaboi/jewelry-storefront/internal/backend"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
	"github.com/Cheertaboi/jewelry-storefront/internal/config"
	"github.com/Cheertaboi/jewelry-storefront/internal/guard"
	"github.com/Cheertaboi/jewelry-storefront/internal/logger"
	"github.com/Cheertaboi/jewelry-storefront/internal/metrics"
	"github.com/Cheertaboi/jewelry-storefront/internal/repository"
	"github.com/Cheertaboi/jewelry-storefront/internal/session"
	"github.com/Cheertaboi/jewelry-storefront/internal/validation"
	"github.com/Cheertaboi/jewelry-storefront/pkg/db"
)

const purgeInterval = 10 * time.Minute

func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPaths(*configDir)...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := pricingEngine(cfg.Pricing)
	if err != nil {
		return err
	}

	reg := metrics.New()

	be, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
		OffersTTL: cfg.Backend.OffersTTL,
	}, backend.WithLogger(log), backend.WithObserver(reg.ObserveBackend))
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	var store session.Store
	switch cfg.Session.Driver {
	case "postgres":
		conn, err := db.NewPostgresConnection(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer conn.Close()

		repo := repository.NewSessionRepo(conn)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure session schema: %w", err)
		}
		store = session.NewPostgresStore(repo, cfg.Session.TTL)
	default:
		store = session.NewMemoryStore(cfg.Session.TTL)
	}

	var submitGuard guard.Guard = guard.NewMemoryGuard()
	if cfg.Redis.Enabled {
		rg, err := guard.NewRedisGuard(ctx, guard.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rg.Close()
		submitGuard = rg
	}

	ctrl := checkout.NewController(be, engine, validation.New(nil),
		checkout.WithGuard(submitGuard),
		checkout.WithRecorder(reg),
		checkout.WithLogger(log.Named("checkout")),
		checkout.WithConfig(checkout.Config{
			PollInterval:      cfg.Checkout.PollInterval,
			PollMaxAttempts:   cfg.Checkout.PollMaxAttempts,
			StockCheckWorkers: cfg.Checkout.StockCheckWorkers,
			SubmitGuardTTL:    cfg.Checkout.SubmitGuardTTL,
		}),
	)

	handler := api.NewRouter(api.Deps{
		Logger:   log,
		Store:    store,
		Backend:  be,
		Engine:   engine,
		Checkout: ctrl,
		Identity: middleware.IdentityConfig{
			JWTSecret:    cfg.Auth.JWTSecret,
			Users:        be,
			CookieSecure: cfg.Auth.CookieSecure,
		},
		CORSOrigins: cfg.HTTP.CORSAllowOrigins,
		Metrics:     reg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go purgeSessions(ctx, store, log)

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	log.Info("starting storefront",
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.App.Env),
		zap.String("session_driver", cfg.Session.Driver),
		zap.Bool("redis_guard", cfg.Redis.Enabled))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	<-idleConnsClosed
	log.Info("server stopped")
	return nil
}

// purgeSessions drops expired sessions until ctx is done
func purgeSessions(ctx context.Context, store session.Store, log *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.Warn("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
