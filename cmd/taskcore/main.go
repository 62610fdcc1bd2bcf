package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskcore/pkg/account"
	"github.com/platinummonkey/taskcore/pkg/api"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/config"
	"github.com/platinummonkey/taskcore/pkg/janitor"
	"github.com/platinummonkey/taskcore/pkg/mail"
	"github.com/platinummonkey/taskcore/pkg/middleware"
	"github.com/platinummonkey/taskcore/pkg/notifications"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/session"
	"github.com/platinummonkey/taskcore/pkg/storage"
	"github.com/platinummonkey/taskcore/pkg/storage/sqlstore"
	"github.com/platinummonkey/taskcore/pkg/tasks"
	"github.com/platinummonkey/taskcore/pkg/users"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("taskcore exited with error")
	}
	logger.Info("taskcore stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(); err != nil {
			logger.WithError(err).Error("Shutdown completed with errors")
		}
	}()

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	if providers != nil {
		shutdown.Register("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Storage
	store, err := sqlstore.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return store.Close() })
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.WithField("driver", cfg.Storage.Driver).Info("Database ready")

	encoder := auth.NewBcryptEncoder(cfg.Auth.BcryptCost)
	if err := rbac.Seed(ctx, store, logger); err != nil {
		return err
	}
	if cfg.Auth.SeedAdminEmail != "" {
		created, err := rbac.SeedAdmin(ctx, store, encoder, cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.WithField("email", cfg.Auth.SeedAdminEmail).Info("Seeded admin account")
		}
	}

	// Credential rate limiting: Redis when configured, otherwise per process.
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Auth.RateLimitBurst,
	}
	var limiter middleware.Limiter
	redisClient, err := storage.NewRedisClient(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrRedisDisabled):
		local := middleware.NewRateLimiter(limits)
		local.StartCleanup(ctx)
		limiter = local
		logger.Info("Redis not configured, rate limiting per process")
	case err != nil:
		return err
	default:
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		limiter = middleware.NewDistributedRateLimiter(redisClient, limits, "taskcore:ratelimit:")
		logger.Info("Rate limiting through Redis")
	}

	// Verification mail
	var sender mail.Sender
	if cfg.Mail.Enabled {
		sender, err = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.From,
		})
		if err != nil {
			return err
		}
	} else {
		sender = mail.NewLogSender(logger)
	}
	dispatcher := mail.NewDispatcher(sender, logger, metrics, session.VerificationTTL)
	shutdown.Register("mail", dispatcher.Wait)

	// Services
	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.AccessTTL,
		Issuer: cfg.Auth.JWTIssuer,
	})
	if err != nil {
		return err
	}
	resolver := rbac.NewResolver(store, cfg.Storage.RoleCacheSize, cfg.Storage.RoleCacheTTL)
	sessions := session.NewManager(store, tokens, resolver, encoder, dispatcher, session.Config{
		RefreshTTL:    cfg.Auth.RefreshTTL,
		PublicBaseURL: cfg.Mail.PublicBaseURL,
	}, logger, metrics)

	server := api.NewServer(api.Services{
		Sessions:      sessions,
		Accounts:      account.NewService(store, encoder, sessions, logger),
		Users:         users.NewService(store, encoder, logger),
		Roles:         rbac.NewAdminService(store, resolver, logger),
		Tasks:         tasks.NewService(store, audit.NewLogger(logger, metrics), notifications.NewNotifier(logger, metrics), logger, metrics),
		Logs:          audit.NewQueryService(store),
		Notifications: notifications.NewService(store),
	}, api.Options{
		Tokens:            tokens,
		CredentialLimiter: middleware.NewRateLimitMiddleware(limiter, "auth", time.Minute, metrics, logger).Handler,
		Metrics:           metrics,
		Logger:            logger,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(store.DB(), redisClient).WithMetrics(metrics).WithVersion(version)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Registered last so they stop first.
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Janitor.Enabled {
		j, err := janitor.New(store, janitor.Config{
			Schedule:  cfg.Janitor.Schedule,
			Retention: cfg.Janitor.Retention,
		}, logger, metrics)
		if err != nil {
			return err
		}
		g.Go(func() error { return j.Run(gctx) })
	}

	if path := os.Getenv(config.FileEnv); path != "" {
		g.Go(func() error {
			return config.Watch(gctx, path, logger, func(next *config.Config) {
				if observability.SetLevel(logger, next.Observability.LogLevel) {
					logger.WithField("level", next.Observability.LogLevel).Info("Log level applied")
				}
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown()
	})

	return g.Wait()
}
