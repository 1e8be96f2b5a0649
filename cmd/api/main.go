package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/taskhub/task-auth-service/internal/api/http"
	"github.com/taskhub/task-auth-service/internal/api/http/handlers"
	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/config"
	"github.com/taskhub/task-auth-service/internal/events"
	"github.com/taskhub/task-auth-service/internal/observability"
	"github.com/taskhub/task-auth-service/internal/persistence"
	"github.com/taskhub/task-auth-service/internal/repository"
	"github.com/taskhub/task-auth-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// The key is built before any listener exists so a bad key can never
	// serve traffic.
	signingKey, err := auth.NewSigningKey(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("signing key", zap.Error(err))
	}
	tokens, err := auth.NewTokenProvider(signingKey, cfg.Auth.TokenTTL())
	if err != nil {
		logger.Fatal("token provider", zap.Error(err))
	}
	policy, err := auth.NewPolicy(httptransport.AccessRules()...)
	if err != nil {
		logger.Fatal("authorization policy", zap.Error(err))
	}
	for _, rule := range policy.Rules() {
		logger.Info("access rule", zap.String("pattern", rule.Pattern), zap.Stringer("access", rule.Access))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := pg.Migrate(ctx, cfg.Postgres.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger).RegisterHandlers()

	userRepo := repository.NewUserRepository(pg.Pool())
	taskRepo := repository.NewTaskRepository(pg.Pool())
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	if cfg.Seed.Enabled {
		if err := service.NewSeeder(userRepo, taskRepo, hasher, logger).Run(ctx); err != nil {
			logger.Fatal("failed to seed data", zap.Error(err))
		}
	}

	authService := service.NewAuthService(service.AuthDependencies{
		Verifier:   auth.NewCredentialVerifier(userRepo, hasher),
		Tokens:     tokens,
		Throttle:   service.NewRedisLoginThrottle(redis.Cmdable(), cfg.Auth.MaxFailedLogins, cfg.Auth.LockoutWindow()),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	userService := service.NewUserService(userRepo, hasher)
	taskService := service.NewTaskService(taskRepo, userRepo, dispatcher, logger)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.RateLimit)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Tasks:          handlers.NewTasksHandler(taskService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenProvider(), logger),
		Policy:         policy,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
