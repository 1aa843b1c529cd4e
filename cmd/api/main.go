package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/agent"
	httpapi "github.com/spec-kit/campus-support/internal/api/http"
	"github.com/spec-kit/campus-support/internal/api/http/handlers"
	"github.com/spec-kit/campus-support/internal/auth"
	"github.com/spec-kit/campus-support/internal/calendar"
	"github.com/spec-kit/campus-support/internal/classify"
	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/events"
	"github.com/spec-kit/campus-support/internal/observability"
	"github.com/spec-kit/campus-support/internal/persistence"
	"github.com/spec-kit/campus-support/internal/repository"
	"github.com/spec-kit/campus-support/internal/repository/memory"
	"github.com/spec-kit/campus-support/internal/service"
	"github.com/spec-kit/campus-support/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer postgres.Close()

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()

	var (
		ticketRepo     repository.TicketRepository
		userRepo       repository.UserRepository
		departmentRepo repository.DepartmentRepository
		commentRepo    repository.CommentRepository
		auditRepo      repository.AuditRepository
	)
	if pool := postgres.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("migrations failed", zap.Error(err))
			}
		}
		ticketRepo = repository.NewTicketRepository(pool)
		userRepo = repository.NewUserRepository(pool)
		departmentRepo = repository.NewDepartmentRepository(pool)
		commentRepo = repository.NewCommentRepository(pool)
		auditRepo = repository.NewAuditRepository(pool)
	} else {
		store := memory.NewStore()
		ticketRepo = store.Tickets()
		userRepo = store.Users()
		departmentRepo = store.Departments()
		commentRepo = store.Comments()
		auditRepo = store.Audit()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	classifier := classify.New(cfg.AI, logger)
	availability := calendar.New(cfg.Calendar, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		DepartmentRepo: departmentRepo,
		CommentRepo:    commentRepo,
		AuditRepo:      auditRepo,
		Dispatcher:     dispatcher,
		Policy:         cfg.Policy,
		Logger:         logger,
	})
	comments := service.NewCommentService(commentRepo, ticketRepo, dispatcher, lifecycle, logger)
	reports := service.NewReportService(ticketRepo, departmentRepo, redisStore.Client, cfg.Report, logger)
	authService := service.NewAuthService(userRepo, departmentRepo, tokens, cfg.Auth, logger)
	notifications := service.NewNotificationService(cfg.Notification, logger)

	if err := service.Seed(ctx, departmentRepo, userRepo, cfg.Auth.BcryptCost, logger); err != nil {
		logger.Fatal("seeding failed", zap.Error(err))
	}

	orchestrator := agent.New(agent.Dependencies{
		TicketRepo:          ticketRepo,
		UserRepo:            userRepo,
		DepartmentRepo:      departmentRepo,
		CommentRepo:         commentRepo,
		Lifecycle:           lifecycle,
		Comments:            comments,
		Classifier:          classifier,
		Calendar:            availability,
		Dispatcher:          dispatcher,
		Metrics:             metrics,
		ConfidenceThreshold: cfg.AI.ConfidenceThreshold,
		Logger:              logger,
	})

	worker.RegisterNotificationHandlers(dispatcher, notifications)
	reportWorker := worker.NewReportWorker(reports, cfg.Report, logger)
	if err := reportWorker.Start(); err != nil {
		logger.Fatal("report worker failed to start", zap.Error(err))
	}
	defer reportWorker.Stop()

	app := httpapi.NewApp(httpapi.RouteConfig{
		Config:         cfg,
		Logger:         logger,
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		Health:         handlers.NewHealthHandler(cfg.App.Version, postgres, redisStore),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketHandler(lifecycle, comments),
		Departments:    handlers.NewDepartmentHandler(departmentRepo, userRepo, reports),
		Agent:          handlers.NewAgentHandler(classifier, orchestrator, lifecycle),
		Internal:       handlers.NewInternalHandler(ticketRepo, userRepo),
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
