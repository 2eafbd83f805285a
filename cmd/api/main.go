package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-desk/internal/api/http"
	"github.com/spec-kit/incident-desk/internal/api/http/handlers"
	"github.com/spec-kit/incident-desk/internal/auth"
	"github.com/spec-kit/incident-desk/internal/config"
	"github.com/spec-kit/incident-desk/internal/events"
	"github.com/spec-kit/incident-desk/internal/observability"
	"github.com/spec-kit/incident-desk/internal/persistence"
	"github.com/spec-kit/incident-desk/internal/repository"
	"github.com/spec-kit/incident-desk/internal/service"
	"github.com/spec-kit/incident-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	auditService := service.NewAuditService(auditRepo, logger)
	notifications := service.NewNotificationService(logger)
	notifications.RegisterHandlers(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	var challenges auth.ChallengeStore
	if redis.Ping(ctx) == nil {
		challenges = auth.NewRedisChallengeStore(redis.Client)
	} else {
		logger.Warn("redis unavailable; keeping mfa challenges in process memory")
		challenges = auth.NewMemoryChallengeStore()
	}

	authService := service.NewAuthService(cfg.Security, cfg.Auth.BcryptCost, service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Challenges: challenges,
		Audit:      auditService,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(cfg.SLA, service.TicketDependencies{
		TicketRepo:     ticketRepo,
		HistoryRepo:    historyRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		UserRepo:       userRepo,
		Audit:          auditService,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})

	monitor := worker.NewSLAMonitor(ticketRepo, auditService, dispatcher, metrics, logger,
		cfg.SLA.MonitorInterval(), cfg.SLA.WarningLookahead())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Start(ctx)
	}()

	authMiddleware := auth.NewMiddleware(tokens, userRepo, cfg.Security)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Audit:          handlers.NewAuditHandler(auditService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	wg.Wait()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
