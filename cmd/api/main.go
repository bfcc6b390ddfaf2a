package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/realtime"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/worker"
)

const (
	reminderKeyPrefix = "complaints:reminded:"
	schedulerLockKey  = "complaints:scheduler:lock"
	shutdownTimeout   = 15 * time.Second
)

type repositories struct {
	complaints repository.ComplaintRepository
	staff      repository.StaffRepository
	categories repository.CategoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	repos := newRepositories(pg, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	hub := realtime.NewHub(logger)
	var bus realtime.Bus = realtime.NewLocalBus(hub)
	if cfg.Realtime.RedisBus && redisConn.Enabled() {
		redisBus := realtime.NewRedisBus(redisConn.Client, cfg.Realtime.RedisChannel, hub, logger)
		if err := redisBus.Start(ctx); err != nil {
			logger.Fatal("failed to start realtime bus", zap.Error(err))
		}
		defer redisBus.Close() //nolint:errcheck
		bus = redisBus
	}

	relay := events.NewKafkaRelay(cfg.Kafka, logger)
	defer relay.Close() //nolint:errcheck
	worker.StartNotificationWorker(dispatcher, service.NewNotificationService(dispatcher, bus, logger), relay)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: repos.complaints,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		ComplaintRepo: repos.complaints,
		StaffRepo:     repos.staff,
		CategoryRepo:  repos.categories,
		Lifecycle:     lifecycleService,
		Dispatcher:    dispatcher,
		Capacity:      cfg.Assignment,
		Logger:        logger,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		ComplaintRepo: repos.complaints,
		CategoryRepo:  repos.categories,
		Deadlines:     domain.NewDeadlinePolicy(deadlineMultipliers(cfg.Deadline)),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	schedulerDeps := worker.SchedulerDependencies{
		ComplaintRepo: repos.complaints,
		Escalator:     lifecycleService,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Config:        cfg.Scheduler,
	}
	if redisConn.Enabled() {
		schedulerDeps.Reminders = worker.NewRedisReminderLedger(redisConn.Client, reminderKeyPrefix)
		schedulerDeps.Locker = worker.NewRedisCycleLocker(redisConn.Client, schedulerLockKey)
	}
	scheduler := worker.NewEscalationScheduler(schedulerDeps)

	authMiddleware := auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes))

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisConn),
		Complaints:     handlers.NewComplaintsHandler(intakeService, lifecycleService, assignmentService),
		Admin:          handlers.NewAdminHandler(assignmentService, scheduler, metrics, hub),
		Realtime:       handlers.NewRealtimeHandler(hub, bus, lifecycleService, logger, cfg.Realtime.WriteTimeout()),
		AuthMiddleware: authMiddleware,
	})

	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler stop", zap.Error(err))
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
	}
}

func newRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if !pg.Enabled() {
		logger.Warn("using in-memory repositories; data is lost on restart")
		return repositories{
			complaints: repository.NewMemoryComplaintRepository(),
			staff:      repository.NewMemoryStaffRepository(),
			categories: repository.NewMemoryCategoryRepository(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		complaints: repository.NewComplaintRepository(pool),
		staff:      repository.NewStaffRepository(pool),
		categories: repository.NewCategoryRepository(pool),
	}
}

func deadlineMultipliers(cfg config.DeadlineConfig) map[domain.ComplaintPriority]float64 {
	out := make(map[domain.ComplaintPriority]float64, len(cfg.Multipliers))
	for priority, multiplier := range cfg.Multipliers {
		out[domain.ComplaintPriority(priority)] = multiplier
	}
	return out
}
