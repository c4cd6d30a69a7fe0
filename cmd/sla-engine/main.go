package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/yzh317179958/customer-service-sub000/internal/api/http"
	"github.com/yzh317179958/customer-service-sub000/internal/api/http/handlers"
	"github.com/yzh317179958/customer-service-sub000/internal/config"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/mq"
	"github.com/yzh317179958/customer-service-sub000/internal/observability"
	"github.com/yzh317179958/customer-service-sub000/internal/persistence"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
	"github.com/yzh317179958/customer-service-sub000/internal/service"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
	"github.com/yzh317179958/customer-service-sub000/internal/worker"
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

	targets, err := cfg.SLA.Targets()
	if err != nil {
		logger.Fatal("invalid sla targets", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	pool := pg.Pool

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var (
		broker    *mq.Broker
		publisher service.Publisher
	)
	if cfg.MQTT.BrokerURL != "" {
		client, err := mq.Connect(cfg.MQTT, logger)
		if err != nil {
			logger.Fatal("mqtt connect", zap.Error(err))
		}
		broker = mq.NewBroker(client)
		defer broker.Close()
		publisher = broker
	} else {
		logger.Warn("MQTT_BROKER_URL not provided; alerts are logged only")
	}

	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	presenceRepo := repository.NewAgentPresenceRepository(redis.Client)
	dedupRepo := repository.NewAlertDedupRepository(redis.Client)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Targets:     targets,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo:     ticketRepo,
		DedupRepo:      dedupRepo,
		Targets:        targets,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		Formatter:      sla.FormatAlertMessage,
		BatchSize:      cfg.SLA.ScanBatchSize,
		DedupTTL:       cfg.SLA.AlertDedupTTL,
		QueuePageLimit: cfg.SLA.QueuePageLimit,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Pool:            repository.NewAgentPool(agentRepo, presenceRepo, 0),
		Weights:         cfg.Assignment.Weights(),
		AgentRepo:       agentRepo,
		PresenceRepo:    presenceRepo,
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Logger:          logger,
		ReserveAttempts: cfg.Assignment.ReserveAttempts,
	})
	notificationService := service.NewNotificationService(dispatcher, publisher, logger, cfg.MQTT)
	notificationService.RegisterHandlers()

	scanWorker := worker.NewSLAScanWorker(slaService, cfg.SLA.ScanSchedule, time.Minute, logger)
	if err := scanWorker.Start(ctx); err != nil {
		logger.Fatal("failed to start sla scan worker", zap.Error(err))
	}
	defer scanWorker.Stop()

	if broker != nil {
		intake := worker.NewIntakeConsumer(assignmentService, ticketService, cfg.MQTT, logger)
		if err := intake.Start(ctx, broker); err != nil {
			logger.Fatal("failed to subscribe intake topics", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, func() *time.Time { return metrics.Snapshot().LastScanAt }),
		Metrics: handlers.NewMetricsHandler(metrics),
	})

	go func() {
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
