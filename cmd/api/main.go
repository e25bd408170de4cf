package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/config"
	"github.com/noah-isme/fortress-api/internal/database"
	"github.com/noah-isme/fortress-api/internal/handler"
	"github.com/noah-isme/fortress-api/internal/middleware"
	"github.com/noah-isme/fortress-api/internal/observability"
	"github.com/noah-isme/fortress-api/internal/repository"
	"github.com/noah-isme/fortress-api/internal/router"
	"github.com/noah-isme/fortress-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level := zerolog.DebugLevel
	if cfg.IsProduction() {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(rootCtx, cfg.AppName, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	taskRepo := repository.NewTaskRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	transactor := repository.NewTransactor(db)

	hub := service.NewBroadcastHub(redisClient, natsConn, service.HubConfig{
		BufferSize:  cfg.BroadcastBuffer,
		ChannelBase: cfg.RedisChannel,
	}, logger)
	hub.Start(rootCtx)

	lockConfig := service.LockConfig{TTL: cfg.BattleLockTTL, Wait: cfg.BattleLockWait, Prefix: cfg.RedisChannel}
	locker := service.NewLocalTeamLocker(lockConfig)
	if redisClient != nil {
		locker = service.NewRedisTeamLocker(redisClient, lockConfig, logger)
	}

	ledger := service.NewScoreLedger(scoreRepo, service.LedgerConfig{RetryBudget: cfg.LedgerRetryBudget}, logger)
	selector := service.NewTaskSelector(taskRepo, logger)
	grader := service.NewGrader(logger)

	submissionService := service.NewSubmissionService(
		assignmentRepo, submissionRepo, transactor, ledger, grader, hub, validate,
		service.SubmissionConfig{RetryBudget: cfg.LedgerRetryBudget}, logger,
	)
	battleService := service.NewBattleService(teamRepo, assignmentRepo, ledger, selector, locker, logger)
	scoreService := service.NewScoreService(ledger, validate)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: !cfg.IsProduction()})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, logger),
		BattleHandler:       handler.NewBattleHandler(battleService, hub, validate, logger),
		ScoreHandler:        handler.NewScoreHandler(scoreService, logger),
		SeedHandler:         handler.NewSeedHandler(service.NewSeedService(taskRepo, transactor, cfg.SeedEnabled, cfg.SeedToken, logger), logger),
		HealthHandler:       handler.HealthCheck(cfg, db, redisClient),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		SubmissionRateLimit: 60,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-rootCtx.Done()
	shutdown(app, hub, shutdownTracing, logger)
}

func shutdown(app *fiber.App, hub *service.BroadcastHub, shutdownTracing func(context.Context) error, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
