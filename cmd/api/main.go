package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creativeops/review-engine/internal/assetstore"
	"github.com/creativeops/review-engine/internal/channel"
	"github.com/creativeops/review-engine/internal/config"
	"github.com/creativeops/review-engine/internal/handler"
	"github.com/creativeops/review-engine/internal/infra/postgresql"
	"github.com/creativeops/review-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/creativeops/review-engine/internal/infra/redis"
	"github.com/creativeops/review-engine/internal/observability"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/repository"
	"github.com/creativeops/review-engine/internal/service"
	"github.com/creativeops/review-engine/internal/tracker"
	"github.com/creativeops/review-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.PublishRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()
	events := queue.NewRabbitMQPublisher(rabbit)

	channelClient, err := channel.NewClient(cfg.ReviewChannelURL, limiter, logger)
	if err != nil {
		logger.Fatal("review channel client initialization failed", zap.Error(err))
	}

	assetClient, err := assetstore.NewClient(cfg.AssetStoreURL, logger)
	if err != nil {
		logger.Fatal("asset store client initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	store := tracker.NewStore(logger)

	batchRepo := repository.NewGormBatchRepo(db)
	itemRepo := repository.NewGormItemRepo(db)

	finalizer, err := service.NewFinalizer(store, batchRepo, assetClient, channelClient, events, metrics, logger)
	if err != nil {
		logger.Fatal("finalizer initialization failed", zap.Error(err))
	}

	monitor, err := service.NewMonitor(
		store, finalizer, events, metrics, logger,
		time.Duration(cfg.MonitorTickSec)*time.Second, cfg.MonitorMaxTicks,
	)
	if err != nil {
		logger.Fatal("monitor initialization failed", zap.Error(err))
	}

	batchService, err := service.NewBatchService(batchRepo, itemRepo, store, logger)
	if err != nil {
		logger.Fatal("batch service initialization failed", zap.Error(err))
	}

	reviewService, err := service.NewReviewService(
		batchRepo, itemRepo, store, channelClient, monitor, events, metrics, logger,
	)
	if err != nil {
		logger.Fatal("review service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterBatchRoutes(app, batchService, reviewService); err != nil {
		logger.Fatal("batch route registration failed", zap.Error(err))
	}
	if err := handler.RegisterCallbackRoutes(app, reviewService, logger); err != nil {
		logger.Fatal("callback route registration failed", zap.Error(err))
	}
	if err := handler.RegisterAssetRoutes(app, assetClient); err != nil {
		logger.Fatal("asset route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("review-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		retention := time.Duration(cfg.TrackerRetentionH) * time.Hour
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if reclaimed := store.DiscardStale(retention); reclaimed > 0 {
					logger.Info("reclaimed stale decision tables", zap.Int("count", reclaimed))
				}
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api terminated", zap.Error(err))
		os.Exit(1)
	}
}
