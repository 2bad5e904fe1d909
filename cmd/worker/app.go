package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tasklab/taskflow/internal/bootstrap"
	"github.com/tasklab/taskflow/internal/config"
	"github.com/tasklab/taskflow/internal/platform/logger"
	"github.com/tasklab/taskflow/internal/platform/postgres"
	"github.com/tasklab/taskflow/internal/platform/rabbitmq"
	"github.com/tasklab/taskflow/internal/platform/redis"
	"github.com/tasklab/taskflow/internal/task"
)

// simulatedWorkDelay stands in for the real workload duration until a
// domain-specific executor is plugged in.
const simulatedWorkDelay = time.Second

// workerApp holds the worker-process dependencies, constructed once at
// startup and passed explicitly to every component that needs them.
type workerApp struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	consumer    *rabbitmq.Consumer
	broadcaster *redis.Broadcaster

	processor *task.Processor
}

// initializeWorker loads configuration and bootstraps the worker's network
// dependencies through the shared retry policy. The database and the
// broker are mandatory, the worker cannot function without either, while
// Redis is optional: after the attempt budget the worker degrades to
// processing without status broadcasts.
func initializeWorker(ctx context.Context) (*workerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Worker configuration loaded",
		"prefetch", cfg.Worker.Prefetch,
		"worker_count", cfg.Worker.WorkerCount)

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	broadcaster := setupBroadcaster(ctx, cfg, appLogger)

	consumer := rabbitmq.NewConsumer(
		cfg.Broker.URL,
		cfg.Broker.Exchange,
		cfg.Broker.Queue,
		cfg.Broker.RoutingKey,
		appLogger,
	)

	err = bootstrap.Connect(ctx, appLogger, "rabbitmq", bootstrap.Config{
		Attempts: cfg.Broker.ConnectAttempts,
		Backoff:  cfg.Broker.ConnectBackoff,
	}, func(context.Context) error {
		return consumer.Connect(cfg.Worker.Prefetch)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var statusBroadcaster task.StatusBroadcaster
	if broadcaster != nil {
		statusBroadcaster = broadcaster
	}

	processor := task.NewProcessor(
		postgres.NewPostgresTaskStore(db),
		statusBroadcaster,
		&task.SimulatedExecutor{Delay: simulatedWorkDelay},
		appLogger,
	)

	appLogger.Info("Worker initialized successfully")
	return &workerApp{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		consumer:    consumer,
		broadcaster: broadcaster,
		processor:   processor,
	}, nil
}

// setupDatabase opens the connection pool shared by all concurrent
// handlers and verifies reachability through the bootstrap retry policy.
func setupDatabase(
	ctx context.Context,
	cfg *config.Config,
	appLogger *slog.Logger,
) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = bootstrap.Connect(ctx, appLogger, "postgres", bootstrap.Config{
		Attempts: cfg.Database.ConnectAttempts,
		Backoff:  cfg.Database.ConnectBackoff,
	}, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	appLogger.Info("Database connection established")
	return db, nil
}

// setupBroadcaster bootstraps the Redis connection. A nil return means
// Redis stayed unreachable through the attempt budget and the worker
// processes tasks without broadcasting status transitions.
func setupBroadcaster(
	ctx context.Context,
	cfg *config.Config,
	appLogger *slog.Logger,
) *redis.Broadcaster {
	broadcaster := redis.NewBroadcaster(cfg.Redis.URL, cfg.Redis.Channel, appLogger)

	err := bootstrap.Connect(ctx, appLogger, "redis", bootstrap.Config{
		Attempts: cfg.Redis.ConnectAttempts,
		Backoff:  cfg.Redis.ConnectBackoff,
	}, func(ctx context.Context) error {
		return broadcaster.Connect(ctx)
	})
	if err != nil {
		appLogger.Warn("redis unreachable, continuing without status broadcasts",
			"error", err)
		return nil
	}

	return broadcaster
}

// Run consumes deliveries through the worker pool until a shutdown signal
// arrives, then drains in-flight work before releasing resources.
func (app *workerApp) Run(ctx context.Context) error {
	deliveries, err := app.consumer.Consume()
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	pool := task.NewWorkerPool(deliveries, app.processor, task.WorkerPoolConfig{
		WorkerCount: app.config.Worker.WorkerCount,
	}, app.logger)

	// The pool runs against the background context: shutdown happens by
	// closing the consumer, which closes the delivery channel and lets
	// every in-flight delivery finish before its worker exits.
	pool.Start(ctx)

	app.logger.Info("Worker started, waiting for tasks")

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownCh

	app.logger.Info("Shutting down worker...")

	if err := app.consumer.Close(); err != nil {
		app.logger.Error("Error closing broker connection", "error", err)
	}

	pool.Wait()
	app.cleanup()

	app.logger.Info("Worker shutdown completed")
	return nil
}

// cleanup releases the remaining worker resources.
func (app *workerApp) cleanup() {
	if app.broadcaster != nil {
		if err := app.broadcaster.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
}
