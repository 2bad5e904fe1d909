package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tasklab/taskflow/db/migrations"
	"github.com/tasklab/taskflow/internal/bootstrap"
	"github.com/tasklab/taskflow/internal/config"
	"github.com/tasklab/taskflow/internal/platform/logger"
	"github.com/tasklab/taskflow/internal/platform/postgres"
	"github.com/tasklab/taskflow/internal/platform/rabbitmq"
	"github.com/tasklab/taskflow/internal/service"
)

// application holds the shared API-process dependencies so they are
// constructed once at startup and passed explicitly, no ambient globals.
type application struct {
	config *config.Config
	logger *slog.Logger

	db        *sql.DB
	publisher *rabbitmq.Publisher

	taskService *service.TaskService
}

// initializeApp loads configuration, sets up logging, bootstraps the
// network dependencies, and wires the service layer. The database is
// mandatory: bootstrap failure aborts startup. The broker is optional for
// the API process: after the attempt budget it degrades to task creation
// without event publishing.
func initializeApp(ctx context.Context, migrateOnly bool) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, err
	}

	app := &application{
		config: cfg,
		logger: appLogger,
		db:     db,
	}

	if migrateOnly {
		return app, nil
	}

	app.publisher = setupPublisher(ctx, cfg, appLogger)

	var publisher service.EventPublisher
	if app.publisher != nil {
		publisher = app.publisher
	}

	app.taskService, err = service.NewTaskService(
		postgres.NewPostgresTaskStore(db),
		publisher,
		appLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	appLogger.Info("Application initialized successfully")
	return app, nil
}

// setupDatabase opens the connection pool and verifies reachability through
// the shared bootstrap retry policy.
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

// runMigrations applies the embedded goose migrations.
func runMigrations(db *sql.DB, appLogger *slog.Logger) error {
	goose.SetBaseFS(migrations.Files)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	appLogger.Info("Database migrations applied")
	return nil
}

// setupPublisher bootstraps the broker connection. A nil return means the
// broker stayed unreachable through the attempt budget and task creation
// proceeds without event publishing.
func setupPublisher(
	ctx context.Context,
	cfg *config.Config,
	appLogger *slog.Logger,
) *rabbitmq.Publisher {
	publisher := rabbitmq.NewPublisher(
		cfg.Broker.URL,
		cfg.Broker.Exchange,
		cfg.Broker.RoutingKey,
		appLogger,
	)

	err := bootstrap.Connect(ctx, appLogger, "rabbitmq", bootstrap.Config{
		Attempts: cfg.Broker.ConnectAttempts,
		Backoff:  cfg.Broker.ConnectBackoff,
	}, func(context.Context) error {
		return publisher.Connect()
	})
	if err != nil {
		appLogger.Warn("broker unreachable, continuing without event publishing",
			"error", err)
		return nil
	}

	return publisher
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("Error closing broker connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
}
