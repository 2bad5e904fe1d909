package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tasklab/taskflow/internal/domain"
)

// DBTX abstracts the database access layer. Both *sql.DB and *sql.Tx
// satisfy it, so store implementations work against a pooled connection or
// a caller-managed transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TaskStore defines the persistence boundary for tasks.
//
// Lifecycle transitions go through ClaimProcessing and Finish, which are
// conditional updates: they only take effect when the row is in the
// expected prior state and report whether a row was claimed. This makes the
// terminal-state guard atomic under concurrent duplicate deliveries.
type TaskStore interface {
	// Create persists a new task row.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if no task exists with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves all tasks ordered by most recent creation first.
	List(ctx context.Context) ([]*domain.Task, error)

	// ClaimProcessing transitions the task to PROCESSING if and only if it
	// is currently PENDING, refreshing updated_at. It reports whether the
	// claim succeeded; false with a nil error means the task was missing or
	// no longer PENDING.
	ClaimProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// Finish transitions the task to the given terminal status if and only
	// if it is currently PROCESSING, setting finished_at and updated_at and
	// recording an optional failure message. It reports whether a row was
	// updated.
	Finish(
		ctx context.Context,
		id uuid.UUID,
		status domain.TaskStatus,
		message string,
		now time.Time,
	) (bool, error)
}
