package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tasklab/taskflow/internal/domain"
	"github.com/tasklab/taskflow/internal/platform/logger"
	"github.com/tasklab/taskflow/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Create persists a new task row.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (id, title, payload, status, created_at, updated_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// An absent payload must land as SQL NULL, not the JSON literal "null".
	var payload any
	if len(task.Payload) > 0 {
		payload = []byte(task.Payload)
	}

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		payload,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
		task.FinishedAt,
	)

	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"error", err)
		return fmt.Errorf("failed to save task to database: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
// Returns store.ErrTaskNotFound if no task exists with the given ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, title, payload, status, message, created_at, updated_at, finished_at
		FROM tasks
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	return task, nil
}

// List retrieves all tasks ordered by most recent creation first.
func (s *PostgresTaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, title, payload, status, message, created_at, updated_at, finished_at
		FROM tasks
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list tasks", "error", err)
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}

	return tasks, nil
}

// ClaimProcessing transitions the task to PROCESSING if and only if it is
// currently PENDING. The conditional WHERE clause makes the terminal-state
// guard atomic: two concurrent deliveries for the same task cannot both
// claim it.
func (s *PostgresTaskStore) ClaimProcessing(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusProcessing,
		now,
		id,
		domain.TaskStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim task for processing: %w", err)
	}

	return rowUpdated(result, id)
}

// Finish transitions the task to the given terminal status if and only if
// it is currently PROCESSING, setting finished_at and the failure message.
func (s *PostgresTaskStore) Finish(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	message string,
	now time.Time,
) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf(
			"%w: %s is not a terminal status",
			domain.ErrInvalidTransition,
			status,
		)
	}

	query := `
		UPDATE tasks
		SET status = $1, message = $2, updated_at = $3, finished_at = $3
		WHERE id = $4 AND status = $5
	`

	var msg sql.NullString
	if message != "" {
		msg = sql.NullString{String: message, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query,
		status,
		msg,
		now,
		id,
		domain.TaskStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish task: %w", err)
	}

	return rowUpdated(result, id)
}

// rowUpdated reports whether the conditional update touched a row.
func rowUpdated(result sql.Result, id uuid.UUID) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for task %s: %w", id, err)
	}
	return rowsAffected > 0, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task       domain.Task
		payload    []byte
		message    sql.NullString
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&payload,
		&task.Status,
		&message,
		&task.CreatedAt,
		&task.UpdatedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		task.Payload = json.RawMessage(payload)
	}
	if message.Valid {
		task.Message = message.String
	}
	if finishedAt.Valid {
		task.FinishedAt = &finishedAt.Time
	}

	return &task, nil
}
