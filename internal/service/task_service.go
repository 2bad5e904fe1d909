// Package service coordinates task persistence and outbound events. It sits
// between the HTTP layer and the storage/transport adapters.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasklab/taskflow/internal/domain"
	"github.com/tasklab/taskflow/internal/events"
	"github.com/tasklab/taskflow/internal/store"
)

// EventPublisher publishes a task-created event to the broker after the
// task row has been committed.
type EventPublisher interface {
	PublishTaskCreated(ctx context.Context, event *events.TaskCreatedEvent) error
}

// TaskService provides task creation and retrieval operations.
type TaskService struct {
	store     store.TaskStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewTaskService creates a TaskService. The publisher may be nil when the
// broker is unavailable; tasks are then created without a notification and
// remain PENDING until external reconciliation.
func NewTaskService(
	taskStore store.TaskStore,
	publisher EventPublisher,
	logger *slog.Logger,
) (*TaskService, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("task store is required")
	}

	return &TaskService{
		store:     taskStore,
		publisher: publisher,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// Create validates and persists a new task, then publishes the
// task-created event. The publish happens after the row is committed and
// its failure is logged and swallowed: task creation must not roll back
// because the notification failed. A stuck PENDING task with no delivered
// event is a detectable anomaly, not an error surfaced to the client.
func (s *TaskService) Create(
	ctx context.Context,
	title string,
	payload json.RawMessage,
) (*domain.Task, error) {
	task, err := domain.NewTask(title, payload)
	if err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if s.publisher == nil {
		s.logger.Warn("no event publisher configured, task will stay pending",
			"task_id", task.ID)
		return task, nil
	}

	event := events.NewTaskCreatedEvent(task)
	if err := s.publisher.PublishTaskCreated(ctx, event); err != nil {
		s.logger.Error("failed to publish task created event",
			"task_id", task.ID,
			"error", err)
	}

	return task, nil
}

// Get retrieves a task by ID. Returns store.ErrTaskNotFound if absent.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List returns all tasks, most recent creation first.
func (s *TaskService) List(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}
