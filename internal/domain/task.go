package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// MaxTitleLength is the upper bound on the task title, matching the
// varchar(255) column in the tasks table.
const MaxTitleLength = 255

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
	ErrTitleTooLong      = errors.New("task title exceeds maximum length")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Task represents a unit of work submitted by a client. The payload is
// opaque to the pipeline: it is stored, forwarded to the worker, and
// interpreted only by the work executor.
type Task struct {
	ID         uuid.UUID       `json:"task_id"`
	Title      string          `json:"title"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     TaskStatus      `json:"status"`
	Message    string          `json:"message,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// NewTask creates a new pending Task with the given title and payload.
// It generates a new UUID for the task ID and stamps creation/update times.
// Returns an error if validation fails.
func NewTask(title string, payload json.RawMessage) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Title:     title,
		Payload:   payload,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if len(t.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidStatus
	}

	return nil
}

// IsTerminal reports whether the status permits no further transition.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// CanTransitionTo reports whether the lifecycle permits moving from the
// current status to the target status. Transitions follow exactly
// PENDING -> PROCESSING -> {DONE, FAILED}.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return target == TaskStatusProcessing
	case TaskStatusProcessing:
		return target == TaskStatusDone || target == TaskStatusFailed
	default:
		return false
	}
}

// Transition moves the task to the target status, refreshing UpdatedAt and
// setting FinishedAt once on entry to a terminal state.
// Returns ErrInvalidTransition if the lifecycle does not permit the move.
func (t *Task) Transition(target TaskStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}

	t.Status = target
	t.UpdatedAt = now
	if target.IsTerminal() {
		finished := now
		t.FinishedAt = &finished
	}
	return nil
}

// isValidTaskStatus checks if the provided status is one of the defined
// valid task statuses.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}
