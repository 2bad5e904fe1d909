package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tasklab/taskflow/internal/domain"
)

// TaskCreatedEvent is the message published to the broker when a task row
// has been committed. The payload is a verbatim copy of the task payload at
// creation time; RequestedAt is the event creation time and may lag the
// task's CreatedAt slightly.
type TaskCreatedEvent struct {
	TaskID      uuid.UUID       `json:"task_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}

// NewTaskCreatedEvent builds the broker message for a freshly created task.
func NewTaskCreatedEvent(task *domain.Task) *TaskCreatedEvent {
	return &TaskCreatedEvent{
		TaskID:      task.ID,
		Payload:     task.Payload,
		RequestedAt: time.Now().UTC(),
	}
}

// TaskStatusMessage is the message carried on the broadcast channel for
// every status transition. Progress is advisory telemetry: any monotonic
// non-decreasing sequence ending at 1.0 on the terminal transition is valid.
type TaskStatusMessage struct {
	TaskID    uuid.UUID         `json:"task_id"`
	Status    domain.TaskStatus `json:"status"`
	Progress  float64           `json:"progress"`
	UpdatedAt time.Time         `json:"updated_at"`
	Message   string            `json:"message,omitempty"`
}
