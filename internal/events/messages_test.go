package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklab/taskflow/internal/domain"
)

func TestNewTaskCreatedEvent(t *testing.T) {
	payload := json.RawMessage(`{"kind":"resize"}`)
	task, err := domain.NewTask("Resize", payload)
	require.NoError(t, err)

	event := NewTaskCreatedEvent(task)

	assert.Equal(t, task.ID, event.TaskID)
	assert.Equal(t, payload, event.Payload)
	assert.False(t, event.RequestedAt.Before(task.CreatedAt))
}

func TestTaskCreatedEventWireFormat(t *testing.T) {
	id := uuid.MustParse("7d2f9a4e-0b6c-4a24-9f6d-3a1c8e5b7f01")
	event := &TaskCreatedEvent{
		TaskID:      id,
		Payload:     json.RawMessage(`{"n":1}`),
		RequestedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"task_id": "7d2f9a4e-0b6c-4a24-9f6d-3a1c8e5b7f01",
		"payload": {"n": 1},
		"requested_at": "2025-03-01T12:00:00Z"
	}`, string(body))
}

func TestTaskStatusMessageWireFormat(t *testing.T) {
	id := uuid.MustParse("7d2f9a4e-0b6c-4a24-9f6d-3a1c8e5b7f01")

	t.Run("terminal failure carries the message", func(t *testing.T) {
		msg := &TaskStatusMessage{
			TaskID:    id,
			Status:    domain.TaskStatusFailed,
			Progress:  1.0,
			UpdatedAt: time.Date(2025, 3, 1, 12, 0, 5, 0, time.UTC),
			Message:   "work exploded",
		}

		body, err := json.Marshal(msg)
		require.NoError(t, err)

		assert.JSONEq(t, `{
			"task_id": "7d2f9a4e-0b6c-4a24-9f6d-3a1c8e5b7f01",
			"status": "FAILED",
			"progress": 1,
			"updated_at": "2025-03-01T12:00:05Z",
			"message": "work exploded"
		}`, string(body))
	})

	t.Run("message field is omitted when empty", func(t *testing.T) {
		msg := &TaskStatusMessage{
			TaskID:    id,
			Status:    domain.TaskStatusProcessing,
			Progress:  0.1,
			UpdatedAt: time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC),
		}

		body, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "message")
		assert.Contains(t, string(body), `"progress":0.1`)
	})
}
