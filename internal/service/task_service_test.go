package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklab/taskflow/internal/domain"
	"github.com/tasklab/taskflow/internal/events"
	"github.com/tasklab/taskflow/internal/store"
)

// fakeTaskStore is an in-memory store.TaskStore for service tests.
type fakeTaskStore struct {
	tasks     map[uuid.UUID]*domain.Task
	createErr error
	listErr   error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *fakeTaskStore) Create(_ context.Context, task *domain.Task) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) List(_ context.Context) ([]*domain.Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		result = append(result, task)
	}
	return result, nil
}

func (s *fakeTaskStore) ClaimProcessing(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (s *fakeTaskStore) Finish(context.Context, uuid.UUID, domain.TaskStatus, string, time.Time) (bool, error) {
	return false, nil
}

// fakePublisher records published task-created events.
type fakePublisher struct {
	events     []*events.TaskCreatedEvent
	publishErr error
}

func (p *fakePublisher) PublishTaskCreated(_ context.Context, event *events.TaskCreatedEvent) error {
	p.events = append(p.events, event)
	return p.publishErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTaskService(t *testing.T) {
	t.Run("requires a task store", func(t *testing.T) {
		_, err := NewTaskService(nil, &fakePublisher{}, testLogger())
		assert.Error(t, err)
	})

	t.Run("allows a nil publisher", func(t *testing.T) {
		svc, err := NewTaskService(newFakeTaskStore(), nil, testLogger())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestTaskServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the task and publishes the created event", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		publisher := &fakePublisher{}
		svc, err := NewTaskService(taskStore, publisher, testLogger())
		require.NoError(t, err)

		payload := json.RawMessage(`{"kind":"resize","width":800}`)
		task, err := svc.Create(ctx, "Resize Image", payload)

		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Contains(t, taskStore.tasks, task.ID)

		require.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, task.ID, event.TaskID)
		assert.Equal(t, payload, event.Payload)
		assert.False(t, event.RequestedAt.Before(task.CreatedAt))
	})

	t.Run("rejects an invalid title before touching the store", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		svc, err := NewTaskService(taskStore, &fakePublisher{}, testLogger())
		require.NoError(t, err)

		_, err = svc.Create(ctx, "", nil)

		assert.ErrorIs(t, err, domain.ErrEmptyTaskTitle)
		assert.Empty(t, taskStore.tasks)
	})

	t.Run("returns the store error when the insert fails", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		taskStore.createErr = errors.New("connection reset")
		publisher := &fakePublisher{}
		svc, err := NewTaskService(taskStore, publisher, testLogger())
		require.NoError(t, err)

		_, err = svc.Create(ctx, "Doomed", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, taskStore.createErr)
		assert.Empty(t, publisher.events)
	})

	t.Run("swallows publish failures after the task is committed", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		publisher := &fakePublisher{publishErr: errors.New("broker down")}
		svc, err := NewTaskService(taskStore, publisher, testLogger())
		require.NoError(t, err)

		task, err := svc.Create(ctx, "Still Created", nil)

		require.NoError(t, err)
		assert.Contains(t, taskStore.tasks, task.ID)
	})

	t.Run("creates tasks without a publisher", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		svc, err := NewTaskService(taskStore, nil, testLogger())
		require.NoError(t, err)

		task, err := svc.Create(ctx, "Degraded Mode", nil)

		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Contains(t, taskStore.tasks, task.ID)
	})
}

func TestTaskServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a stored task", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		svc, err := NewTaskService(taskStore, nil, testLogger())
		require.NoError(t, err)

		created, err := svc.Create(ctx, "Find Me", nil)
		require.NoError(t, err)

		found, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("propagates not-found for unknown IDs", func(t *testing.T) {
		svc, err := NewTaskService(newFakeTaskStore(), nil, testLogger())
		require.NoError(t, err)

		_, err = svc.Get(ctx, uuid.New())

		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskServiceList(t *testing.T) {
	ctx := context.Background()

	t.Run("returns all stored tasks", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		svc, err := NewTaskService(taskStore, nil, testLogger())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := svc.Create(ctx, "Task", nil)
			require.NoError(t, err)
		}

		tasks, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})

	t.Run("wraps list failures", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		taskStore.listErr = errors.New("connection reset")
		svc, err := NewTaskService(taskStore, nil, testLogger())
		require.NoError(t, err)

		_, err = svc.List(ctx)

		assert.ErrorIs(t, err, taskStore.listErr)
	})
}
