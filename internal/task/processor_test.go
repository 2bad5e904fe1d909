package task

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

// fakeTaskStore is an in-memory store.TaskStore that mirrors the conditional
// update semantics of the real Postgres store.
type fakeTaskStore struct {
	tasks map[uuid.UUID]*domain.Task

	claimErr  error
	finishErr error
	getErr    error

	claimCalls  int
	finishCalls int
}

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	return s
}

func (s *fakeTaskStore) Create(_ context.Context, task *domain.Task) error {
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *fakeTaskStore) List(_ context.Context) ([]*domain.Task, error) {
	result := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		result = append(result, &copied)
	}
	return result, nil
}

func (s *fakeTaskStore) ClaimProcessing(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.claimCalls++
	if s.claimErr != nil {
		return false, s.claimErr
	}
	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskStatusPending {
		return false, nil
	}
	task.Status = domain.TaskStatusProcessing
	task.UpdatedAt = now
	return true, nil
}

func (s *fakeTaskStore) Finish(_ context.Context, id uuid.UUID, status domain.TaskStatus, message string, now time.Time) (bool, error) {
	s.finishCalls++
	if s.finishErr != nil {
		return false, s.finishErr
	}
	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskStatusProcessing {
		return false, nil
	}
	task.Status = status
	task.Message = message
	task.UpdatedAt = now
	finished := now
	task.FinishedAt = &finished
	return true, nil
}

// fakeBroadcaster records every published status message.
type fakeBroadcaster struct {
	messages   []*events.TaskStatusMessage
	publishErr error
}

func (b *fakeBroadcaster) Publish(_ context.Context, msg *events.TaskStatusMessage) error {
	b.messages = append(b.messages, msg)
	return b.publishErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask("Process Me", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	return task
}

func eventFor(task *domain.Task) *events.TaskCreatedEvent {
	return &events.TaskCreatedEvent{
		TaskID:      task.ID,
		Payload:     task.Payload,
		RequestedAt: task.CreatedAt,
	}
}

func TestProcessorProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("successful work finishes the task as DONE", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)
		broadcaster := &fakeBroadcaster{}
		var executed json.RawMessage
		executor := ExecutorFunc(func(_ context.Context, payload json.RawMessage) error {
			executed = payload
			return nil
		})

		processor := NewProcessor(taskStore, broadcaster, executor, testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.NoError(t, err)
		assert.Equal(t, task.Payload, executed)

		stored := taskStore.tasks[task.ID]
		assert.Equal(t, domain.TaskStatusDone, stored.Status)
		assert.Empty(t, stored.Message)
		require.NotNil(t, stored.FinishedAt)

		require.Len(t, broadcaster.messages, 2)
		assert.Equal(t, domain.TaskStatusProcessing, broadcaster.messages[0].Status)
		assert.Equal(t, 0.1, broadcaster.messages[0].Progress)
		assert.Equal(t, domain.TaskStatusDone, broadcaster.messages[1].Status)
		assert.Equal(t, 1.0, broadcaster.messages[1].Progress)
		assert.True(t, broadcaster.messages[0].Progress <= broadcaster.messages[1].Progress)
	})

	t.Run("failed work finishes the task as FAILED with the error message", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)
		broadcaster := &fakeBroadcaster{}
		executor := ExecutorFunc(func(context.Context, json.RawMessage) error {
			return errors.New("work exploded")
		})

		processor := NewProcessor(taskStore, broadcaster, executor, testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.NoError(t, err)

		stored := taskStore.tasks[task.ID]
		assert.Equal(t, domain.TaskStatusFailed, stored.Status)
		assert.Equal(t, "work exploded", stored.Message)
		require.NotNil(t, stored.FinishedAt)

		require.Len(t, broadcaster.messages, 2)
		terminal := broadcaster.messages[1]
		assert.Equal(t, domain.TaskStatusFailed, terminal.Status)
		assert.Equal(t, 1.0, terminal.Progress)
		assert.Equal(t, "work exploded", terminal.Message)
	})

	t.Run("drops events for unknown tasks without error", func(t *testing.T) {
		taskStore := newFakeTaskStore()
		executor := ExecutorFunc(func(context.Context, json.RawMessage) error {
			t.Fatal("executor must not run for an unknown task")
			return nil
		})

		processor := NewProcessor(taskStore, nil, executor, testLogger())
		err := processor.Process(ctx, &events.TaskCreatedEvent{TaskID: uuid.New()})

		require.NoError(t, err)
	})

	t.Run("drops duplicate deliveries of a terminal task", func(t *testing.T) {
		task := pendingTask(t)
		now := time.Now().UTC()
		require.NoError(t, task.Transition(domain.TaskStatusProcessing, now))
		require.NoError(t, task.Transition(domain.TaskStatusDone, now))
		finishedAt := *task.FinishedAt

		taskStore := newFakeTaskStore(task)
		broadcaster := &fakeBroadcaster{}
		executor := ExecutorFunc(func(context.Context, json.RawMessage) error {
			t.Fatal("executor must not run for a terminal task")
			return nil
		})

		processor := NewProcessor(taskStore, broadcaster, executor, testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, task.Status)
		assert.Equal(t, finishedAt, *task.FinishedAt)
		assert.Empty(t, broadcaster.messages)
		assert.Zero(t, taskStore.finishCalls)
	})

	t.Run("returns an error when the claim fails", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)
		taskStore.claimErr = errors.New("connection reset")

		processor := NewProcessor(taskStore, nil, noopExecutor(), testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.Error(t, err)
		assert.ErrorIs(t, err, taskStore.claimErr)
	})

	t.Run("returns an error when persisting the terminal state fails", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)
		taskStore.finishErr = errors.New("connection reset")

		processor := NewProcessor(taskStore, nil, noopExecutor(), testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.Error(t, err)
		assert.ErrorIs(t, err, taskStore.finishErr)
	})

	t.Run("tolerates broadcast failures", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)
		broadcaster := &fakeBroadcaster{publishErr: errors.New("redis down")}

		processor := NewProcessor(taskStore, broadcaster, noopExecutor(), testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, taskStore.tasks[task.ID].Status)
	})

	t.Run("works without a broadcaster", func(t *testing.T) {
		task := pendingTask(t)
		taskStore := newFakeTaskStore(task)

		processor := NewProcessor(taskStore, nil, noopExecutor(), testLogger())
		err := processor.Process(ctx, eventFor(task))

		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, taskStore.tasks[task.ID].Status)
	})
}

func noopExecutor() Executor {
	return ExecutorFunc(func(context.Context, json.RawMessage) error { return nil })
}
