package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tasklab/taskflow/internal/domain"
	"github.com/tasklab/taskflow/internal/events"
	"github.com/tasklab/taskflow/internal/store"
)

// Progress values attached to broadcast messages. Progress is advisory
// telemetry only: non-decreasing within one task, ending at 1.0 on the
// terminal transition.
const (
	progressProcessing = 0.1
	progressTerminal   = 1.0
)

// StatusBroadcaster publishes a status message for realtime observers.
// Failures are tolerated: a broadcast error never blocks or reverts a
// persisted transition.
type StatusBroadcaster interface {
	Publish(ctx context.Context, msg *events.TaskStatusMessage) error
}

// Processor drives the task lifecycle state machine for delivered events:
// PENDING -> PROCESSING -> {DONE, FAILED}. Each transition is persisted
// through a conditional update and then broadcast.
type Processor struct {
	store       store.TaskStore
	broadcaster StatusBroadcaster
	executor    Executor
	logger      *slog.Logger
	clock       func() time.Time
}

// NewProcessor creates a Processor. The broadcaster may be nil, in which
// case transitions are persisted but not broadcast.
func NewProcessor(
	taskStore store.TaskStore,
	broadcaster StatusBroadcaster,
	executor Executor,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:       taskStore,
		broadcaster: broadcaster,
		executor:    executor,
		logger:      logger.With("component", "task_processor"),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one delivered task-created event.
//
// A nil return means the delivery is fully handled and must be
// acknowledged, including deliberate drops of events for missing or
// already-terminal tasks. A non-nil return means the handler could not
// complete (a persistence failure mid-transition) and the delivery should
// be left unacknowledged for broker redelivery.
func (p *Processor) Process(ctx context.Context, event *events.TaskCreatedEvent) error {
	now := p.clock()

	claimed, err := p.store.ClaimProcessing(ctx, event.TaskID, now)
	if err != nil {
		return fmt.Errorf("failed to claim task %s: %w", event.TaskID, err)
	}

	if !claimed {
		return p.explainUnclaimed(ctx, event)
	}

	p.broadcast(ctx, &events.TaskStatusMessage{
		TaskID:    event.TaskID,
		Status:    domain.TaskStatusProcessing,
		Progress:  progressProcessing,
		UpdatedAt: now,
	})

	workErr := p.executor.Execute(ctx, event.Payload)

	status := domain.TaskStatusDone
	message := ""
	if workErr != nil {
		status = domain.TaskStatusFailed
		message = workErr.Error()
		p.logger.Warn("task work failed",
			"task_id", event.TaskID,
			"error", workErr)
	}

	finishedAt := p.clock()
	finished, err := p.store.Finish(ctx, event.TaskID, status, message, finishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish task %s: %w", event.TaskID, err)
	}
	if !finished {
		// The row left PROCESSING underneath us. Nothing sensible to
		// retry; drop the delivery.
		p.logger.Warn("task no longer processing at finish, dropping delivery",
			"task_id", event.TaskID,
			"status", status)
		return nil
	}

	p.broadcast(ctx, &events.TaskStatusMessage{
		TaskID:    event.TaskID,
		Status:    status,
		Progress:  progressTerminal,
		UpdatedAt: finishedAt,
		Message:   message,
	})

	p.logger.Info("task finished",
		"task_id", event.TaskID,
		"status", status)
	return nil
}

// explainUnclaimed inspects a task whose claim reported zero rows and logs
// why the delivery is being dropped. Both outcomes, a missing row and an
// already-terminal task, are deliberate drops that acknowledge the
// delivery, so this always returns nil unless the lookup itself fails.
func (p *Processor) explainUnclaimed(ctx context.Context, event *events.TaskCreatedEvent) error {
	existing, err := p.store.GetByID(ctx, event.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			p.logger.Warn("received event for unknown task, dropping delivery",
				"task_id", event.TaskID)
			return nil
		}
		return fmt.Errorf("failed to load unclaimed task %s: %w", event.TaskID, err)
	}

	// Duplicate delivery of a terminal task, or a concurrent claim already
	// in flight. Either way the event has nothing left to do.
	p.logger.Info("task not claimable, dropping delivery",
		"task_id", event.TaskID,
		"status", existing.Status)
	return nil
}

// broadcast publishes a status message, logging and swallowing failures.
func (p *Processor) broadcast(ctx context.Context, msg *events.TaskStatusMessage) {
	if p.broadcaster == nil {
		return
	}

	if err := p.broadcaster.Publish(ctx, msg); err != nil {
		p.logger.Warn("failed to broadcast status message",
			"task_id", msg.TaskID,
			"status", msg.Status,
			"error", err)
	}
}
