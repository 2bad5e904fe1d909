package task

import (
	"context"
	"encoding/json"
	"time"
)

// Executor runs the actual work for a task. The payload is the opaque
// document supplied at task creation; only the executor interprets it.
// A returned error is recorded as the task's failure message, not
// propagated as a process-level error.
type Executor interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, payload json.RawMessage) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// SimulatedExecutor stands in for a real workload by sleeping for a fixed
// duration. It respects context cancellation during the sleep.
type SimulatedExecutor struct {
	Delay time.Duration
}

// Execute sleeps for the configured delay and succeeds.
func (e *SimulatedExecutor) Execute(ctx context.Context, _ json.RawMessage) error {
	delay := e.Delay
	if delay <= 0 {
		delay = time.Second
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
