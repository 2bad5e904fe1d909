package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tasklab/taskflow/internal/events"
)

// WorkerPool manages a pool of worker goroutines that drain broker
// deliveries and run them through the processor. The broker's prefetch
// bound caps how many deliveries are outstanding at once; the pool decides
// the acknowledgment for each one after the processor returns.
type WorkerPool struct {
	// deliveries is the broker-fed channel of messages to handle
	deliveries <-chan Delivery

	// processor drives the task lifecycle for each decoded event
	processor *Processor

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to
	// start. If zero or negative, defaults to 1.
	WorkerCount int
}

// NewWorkerPool creates a new worker pool reading from the given delivery
// channel.
func NewWorkerPool(
	deliveries <-chan Delivery,
	processor *Processor,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	return &WorkerPool{
		deliveries:  deliveries,
		processor:   processor,
		workerCount: workerCount,
		logger:      logger.With("component", "worker_pool"),
	}
}

// Start launches the worker goroutines. Workers run until the delivery
// channel closes or the context is canceled; an in-flight delivery is
// always handled to completion before its worker exits.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Wait blocks until every worker goroutine has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker consumes deliveries until shutdown.
func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		case delivery, ok := <-p.deliveries:
			if !ok {
				p.logger.Debug("delivery channel closed, stopping worker",
					"worker_id", id)
				return
			}
			p.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery decodes one delivery, runs it through the processor, and
// issues the acknowledgment:
//   - malformed body: logged and acked, a poison message must not be
//     retried forever
//   - processor success (including deliberate drops): acked
//   - processor failure on a first delivery: nacked with requeue, so the
//     broker redelivers it
//   - processor failure on a redelivered message: nacked without requeue,
//     routing it to the dead-letter queue
func (p *WorkerPool) handleDelivery(ctx context.Context, delivery Delivery) {
	var event events.TaskCreatedEvent
	if err := json.Unmarshal(delivery.Body(), &event); err != nil {
		p.logger.Error("malformed task created event, dropping delivery",
			"error", err)
		p.acknowledge(delivery.Ack, "ack")
		return
	}

	if err := p.processor.Process(ctx, &event); err != nil {
		if delivery.Redelivered() {
			p.logger.Error("redelivered event failed again, dead-lettering",
				"task_id", event.TaskID,
				"error", err)
			p.acknowledge(delivery.NackDiscard, "nack discard")
			return
		}

		p.logger.Warn("event handling failed, requeueing for redelivery",
			"task_id", event.TaskID,
			"error", err)
		p.acknowledge(delivery.NackRequeue, "nack requeue")
		return
	}

	p.acknowledge(delivery.Ack, "ack")
}

// acknowledge issues one acknowledgment call, logging a failure. A failed
// ack leaves the delivery outstanding; the broker redelivers it when the
// channel drops, which the terminal-state guard absorbs.
func (p *WorkerPool) acknowledge(fn func() error, kind string) {
	if err := fn(); err != nil {
		p.logger.Error("failed to acknowledge delivery",
			"kind", kind,
			"error", err)
	}
}
