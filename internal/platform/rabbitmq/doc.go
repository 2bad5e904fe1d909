// Package rabbitmq provides the AMQP transport adapters for the task
// pipeline: the publisher that enqueues task-created events after a task
// row is committed, and the consumer that delivers them to the worker pool
// with explicit acknowledgment and a prefetch bound.
package rabbitmq
