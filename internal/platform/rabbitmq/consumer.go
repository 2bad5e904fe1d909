package rabbitmq

import (
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/tasklab/taskflow/internal/task"
)

// deadLetterSuffix names the dead-letter resources declared alongside the
// main queue. Poison deliveries that fail after a redelivery are routed
// there instead of cycling forever.
const deadLetterSuffix = ".dead"

// Consumer subscribes to the durable queue bound to the task-created
// routing key and hands deliveries to the worker pool. Acknowledgment is
// explicit: the pool acks or nacks each delivery after handling it.
type Consumer struct {
	url        string
	exchange   string
	queue      string
	routingKey string
	logger     *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConsumer creates a Consumer for the given broker URL and topology.
func NewConsumer(url, exchange, queue, routingKey string, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:        url,
		exchange:   exchange,
		queue:      queue,
		routingKey: routingKey,
		logger:     logger.With("component", "queue_consumer"),
	}
}

// Connect establishes the connection, declares the durable topic exchange,
// the durable queue (with its dead-letter pair) and the binding, and sets
// the prefetch bound, the maximum number of unacknowledged deliveries this
// process holds at once. Idempotent on a live connection.
func (c *Consumer) Connect(prefetch int) error {
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open broker channel: %w", err)
	}

	if err := c.declareTopology(channel); err != nil {
		_ = conn.Close()
		return err
	}

	err = channel.Qos(
		prefetch, // prefetch count
		0,        // prefetch size
		false,    // global
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.logger.Info("broker consumer connected",
		"queue", c.queue,
		"routing_key", c.routingKey,
		"prefetch", prefetch)
	return nil
}

// declareTopology declares the exchange, dead-letter pair, main queue and
// binding. Declarations are idempotent on the broker side.
func (c *Consumer) declareTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		c.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", c.exchange, err)
	}

	deadExchange := c.exchange + deadLetterSuffix
	deadQueue := c.queue + deadLetterSuffix

	err = channel.ExchangeDeclare(deadExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange %q: %w", deadExchange, err)
	}

	_, err = channel.QueueDeclare(
		deadQueue, // name
		true,      // durable
		false,     // auto-delete
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue %q: %w", deadQueue, err)
	}

	if err := channel.QueueBind(deadQueue, c.routingKey, deadExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue %q: %w", deadQueue, err)
	}

	_, err = channel.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // auto-delete
		false,   // exclusive
		false,   // no-wait
		amqp.Table{
			"x-dead-letter-exchange": deadExchange,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", c.queue, err)
	}

	if err := channel.QueueBind(c.queue, c.routingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", c.queue, err)
	}

	return nil
}

// Consume registers this process as a consumer and returns the delivery
// channel for the worker pool. Acknowledgment is explicit (no auto-ack): a
// delivery stays outstanding until the pool acks or nacks it, and an
// unacknowledged delivery is redelivered by the broker when the channel
// drops. The returned channel closes when the connection closes.
func (c *Consumer) Consume() (<-chan task.Delivery, error) {
	if c.channel == nil {
		return nil, fmt.Errorf("consumer is not connected")
	}

	deliveries, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag (broker-assigned)
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from %q: %w", c.queue, err)
	}

	return wrapDeliveries(deliveries), nil
}

// Close releases the AMQP connection. In-flight deliveries that were not
// acknowledged return to the queue.
func (c *Consumer) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.channel = nil
	if err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}
	return nil
}
