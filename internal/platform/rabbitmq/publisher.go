package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/tasklab/taskflow/internal/events"
)

// Publisher publishes task-created events to a durable topic exchange.
// It owns no task state: it is a stateless transport adapter over a live
// AMQP channel, safe for concurrent Publish calls.
type Publisher struct {
	url        string
	exchange   string
	routingKey string
	logger     *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher creates a Publisher for the given broker URL and topology.
// No connection is established until Connect or the first publish.
func NewPublisher(url, exchange, routingKey string, logger *slog.Logger) *Publisher {
	return &Publisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.With("component", "event_publisher"),
	}
}

// Connect establishes the AMQP connection and declares the durable topic
// exchange. It is idempotent: a live connection makes it a no-op.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open broker channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %q: %w", p.exchange, err)
	}

	p.conn = conn
	p.channel = channel
	p.logger.Info("broker connection established",
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

// PublishTaskCreated serializes the event and publishes it to the exchange
// under the configured routing key with persistent delivery mode. If the
// publisher is not connected it connects first. There is no publish
// confirmation wait: durability is delegated to the durable exchange.
func (p *Publisher) PublishTaskCreated(ctx context.Context, event *events.TaskCreatedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize task created event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return err
	}

	err = p.channel.Publish(
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish task created event: %w", err)
	}

	p.logger.Debug("published task created event",
		"task_id", event.TaskID,
		"routing_key", p.routingKey)
	return nil
}

// Close releases the AMQP connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil
	p.channel = nil
	if err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}
	return nil
}
