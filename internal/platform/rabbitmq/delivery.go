package rabbitmq

import (
	"github.com/streadway/amqp"

	"github.com/tasklab/taskflow/internal/task"
)

// amqpDelivery adapts an amqp.Delivery to the task.Delivery interface the
// worker pool consumes.
type amqpDelivery struct {
	d amqp.Delivery
}

func (a *amqpDelivery) Body() []byte {
	return a.d.Body
}

func (a *amqpDelivery) Redelivered() bool {
	return a.d.Redelivered
}

func (a *amqpDelivery) Ack() error {
	return a.d.Ack(false)
}

func (a *amqpDelivery) NackRequeue() error {
	return a.d.Nack(false, true)
}

func (a *amqpDelivery) NackDiscard() error {
	return a.d.Nack(false, false)
}

// wrapDeliveries forwards amqp deliveries onto a task.Delivery channel.
// The output channel closes when the broker channel closes.
func wrapDeliveries(in <-chan amqp.Delivery) <-chan task.Delivery {
	out := make(chan task.Delivery)
	go func() {
		defer close(out)
		for d := range in {
			out <- &amqpDelivery{d: d}
		}
	}()
	return out
}
