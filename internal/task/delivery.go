package task

// Delivery is one message handed from the broker to this process, requiring
// an explicit acknowledgment decision after handling.
type Delivery interface {
	// Body returns the raw message body.
	Body() []byte

	// Redelivered reports whether the broker has delivered this message
	// before. Used to bound the redelivery retry path.
	Redelivered() bool

	// Ack signals the broker that the delivery was fully handled and may
	// be discarded. Deliberate drops (malformed or stale messages) are
	// acked too.
	Ack() error

	// NackRequeue returns the delivery to the queue for redelivery. This
	// is the system's retry mechanism for handlers that fail before
	// completing.
	NackRequeue() error

	// NackDiscard rejects the delivery without requeueing, routing it to
	// the dead-letter queue. Used for messages that already failed a
	// redelivery, so a poison message cannot cycle forever.
	NackDiscard() error
}
