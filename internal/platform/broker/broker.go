// Package broker defines the durable publish/consume capability that decouples
// the instrument generator, the ingestion tier, and the laboratory core.
// Delivery is at-least-once: a message is acknowledged only after its handler
// returns nil, and a failed or interrupted handler causes redelivery. No
// ordering guarantee is given, even for messages of the same order.
package broker

import (
	"context"
	"errors"
)

// HandlerFunc processes one delivered message body. Returning nil acknowledges
// the message; returning an error requeues it for redelivery. Handlers must be
// idempotent or dedupe by a natural key, because redelivery after a crash can
// repeat a message whose side effects already happened.
type HandlerFunc func(ctx context.Context, body []byte) error

// Broker is the durable queue capability. Production binds the AMQP client;
// tests and single-process development bind the in-memory implementation.
type Broker interface {
	// Publish enqueues a durable message on the named queue.
	Publish(ctx context.Context, queue string, body []byte) error

	// Consume blocks, delivering messages from the named queue to h until ctx
	// is cancelled. Acknowledgement is tied to h's return value.
	Consume(ctx context.Context, queue string, h HandlerFunc) error

	// Close releases the underlying connection.
	Close() error
}

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker: closed")
