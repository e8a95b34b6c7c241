package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBroker binds the Broker capability to a RabbitMQ-compatible server.
// Queues are declared durable and messages published persistent, so a broker
// restart does not lose unacknowledged work.
type AMQPBroker struct {
	conn     *amqp.Connection
	prefetch int

	mu       sync.Mutex
	declared map[string]bool
	pubCh    *amqp.Channel
	closed   bool
}

// DialAMQP connects to the broker at url. prefetch bounds how many
// unacknowledged deliveries each consumer channel holds; values below 1 fall
// back to 1 so a stalled handler cannot buffer the whole queue.
func DialAMQP(url string, prefetch int) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	if prefetch < 1 {
		prefetch = 1
	}
	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	return &AMQPBroker{
		conn:     conn,
		prefetch: prefetch,
		declared: make(map[string]bool),
		pubCh:    pubCh,
	}, nil
}

func (b *AMQPBroker) declare(ch *amqp.Channel, queue string) error {
	b.mu.Lock()
	done := b.declared[queue]
	b.mu.Unlock()
	if done {
		return nil
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	b.mu.Lock()
	b.declared[queue] = true
	b.mu.Unlock()
	return nil
}

// Publish sends a persistent message to the named durable queue via the
// default exchange.
func (b *AMQPBroker) Publish(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	ch := b.pubCh
	b.mu.Unlock()

	if err := b.declare(ch, queue); err != nil {
		return err
	}
	err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// Consume opens a dedicated channel with manual acknowledgement and delivers
// messages to h. A handler error nacks with requeue; cancellation closes the
// channel, which requeues everything still unacknowledged.
func (b *AMQPBroker) Consume(ctx context.Context, queue string, h HandlerFunc) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := b.declare(ch, queue); err != nil {
		return err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag, server-generated
		false, // autoAck off: ack only after the handler succeeds
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume %s: delivery channel closed", queue)
			}
			if err := h(ctx, d.Body); err != nil {
				// requeue for redelivery; at-least-once
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Close()
}
