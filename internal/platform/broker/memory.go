package broker

import (
	"context"
	"sync"
)

// message tracks one queued body and how many times it has been delivered.
type message struct {
	body       []byte
	deliveries int
}

// MemoryBroker is an in-process Broker with the same acknowledgement contract
// as the AMQP binding: a message stays on the queue until a handler returns
// nil, and a handler error requeues it. Messages survive consumer restarts
// within the process but not process restarts; it exists for tests and for
// running all three services in one process during development.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string][]*message
	wake   map[string]chan struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string][]*message),
		wake:   make(map[string]chan struct{}),
	}
}

func (b *MemoryBroker) wakeCh(queue string) chan struct{} {
	ch, ok := b.wake[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		b.wake[queue] = ch
	}
	return ch
}

// Publish enqueues the body on the named queue and wakes any blocked consumer.
func (b *MemoryBroker) Publish(_ context.Context, queue string, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	b.queues[queue] = append(b.queues[queue], &message{body: cp})
	ch := b.wakeCh(queue)
	b.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
	return nil
}

// take removes and returns the head message, or nil when the queue is empty.
func (b *MemoryBroker) take(queue string) *message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[queue]
	if len(q) == 0 {
		return nil
	}
	m := q[0]
	b.queues[queue] = q[1:]
	return m
}

// requeue puts an unacknowledged message back at the tail, so redelivery
// order differs from publish order — consumers must not rely on ordering.
func (b *MemoryBroker) requeue(queue string, m *message) {
	b.mu.Lock()
	b.queues[queue] = append(b.queues[queue], m)
	ch := b.wakeCh(queue)
	b.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}

// Consume delivers queued messages to h until ctx is cancelled. A message is
// acknowledged (dropped) only when h returns nil; otherwise it is requeued.
// Cancellation between delivery and acknowledgement also requeues, matching
// the connection-loss behavior of a real broker.
func (b *MemoryBroker) Consume(ctx context.Context, queue string, h HandlerFunc) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	ch := b.wakeCh(queue)
	b.mu.Unlock()

	for {
		m := b.take(queue)
		if m == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}

		m.deliveries++
		if err := h(ctx, m.body); err != nil {
			b.requeue(queue, m)
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}
		// acked: message dropped

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Depth reports how many messages are waiting on the named queue.
func (b *MemoryBroker) Depth(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[queue])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
