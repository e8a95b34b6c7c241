package command

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openlims/lims/internal/platform/broker"
)

// Pool runs a fixed number of consumer workers against one queue, so
// deliveries for unrelated orders process concurrently while each handler
// still runs to completion before its message is acknowledged.
type Pool struct {
	workers int
	logger  zerolog.Logger
}

func NewPool(workers int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, logger: logger}
}

// Consume blocks until ctx is cancelled. Each worker holds its own consume
// loop; cancellation is cooperative and leaves in-flight messages
// unacknowledged for redelivery.
func (p *Pool) Consume(ctx context.Context, b broker.Broker, queue string, h broker.HandlerFunc) error {
	var wg sync.WaitGroup
	errs := make([]error, p.workers)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			err := b.Consume(ctx, queue, h)
			if err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error().Err(err).Int("worker", worker).Str("queue", queue).Msg("consumer stopped")
				errs[worker] = err
			}
		}(i)
	}

	wg.Wait()
	return errors.Join(errs...)
}
