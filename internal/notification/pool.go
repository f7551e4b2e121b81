package notification

import (
	"context"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultWorkers = 4

type worker struct {
	id     int
	pool   chan chan amqp.Delivery
	jobs   chan amqp.Delivery
	logger *slog.Logger
}

func newWorker(id int, pool chan chan amqp.Delivery, logger *slog.Logger) *worker {
	return &worker{
		id:     id,
		pool:   pool,
		jobs:   make(chan amqp.Delivery),
		logger: logger,
	}
}

// start registers the worker as idle, handles one delivery, and repeats
// until ctx is done.
func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, handle func(amqp.Delivery)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			w.pool <- w.jobs

			select {
			case d := <-w.jobs:
				handle(d)
			case <-ctx.Done():
				w.logger.Debug("notification worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

// Drain hands deliveries to a fixed set of workers until the channel closes
// or ctx is cancelled. In-flight deliveries finish before Drain returns.
func (c *Consumer) Drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	workers := c.workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	poolCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	pool := make(chan chan amqp.Delivery, workers)
	for i := 0; i < workers; i++ {
		newWorker(i, pool, c.logger).start(poolCtx, &wg, func(d amqp.Delivery) { c.Handle(ctx, d) })
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			select {
			case jobs := <-pool:
				select {
				case jobs <- d:
				case <-ctx.Done():
					return ctx.Err()
				}
			case <-ctx.Done():
				// unacked deliveries are redelivered once the channel closes
				return ctx.Err()
			}
		}
	}
}
