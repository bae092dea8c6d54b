// Package worker runs per-item feedback processing off the request path.
// Delivery is best-effort: items are processed while the process lives, with
// no durable retry.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/signalboard/signalboard/internal/logging"
)

// Handler processes one feedback item by id.
type Handler func(ctx context.Context, feedbackID string) error

// Pool fans queued feedback ids out to a fixed set of workers. One item's
// failure is logged and never stops the others.
type Pool struct {
	handler Handler
	queue   chan string
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool builds a pool with the given worker count and queue capacity and
// starts its workers.
func NewPool(workers, queueSize int, handler Handler) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		handler: handler,
		queue:   make(chan string, queueSize),
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, p.ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		p.group.Go(p.run)
	}
	logging.Info("worker", "started %d workers (queue %d)", workers, queueSize)
	return p
}

func (p *Pool) run() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case id := <-p.queue:
			if err := p.handler(p.ctx, id); err != nil {
				logging.Error("worker", "processing %s: %v", id, err)
			}
		}
	}
}

// Enqueue schedules a feedback id and returns immediately. When the queue is
// full the send is completed from a spawned goroutine so callers never block.
func (p *Pool) Enqueue(id string) {
	select {
	case p.queue <- id:
	default:
		logging.Debug("worker", "queue full, deferring %s", id)
		go func() {
			select {
			case p.queue <- id:
			case <-p.ctx.Done():
			}
		}()
	}
}

// EnqueueAll schedules a batch of ids.
func (p *Pool) EnqueueAll(ids []string) {
	for _, id := range ids {
		p.Enqueue(id)
	}
}

// Close stops the workers. Items still queued are dropped.
func (p *Pool) Close() error {
	p.cancel()
	return p.group.Wait()
}
