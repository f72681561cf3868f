package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"funnel_backend/platform/logger"
)

// NamedHandler lets a subscriber identify itself in logs.
type NamedHandler interface {
	Handler
	Name() string
}

type subscription struct {
	name    string
	handler Handler
}

type job struct {
	ctx   context.Context
	event Event
	sub   subscription
}

// InMemoryBus runs every (event, handler) pair as its own job on a fixed pool
// of workers fed by a bounded channel. Handler errors and panics are logged
// and never reach the publisher.
type InMemoryBus struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]subscription
	closed   bool

	jobs chan job
	wg   sync.WaitGroup
}

// BusOption customizes an InMemoryBus.
type BusOption func(*busOptions)

type busOptions struct {
	workers   int
	queueSize int
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) BusOption {
	return func(o *busOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets the job channel capacity.
func WithQueueSize(n int) BusOption {
	return func(o *busOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// NewInMemoryBus starts the worker pool.
func NewInMemoryBus(log *logger.Logger, opts ...BusOption) *InMemoryBus {
	o := busOptions{workers: 4, queueSize: 128}
	for _, opt := range opts {
		opt(&o)
	}

	b := &InMemoryBus{
		log:      log,
		handlers: make(map[string][]subscription),
		jobs:     make(chan job, o.queueSize),
	}

	b.wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go b.worker()
	}
	return b
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	name := fmt.Sprintf("%T", handler)
	if named, ok := handler.(NamedHandler); ok {
		name = named.Name()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], subscription{name: name, handler: handler})
}

// Publish enqueues one job per subscribed handler and returns immediately.
// Jobs run on a context detached from ctx's cancellation so the originating
// request finishing does not abort them. A full queue drops the job with an error log.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	detached := context.WithoutCancel(ctx)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.log.Warn("event bus closed, dropping event", "event", event.EventName())
		return
	}

	for _, sub := range b.handlers[event.EventName()] {
		select {
		case b.jobs <- job{ctx: detached, event: event, sub: sub}:
		default:
			b.log.Error("event queue full, dropping job",
				"event", event.EventName(),
				"handler", sub.name,
			)
		}
	}
}

// Close stops accepting events and waits for queued jobs to finish or ctx to expire.
func (b *InMemoryBus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.jobs)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining event bus: %w", ctx.Err())
	}
}

func (b *InMemoryBus) worker() {
	defer b.wg.Done()
	for j := range b.jobs {
		if err := b.run(j.ctx, j.event, j.sub); err != nil {
			b.log.Error("event handler failed",
				"event", j.event.EventName(),
				"handler", j.sub.name,
				"error", err,
			)
		}
	}
}

func (b *InMemoryBus) run(ctx context.Context, event Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				"event", event.EventName(),
				"handler", sub.name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler %s panicked: %v", sub.name, r)
		}
	}()
	return sub.handler.Handle(ctx, event)
}

var _ Bus = (*InMemoryBus)(nil)
