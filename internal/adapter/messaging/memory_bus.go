package messaging

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/metrics"
	"github.com/rl1809/order-saga/internal/port"
)

var ErrBusClosed = errors.New("bus closed")

const defaultBuffer = 256

type subscription struct {
	channel string
	handler port.Handler
	queue   chan domain.Event
}

// MemoryBus is an in-process Publisher/Subscriber. Each subscription owns a
// buffered queue drained by one goroutine, so delivery is ordered per
// subscription and unordered across channels.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool

	inflight sync.WaitGroup
	workers  sync.WaitGroup
	buffer   int
	logger   *zap.Logger
}

func NewMemoryBus(buffer int, logger *zap.Logger) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{
		subs:   make(map[string][]*subscription),
		buffer: buffer,
		logger: logger,
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler port.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	sub := &subscription{
		channel: channel,
		handler: handler,
		queue:   make(chan domain.Event, b.buffer),
	}
	b.subs[channel] = append(b.subs[channel], sub)

	b.workers.Add(1)
	go b.run(ctx, sub)
	return nil
}

func (b *MemoryBus) run(ctx context.Context, sub *subscription) {
	defer b.workers.Done()

	for ev := range sub.queue {
		b.deliver(ctx, sub, ev)
	}
}

func (b *MemoryBus) deliver(ctx context.Context, sub *subscription, ev domain.Event) {
	defer b.inflight.Done()

	// a cancelled subscription keeps draining its queue without delivering
	if ctx.Err() != nil {
		metrics.EventsConsumedTotal.WithLabelValues(sub.channel, "dropped").Inc()
		return
	}

	if err := sub.handler(ctx, ev); err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(sub.channel, "error").Inc()
		b.logger.Error("event handler failed", zap.String("channel", sub.channel),
			zap.String("event_id", ev.ID), zap.String("order_id", ev.OrderID), zap.Error(err))
		return
	}
	metrics.EventsConsumedTotal.WithLabelValues(sub.channel, "ok").Inc()
}

// Publish enqueues the event for every subscriber of channel. It blocks while
// a subscriber queue is full.
func (b *MemoryBus) Publish(ctx context.Context, channel string, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.subs[channel] {
		b.inflight.Add(1)
		select {
		case sub.queue <- event:
		case <-ctx.Done():
			b.inflight.Done()
			metrics.EventsPublishedTotal.WithLabelValues(channel, "error").Inc()
			return ctx.Err()
		}
	}
	metrics.EventsPublishedTotal.WithLabelValues(channel, "ok").Inc()
	return nil
}

// Wait blocks until every published event, including events published by
// handlers while waiting, has been handled.
func (b *MemoryBus) Wait() {
	b.inflight.Wait()
}

// Close stops accepting events, drains queued ones and stops the workers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.workers.Wait()
	return nil
}
