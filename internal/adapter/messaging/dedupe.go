package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/metrics"
	"github.com/rl1809/order-saga/internal/port"
)

// Deduplicate skips events whose ID was already handled on channel. Events
// without an ID are always delivered.
func Deduplicate(store port.IdempotencyStore, channel string, logger *zap.Logger, next port.Handler) port.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		if ev.ID == "" {
			return next(ctx, ev)
		}

		seen, err := store.MarkSeen(ctx, Key(channel, ev.ID))
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if seen {
			metrics.EventsConsumedTotal.WithLabelValues(channel, "duplicate").Inc()
			logger.Info("duplicate event skipped", zap.String("channel", channel), zap.String("event_id", ev.ID))
			return nil
		}
		return next(ctx, ev)
	}
}

func Key(channel, eventID string) string {
	return "idem:" + channel + ":" + eventID
}

// SubscribeOnce subscribes handler behind Deduplicate.
func SubscribeOnce(ctx context.Context, sub port.Subscriber, store port.IdempotencyStore, channel string, logger *zap.Logger, handler port.Handler) error {
	if err := sub.Subscribe(ctx, channel, Deduplicate(store, channel, logger, handler)); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return nil
}
