package port

import (
	"context"

	"github.com/rl1809/order-saga/internal/core/domain"
)

// Handler consumes one event. Returned errors are logged by the transport and
// never reach the request that caused the event.
type Handler func(ctx context.Context, event domain.Event) error

type Publisher interface {
	Publish(ctx context.Context, channel string, event domain.Event) error
}

type Subscriber interface {
	// Subscribe starts delivering events of channel to handler until ctx is done
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

type IdempotencyStore interface {
	// MarkSeen records key and reports whether it was recorded before
	MarkSeen(ctx context.Context, key string) (bool, error)
}
