package port

import (
	"context"
	"time"

	"github.com/rl1809/order-saga/internal/core/domain"
)

// OrderRepository writes are scoped compare-and-set operations, so a status
// change and a payment flip never overwrite each other.
type OrderRepository interface {
	// Create persists a new order
	Create(ctx context.Context, order domain.Order) error

	// Get retrieves an order by ID, domain.ErrNotFound if missing
	Get(ctx context.Context, id string) (domain.Order, error)

	// UpdateStatus moves the order from current to next. It reports false when
	// the stored status is no longer current, domain.ErrNotFound if missing
	UpdateStatus(ctx context.Context, id string, current, next domain.OrderStatus, at time.Time) (bool, error)

	// MarkPaid flips an unpaid order to Paid; false when already paid or missing
	MarkPaid(ctx context.Context, id string, at time.Time) (bool, error)

	// Delete removes the order while its status is still current; false otherwise
	Delete(ctx context.Context, id string, current domain.OrderStatus) (bool, error)

	// FindByUserAndProduct lists matches in store iteration order
	FindByUserAndProduct(ctx context.Context, userName, productName string) ([]domain.Order, error)

	// FindByUser lists every order of the user
	FindByUser(ctx context.Context, userName string) ([]domain.Order, error)
}
