package port

import (
	"context"

	"github.com/rl1809/order-saga/internal/core/domain"
)

type AccountRepository interface {
	// Get returns the account with its active products in insertion order
	Get(ctx context.Context, userName string) (domain.Account, error)

	// AppendProduct adds one entry to the end of the active list
	AppendProduct(ctx context.Context, userName, productName string) error

	// RemoveProduct deletes the first matching entry, domain.ErrNotFound if absent
	RemoveProduct(ctx context.Context, userName, productName string) error

	// Save creates the account if missing and replaces its active list
	Save(ctx context.Context, account domain.Account) error
}
