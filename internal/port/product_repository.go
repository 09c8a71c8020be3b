package port

import (
	"context"

	"github.com/rl1809/order-saga/internal/core/domain"
)

type ProductRepository interface {
	// Get returns the product or domain.ErrNotFound
	Get(ctx context.Context, name string) (domain.Product, error)

	// Reserve atomically decrements quantity by one if it is positive.
	// Returns domain.ErrNotFound or domain.ErrOutOfStock without changing anything.
	Reserve(ctx context.Context, name string) (domain.Product, error)

	// Release atomically increments quantity by one
	Release(ctx context.Context, name string) (domain.Product, error)

	// AddQuantity atomically adds quantity units (restock)
	AddQuantity(ctx context.Context, name string, quantity int) (domain.Product, error)

	// Save creates or replaces the product
	Save(ctx context.Context, product domain.Product) error
}
