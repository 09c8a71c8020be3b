package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-saga/internal/core/domain"
)

// CatalogClient is the coordinator's synchronous view of the catalog store.
type CatalogClient interface {
	Reserve(ctx context.Context, productName string) (domain.Product, error)
	Release(ctx context.Context, productName string) (domain.Product, error)
	PriceOf(ctx context.Context, productName string) (decimal.Decimal, error)
	ValidateAvailability(ctx context.Context, productName string) (domain.Product, error)
}

// AccountClient is the coordinator's synchronous view of the account store.
type AccountClient interface {
	ValidateUserOnly(ctx context.Context, userName string) (domain.Account, error)
	ValidateMembership(ctx context.Context, userName, productName string) error
	ListActiveProducts(ctx context.Context, userName string) ([]string, error)
	AppendProduct(ctx context.Context, userName, productName string) error
	RemoveProduct(ctx context.Context, userName, productName string) error
}
