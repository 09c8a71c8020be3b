package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/metrics"
	"github.com/rl1809/order-saga/internal/port"
)

const (
	MsgInvalidProduct       = "Invalid Product"
	MsgProductUnavailable   = "Product is not available at the movement"
	MsgProductDoesNotExists = "Product doesn't exists"
	MsgInvalidQuantity      = "Quantity must be positive"
)

// CatalogService owns stock count and price per product.
type CatalogService struct {
	products port.ProductRepository
	logger   *zap.Logger
}

func NewCatalogService(products port.ProductRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// Reserve takes one unit of stock. It never rolls itself back; a caller whose
// later step fails must call Release.
func (s *CatalogService) Reserve(ctx context.Context, productName string) (domain.Product, error) {
	p, err := s.products.Reserve(ctx, productName)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.ReservationsTotal.WithLabelValues("not_found").Inc()
		return domain.Product{}, domain.NotFound(MsgInvalidProduct)
	case errors.Is(err, domain.ErrOutOfStock):
		metrics.ReservationsTotal.WithLabelValues("out_of_stock").Inc()
		return domain.Product{}, domain.NewError(domain.ErrOutOfStock, MsgProductUnavailable)
	case err != nil:
		metrics.ReservationsTotal.WithLabelValues("error").Inc()
		return domain.Product{}, err
	}

	metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
	s.logger.Debug("reserved product", zap.String("product", productName), zap.Int("remaining", p.Quantity))
	return p, nil
}

func (s *CatalogService) Release(ctx context.Context, productName string) (domain.Product, error) {
	p, err := s.products.Release(ctx, productName)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, domain.NotFound(MsgInvalidProduct)
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *CatalogService) PriceOf(ctx context.Context, productName string) (decimal.Decimal, error) {
	p, err := s.products.Get(ctx, productName)
	if errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, domain.NotFound(MsgProductDoesNotExists)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

func (s *CatalogService) ValidateAvailability(ctx context.Context, productName string) (domain.Product, error) {
	p, err := s.GetProduct(ctx, productName)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.Available() {
		return p, domain.NewError(domain.ErrOutOfStock, MsgProductUnavailable)
	}
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, productName string) (domain.Product, error) {
	p, err := s.products.Get(ctx, productName)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, domain.NotFound(MsgInvalidProduct)
	}
	return p, err
}

// Restock adds quantity units to an existing product.
func (s *CatalogService) Restock(ctx context.Context, productName string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, domain.NewError(domain.ErrValidation, MsgInvalidQuantity)
	}
	p, err := s.products.AddQuantity(ctx, productName, quantity)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, domain.NotFound(MsgInvalidProduct)
	}
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("restocked product", zap.String("product", productName), zap.Int("added", quantity))
	return p, nil
}

// HandleStockRelease consumes stock-release events.
func (s *CatalogService) HandleStockRelease(ctx context.Context, ev domain.Event) error {
	p, err := s.Release(ctx, ev.ProductName)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("stock release for unknown product dropped",
			zap.String("order_id", ev.OrderID), zap.String("product", ev.ProductName))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("released product", zap.String("order_id", ev.OrderID),
		zap.String("product", p.Name), zap.Int("quantity", p.Quantity))
	return nil
}
