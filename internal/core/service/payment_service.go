package service

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/port"
)

const (
	MsgProductNotInList    = "Product is not available in Order List"
	MsgStatusUpdateFailed  = "Something went wrong while updating status!"
	MsgPaymentDueOnProduct = "Payment is due for the User Product."
)

// OrderWorkflow is the subset of the coordinator the payment flow drives.
type OrderWorkflow interface {
	FirstUnpaidOrder(ctx context.Context, userName, productName string) (domain.Order, error)
	MarkOneOrderPaid(ctx context.Context, userName, productName string) (*domain.Order, error)
	AdvanceStatus(ctx context.Context, orderID string) (domain.Transition, error)
}

type PaymentService struct {
	accounts port.AccountClient
	orders   OrderWorkflow
	logger   *zap.Logger
}

func NewPaymentService(accounts port.AccountClient, orders OrderWorkflow, logger *zap.Logger) *PaymentService {
	return &PaymentService{accounts: accounts, orders: orders, logger: logger}
}

// SingleProductPayment pays the first unpaid order of one product and ships
// it. Steps are forward-only: nothing already applied is undone on failure.
func (s *PaymentService) SingleProductPayment(ctx context.Context, userName, productName string) error {
	products, err := s.accounts.ListActiveProducts(ctx, userName)
	if err != nil {
		return err
	}
	if !slices.Contains(products, productName) {
		return domain.NotFound(MsgProductNotInList)
	}

	order, err := s.orders.FirstUnpaidOrder(ctx, userName, productName)
	if err != nil {
		return err
	}

	if _, err := s.orders.MarkOneOrderPaid(ctx, userName, productName); err != nil {
		s.logger.Error("mark paid failed", zap.String("order_id", order.ID), zap.Error(err))
		return domain.Upstream(MsgStatusUpdateFailed)
	}

	// The payment is already recorded here, yet the reply still says it is due.
	if _, err := s.orders.AdvanceStatus(ctx, order.ID); err != nil {
		s.logger.Warn("advance after payment failed", zap.String("order_id", order.ID), zap.Error(err))
		return domain.NewError(domain.ErrPaymentRequired, MsgPaymentDueOnProduct)
	}

	s.logger.Info("payment successful", zap.String("order_id", order.ID),
		zap.String("user", userName), zap.String("product", productName))
	return nil
}
