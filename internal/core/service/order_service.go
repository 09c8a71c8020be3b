package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/metrics"
	"github.com/rl1809/order-saga/internal/port"
)

const (
	MsgUserDoesNotExist  = "User doesn't exists"
	MsgDetailsMismatch   = "Details doesn't match"
	MsgNoSuchOrder       = "No Such Order is available"
	MsgOrderNotFound     = "Order not found"
	maxConcurrentLookups = 8

	maxTransitionAttempts = 3
)

var (
	errOrderMissing   = errors.New("order missing")
	errOrderContended = errors.New("order kept changing concurrently")
)

type OrderOptions struct {
	// ReleaseOnRejectedUser releases the reservation when user validation fails
	// after stock was already taken.
	ReleaseOnRejectedUser bool
}

// OrderService is the saga coordinator. It is the only writer of order records.
type OrderService struct {
	orders    port.OrderRepository
	catalog   port.CatalogClient
	accounts  port.AccountClient
	publisher port.Publisher
	opts      OrderOptions
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewOrderService(
	orders port.OrderRepository,
	catalog port.CatalogClient,
	accounts port.AccountClient,
	publisher port.Publisher,
	opts OrderOptions,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		catalog:   catalog,
		accounts:  accounts,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// PlaceOrder reserves stock, validates the user and stores a Waiting_to_Place
// order. Confirmation arrives later on the order-confirmed channel.
func (s *OrderService) PlaceOrder(ctx context.Context, userName, productName string) (domain.Order, error) {
	if _, err := s.catalog.Reserve(ctx, productName); err != nil {
		return domain.Order{}, err
	}

	if _, err := s.accounts.ValidateUserOnly(ctx, userName); err != nil {
		s.compensateReservation(ctx, productName, "user rejected")
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.NotFound(MsgUserDoesNotExist)
		}
		return domain.Order{}, err
	}

	order := domain.NewOrder(s.newID(), userName, productName, s.now())
	if err := s.orders.Create(ctx, order); err != nil {
		s.compensateReservation(ctx, productName, "order not persisted")
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	metrics.OrdersPlacedTotal.Inc()
	s.logger.Info("order received", zap.String("order_id", order.ID),
		zap.String("user", userName), zap.String("product", productName))

	s.publish(ctx, domain.ChannelOrderPending, order)

	return order, nil
}

func (s *OrderService) compensateReservation(ctx context.Context, productName, reason string) {
	if !s.opts.ReleaseOnRejectedUser {
		s.logger.Warn("reservation left in place", zap.String("product", productName), zap.String("reason", reason))
		return
	}
	if _, err := s.catalog.Release(ctx, productName); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("compensate_release").Inc()
		s.logger.Error("failed to release reservation",
			zap.String("product", productName), zap.String("reason", reason), zap.Error(err))
		return
	}
	s.logger.Info("released reservation", zap.String("product", productName), zap.String("reason", reason))
}

// ConfirmOrder promotes a pending order to Placed. A missing order is ignored:
// a cancellation may have won the race.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID string) error {
	tr, err := s.transition(ctx, orderID, domain.ActionConfirm, nil)
	if errors.Is(err, errOrderMissing) {
		s.logger.Info("confirmation for missing order ignored", zap.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return err
	}
	if tr.Outcome == domain.OutcomePlaced {
		s.logger.Info("Order Placed successfully", zap.String("order_id", orderID))
	}
	return nil
}

// HandleOrderConfirmed consumes order-confirmed events.
func (s *OrderService) HandleOrderConfirmed(ctx context.Context, ev domain.Event) error {
	return s.ConfirmOrder(ctx, ev.OrderID)
}

// CancelOrder removes a Placed order of the given user and product. Any other
// status is reported as already processed before ownership is looked at.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userName, productName string) error {
	_, err := s.transition(ctx, orderID, domain.ActionCancel, func(order domain.Order) error {
		if order.UserName != userName || order.ProductName != productName {
			return domain.NotFound(MsgDetailsMismatch)
		}
		if err := s.accounts.ValidateMembership(ctx, userName, productName); err != nil {
			if errors.Is(err, domain.ErrUpstreamUnavailable) {
				return err
			}
			return domain.NotFound(MsgDetailsMismatch)
		}
		return nil
	})
	if errors.Is(err, errOrderMissing) {
		return domain.NotFound(MsgDetailsMismatch)
	}
	return err
}

// AdvanceStatus moves the order one step along Placed, Shipped, Delivered and
// finally deletes it.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID string) (domain.Transition, error) {
	tr, err := s.transition(ctx, orderID, domain.ActionAdvance, nil)
	if errors.Is(err, errOrderMissing) {
		return domain.Transition{}, domain.NotFound(MsgOrderNotFound)
	}
	return tr, err
}

// transition reads the order, computes the step for action and writes it with
// a compare-and-set on the status. A lost write is retried on a fresh read.
// check runs after the step is known to be legal.
func (s *OrderService) transition(ctx context.Context, orderID string, action domain.Action, check func(domain.Order) error) (domain.Transition, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		order, err := s.orders.Get(ctx, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Transition{}, errOrderMissing
		}
		if err != nil {
			return domain.Transition{}, fmt.Errorf("get order: %w", err)
		}

		tr, err := domain.Next(order, action)
		if err != nil {
			return tr, err
		}
		if check != nil {
			if err := check(order); err != nil {
				return domain.Transition{}, err
			}
		}

		applied, err := s.apply(ctx, order, tr)
		if err != nil {
			return domain.Transition{}, err
		}
		if applied {
			return tr, nil
		}
		s.logger.Info("order changed concurrently, retrying", zap.String("order_id", orderID),
			zap.String("action", string(action)), zap.Int("attempt", attempt))
	}
	metrics.OperationErrorsTotal.WithLabelValues("order_transition").Inc()
	return domain.Transition{}, fmt.Errorf("order %s: %w", orderID, errOrderContended)
}

// apply writes a transition and, once the write went through, publishes the
// events it asks for. It reports false when another writer got there first.
func (s *OrderService) apply(ctx context.Context, before domain.Order, tr domain.Transition) (bool, error) {
	if tr.Outcome == domain.OutcomeUnchanged {
		return true, nil
	}

	var applied bool
	var err error
	if tr.Delete {
		applied, err = s.orders.Delete(ctx, before.ID, before.Status)
		if err != nil {
			return false, fmt.Errorf("delete order: %w", err)
		}
	} else {
		applied, err = s.orders.UpdateStatus(ctx, before.ID, before.Status, tr.Order.Status, s.now())
		if errors.Is(err, domain.ErrNotFound) {
			return false, errOrderMissing
		}
		if err != nil {
			return false, fmt.Errorf("update order: %w", err)
		}
	}
	if !applied {
		return false, nil
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(before.Status), string(tr.Outcome)).Inc()
	if tr.Delete {
		s.logger.Info("order removed", zap.String("order_id", before.ID), zap.String("outcome", string(tr.Outcome)))
	}
	for _, effect := range tr.Effects {
		s.publish(ctx, string(effect), tr.Order)
	}
	return true, nil
}

func (s *OrderService) publish(ctx context.Context, channel string, order domain.Order) {
	ev := domain.EventFor(s.newID(), order, s.now())
	if err := s.publisher.Publish(ctx, channel, ev); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("publish_" + channel).Inc()
		s.logger.Error("failed to publish event", zap.String("channel", channel),
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

// FirstUnpaidOrder returns the first unpaid match in store iteration order.
func (s *OrderService) FirstUnpaidOrder(ctx context.Context, userName, productName string) (domain.Order, error) {
	if err := s.validateMembership(ctx, userName, productName); err != nil {
		return domain.Order{}, err
	}

	orders, err := s.orders.FindByUserAndProduct(ctx, userName, productName)
	if err != nil {
		return domain.Order{}, fmt.Errorf("find orders: %w", err)
	}
	for _, o := range orders {
		if !o.IsPaid() {
			return o, nil
		}
	}
	return domain.Order{}, domain.NotFound(MsgNoSuchOrder)
}

// MarkOneOrderPaid flips the first unpaid match to Paid. It returns nil, nil
// when there is nothing to pay.
func (s *OrderService) MarkOneOrderPaid(ctx context.Context, userName, productName string) (*domain.Order, error) {
	if err := s.validateMembership(ctx, userName, productName); err != nil {
		return nil, err
	}

	orders, err := s.orders.FindByUserAndProduct(ctx, userName, productName)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	for _, o := range orders {
		if o.IsPaid() {
			continue
		}
		paid, err := s.orders.MarkPaid(ctx, o.ID, s.now())
		if err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
		if !paid {
			// paid or removed since the read
			continue
		}
		if fresh, err := s.orders.Get(ctx, o.ID); err == nil {
			o = fresh
		} else {
			o.PaymentStatus = domain.PaymentStatusPaid
		}
		return &o, nil
	}
	return nil, nil
}

func (s *OrderService) validateMembership(ctx context.Context, userName, productName string) error {
	err := s.accounts.ValidateMembership(ctx, userName, productName)
	if err == nil || errors.Is(err, domain.ErrUpstreamUnavailable) {
		return err
	}
	return domain.NotFound(MsgUserDoesNotExist)
}

// TotalOutstandingValue sums the price of every active product of the user.
// One failed lookup fails the whole sum.
func (s *OrderService) TotalOutstandingValue(ctx context.Context, userName string) (decimal.Decimal, error) {
	products, err := s.accounts.ListActiveProducts(ctx, userName)
	if err != nil {
		return decimal.Zero, err
	}

	prices := make([]decimal.Decimal, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, name := range products {
		g.Go(func() error {
			price, err := s.catalog.PriceOf(gctx, name)
			if err != nil {
				return err
			}
			prices[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	return decimal.Sum(decimal.Zero, prices...), nil
}

// SettleAll removes every active product from the user's list and sums their
// prices. Removals are not undone when a price lookup fails, and order records
// are left untouched.
func (s *OrderService) SettleAll(ctx context.Context, userName string) (decimal.Decimal, error) {
	products, err := s.accounts.ListActiveProducts(ctx, userName)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	var firstErr error
	for _, name := range products {
		price, priceErr := s.catalog.PriceOf(ctx, name)
		if err := s.accounts.RemoveProduct(ctx, userName, name); err != nil {
			s.logger.Warn("settle: remove failed", zap.String("user", userName),
				zap.String("product", name), zap.Error(err))
		}
		if priceErr != nil {
			if firstErr == nil {
				firstErr = priceErr
			}
			continue
		}
		total = total.Add(price)
	}
	if firstErr != nil {
		metrics.OperationErrorsTotal.WithLabelValues("settle_all").Inc()
		return decimal.Zero, domain.Upstream(domain.MsgSomethingWentWrong)
	}
	return total, nil
}

// ListOrders returns every order of a known user.
func (s *OrderService) ListOrders(ctx context.Context, userName string) ([]domain.Order, error) {
	if _, err := s.accounts.ListActiveProducts(ctx, userName); err != nil {
		return nil, err
	}
	orders, err := s.orders.FindByUser(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
