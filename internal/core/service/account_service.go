package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/port"
)

const (
	MsgUserNotFound          = "Could not find the User with given name"
	MsgProductNotInUserList  = "Could not find the Product in User Order list"
	MsgProductNotInOrderList = "Could not find the Product in Order List"
)

// AccountService keeps each user's list of active (ordered) product names.
type AccountService struct {
	accounts  port.AccountRepository
	publisher port.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewAccountService(accounts port.AccountRepository, publisher port.Publisher, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AccountService) ValidateUserOnly(ctx context.Context, userName string) (domain.Account, error) {
	a, err := s.accounts.Get(ctx, userName)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, domain.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (s *AccountService) ValidateMembership(ctx context.Context, userName, productName string) error {
	a, err := s.ValidateUserOnly(ctx, userName)
	if err != nil {
		return err
	}
	if !a.Has(productName) {
		return domain.NotFound(MsgProductNotInUserList)
	}
	return nil
}

func (s *AccountService) ListActiveProducts(ctx context.Context, userName string) ([]string, error) {
	a, err := s.ValidateUserOnly(ctx, userName)
	if err != nil {
		return nil, err
	}
	if a.Products == nil {
		return []string{}, nil
	}
	return a.Products, nil
}

// AppendProduct is not idempotent: every call adds one entry.
func (s *AccountService) AppendProduct(ctx context.Context, userName, productName string) error {
	err := s.accounts.AppendProduct(ctx, userName, productName)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(MsgUserNotFound)
	}
	return err
}

func (s *AccountService) RemoveProduct(ctx context.Context, userName, productName string) error {
	if _, err := s.ValidateUserOnly(ctx, userName); err != nil {
		return err
	}
	err := s.accounts.RemoveProduct(ctx, userName, productName)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(MsgProductNotInOrderList)
	}
	return err
}

// HandleOrderPending records the product for the user and confirms the order
// back to the coordinator. An unknown user is dropped without a reply.
func (s *AccountService) HandleOrderPending(ctx context.Context, ev domain.Event) error {
	log := s.logger.With(zap.String("order_id", ev.OrderID), zap.String("user", ev.UserName))

	if err := s.AppendProduct(ctx, ev.UserName, ev.ProductName); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("pending order for unknown user dropped")
			return nil
		}
		return err
	}
	log.Info("added product to user list", zap.String("product", ev.ProductName))

	confirmed := domain.Event{
		ID:          uuid.NewString(),
		OrderID:     ev.OrderID,
		UserName:    ev.UserName,
		ProductName: ev.ProductName,
		OccurredAt:  s.now(),
	}
	return s.publisher.Publish(ctx, domain.ChannelOrderConfirmed, confirmed)
}

// HandleOrderRemoved drops one entry from the user's list. The coordinator has
// already decided, so a missing user or entry is ignored.
func (s *AccountService) HandleOrderRemoved(ctx context.Context, ev domain.Event) error {
	err := s.RemoveProduct(ctx, ev.UserName, ev.ProductName)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("nothing to remove", zap.String("order_id", ev.OrderID),
			zap.String("user", ev.UserName), zap.String("product", ev.ProductName))
		return nil
	}
	return err
}
