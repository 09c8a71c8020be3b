package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/adapter/storage"
	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/port"
)

type published struct {
	channel string
	event   domain.Event
}

// recordingPublisher captures events instead of delivering them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel: channel, event: event})
	return nil
}

func (p *recordingPublisher) on(channel string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.Event
	for _, e := range p.events {
		if e.channel == channel {
			out = append(out, e.event)
		}
	}
	return out
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// spyCatalog wraps a real catalog and lets a test fail individual calls.
type spyCatalog struct {
	port.CatalogClient

	mu        sync.Mutex
	priceErr  map[string]error
	releases  []string
	reserveFn func(name string) error
}

func (c *spyCatalog) Reserve(ctx context.Context, name string) (domain.Product, error) {
	if c.reserveFn != nil {
		if err := c.reserveFn(name); err != nil {
			return domain.Product{}, err
		}
	}
	return c.CatalogClient.Reserve(ctx, name)
}

func (c *spyCatalog) Release(ctx context.Context, name string) (domain.Product, error) {
	c.mu.Lock()
	c.releases = append(c.releases, name)
	c.mu.Unlock()
	return c.CatalogClient.Release(ctx, name)
}

func (c *spyCatalog) PriceOf(ctx context.Context, name string) (decimal.Decimal, error) {
	c.mu.Lock()
	err := c.priceErr[name]
	c.mu.Unlock()
	if err != nil {
		return decimal.Zero, err
	}
	return c.CatalogClient.PriceOf(ctx, name)
}

// spyAccounts wraps a real account service, counting and failing calls.
type spyAccounts struct {
	port.AccountClient

	mu        sync.Mutex
	calls     map[string]int
	failAll   error
	failCalls map[string]error
}

func (a *spyAccounts) track(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.calls == nil {
		a.calls = make(map[string]int)
	}
	a.calls[op]++
	if a.failAll != nil {
		return a.failAll
	}
	return a.failCalls[op]
}

func (a *spyAccounts) called(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

func (a *spyAccounts) ValidateUserOnly(ctx context.Context, userName string) (domain.Account, error) {
	if err := a.track("ValidateUserOnly"); err != nil {
		return domain.Account{}, err
	}
	return a.AccountClient.ValidateUserOnly(ctx, userName)
}

func (a *spyAccounts) ValidateMembership(ctx context.Context, userName, productName string) error {
	if err := a.track("ValidateMembership"); err != nil {
		return err
	}
	return a.AccountClient.ValidateMembership(ctx, userName, productName)
}

func (a *spyAccounts) ListActiveProducts(ctx context.Context, userName string) ([]string, error) {
	if err := a.track("ListActiveProducts"); err != nil {
		return nil, err
	}
	return a.AccountClient.ListActiveProducts(ctx, userName)
}

func (a *spyAccounts) RemoveProduct(ctx context.Context, userName, productName string) error {
	if err := a.track("RemoveProduct"); err != nil {
		return err
	}
	return a.AccountClient.RemoveProduct(ctx, userName, productName)
}

// spyWorkflow records which coordinator steps the payment flow invoked.
type spyWorkflow struct {
	OrderWorkflow

	mu    sync.Mutex
	steps []string
}

func (w *spyWorkflow) record(step string) {
	w.mu.Lock()
	w.steps = append(w.steps, step)
	w.mu.Unlock()
}

func (w *spyWorkflow) FirstUnpaidOrder(ctx context.Context, userName, productName string) (domain.Order, error) {
	w.record("FirstUnpaidOrder")
	return w.OrderWorkflow.FirstUnpaidOrder(ctx, userName, productName)
}

func (w *spyWorkflow) MarkOneOrderPaid(ctx context.Context, userName, productName string) (*domain.Order, error) {
	w.record("MarkOneOrderPaid")
	return w.OrderWorkflow.MarkOneOrderPaid(ctx, userName, productName)
}

func (w *spyWorkflow) AdvanceStatus(ctx context.Context, orderID string) (domain.Transition, error) {
	w.record("AdvanceStatus")
	return w.OrderWorkflow.AdvanceStatus(ctx, orderID)
}

// fixture wires the three services over in-memory stores.
type fixture struct {
	products  *storage.MemoryProductRepository
	accounts  *storage.MemoryAccountRepository
	orders    *storage.MemoryOrderRepository
	publisher *recordingPublisher

	catalogSvc *CatalogService
	accountSvc *AccountService
	catalog    *spyCatalog
	accountsC  *spyAccounts
	orderSvc   *OrderService
	paymentSvc *PaymentService
}

func newFixture() *fixture {
	f := &fixture{
		products:  storage.NewMemoryProductRepository(),
		accounts:  storage.NewMemoryAccountRepository(),
		orders:    storage.NewMemoryOrderRepository(),
		publisher: &recordingPublisher{},
	}
	logger := zap.NewNop()
	f.catalogSvc = NewCatalogService(f.products, logger)
	f.accountSvc = NewAccountService(f.accounts, f.publisher, logger)
	f.catalog = &spyCatalog{CatalogClient: f.catalogSvc, priceErr: map[string]error{}}
	f.accountsC = &spyAccounts{AccountClient: f.accountSvc, failCalls: map[string]error{}}
	f.orderSvc = NewOrderService(f.orders, f.catalog, f.accountsC, f.publisher,
		OrderOptions{ReleaseOnRejectedUser: true}, logger)
	f.paymentSvc = NewPaymentService(f.accountsC, f.orderSvc, logger)
	return f
}

func (f *fixture) seedProduct(name string, qty int, price string) {
	_ = f.products.Save(context.Background(), domain.Product{
		Name:     name,
		Quantity: qty,
		Price:    decimal.RequireFromString(price),
	})
}

func (f *fixture) seedAccount(name string, products ...string) {
	_ = f.accounts.Save(context.Background(), domain.Account{UserName: name, Products: products})
}

// seedOrder stores an order directly, bypassing the saga.
func (f *fixture) seedOrder(id, user, product string, status domain.OrderStatus, payment domain.PaymentStatus) domain.Order {
	o := domain.Order{ID: id, UserName: user, ProductName: product, Status: status, PaymentStatus: payment}
	_ = f.orders.Create(context.Background(), o)
	return o
}

// stallingOrders holds the first Get of one order until resume is closed, so
// a test can interleave another writer between a read and its write.
type stallingOrders struct {
	port.OrderRepository
	id      string
	fetched chan struct{}
	resume  chan struct{}
	once    sync.Once
}

func stallOn(repo port.OrderRepository, id string) *stallingOrders {
	return &stallingOrders{
		OrderRepository: repo,
		id:              id,
		fetched:         make(chan struct{}),
		resume:          make(chan struct{}),
	}
}

func (s *stallingOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.OrderRepository.Get(ctx, id)
	if id == s.id {
		s.once.Do(func() {
			close(s.fetched)
			<-s.resume
		})
	}
	return o, err
}
