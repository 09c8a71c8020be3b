package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/order-saga/internal/core/domain"
)

// MemoryProductRepository keeps products in a map guarded by one mutex, which
// makes Reserve and Release atomic per call.
type MemoryProductRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[string]domain.Product)}
}

func (r *MemoryProductRepository) Get(_ context.Context, name string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[name]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (r *MemoryProductRepository) Reserve(_ context.Context, name string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[name]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	if p.Quantity <= 0 {
		return domain.Product{}, domain.ErrOutOfStock
	}
	p.Quantity--
	r.products[name] = p
	return p, nil
}

func (r *MemoryProductRepository) Release(ctx context.Context, name string) (domain.Product, error) {
	return r.AddQuantity(ctx, name, 1)
}

func (r *MemoryProductRepository) AddQuantity(_ context.Context, name string, quantity int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[name]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	p.Quantity += quantity
	r.products[name] = p
	return p, nil
}

func (r *MemoryProductRepository) Save(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.Name] = product
	return nil
}

type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string][]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string][]string)}
}

func (r *MemoryAccountRepository) Get(_ context.Context, userName string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	products, ok := r.accounts[userName]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return domain.Account{UserName: userName, Products: slices.Clone(products)}, nil
}

func (r *MemoryAccountRepository) AppendProduct(_ context.Context, userName, productName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	products, ok := r.accounts[userName]
	if !ok {
		return domain.ErrNotFound
	}
	r.accounts[userName] = append(products, productName)
	return nil
}

func (r *MemoryAccountRepository) RemoveProduct(_ context.Context, userName, productName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	products, ok := r.accounts[userName]
	if !ok {
		return domain.ErrNotFound
	}
	rest, removed := domain.Account{UserName: userName, Products: products}.WithoutFirst(productName)
	if !removed {
		return domain.ErrNotFound
	}
	r.accounts[userName] = rest
	return nil
}

func (r *MemoryAccountRepository) Save(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	products := slices.Clone(account.Products)
	if products == nil {
		products = []string{}
	}
	r.accounts[account.UserName] = products
	return nil
}

// MemoryOrderRepository iterates in insertion order.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	ids    []string
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		r.ids = append(r.ids, order.ID)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, current, next domain.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != current {
		return false, nil
	}
	o.Status = next
	o.UpdatedAt = at
	r.orders[id] = o
	return true, nil
}

func (r *MemoryOrderRepository) MarkPaid(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.IsPaid() {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusPaid
	o.UpdatedAt = at
	r.orders[id] = o
	return true, nil
}

func (r *MemoryOrderRepository) Delete(_ context.Context, id string, current domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != current {
		return false, nil
	}
	delete(r.orders, id)
	r.ids = slices.DeleteFunc(r.ids, func(v string) bool { return v == id })
	return true, nil
}

func (r *MemoryOrderRepository) FindByUserAndProduct(_ context.Context, userName, productName string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool {
		return o.UserName == userName && o.ProductName == productName
	}), nil
}

func (r *MemoryOrderRepository) FindByUser(_ context.Context, userName string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.UserName == userName }), nil
}

func (r *MemoryOrderRepository) filter(keep func(domain.Order) bool) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, id := range r.ids {
		if o := r.orders[id]; keep(o) {
			out = append(out, o)
		}
	}
	return out
}

type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{seen: make(map[string]struct{})}
}

func (s *MemoryIdempotencyStore) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true, nil
	}
	s.seen[key] = struct{}{}
	return false, nil
}
