package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-saga/internal/core/domain"
)

const (
	productKeyPrefix  = "product:"
	idempotencyKeyTTL = 24 * time.Hour

	fieldQuantity = "quantity"
	fieldPrice    = "price"
)

// Returns {status, quantity, price}: -1 missing, 0 out of stock, 1 reserved.
var reserveScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return {-1, 0, ''}
end

local current = tonumber(redis.call('HGET', key, 'quantity'))
local price = redis.call('HGET', key, 'price')
if current <= 0 then
	return {0, current, price}
end

local left = redis.call('HINCRBY', key, 'quantity', -1)
return {1, left, price}
`)

// Returns {status, quantity, price}: -1 missing, 1 added.
var addQuantityScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return {-1, 0, ''}
end

local total = redis.call('HINCRBY', key, 'quantity', quantity)
return {1, total, redis.call('HGET', key, 'price')}
`)

// RedisProductRepository stores each product as a hash with quantity and
// price fields. Reserve and AddQuantity run as Lua scripts so concurrent
// callers never observe a negative quantity.
type RedisProductRepository struct {
	client *redis.Client
}

func NewRedisProductRepository(client *redis.Client) *RedisProductRepository {
	return &RedisProductRepository{client: client}
}

func (r *RedisProductRepository) Get(ctx context.Context, name string) (domain.Product, error) {
	vals, err := r.client.HMGet(ctx, productKeyPrefix+name, fieldQuantity, fieldPrice).Result()
	if err != nil {
		return domain.Product{}, fmt.Errorf("hmget product: %w", err)
	}
	if vals[0] == nil {
		return domain.Product{}, domain.ErrNotFound
	}

	qty, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse quantity: %w", err)
	}
	price, err := parsePrice(vals[1])
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{Name: name, Quantity: qty, Price: price}, nil
}

func (r *RedisProductRepository) Reserve(ctx context.Context, name string) (domain.Product, error) {
	res, err := reserveScript.Run(ctx, r.client, []string{productKeyPrefix + name}).Slice()
	if err != nil {
		return domain.Product{}, fmt.Errorf("reserve script: %w", err)
	}
	return scriptResult(name, res)
}

func (r *RedisProductRepository) Release(ctx context.Context, name string) (domain.Product, error) {
	return r.AddQuantity(ctx, name, 1)
}

func (r *RedisProductRepository) AddQuantity(ctx context.Context, name string, quantity int) (domain.Product, error) {
	res, err := addQuantityScript.Run(ctx, r.client, []string{productKeyPrefix + name}, quantity).Slice()
	if err != nil {
		return domain.Product{}, fmt.Errorf("add quantity script: %w", err)
	}
	return scriptResult(name, res)
}

func (r *RedisProductRepository) Save(ctx context.Context, product domain.Product) error {
	return r.client.HSet(ctx, productKeyPrefix+product.Name,
		fieldQuantity, product.Quantity,
		fieldPrice, product.Price.String(),
	).Err()
}

func scriptResult(name string, res []interface{}) (domain.Product, error) {
	if len(res) != 3 {
		return domain.Product{}, fmt.Errorf("unexpected script reply of %d values", len(res))
	}
	status, _ := res[0].(int64)
	switch status {
	case -1:
		return domain.Product{}, domain.ErrNotFound
	case 0:
		return domain.Product{}, domain.ErrOutOfStock
	}

	qty, _ := res[1].(int64)
	price, err := parsePrice(res[2])
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{Name: name, Quantity: int(qty), Price: price}, nil
}

func parsePrice(v interface{}) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	s := fmt.Sprint(v)
	if s == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return price, nil
}

// RedisIdempotencyStore remembers handled event keys for a day.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: idempotencyKeyTTL}
}

func (s *RedisIdempotencyStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return !ok, nil
}
