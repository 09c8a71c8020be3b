package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/order-saga/internal/core/domain"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

const orderColumns = `id, user_name, product_name, order_status, payment_status, created_at, updated_at`

func (m *MySQLOrderRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserName, order.ProductName, order.Status, order.PaymentStatus,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLOrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLOrderRepository) UpdateStatus(ctx context.Context, id string, current, next domain.OrderStatus, at time.Time) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = ?, updated_at = ?
		WHERE id = ? AND order_status = ?`,
		next, at, id, current,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		return true, nil
	}
	// lost the compare-and-set, or the order is gone
	if _, err := m.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (m *MySQLOrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusPaid, at, id, domain.PaymentStatusUnpaid,
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLOrderRepository) Delete(ctx context.Context, id string, current domain.OrderStatus) (bool, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ? AND order_status = ?`, id, current)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLOrderRepository) FindByUserAndProduct(ctx context.Context, userName, productName string) ([]domain.Order, error) {
	return m.query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_name = ? AND product_name = ?
		ORDER BY created_at, id`, userName, productName)
}

func (m *MySQLOrderRepository) FindByUser(ctx context.Context, userName string) ([]domain.Order, error) {
	return m.query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_name = ?
		ORDER BY created_at, id`, userName)
}

func (m *MySQLOrderRepository) query(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (domain.Order, error) {
	var o domain.Order
	err := s.Scan(&o.ID, &o.UserName, &o.ProductName, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// MySQLProductRepository reserves with a conditional UPDATE, so the row
// lock taken by MySQL serializes concurrent reservations.
type MySQLProductRepository struct {
	db *sql.DB
}

func NewMySQLProductRepository(db *sql.DB) *MySQLProductRepository {
	return &MySQLProductRepository{db: db}
}

func (m *MySQLProductRepository) Get(ctx context.Context, name string) (domain.Product, error) {
	return getProduct(ctx, m.db, name)
}

func (m *MySQLProductRepository) Reserve(ctx context.Context, name string) (domain.Product, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - 1, updated_at = NOW()
		WHERE name = ? AND quantity > 0`, name)
	if err != nil {
		return domain.Product{}, fmt.Errorf("reserve product: %w", err)
	}

	p, err := getProduct(ctx, tx, name)
	if err != nil {
		return domain.Product{}, err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Product{}, domain.ErrOutOfStock
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (m *MySQLProductRepository) Release(ctx context.Context, name string) (domain.Product, error) {
	return m.AddQuantity(ctx, name, 1)
}

func (m *MySQLProductRepository) AddQuantity(ctx context.Context, name string, quantity int) (domain.Product, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + ?, updated_at = NOW()
		WHERE name = ?`, quantity, name)
	if err != nil {
		return domain.Product{}, fmt.Errorf("add quantity: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Product{}, domain.ErrNotFound
	}

	p, err := getProduct(ctx, tx, name)
	if err != nil {
		return domain.Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Product{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (m *MySQLProductRepository) Save(ctx context.Context, product domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, quantity, price) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), price = VALUES(price), updated_at = NOW()`,
		product.Name, product.Quantity, product.Price,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProduct(ctx context.Context, q queryRower, name string) (domain.Product, error) {
	p := domain.Product{Name: name}
	err := q.QueryRowContext(ctx, `SELECT quantity, price FROM products WHERE name = ?`, name).
		Scan(&p.Quantity, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

//go:embed schema.sql
var schema string

// MigrateMySQL creates the product, order and account tables if missing.
func MigrateMySQL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
