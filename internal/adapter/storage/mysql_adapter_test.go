package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-saga/internal/core/domain"
)

func mysqlDSN() string {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/ordersaga?parseTime=true"
	}
	return dsn
}

func getMySQLDB(t *testing.T) *sql.DB {
	db, err := sql.Open("mysql", mysqlDSN())
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := MigrateMySQL(context.Background(), db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	return db
}

func TestMySQLOrder_ScopedWrites(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLOrderRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := domain.NewOrder("test-order-"+now.Format("20060102150405.000000"), "test-user", "test-item", now)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.OrderStatusWaitingToPlace || got.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Errorf("unexpected statuses %s/%s", got.Status, got.PaymentStatus)
	}

	// a payment and a status change made from the same stale read both survive
	paid, err := repo.MarkPaid(ctx, order.ID, now)
	if err != nil || !paid {
		t.Fatalf("MarkPaid failed: %v %v", paid, err)
	}
	ok, err := repo.UpdateStatus(ctx, order.ID, got.Status, domain.OrderStatusPlaced, now)
	if err != nil || !ok {
		t.Fatalf("UpdateStatus failed: %v %v", ok, err)
	}
	ok, err = repo.UpdateStatus(ctx, order.ID, got.Status, domain.OrderStatusPlaced, now)
	if err != nil || ok {
		t.Fatalf("stale UpdateStatus should lose: %v %v", ok, err)
	}
	if paid, _ := repo.MarkPaid(ctx, order.ID, now); paid {
		t.Errorf("MarkPaid flipped an already paid order")
	}

	got, _ = repo.Get(ctx, order.ID)
	if got.Status != domain.OrderStatusPlaced || !got.IsPaid() {
		t.Errorf("writes not persisted: %+v", got)
	}

	if deleted, err := repo.Delete(ctx, order.ID, domain.OrderStatusShipped); err != nil || deleted {
		t.Fatalf("Delete with wrong status: %v %v", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, order.ID, domain.OrderStatusPlaced); err != nil || !deleted {
		t.Fatalf("Delete failed: %v %v", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, order.ID, domain.OrderStatusPlaced); err != nil || deleted {
		t.Fatalf("Delete of missing order: %v %v", deleted, err)
	}
	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQLOrder_UpdateStatusMissing(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	repo := NewMySQLOrderRepository(db)
	_, err := repo.UpdateStatus(context.Background(), "nonexistent-order",
		domain.OrderStatusWaitingToPlace, domain.OrderStatusPlaced, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQLOrder_FindByUserAndProductOrdered(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLOrderRepository(db)
	db.ExecContext(ctx, `DELETE FROM orders WHERE user_name = 'find-user'`)
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE user_name = 'find-user'`)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, id := range []string{"find-1", "find-2", "find-3"} {
		product := "pen"
		if i == 1 {
			product = "ink"
		}
		o := domain.NewOrder(id, "find-user", product, base.Add(time.Duration(i)*time.Second))
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	pens, err := repo.FindByUserAndProduct(ctx, "find-user", "pen")
	if err != nil {
		t.Fatalf("FindByUserAndProduct failed: %v", err)
	}
	if len(pens) != 2 || pens[0].ID != "find-1" || pens[1].ID != "find-3" {
		t.Errorf("unexpected matches: %+v", pens)
	}

	all, _ := repo.FindByUser(ctx, "find-user")
	if len(all) != 3 {
		t.Errorf("expected 3 orders, got %d", len(all))
	}
}

func seedMySQLProduct(t *testing.T, db *sql.DB, name string, qty int) {
	t.Helper()
	repo := NewMySQLProductRepository(db)
	if err := repo.Save(context.Background(), domain.Product{Name: name, Quantity: qty, Price: decimal.RequireFromString("12.50")}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
}

func TestMySQLProduct_Reserve(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLProductRepository(db)
	seedMySQLProduct(t, db, "test-item", 1)

	p, err := repo.Reserve(ctx, "test-item")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if p.Quantity != 0 || !p.Price.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("unexpected product %+v", p)
	}

	if _, err := repo.Reserve(ctx, "test-item"); !errors.Is(err, domain.ErrOutOfStock) {
		t.Errorf("expected ErrOutOfStock, got %v", err)
	}
	if _, err := repo.Reserve(ctx, "nonexistent-item"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Release(ctx, "nonexistent-item"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on release, got %v", err)
	}

	p, err = repo.Release(ctx, "test-item")
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if p.Quantity != 1 {
		t.Errorf("expected quantity 1, got %d", p.Quantity)
	}
}

func TestMySQLProduct_ReserveConcurrent(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewMySQLProductRepository(db)

	initialStock := 20
	totalRequests := 50
	seedMySQLProduct(t, db, "concurrent-test", initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, "concurrent-test"); err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, domain.ErrOutOfStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	p, _ := repo.Get(ctx, "concurrent-test")
	if p.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", p.Quantity)
	}
}
