package storage

import (
	"context"
	"errors"
	"testing"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rl1809/order-saga/internal/core/domain"
)

func getGormAccounts(t *testing.T) *GormAccountRepository {
	db, err := gorm.Open(gormmysql.Open(mysqlDSN()), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	repo := NewGormAccountRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	return repo
}

func TestGormAccount_SaveAndGet(t *testing.T) {
	repo := getGormAccounts(t)
	ctx := context.Background()

	err := repo.Save(ctx, domain.Account{UserName: "gorm-user", Products: []string{"pen", "ink", "pen"}})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	acc, err := repo.Get(ctx, "gorm-user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := []string{"pen", "ink", "pen"}
	if len(acc.Products) != len(want) {
		t.Fatalf("expected %v, got %v", want, acc.Products)
	}
	for i := range want {
		if acc.Products[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], acc.Products[i])
		}
	}
}

func TestGormAccount_AppendAndRemoveFirstMatch(t *testing.T) {
	repo := getGormAccounts(t)
	ctx := context.Background()

	if err := repo.Save(ctx, domain.Account{UserName: "gorm-user", Products: []string{"pen"}}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := repo.AppendProduct(ctx, "gorm-user", "ink"); err != nil {
		t.Fatalf("AppendProduct failed: %v", err)
	}
	if err := repo.AppendProduct(ctx, "gorm-user", "pen"); err != nil {
		t.Fatalf("AppendProduct failed: %v", err)
	}
	if err := repo.RemoveProduct(ctx, "gorm-user", "pen"); err != nil {
		t.Fatalf("RemoveProduct failed: %v", err)
	}

	acc, _ := repo.Get(ctx, "gorm-user")
	if len(acc.Products) != 2 || acc.Products[0] != "ink" || acc.Products[1] != "pen" {
		t.Errorf("expected [ink pen], got %v", acc.Products)
	}

	if err := repo.RemoveProduct(ctx, "gorm-user", "stapler"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGormAccount_UnknownUser(t *testing.T) {
	repo := getGormAccounts(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "nobody-at-all"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.AppendProduct(ctx, "nobody-at-all", "pen"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on append, got %v", err)
	}
}
