package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rl1809/order-saga/internal/core/domain"
)

// AccountModel maps to the accounts table
type AccountModel struct {
	UserName  string `gorm:"primaryKey;size:128"`
	CreatedAt time.Time
}

func (AccountModel) TableName() string {
	return "accounts"
}

// AccountProductModel is one entry of a user's active list. The auto
// increment ID preserves insertion order and lets duplicates coexist.
type AccountProductModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UserName    string `gorm:"size:128;index:idx_account_product,priority:1"`
	ProductName string `gorm:"size:128;index:idx_account_product,priority:2"`
	CreatedAt   time.Time
}

func (AccountProductModel) TableName() string {
	return "account_products"
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Migrate creates the account tables if they are missing.
func (r *GormAccountRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AccountModel{}, &AccountProductModel{})
}

func (r *GormAccountRepository) Get(ctx context.Context, userName string) (domain.Account, error) {
	db := r.db.WithContext(ctx)

	var acc AccountModel
	if err := db.Where("user_name = ?", userName).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("find account: %w", err)
	}

	var names []string
	err := db.Model(&AccountProductModel{}).
		Where("user_name = ?", userName).
		Order("id").
		Pluck("product_name", &names).Error
	if err != nil {
		return domain.Account{}, fmt.Errorf("list account products: %w", err)
	}
	return domain.Account{UserName: acc.UserName, Products: names}, nil
}

func (r *GormAccountRepository) AppendProduct(ctx context.Context, userName, productName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := accountExists(tx, userName); err != nil {
			return err
		}
		return tx.Create(&AccountProductModel{UserName: userName, ProductName: productName}).Error
	})
}

func (r *GormAccountRepository) RemoveProduct(ctx context.Context, userName, productName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry AccountProductModel
		err := tx.Where("user_name = ? AND product_name = ?", userName, productName).
			Order("id").
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find account product: %w", err)
		}
		return tx.Delete(&AccountProductModel{}, entry.ID).Error
	})
}

func (r *GormAccountRepository) Save(ctx context.Context, account domain.Account) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(AccountModel{UserName: account.UserName}).
			FirstOrCreate(&AccountModel{UserName: account.UserName}).Error; err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}
		if err := tx.Where("user_name = ?", account.UserName).Delete(&AccountProductModel{}).Error; err != nil {
			return fmt.Errorf("clear account products: %w", err)
		}
		if len(account.Products) == 0 {
			return nil
		}

		entries := make([]AccountProductModel, 0, len(account.Products))
		for _, name := range account.Products {
			entries = append(entries, AccountProductModel{UserName: account.UserName, ProductName: name})
		}
		return tx.Create(&entries).Error
	})
}

func accountExists(tx *gorm.DB, userName string) error {
	var count int64
	if err := tx.Model(&AccountModel{}).Where("user_name = ?", userName).Count(&count).Error; err != nil {
		return fmt.Errorf("count account: %w", err)
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return nil
}
