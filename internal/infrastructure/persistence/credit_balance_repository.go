package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCreditBalanceRepository implements CreditBalanceRepository using GORM
type GormCreditBalanceRepository struct {
	db *gorm.DB
}

// NewGormCreditBalanceRepository creates a new GormCreditBalanceRepository
func NewGormCreditBalanceRepository(db *gorm.DB) *GormCreditBalanceRepository {
	return &GormCreditBalanceRepository{db: db}
}

// FindOrCreate returns the property's credit balance, inserting a zero
// row on first use. The unique village+property index makes concurrent
// first-use inserts converge on a single row.
func (r *GormCreditBalanceRepository) FindOrCreate(ctx context.Context, villageID, propertyID uuid.UUID) (*accounting.CreditBalance, error) {
	balance, err := r.find(ctx, villageID, propertyID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	model := &models.CreditBalanceModel{}
	model.FromDomain(accounting.NewCreditBalance(villageID, propertyID))
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error; err != nil {
		return nil, err
	}
	return r.find(ctx, villageID, propertyID)
}

func (r *GormCreditBalanceRepository) find(ctx context.Context, villageID, propertyID uuid.UUID) (*accounting.CreditBalance, error) {
	var model models.CreditBalanceModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND property_id = ?", villageID, propertyID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a credit balance without a version check
func (r *GormCreditBalanceRepository) Save(ctx context.Context, balance *accounting.CreditBalance) error {
	model := &models.CreditBalanceModel{}
	model.FromDomain(balance)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists a credit balance with an optimistic version check
func (r *GormCreditBalanceRepository) SaveWithLock(ctx context.Context, balance *accounting.CreditBalance, expectedVersion int) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.CreditBalanceModel{}).
		Where("id = ? AND version = ?", balance.ID, expectedVersion).
		Updates(map[string]interface{}{
			"balance":    balance.Balance,
			"version":    expectedVersion + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.CreditBalanceModel{}).
			Where("id = ?", balance.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	balance.Version = expectedVersion + 1
	balance.UpdatedAt = now
	return nil
}
