package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAccountRepository implements AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode resolves a chart code inside a village
func (r *GormAccountRepository) FindByCode(ctx context.Context, villageID uuid.UUID, code string) (*accounting.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND code = ?", villageID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByVillage lists the active chart for trial balance runs
func (r *GormAccountRepository) FindActiveByVillage(ctx context.Context, villageID uuid.UUID) ([]*accounting.Account, error) {
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND is_active = ?", villageID, true).
		Order("code ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}
	accounts := make([]*accounting.Account, len(accountModels))
	for i := range accountModels {
		accounts[i] = accountModels[i].ToDomain()
	}
	return accounts, nil
}

// SaveAll seeds the chart for a new village
func (r *GormAccountRepository) SaveAll(ctx context.Context, accounts []*accounting.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	accountModels := make([]models.AccountModel, len(accounts))
	for i, a := range accounts {
		accountModels[i].FromDomain(a)
	}
	return r.db.WithContext(ctx).Create(&accountModels).Error
}

// CountByVillage reports whether a village chart is already seeded
func (r *GormAccountRepository) CountByVillage(ctx context.Context, villageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("village_id = ?", villageID).
		Count(&count).Error
	return count, err
}
