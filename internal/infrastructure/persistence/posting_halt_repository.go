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

// GormPostingHaltRepository implements PostingHaltRepository using GORM
type GormPostingHaltRepository struct {
	db *gorm.DB
}

// NewGormPostingHaltRepository creates a new GormPostingHaltRepository
func NewGormPostingHaltRepository(db *gorm.DB) *GormPostingHaltRepository {
	return &GormPostingHaltRepository{db: db}
}

// FindActive returns the active halt for a village, or shared.ErrNotFound
func (r *GormPostingHaltRepository) FindActive(ctx context.Context, villageID uuid.UUID) (*accounting.PostingHalt, error) {
	var model models.PostingHaltModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND cleared_at IS NULL", villageID).
		Order("halted_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a posting halt
func (r *GormPostingHaltRepository) Save(ctx context.Context, halt *accounting.PostingHalt) error {
	model := &models.PostingHaltModel{}
	model.FromDomain(halt)
	return r.db.WithContext(ctx).Save(model).Error
}
