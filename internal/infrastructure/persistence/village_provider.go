package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormVillageProvider lists villages known to the ledger. A village exists
// once its chart of accounts has been seeded, so the accounts table is the
// source of truth for scheduling nightly jobs.
type GormVillageProvider struct {
	db *gorm.DB
}

// NewGormVillageProvider creates a new GormVillageProvider
func NewGormVillageProvider(db *gorm.DB) *GormVillageProvider {
	return &GormVillageProvider{db: db}
}

// GetAllActiveVillageIDs returns the distinct village IDs with at least one
// active ledger account.
func (p *GormVillageProvider) GetAllActiveVillageIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := p.db.WithContext(ctx).
		Table("accounts").
		Where("is_active = ?", true).
		Distinct("village_id").
		Pluck("village_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
