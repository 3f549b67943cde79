package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormJournalRepository implements JournalRepository using GORM. The
// journal is append-only; posted lines are never updated or deleted.
type GormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository creates a new GormJournalRepository
func NewGormJournalRepository(db *gorm.DB) *GormJournalRepository {
	return &GormJournalRepository{db: db}
}

// SaveBatch persists the balanced lines of one posting group. The
// balance invariant is enforced before the batch reaches this layer.
func (r *GormJournalRepository) SaveBatch(ctx context.Context, batch *accounting.JournalBatch) error {
	if len(batch.Entries) == 0 {
		return nil
	}
	entryModels := make([]models.JournalEntryModel, len(batch.Entries))
	for i, e := range batch.Entries {
		entryModels[i].FromDomain(e)
	}
	return r.db.WithContext(ctx).Create(&entryModels).Error
}

// SumByAccount totals debits and credits for an account up to the cutoff
func (r *GormJournalRepository) SumByAccount(ctx context.Context, villageID, accountID uuid.UUID, asOf time.Time) (valueobject.Money, valueobject.Money, error) {
	var sums struct {
		Debit  int64
		Credit int64
	}
	err := r.db.WithContext(ctx).Model(&models.JournalEntryModel{}).
		Where("village_id = ? AND account_id = ? AND posted_at <= ?", villageID, accountID, asOf).
		Select("COALESCE(SUM(debit_amount), 0) AS debit, COALESCE(SUM(credit_amount), 0) AS credit").
		Scan(&sums).Error
	if err != nil {
		return valueobject.ZeroTHB(), valueobject.ZeroTHB(), err
	}
	return valueobject.NewMoneyTHB(sums.Debit), valueobject.NewMoneyTHB(sums.Credit), nil
}

// CountEntriesThisMonth counts distinct entry numbers posted in the
// month containing at, for entry number generation
func (r *GormJournalRepository) CountEntriesThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error) {
	start, end := monthBounds(at)
	var count int64
	err := r.db.WithContext(ctx).Model(&models.JournalEntryModel{}).
		Where("village_id = ? AND posted_at >= ? AND posted_at < ?", villageID, start, end).
		Distinct("entry_number").
		Count(&count).Error
	return count, err
}

// FindBySource retrieves the lines posted for one operation
func (r *GormJournalRepository) FindBySource(ctx context.Context, sourceType accounting.JournalSourceType, sourceID uuid.UUID) ([]*accounting.JournalEntry, error) {
	var entryModels []models.JournalEntryModel
	if err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("posted_at ASC, account_code ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make([]*accounting.JournalEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries, nil
}
