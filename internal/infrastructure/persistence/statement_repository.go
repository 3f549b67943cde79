package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// StatementSortFields contains allowed sort fields for bank statement lines
var StatementSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"statement_number": true,
	"value_date":       true,
	"amount":           true,
	"status":           true,
	"match_confidence": true,
}

// GormStatementRepository implements StatementRepository using GORM
type GormStatementRepository struct {
	db *gorm.DB
}

// NewGormStatementRepository creates a new GormStatementRepository
func NewGormStatementRepository(db *gorm.DB) *GormStatementRepository {
	return &GormStatementRepository{db: db}
}

// FindByID finds a statement line by its ID
func (r *GormStatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.BankStatementLine, error) {
	var model models.BankStatementLineModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForVillage finds a statement line by ID scoped to a village
func (r *GormStatementRepository) FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*accounting.BankStatementLine, error) {
	var model models.BankStatementLineModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND id = ?", villageID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStatus lists statement lines in one match status for a village
func (r *GormStatementRepository) FindByStatus(ctx context.Context, villageID uuid.UUID, status accounting.MatchStatus, filter shared.Filter) (shared.Paginated[accounting.BankStatementLine], error) {
	query := r.db.WithContext(ctx).Model(&models.BankStatementLineModel{}).
		Where("village_id = ? AND status = ?", villageID, status)
	if filter.Search != "" {
		query = query.Where("raw_reference ILIKE ? OR description ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[accounting.BankStatementLine]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, StatementSortFields, "value_date")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var lineModels []models.BankStatementLineModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&lineModels).Error; err != nil {
		return shared.Paginated[accounting.BankStatementLine]{}, err
	}

	lines := make([]accounting.BankStatementLine, len(lineModels))
	for i := range lineModels {
		lines[i] = *lineModels[i].ToDomain()
	}
	return shared.NewPaginated(lines, total, filter.Page, filter.PageSize), nil
}

// FindByBatch returns every line of one import batch
func (r *GormStatementRepository) FindByBatch(ctx context.Context, importBatchID uuid.UUID) ([]*accounting.BankStatementLine, error) {
	var lineModels []models.BankStatementLineModel
	if err := r.db.WithContext(ctx).
		Where("import_batch_id = ?", importBatchID).
		Order("statement_number ASC").
		Find(&lineModels).Error; err != nil {
		return nil, err
	}
	lines := make([]*accounting.BankStatementLine, len(lineModels))
	for i := range lineModels {
		lines[i] = lineModels[i].ToDomain()
	}
	return lines, nil
}

// IsPaymentMatched reports whether any line already holds the payment.
// Matching is 1:1; the check runs inside the matching transaction.
func (r *GormStatementRepository) IsPaymentMatched(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BankStatementLineModel{}).
		Where("matched_payment = ? AND status IN ?", paymentID, []accounting.MatchStatus{
			accounting.MatchStatusAutoMatched,
			accounting.MatchStatusMatched,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save persists a statement line
func (r *GormStatementRepository) Save(ctx context.Context, line *accounting.BankStatementLine) error {
	model := &models.BankStatementLineModel{}
	model.FromDomain(line)
	return r.db.WithContext(ctx).Save(model).Error
}

// CountImportedThisMonth counts lines imported in the month containing at
func (r *GormStatementRepository) CountImportedThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error) {
	start, end := monthBounds(at)
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BankStatementLineModel{}).
		Where("village_id = ? AND created_at >= ? AND created_at < ?", villageID, start, end).
		Count(&count).Error
	return count, err
}
