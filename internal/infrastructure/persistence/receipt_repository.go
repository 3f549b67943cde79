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

// ReceiptSortFields contains allowed sort fields for receipts
var ReceiptSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"receipt_number":  true,
	"sequence_number": true,
	"issued_at":       true,
	"status":          true,
}

// GormReceiptRepository implements ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByID finds a receipt by its ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForVillage finds a receipt by ID scoped to a village
func (r *GormReceiptRepository) FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*accounting.Receipt, error) {
	var model models.ReceiptModel
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

// FindByPayment returns the newest receipt issued for a payment
func (r *GormReceiptRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) (*accounting.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("sequence_number DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFilter lists receipts for a village joined through their payments
func (r *GormReceiptRepository) FindByFilter(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, filter shared.Filter) (shared.Paginated[accounting.Receipt], error) {
	query := r.db.WithContext(ctx).Model(&models.ReceiptModel{}).
		Where("receipts.village_id = ?", villageID)
	if propertyID != nil {
		query = query.
			Joins("JOIN payments ON payments.id = receipts.payment_id").
			Where("payments.property_id = ?", *propertyID)
	}
	if filter.Search != "" {
		query = query.Where("receipts.receipt_number ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[accounting.Receipt]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ReceiptSortFields, "sequence_number")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var receiptModels []models.ReceiptModel
	if err := query.
		Order(fmt.Sprintf("receipts.%s %s", orderBy, orderDir)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&receiptModels).Error; err != nil {
		return shared.Paginated[accounting.Receipt]{}, err
	}

	receipts := make([]accounting.Receipt, len(receiptModels))
	for i := range receiptModels {
		receipts[i] = *receiptModels[i].ToDomain()
	}
	return shared.NewPaginated(receipts, total, filter.Page, filter.PageSize), nil
}

// Save persists a receipt
func (r *GormReceiptRepository) Save(ctx context.Context, receipt *accounting.Receipt) error {
	model := &models.ReceiptModel{}
	model.FromDomain(receipt)
	return r.db.WithContext(ctx).Save(model).Error
}

// NextSequence atomically increments and returns the village receipt
// counter. The upsert makes the value unique even under concurrent
// callers; once returned, the number is consumed whether or not the
// caller goes on to insert a receipt.
func (r *GormReceiptRepository) NextSequence(ctx context.Context, villageID uuid.UUID) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO receipt_sequences (village_id, next_value, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT (village_id)
		DO UPDATE SET next_value = receipt_sequences.next_value + 1, updated_at = EXCLUDED.updated_at
		RETURNING next_value`,
		villageID, time.Now()).
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}
