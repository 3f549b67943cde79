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
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForVillage finds a payment by ID scoped to a village
func (r *GormPaymentRepository) FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*accounting.Payment, error) {
	var model models.PaymentModel
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

// FindPendingByVillage returns pending payments for the reconciliation matcher
func (r *GormPaymentRepository) FindPendingByVillage(ctx context.Context, villageID uuid.UUID) ([]*accounting.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND status = ?", villageID, accounting.PaymentStatusPending).
		Order("received_at ASC, id ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]*accounting.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = paymentModels[i].ToDomain()
	}
	return payments, nil
}

// FindByExternalReference looks up a payment by its bank reference
func (r *GormPaymentRepository) FindByExternalReference(ctx context.Context, villageID uuid.UUID, reference string) (*accounting.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND external_reference = ?", villageID, reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a payment without a version check
func (r *GormPaymentRepository) Save(ctx context.Context, payment *accounting.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists a payment with an optimistic version check
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *accounting.Payment, expectedVersion int) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":          payment.Status,
			"note":            payment.Note,
			"confirmed_at":    payment.ConfirmedAt,
			"allocated_at":    payment.AllocatedAt,
			"matched_line_id": payment.MatchedLineID,
			"version":         expectedVersion + 1,
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
			Where("id = ?", payment.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	payment.Version = expectedVersion + 1
	payment.UpdatedAt = now
	return nil
}
