package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM.
// Allocation rows are append-only; there is no update or delete path.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// SaveAll persists the rows of one committed allocation batch
func (r *GormAllocationRepository) SaveAll(ctx context.Context, allocations []*accounting.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	allocationModels := make([]models.PaymentAllocationModel, len(allocations))
	for i, a := range allocations {
		allocationModels[i].FromDomain(a)
	}
	return r.db.WithContext(ctx).Create(&allocationModels).Error
}

// FindByPayment returns the rows recorded for a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*accounting.PaymentAllocation, error) {
	var allocationModels []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, id ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindByInvoice returns the rows recorded against an invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*accounting.PaymentAllocation, error) {
	var allocationModels []models.PaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// SumBySource totals rows of one source for a payment
func (r *GormAllocationRepository) SumBySource(ctx context.Context, paymentID uuid.UUID, source accounting.AllocationSource) (valueobject.Money, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PaymentAllocationModel{}).
		Where("payment_id = ? AND source = ?", paymentID, source).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return valueobject.ZeroTHB(), err
	}
	return valueobject.NewMoneyTHB(total), nil
}

func toDomainAllocations(allocationModels []models.PaymentAllocationModel) []*accounting.PaymentAllocation {
	allocations := make([]*accounting.PaymentAllocation, len(allocationModels))
	for i := range allocationModels {
		allocations[i] = allocationModels[i].ToDomain()
	}
	return allocations
}
