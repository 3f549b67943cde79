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

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"reference_number": true,
	"due_date":         true,
	"amount":           true,
	"status":           true,
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*accounting.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForVillage finds an invoice by ID scoped to a village
func (r *GormInvoiceRepository) FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*accounting.Invoice, error) {
	var model models.InvoiceModel
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

// FindByReference finds an invoice by its village-unique reference number
func (r *GormInvoiceRepository) FindByReference(ctx context.Context, villageID uuid.UUID, reference string) (*accounting.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND reference_number = ?", villageID, reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOutstandingByProperty returns allocatable invoices for a property,
// oldest due date first with the invoice ID as a stable tie-break.
func (r *GormInvoiceRepository) FindOutstandingByProperty(ctx context.Context, villageID, propertyID uuid.UUID) ([]*accounting.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("village_id = ? AND property_id = ? AND status IN ?", villageID, propertyID, []accounting.InvoiceStatus{
			accounting.InvoiceStatusIssued,
			accounting.InvoiceStatusPartiallyPaid,
			accounting.InvoiceStatusOverdue,
		}).
		Order("due_date ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]*accounting.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// FindDueForOverdueSweep returns unpaid invoices past the due cutoff that
// have not been flagged overdue yet
func (r *GormInvoiceRepository) FindDueForOverdueSweep(ctx context.Context, before time.Time, limit int) ([]*accounting.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", []accounting.InvoiceStatus{
			accounting.InvoiceStatusIssued,
			accounting.InvoiceStatusPartiallyPaid,
		}, before).
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]*accounting.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// FindByFilter lists invoices for a village with optional property and status filters
func (r *GormInvoiceRepository) FindByFilter(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, status *accounting.InvoiceStatus, filter shared.Filter) (shared.Paginated[accounting.Invoice], error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("village_id = ?", villageID)
	if propertyID != nil {
		query = query.Where("property_id = ?", *propertyID)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if filter.Search != "" {
		query = query.Where("reference_number ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[accounting.Invoice]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "due_date")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var invoiceModels []models.InvoiceModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&invoiceModels).Error; err != nil {
		return shared.Paginated[accounting.Invoice]{}, err
	}

	invoices := make([]accounting.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return shared.NewPaginated(invoices, total, filter.Page, filter.PageSize), nil
}

// Save persists an invoice without a version check
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *accounting.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists an invoice with an optimistic version check.
// Returns shared.ErrConcurrencyConflict when the row moved underneath.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *accounting.Invoice, expectedVersion int) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, expectedVersion).
		Updates(map[string]interface{}{
			"allocated_amount": invoice.AllocatedAmount,
			"status":           invoice.Status,
			"due_date":         invoice.DueDate,
			"description":      invoice.Description,
			"issued_at":        invoice.IssuedAt,
			"paid_at":          invoice.PaidAt,
			"canceled_at":      invoice.CanceledAt,
			"version":          expectedVersion + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
			Where("id = ?", invoice.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	invoice.Version = expectedVersion + 1
	invoice.UpdatedAt = now
	return nil
}

// CountIssuedThisMonth counts invoices issued in the month containing at
func (r *GormInvoiceRepository) CountIssuedThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error) {
	start, end := monthBounds(at)
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("village_id = ? AND issued_at >= ? AND issued_at < ?", villageID, start, end).
		Count(&count).Error
	return count, err
}

// monthBounds returns the half-open [start, end) interval of the month
// containing at, in at's location.
func monthBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 1, 0)
}
