package accounting

import (
	"time"

	"github.com/smartvillage/backend/internal/domain/shared"
)

// Event types for the invoice aggregate
const (
	EventTypeInvoiceIssued   = "invoice.issued"
	EventTypeInvoicePaid     = "invoice.paid"
	EventTypeInvoiceOverdue  = "invoice.overdue"
	EventTypeInvoiceCanceled = "invoice.canceled"
)

const aggregateTypeInvoice = "Invoice"

// InvoiceIssuedEvent is raised when a draft invoice becomes payable
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	PropertyID      string    `json:"property_id"`
	ReferenceNumber string    `json:"reference_number"`
	AmountUnits     int64     `json:"amount_units"`
	DueDate         time.Time `json:"due_date"`
}

// NewInvoiceIssuedEvent creates an InvoiceIssuedEvent from the aggregate
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, aggregateTypeInvoice, inv.ID, inv.VillageID),
		PropertyID:      inv.PropertyID.String(),
		ReferenceNumber: inv.ReferenceNumber,
		AmountUnits:     inv.Amount.Units(),
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised when the outstanding balance reaches zero
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	PropertyID      string `json:"property_id"`
	ReferenceNumber string `json:"reference_number"`
	AmountUnits     int64  `json:"amount_units"`
}

// NewInvoicePaidEvent creates an InvoicePaidEvent from the aggregate
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, aggregateTypeInvoice, inv.ID, inv.VillageID),
		PropertyID:      inv.PropertyID.String(),
		ReferenceNumber: inv.ReferenceNumber,
		AmountUnits:     inv.Amount.Units(),
	}
}

// InvoiceOverdueEvent is raised by the overdue sweep
type InvoiceOverdueEvent struct {
	shared.BaseDomainEvent
	PropertyID       string    `json:"property_id"`
	ReferenceNumber  string    `json:"reference_number"`
	OutstandingUnits int64     `json:"outstanding_units"`
	DueDate          time.Time `json:"due_date"`
}

// NewInvoiceOverdueEvent creates an InvoiceOverdueEvent from the aggregate
func NewInvoiceOverdueEvent(inv *Invoice) *InvoiceOverdueEvent {
	return &InvoiceOverdueEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeInvoiceOverdue, aggregateTypeInvoice, inv.ID, inv.VillageID),
		PropertyID:       inv.PropertyID.String(),
		ReferenceNumber:  inv.ReferenceNumber,
		OutstandingUnits: inv.OutstandingAmount().Units(),
		DueDate:          inv.DueDate,
	}
}

// InvoiceCanceledEvent is raised when an invoice is voided
type InvoiceCanceledEvent struct {
	shared.BaseDomainEvent
	PropertyID      string `json:"property_id"`
	ReferenceNumber string `json:"reference_number"`
	Reason          string `json:"reason"`
}

// NewInvoiceCanceledEvent creates an InvoiceCanceledEvent from the aggregate
func NewInvoiceCanceledEvent(inv *Invoice, reason string) *InvoiceCanceledEvent {
	return &InvoiceCanceledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCanceled, aggregateTypeInvoice, inv.ID, inv.VillageID),
		PropertyID:      inv.PropertyID.String(),
		ReferenceNumber: inv.ReferenceNumber,
		Reason:          reason,
	}
}
