package accounting

import (
	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
)

// Event types for the payment aggregate
const (
	EventTypePaymentRecorded  = "payment.recorded"
	EventTypePaymentConfirmed = "payment.confirmed"
	EventTypePaymentAllocated = "payment.allocated"
)

const aggregateTypePayment = "Payment"

// PaymentRecordedEvent is raised when a payment enters the system
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PropertyID  string `json:"property_id"`
	AmountUnits int64  `json:"amount_units"`
	Method      string `json:"method"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent from the aggregate
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, aggregateTypePayment, p.ID, p.VillageID),
		PropertyID:      p.PropertyID.String(),
		AmountUnits:     p.Amount.Units(),
		Method:          string(p.Method),
	}
}

// PaymentConfirmedEvent is raised when a payment is verified
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	PropertyID  string `json:"property_id"`
	AmountUnits int64  `json:"amount_units"`
}

// NewPaymentConfirmedEvent creates a PaymentConfirmedEvent from the aggregate
func NewPaymentConfirmedEvent(p *Payment) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, aggregateTypePayment, p.ID, p.VillageID),
		PropertyID:      p.PropertyID.String(),
		AmountUnits:     p.Amount.Units(),
	}
}

// PaymentAllocatedEvent is raised after an allocation batch commits
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PropertyID       string      `json:"property_id"`
	AllocatedUnits   int64       `json:"allocated_units"`
	CreditedUnits    int64       `json:"credited_units"`
	SettledInvoices  []uuid.UUID `json:"settled_invoices"`
	PartialInvoices  []uuid.UUID `json:"partial_invoices"`
	CreditConsumedBy int64       `json:"credit_consumed_units"`
}

// NewPaymentAllocatedEvent creates a PaymentAllocatedEvent from a committed plan
func NewPaymentAllocatedEvent(p *Payment, plan *AllocationPlan) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentAllocated, aggregateTypePayment, p.ID, p.VillageID),
		PropertyID:       p.PropertyID.String(),
		AllocatedUnits:   plan.TotalAllocated.Units(),
		CreditedUnits:    plan.ExcessToCredit.Units(),
		SettledInvoices:  plan.SettledInvoiceIDs(),
		PartialInvoices:  plan.PartialInvoiceIDs(),
		CreditConsumedBy: plan.CreditConsumed.Units(),
	}
}
