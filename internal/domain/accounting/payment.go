package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// IsValid checks if the status is known
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusRejected:
		return true
	}
	return false
}

// PaymentMethod is how the resident paid
type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodQRCode        PaymentMethod = "qr"
	PaymentMethodCreditCard    PaymentMethod = "credit_card"
	PaymentMethodMobileBanking PaymentMethod = "mobile_banking"
)

// IsValid checks if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodQRCode,
		PaymentMethodCreditCard, PaymentMethodMobileBanking:
		return true
	}
	return false
}

// Payment is money received from a property owner, before and after it
// is spread across invoices. AllocatedAt doubles as the idempotency
// marker for the allocation engine: a payment with it set has already
// been through a committed allocation batch.
type Payment struct {
	shared.VillageAggregateRoot
	PropertyID        uuid.UUID
	Amount            valueobject.Money
	Method            PaymentMethod
	ExternalReference string
	Note              string
	Status            PaymentStatus
	ReceivedAt        time.Time
	ConfirmedAt       *time.Time
	AllocatedAt       *time.Time
	MatchedLineID     *uuid.UUID
}

// NewPayment records a pending payment
func NewPayment(villageID, propertyID uuid.UUID, amount valueobject.Money, method PaymentMethod, receivedAt time.Time, externalReference, note string) (*Payment, error) {
	if villageID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Village ID is required")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Property ID is required")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown payment method")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	p := &Payment{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		PropertyID:           propertyID,
		Amount:               amount,
		Method:               method,
		ExternalReference:    externalReference,
		Note:                 note,
		Status:               PaymentStatusPending,
		ReceivedAt:           receivedAt,
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
	return p, nil
}

// Confirm marks the payment as verified and ready for allocation
func (p *Payment) Confirm() error {
	if p.Status == PaymentStatusConfirmed {
		return nil
	}
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending payments can be confirmed")
	}
	now := time.Now()
	p.Status = PaymentStatusConfirmed
	p.ConfirmedAt = &now
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentConfirmedEvent(p))
	return nil
}

// Reject marks a pending payment as invalid
func (p *Payment) Reject(reason string) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending payments can be rejected")
	}
	p.Status = PaymentStatusRejected
	p.Note = reason
	p.Touch()
	p.IncrementVersion()
	return nil
}

// IsAllocated reports whether an allocation batch has been committed
func (p *Payment) IsAllocated() bool {
	return p.AllocatedAt != nil
}

// MarkAllocated stamps the idempotency marker after a committed batch
func (p *Payment) MarkAllocated(at time.Time) error {
	if p.Status != PaymentStatusConfirmed {
		return shared.NewDomainError("INVALID_STATE", "Only confirmed payments can be allocated")
	}
	if p.IsAllocated() {
		return shared.NewDomainError("INVALID_STATE", "Payment has already been allocated")
	}
	p.AllocatedAt = &at
	p.Touch()
	p.IncrementVersion()
	return nil
}

// AttachStatementLine records the 1:1 link to a matched bank statement line
func (p *Payment) AttachStatementLine(lineID uuid.UUID) error {
	if p.MatchedLineID != nil {
		return shared.NewDomainError("INVALID_STATE", "Payment is already matched to a statement line")
	}
	p.MatchedLineID = &lineID
	p.Touch()
	p.IncrementVersion()
	return nil
}

// DetachStatementLine clears the statement link during an unmatch
func (p *Payment) DetachStatementLine() {
	p.MatchedLineID = nil
	p.Touch()
	p.IncrementVersion()
}
