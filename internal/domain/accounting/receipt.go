package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// ReceiptStatus represents the lifecycle of a receipt
type ReceiptStatus string

const (
	ReceiptStatusIssued ReceiptStatus = "issued"
	ReceiptStatusVoid   ReceiptStatus = "void"
)

// Receipt is the numbered proof of a committed allocation batch.
// Sequence numbers are village-scoped, strictly monotonic and never
// reused; a void keeps its number and a reissue takes a fresh one.
type Receipt struct {
	shared.VillageAggregateRoot
	PaymentID      uuid.UUID
	SequenceNumber int64
	ReceiptNumber  string
	Amount         valueobject.Money
	Status         ReceiptStatus
	IssuedAt       time.Time
	VoidedAt       *time.Time
	VoidReason     string
	ReissuedFrom   *uuid.UUID
}

// NewReceipt issues a receipt for an allocation batch
func NewReceipt(villageID, paymentID uuid.UUID, sequence int64, amount valueobject.Money, issuedAt time.Time) (*Receipt, error) {
	if sequence <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Receipt sequence must be positive")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	r := &Receipt{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		PaymentID:            paymentID,
		SequenceNumber:       sequence,
		ReceiptNumber:        FormatReceiptNumber(issuedAt, sequence),
		Amount:               amount,
		Status:               ReceiptStatusIssued,
		IssuedAt:             issuedAt,
	}
	r.AddDomainEvent(NewReceiptIssuedEvent(r))
	return r, nil
}

// FormatReceiptNumber renders the RCPYYYYMM### receipt number
func FormatReceiptNumber(at time.Time, sequence int64) string {
	return fmt.Sprintf("RCP%04d%02d%03d", at.Year(), int(at.Month()), sequence)
}

// Void marks the receipt invalid; the sequence number stays burned
func (r *Receipt) Void(reason string) error {
	if r.Status == ReceiptStatusVoid {
		return shared.NewDomainError("INVALID_STATE", "Receipt is already void")
	}
	now := time.Now()
	r.Status = ReceiptStatusVoid
	r.VoidedAt = &now
	r.VoidReason = reason
	r.Touch()
	r.IncrementVersion()

	r.AddDomainEvent(NewReceiptVoidedEvent(r, reason))
	return nil
}

// Reissue creates the replacement receipt with a fresh sequence number
func (r *Receipt) Reissue(sequence int64, issuedAt time.Time) (*Receipt, error) {
	if r.Status != ReceiptStatusVoid {
		return nil, shared.NewDomainError("INVALID_STATE", "Only void receipts can be reissued")
	}
	if sequence <= r.SequenceNumber {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reissued sequence must be greater than the original")
	}
	replacement, err := NewReceipt(r.VillageID, r.PaymentID, sequence, r.Amount, issuedAt)
	if err != nil {
		return nil, err
	}
	original := r.ID
	replacement.ReissuedFrom = &original
	return replacement, nil
}

// Event types for the receipt aggregate
const (
	EventTypeReceiptIssued = "receipt.issued"
	EventTypeReceiptVoided = "receipt.voided"
)

const aggregateTypeReceipt = "Receipt"

// ReceiptIssuedEvent is raised when a receipt is numbered and stored
type ReceiptIssuedEvent struct {
	shared.BaseDomainEvent
	PaymentID     string `json:"payment_id"`
	ReceiptNumber string `json:"receipt_number"`
	AmountUnits   int64  `json:"amount_units"`
}

// NewReceiptIssuedEvent creates a ReceiptIssuedEvent from the aggregate
func NewReceiptIssuedEvent(r *Receipt) *ReceiptIssuedEvent {
	return &ReceiptIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceiptIssued, aggregateTypeReceipt, r.ID, r.VillageID),
		PaymentID:       r.PaymentID.String(),
		ReceiptNumber:   r.ReceiptNumber,
		AmountUnits:     r.Amount.Units(),
	}
}

// ReceiptVoidedEvent is raised when a receipt is voided
type ReceiptVoidedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber string `json:"receipt_number"`
	Reason        string `json:"reason"`
}

// NewReceiptVoidedEvent creates a ReceiptVoidedEvent from the aggregate
func NewReceiptVoidedEvent(r *Receipt, reason string) *ReceiptVoidedEvent {
	return &ReceiptVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceiptVoided, aggregateTypeReceipt, r.ID, r.VillageID),
		ReceiptNumber:   r.ReceiptNumber,
		Reason:          reason,
	}
}
