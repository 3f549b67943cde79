package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusIssued        InvoiceStatus = "issued"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCanceled      InvoiceStatus = "canceled"
)

// IsValid checks if the status is a known lifecycle state
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartiallyPaid,
		InvoiceStatusOverdue, InvoiceStatusPaid, InvoiceStatusCanceled:
		return true
	}
	return false
}

// IsTerminal returns true when no further transitions are possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCanceled
}

// AcceptsAllocation returns true when the invoice may receive payment allocations
func (s InvoiceStatus) AcceptsAllocation() bool {
	switch s {
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// InvoiceType categorizes the charge behind an invoice
type InvoiceType string

const (
	InvoiceTypeMonthlyFee  InvoiceType = "monthly_fee"
	InvoiceTypeUtility     InvoiceType = "utility"
	InvoiceTypeMaintenance InvoiceType = "maintenance"
	InvoiceTypePenalty     InvoiceType = "penalty"
	InvoiceTypeOther       InvoiceType = "other"
)

// IsValid checks if the invoice type is known
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeMonthlyFee, InvoiceTypeUtility, InvoiceTypeMaintenance,
		InvoiceTypePenalty, InvoiceTypeOther:
		return true
	}
	return false
}

// Invoice is the billing aggregate for a single property charge.
// AllocatedAmount is maintained alongside the allocation rows so the
// outstanding balance never needs a join to answer.
type Invoice struct {
	shared.VillageAggregateRoot
	PropertyID      uuid.UUID
	ReferenceNumber string
	Type            InvoiceType
	Description     string
	Amount          valueobject.Money
	AllocatedAmount valueobject.Money
	Status          InvoiceStatus
	DueDate         time.Time
	IssuedAt        *time.Time
	PaidAt          *time.Time
	CanceledAt      *time.Time
}

// NewInvoice creates a draft invoice. Amounts are satang and must be positive.
func NewInvoice(villageID, propertyID uuid.UUID, referenceNumber string, invoiceType InvoiceType, amount valueobject.Money, dueDate time.Time, description string) (*Invoice, error) {
	if villageID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Village ID is required")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Property ID is required")
	}
	if referenceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reference number is required")
	}
	if !invoiceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown invoice type")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if dueDate.IsZero() {
		return nil, shared.ErrInvalidDueDate
	}

	return &Invoice{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		PropertyID:           propertyID,
		ReferenceNumber:      referenceNumber,
		Type:                 invoiceType,
		Description:          description,
		Amount:               amount,
		AllocatedAmount:      valueobject.ZeroTHB(),
		Status:               InvoiceStatusDraft,
		DueDate:              dueDate,
	}, nil
}

// OutstandingAmount returns the unpaid remainder
func (i *Invoice) OutstandingAmount() valueobject.Money {
	return i.Amount.MustSubtract(i.AllocatedAmount)
}

// IsSettled returns true when nothing remains outstanding
func (i *Invoice) IsSettled() bool {
	return i.OutstandingAmount().IsZero()
}

// Issue transitions a draft invoice into the issued state
func (i *Invoice) Issue() error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Only draft invoices can be issued")
	}
	now := time.Now()
	i.Status = InvoiceStatusIssued
	i.IssuedAt = &now
	i.Touch()
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceIssuedEvent(i))
	return nil
}

// ApplyAllocation records an allocation against the outstanding balance.
// The caller persists the PaymentAllocation row; this keeps the running
// total and the status in step with it.
func (i *Invoice) ApplyAllocation(amount valueobject.Money) error {
	if !i.Status.AcceptsAllocation() {
		return shared.NewDomainError("INVALID_STATE", "Invoice cannot receive allocations in status "+string(i.Status))
	}
	if !amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	exceeds, err := amount.GreaterThan(i.OutstandingAmount())
	if err != nil {
		return err
	}
	if exceeds {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation exceeds outstanding amount")
	}

	i.AllocatedAmount = i.AllocatedAmount.MustAdd(amount)
	if i.IsSettled() {
		now := time.Now()
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
		i.AddDomainEvent(NewInvoicePaidEvent(i))
	} else if i.Status == InvoiceStatusIssued {
		i.Status = InvoiceStatusPartiallyPaid
	}
	i.Touch()
	i.IncrementVersion()
	return nil
}

// MarkOverdue flags an unpaid invoice past its due date. Calling it on an
// invoice that is already overdue is a no-op so the sweep can re-run safely.
func (i *Invoice) MarkOverdue(now time.Time) error {
	if i.Status == InvoiceStatusOverdue {
		return nil
	}
	if i.Status != InvoiceStatusIssued && i.Status != InvoiceStatusPartiallyPaid {
		return shared.NewDomainError("INVALID_STATE", "Only issued or partially paid invoices can become overdue")
	}
	if !now.After(i.DueDate) {
		return shared.NewDomainError("INVALID_STATE", "Invoice is not past its due date")
	}
	if i.IsSettled() {
		return shared.NewDomainError("INVALID_STATE", "Settled invoices cannot become overdue")
	}

	i.Status = InvoiceStatusOverdue
	i.Touch()
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceOverdueEvent(i))
	return nil
}

// Cancel voids an invoice that has no allocations against it
func (i *Invoice) Cancel(reason string) error {
	if i.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already in a terminal state")
	}
	if i.AllocatedAmount.IsPositive() {
		return shared.NewDomainError("INVALID_STATE", "Invoices with allocations cannot be canceled")
	}
	now := time.Now()
	i.Status = InvoiceStatusCanceled
	i.CanceledAt = &now
	i.Touch()
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceCanceledEvent(i, reason))
	return nil
}

// IsOverdueAt reports whether the invoice should be flagged by the sweep
func (i *Invoice) IsOverdueAt(now time.Time) bool {
	return i.Status.AcceptsAllocation() && now.After(i.DueDate) && !i.IsSettled()
}

// DaysOverdue returns how many whole days past due the invoice is
func (i *Invoice) DaysOverdue(now time.Time) int {
	if !now.After(i.DueDate) {
		return 0
	}
	return int(now.Sub(i.DueDate).Hours() / 24)
}
