package accounting

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// AllocationSource distinguishes where an applied amount came from
type AllocationSource string

const (
	AllocationSourcePayment AllocationSource = "payment"
	AllocationSourceCredit  AllocationSource = "credit"
)

// PaymentAllocation is the append-only record tying money to an invoice.
// Credit-sourced rows carry the payment that triggered the batch for
// audit, but only payment-sourced rows count against the payment amount.
type PaymentAllocation struct {
	shared.BaseEntity
	VillageID uuid.UUID
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    valueobject.Money
	Source    AllocationSource
}

// NewPaymentAllocation creates an allocation row
func NewPaymentAllocation(villageID, paymentID, invoiceID uuid.UUID, amount valueobject.Money, source AllocationSource) (*PaymentAllocation, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	return &PaymentAllocation{
		BaseEntity: shared.NewBaseEntity(),
		VillageID:  villageID,
		PaymentID:  paymentID,
		InvoiceID:  invoiceID,
		Amount:     amount,
		Source:     source,
	}, nil
}

// InvoiceApplication is one step of an allocation plan
type InvoiceApplication struct {
	Invoice *Invoice
	Amount  valueobject.Money
	Source  AllocationSource
}

// AllocationPlan is the oldest-due-first walk over a property's open
// invoices for one payment. The plan is computed against in-memory
// aggregates and committed atomically by the application layer.
type AllocationPlan struct {
	PaymentID      uuid.UUID
	Applications   []InvoiceApplication
	CreditConsumed valueobject.Money
	TotalAllocated valueobject.Money
	ExcessToCredit valueobject.Money
}

// SettledInvoiceIDs lists invoices the plan pays off completely
func (p *AllocationPlan) SettledInvoiceIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, app := range p.Applications {
		if app.Invoice.IsSettled() && !containsID(ids, app.Invoice.ID) {
			ids = append(ids, app.Invoice.ID)
		}
	}
	return ids
}

// PartialInvoiceIDs lists invoices the plan leaves partially paid
func (p *AllocationPlan) PartialInvoiceIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, app := range p.Applications {
		if !app.Invoice.IsSettled() && !containsID(ids, app.Invoice.ID) {
			ids = append(ids, app.Invoice.ID)
		}
	}
	return ids
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// SortInvoicesFIFO orders invoices oldest due date first, breaking ties
// by ID bytes so the walk is deterministic for equal due dates.
func SortInvoicesFIFO(invoices []*Invoice) {
	sort.SliceStable(invoices, func(a, b int) bool {
		if !invoices[a].DueDate.Equal(invoices[b].DueDate) {
			return invoices[a].DueDate.Before(invoices[b].DueDate)
		}
		return bytes.Compare(invoices[a].ID[:], invoices[b].ID[:]) < 0
	})
}

// PlanAllocation walks the property's open invoices oldest-due-first,
// consuming the existing credit balance before the payment itself, and
// mutates the invoice aggregates as it goes. Any remainder after every
// invoice is settled becomes new credit.
func PlanAllocation(payment *Payment, availableCredit valueobject.Money, invoices []*Invoice) (*AllocationPlan, error) {
	if payment.Status != PaymentStatusConfirmed {
		return nil, shared.NewDomainError("INVALID_STATE", "Only confirmed payments can be allocated")
	}
	if payment.IsAllocated() {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment has already been allocated")
	}
	if !payment.Amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if availableCredit.IsNegative() {
		return nil, shared.NewDomainError("LEDGER_INTEGRITY", "Credit balance is negative")
	}

	open := make([]*Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status.AcceptsAllocation() && !inv.IsSettled() {
			open = append(open, inv)
		}
	}
	SortInvoicesFIFO(open)

	plan := &AllocationPlan{
		PaymentID:      payment.ID,
		CreditConsumed: valueobject.ZeroTHB(),
		TotalAllocated: valueobject.ZeroTHB(),
		ExcessToCredit: valueobject.ZeroTHB(),
	}

	creditLeft := availableCredit
	paymentLeft := payment.Amount

	for _, inv := range open {
		if creditLeft.IsZero() && paymentLeft.IsZero() {
			break
		}

		if creditLeft.IsPositive() {
			applied := valueobject.Min(creditLeft, inv.OutstandingAmount())
			if applied.IsPositive() {
				if err := inv.ApplyAllocation(applied); err != nil {
					return nil, err
				}
				creditLeft = creditLeft.MustSubtract(applied)
				plan.CreditConsumed = plan.CreditConsumed.MustAdd(applied)
				plan.Applications = append(plan.Applications, InvoiceApplication{
					Invoice: inv,
					Amount:  applied,
					Source:  AllocationSourceCredit,
				})
			}
		}

		if paymentLeft.IsPositive() && !inv.IsSettled() {
			applied := valueobject.Min(paymentLeft, inv.OutstandingAmount())
			if applied.IsPositive() {
				if err := inv.ApplyAllocation(applied); err != nil {
					return nil, err
				}
				paymentLeft = paymentLeft.MustSubtract(applied)
				plan.TotalAllocated = plan.TotalAllocated.MustAdd(applied)
				plan.Applications = append(plan.Applications, InvoiceApplication{
					Invoice: inv,
					Amount:  applied,
					Source:  AllocationSourcePayment,
				})
			}
		}
	}

	plan.ExcessToCredit = paymentLeft
	return plan, nil
}

// BuildAllocationRows materializes the persisted rows for a plan
func (p *AllocationPlan) BuildAllocationRows(villageID uuid.UUID) ([]*PaymentAllocation, error) {
	rows := make([]*PaymentAllocation, 0, len(p.Applications))
	for _, app := range p.Applications {
		row, err := NewPaymentAllocation(villageID, p.PaymentID, app.Invoice.ID, app.Amount, app.Source)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NetCreditChange is the credit balance delta the plan commits:
// excess added minus existing credit consumed.
func (p *AllocationPlan) NetCreditChange() valueobject.Money {
	return p.ExcessToCredit.MustSubtract(p.CreditConsumed)
}

// HasEffect reports whether committing the plan changes anything
func (p *AllocationPlan) HasEffect() bool {
	return len(p.Applications) > 0 || p.ExcessToCredit.IsPositive()
}

// CreditBalance is the per-property prepayment pot. It is mutated only
// inside allocation transactions, so the balance can never go negative.
type CreditBalance struct {
	shared.VillageAggregateRoot
	PropertyID uuid.UUID
	Balance    valueobject.Money
}

// NewCreditBalance creates an empty credit balance for a property
func NewCreditBalance(villageID, propertyID uuid.UUID) *CreditBalance {
	return &CreditBalance{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		PropertyID:           propertyID,
		Balance:              valueobject.ZeroTHB(),
	}
}

// Apply adjusts the balance by the plan's net change
func (c *CreditBalance) Apply(delta valueobject.Money) error {
	next := c.Balance.MustAdd(delta)
	if next.IsNegative() {
		return shared.NewDomainError("LEDGER_INTEGRITY", "Credit balance cannot go negative")
	}
	c.Balance = next
	c.Touch()
	c.IncrementVersion()
	return nil
}
