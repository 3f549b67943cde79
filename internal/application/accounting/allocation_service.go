package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PropertyLocker serializes allocation batches per property. Acquire
// blocks until the lock is held or the context-bounded wait gives up,
// in which case it returns shared.ErrConcurrencyConflict.
type PropertyLocker interface {
	Acquire(ctx context.Context, villageID, propertyID uuid.UUID) (release func(), err error)
}

// AllocationService spreads confirmed payments across a property's open
// invoices, oldest due first, inside one transaction. It owns the
// per-property serialization and hands committed batches to the
// receipt generator.
type AllocationService struct {
	uow       accounting.UnitOfWork
	locker    PropertyLocker
	receipts  *ReceiptService
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewAllocationService creates an AllocationService
func NewAllocationService(uow accounting.UnitOfWork, locker PropertyLocker, receipts *ReceiptService, publisher shared.EventPublisher, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		uow:       uow,
		locker:    locker,
		receipts:  receipts,
		publisher: publisher,
		logger:    logger,
	}
}

// AllocationResult summarizes one committed batch
type AllocationResult struct {
	PaymentID        uuid.UUID   `json:"payment_id"`
	AllocatedUnits   int64       `json:"allocated_units"`
	CreditedUnits    int64       `json:"credited_units"`
	CreditUsedUnits  int64       `json:"credit_used_units"`
	SettledInvoices  []uuid.UUID `json:"settled_invoices"`
	PartialInvoices  []uuid.UUID `json:"partial_invoices"`
	ReceiptID        *uuid.UUID  `json:"receipt_id,omitempty"`
	ReceiptNumber    string      `json:"receipt_number,omitempty"`
	AlreadyAllocated bool        `json:"already_allocated"`
}

// ConfirmAndAllocate confirms a pending payment and runs the allocation
// batch. Re-running it for an already allocated payment is a no-op that
// reports success.
func (s *AllocationService) ConfirmAndAllocate(ctx context.Context, villageID, paymentID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "confirm_and_allocate")
	defer span.End()
	telemetry.SetAttributes(span,
		"village_id", villageID.String(),
		"payment_id", paymentID.String(),
	)

	// Property is only known after loading the payment, so peek first.
	var propertyID uuid.UUID
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		payment, err := repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		if err != nil {
			return err
		}
		propertyID = payment.PropertyID
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, villageID, propertyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	var (
		payment *accounting.Payment
		plan    *accounting.AllocationPlan
		result  *AllocationResult
	)
	err = s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		if err := ensurePostingAllowed(ctx, repos, villageID); err != nil {
			return err
		}

		payment, err = repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		if err != nil {
			return err
		}
		if payment.IsAllocated() {
			result = &AllocationResult{PaymentID: paymentID, AlreadyAllocated: true}
			return nil
		}
		if err := payment.Confirm(); err != nil {
			return err
		}

		credit, err := repos.Credits.FindOrCreate(ctx, villageID, payment.PropertyID)
		if err != nil {
			return err
		}
		invoices, err := repos.Invoices.FindOutstandingByProperty(ctx, villageID, payment.PropertyID)
		if err != nil {
			return err
		}

		plan, err = accounting.PlanAllocation(payment, credit.Balance, invoices)
		if err != nil {
			return err
		}

		// An invoice can appear twice in the plan (credit leg plus payment
		// leg); save each aggregate once against its pre-plan version.
		now := time.Now()
		touched := make(map[uuid.UUID]*accounting.Invoice)
		increments := make(map[uuid.UUID]int)
		for _, app := range plan.Applications {
			touched[app.Invoice.ID] = app.Invoice
			increments[app.Invoice.ID]++
		}
		for id, inv := range touched {
			if err := repos.Invoices.SaveWithLock(ctx, inv, inv.GetVersion()-increments[id]); err != nil {
				return err
			}
		}

		rows, err := plan.BuildAllocationRows(villageID)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := repos.Allocations.SaveAll(ctx, rows); err != nil {
				return fmt.Errorf("failed to save allocations: %w", err)
			}
		}

		if !plan.NetCreditChange().IsZero() {
			if err := credit.Apply(plan.NetCreditChange()); err != nil {
				return err
			}
			if err := repos.Credits.SaveWithLock(ctx, credit, credit.GetVersion()-1); err != nil {
				return err
			}
		}

		entrySeq, err := repos.Journal.CountEntriesThisMonth(ctx, villageID, now)
		if err != nil {
			return err
		}
		batch, err := accounting.BuildAllocationPostings(
			accountLookup{ctx: ctx, repos: repos, villageID: villageID},
			payment, plan, accounting.FormatEntryNumber(now, entrySeq+1), now)
		if err != nil {
			return err
		}
		if err := repos.Journal.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to post journal batch: %w", err)
		}

		if err := payment.MarkAllocated(now); err != nil {
			return err
		}
		payment.AddDomainEvent(accounting.NewPaymentAllocatedEvent(payment, plan))
		if err := repos.Payments.SaveWithLock(ctx, payment, payment.GetVersion()-1); err != nil {
			return err
		}

		result = &AllocationResult{
			PaymentID:       paymentID,
			AllocatedUnits:  plan.TotalAllocated.Units(),
			CreditedUnits:   plan.ExcessToCredit.Units(),
			CreditUsedUnits: plan.CreditConsumed.Units(),
			SettledInvoices: plan.SettledInvoiceIDs(),
			PartialInvoices: plan.PartialInvoiceIDs(),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.AlreadyAllocated {
		return result, nil
	}

	s.publishPaymentEvents(ctx, payment, plan)

	// The batch is committed; receipt issuance failures must not undo it.
	if plan.TotalAllocated.IsPositive() || plan.CreditConsumed.IsPositive() {
		receiptAmount := plan.TotalAllocated.MustAdd(plan.CreditConsumed)
		receipt, rErr := s.receipts.IssueForAllocation(ctx, villageID, paymentID, receiptAmount)
		if rErr != nil {
			s.logger.Error("receipt issuance failed after committed allocation",
				zap.String("payment_id", paymentID.String()),
				zap.Error(rErr))
		} else {
			id := receipt.ID
			result.ReceiptID = &id
			result.ReceiptNumber = receipt.ReceiptNumber
		}
	}

	return result, nil
}

func (s *AllocationService) publishPaymentEvents(ctx context.Context, payment *accounting.Payment, plan *accounting.AllocationPlan) {
	events := payment.GetDomainEvents()
	payment.ClearDomainEvents()
	for _, app := range plan.Applications {
		events = append(events, app.Invoice.GetDomainEvents()...)
		app.Invoice.ClearDomainEvents()
	}
	if len(events) > 0 {
		_ = s.publisher.Publish(ctx, events...)
	}
}

// RecordPaymentRequest carries the fields to record an incoming payment
type RecordPaymentRequest struct {
	VillageID         uuid.UUID
	PropertyID        uuid.UUID
	AmountUnits       int64
	Method            accounting.PaymentMethod
	ReceivedAt        time.Time
	ExternalReference string
	Note              string
}

// RecordPayment stores a pending payment awaiting confirmation
func (s *AllocationService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*accounting.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		"village_id", req.VillageID.String(),
		"property_id", req.PropertyID.String(),
		"amount_units", req.AmountUnits,
	)

	var payment *accounting.Payment
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		if req.ExternalReference != "" {
			existing, err := repos.Payments.FindByExternalReference(ctx, req.VillageID, req.ExternalReference)
			if err != nil && !errorsIsNotFound(err) {
				return err
			}
			if existing != nil {
				return shared.ErrDuplicateReference
			}
		}

		var err error
		payment, err = accounting.NewPayment(req.VillageID, req.PropertyID,
			valueobject.NewMoneyTHB(req.AmountUnits), req.Method, req.ReceivedAt,
			req.ExternalReference, req.Note)
		if err != nil {
			return err
		}
		return repos.Payments.Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := payment.GetDomainEvents()
	payment.ClearDomainEvents()
	_ = s.publisher.Publish(ctx, events...)
	return payment, nil
}

// GetPayment loads one payment scoped to a village
func (s *AllocationService) GetPayment(ctx context.Context, villageID, paymentID uuid.UUID) (*accounting.Payment, error) {
	var payment *accounting.Payment
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		payment, err = repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		return err
	})
	return payment, err
}
