package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
)

// InvoiceService drives the invoice lifecycle: issuing, canceling and
// the overdue sweep. Issuance posts Dr AR / Cr Revenue in the same
// transaction as the invoice row.
type InvoiceService struct {
	uow       accounting.UnitOfWork
	publisher shared.EventPublisher
}

// NewInvoiceService creates an InvoiceService
func NewInvoiceService(uow accounting.UnitOfWork, publisher shared.EventPublisher) *InvoiceService {
	return &InvoiceService{uow: uow, publisher: publisher}
}

// IssueInvoiceRequest carries the fields needed to issue an invoice
type IssueInvoiceRequest struct {
	VillageID   uuid.UUID
	PropertyID  uuid.UUID
	Type        accounting.InvoiceType
	AmountUnits int64
	DueDate     time.Time
	Description string
}

// IssueInvoice creates and issues an invoice in one step
func (s *InvoiceService) IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (*accounting.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue")
	defer span.End()
	telemetry.SetAttributes(span,
		"village_id", req.VillageID.String(),
		"property_id", req.PropertyID.String(),
		"amount_units", req.AmountUnits,
	)

	var invoice *accounting.Invoice
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		if err := ensurePostingAllowed(ctx, repos, req.VillageID); err != nil {
			return err
		}

		now := time.Now()
		seq, err := repos.Invoices.CountIssuedThisMonth(ctx, req.VillageID, now)
		if err != nil {
			return fmt.Errorf("failed to count invoices: %w", err)
		}
		reference := fmt.Sprintf("INV-%04d-%02d-%04d", now.Year(), int(now.Month()), seq+1)

		invoice, err = accounting.NewInvoice(req.VillageID, req.PropertyID, reference,
			req.Type, valueobject.NewMoneyTHB(req.AmountUnits), req.DueDate, req.Description)
		if err != nil {
			return err
		}
		if err := invoice.Issue(); err != nil {
			return err
		}

		entrySeq, err := repos.Journal.CountEntriesThisMonth(ctx, req.VillageID, now)
		if err != nil {
			return fmt.Errorf("failed to count journal entries: %w", err)
		}
		batch, err := accounting.BuildIssuancePostings(accountLookup{ctx: ctx, repos: repos, villageID: req.VillageID},
			invoice, accounting.FormatEntryNumber(now, entrySeq+1), now)
		if err != nil {
			return err
		}

		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return repos.Journal.SaveBatch(ctx, batch)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	return invoice, nil
}

// CancelInvoice voids an invoice that has no allocations
func (s *InvoiceService) CancelInvoice(ctx context.Context, villageID, invoiceID uuid.UUID, reason string) (*accounting.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, "invoice_id", invoiceID.String())

	var invoice *accounting.Invoice
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		invoice, err = repos.Invoices.FindByIDForVillage(ctx, villageID, invoiceID)
		if err != nil {
			return err
		}
		if err := invoice.Cancel(reason); err != nil {
			return err
		}
		return repos.Invoices.SaveWithLock(ctx, invoice, invoice.GetVersion()-1)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	return invoice, nil
}

// GetInvoice loads one invoice scoped to a village
func (s *InvoiceService) GetInvoice(ctx context.Context, villageID, invoiceID uuid.UUID) (*accounting.Invoice, error) {
	var invoice *accounting.Invoice
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		invoice, err = repos.Invoices.FindByIDForVillage(ctx, villageID, invoiceID)
		return err
	})
	return invoice, err
}

// ListInvoices pages invoices with optional property and status filters
func (s *InvoiceService) ListInvoices(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, status *accounting.InvoiceStatus, filter shared.Filter) (shared.Paginated[accounting.Invoice], error) {
	var page shared.Paginated[accounting.Invoice]
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		page, err = repos.Invoices.FindByFilter(ctx, villageID, propertyID, status, filter)
		return err
	})
	return page, err
}

func (s *InvoiceService) publishEvents(ctx context.Context, invoice *accounting.Invoice) {
	events := invoice.GetDomainEvents()
	invoice.ClearDomainEvents()
	if len(events) > 0 {
		// Delivery failures are the outbox relay's problem, not the caller's.
		_ = s.publisher.Publish(ctx, events...)
	}
}

// accountLookup adapts transaction-bound repositories to the posting
// builders' chart resolution interface.
type accountLookup struct {
	ctx       context.Context
	repos     accounting.Repositories
	villageID uuid.UUID
}

func (l accountLookup) ByCode(code string) (*accounting.Account, error) {
	return l.repos.Accounts.FindByCode(l.ctx, l.villageID, code)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

// ensurePostingAllowed fails fast when the village ledger is halted
func ensurePostingAllowed(ctx context.Context, repos accounting.Repositories, villageID uuid.UUID) error {
	halt, err := repos.PostingHalts.FindActive(ctx, villageID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if halt != nil && halt.IsActive() {
		return shared.ErrPostingHalted
	}
	return nil
}
