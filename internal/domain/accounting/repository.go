package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// InvoiceRepository persists invoice aggregates
type InvoiceRepository interface {
	// FindByID retrieves an invoice by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForVillage retrieves an invoice scoped to a village
	FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*Invoice, error)
	// FindByReference retrieves an invoice by its village-unique reference number
	FindByReference(ctx context.Context, villageID uuid.UUID, reference string) (*Invoice, error)
	// FindOutstandingByProperty returns invoices that can still receive
	// allocations, ordered due date ascending then ID ascending
	FindOutstandingByProperty(ctx context.Context, villageID, propertyID uuid.UUID) ([]*Invoice, error)
	// FindDueForOverdueSweep returns unpaid invoices past the given due cutoff
	FindDueForOverdueSweep(ctx context.Context, before time.Time, limit int) ([]*Invoice, error)
	// FindByFilter lists invoices for a village with optional property and status filters
	FindByFilter(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, status *InvoiceStatus, filter shared.Filter) (shared.Paginated[Invoice], error)
	// Save persists an invoice
	Save(ctx context.Context, invoice *Invoice) error
	// SaveWithLock persists an invoice with an optimistic version check,
	// returning shared.ErrConcurrencyConflict when the row moved underneath
	SaveWithLock(ctx context.Context, invoice *Invoice, expectedVersion int) error
	// CountIssuedThisMonth supports reference number generation
	CountIssuedThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error)
}

// PaymentRepository persists payment aggregates
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*Payment, error)
	// FindPendingByVillage returns pending payments for the matcher
	FindPendingByVillage(ctx context.Context, villageID uuid.UUID) ([]*Payment, error)
	// FindByExternalReference looks up a payment by its bank reference
	FindByExternalReference(ctx context.Context, villageID uuid.UUID, reference string) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment, expectedVersion int) error
}

// AllocationRepository persists the append-only allocation rows
type AllocationRepository interface {
	// SaveAll persists the rows of one committed batch
	SaveAll(ctx context.Context, allocations []*PaymentAllocation) error
	// FindByPayment returns the rows recorded for a payment
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*PaymentAllocation, error)
	// FindByInvoice returns the rows recorded against an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*PaymentAllocation, error)
	// SumBySource totals payment-sourced rows for a payment
	SumBySource(ctx context.Context, paymentID uuid.UUID, source AllocationSource) (valueobject.Money, error)
}

// CreditBalanceRepository persists per-property credit balances
type CreditBalanceRepository interface {
	// FindOrCreate returns the property's credit balance, creating a zero
	// row on first use
	FindOrCreate(ctx context.Context, villageID, propertyID uuid.UUID) (*CreditBalance, error)
	Save(ctx context.Context, balance *CreditBalance) error
	SaveWithLock(ctx context.Context, balance *CreditBalance, expectedVersion int) error
}

// AccountRepository persists the chart of accounts
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindByCode resolves a well-known chart code inside a village
	FindByCode(ctx context.Context, villageID uuid.UUID, code string) (*Account, error)
	// FindActiveByVillage lists the active chart for trial balance runs
	FindActiveByVillage(ctx context.Context, villageID uuid.UUID) ([]*Account, error)
	// SaveAll seeds the chart for a new village
	SaveAll(ctx context.Context, accounts []*Account) error
	// CountByVillage reports whether a village chart is already seeded
	CountByVillage(ctx context.Context, villageID uuid.UUID) (int64, error)
}

// JournalRepository persists the append-only journal
type JournalRepository interface {
	// SaveBatch persists the balanced lines of one posting group
	SaveBatch(ctx context.Context, batch *JournalBatch) error
	// SumByAccount totals debits and credits for an account up to the cutoff
	SumByAccount(ctx context.Context, villageID, accountID uuid.UUID, asOf time.Time) (debit, credit valueobject.Money, err error)
	// CountEntriesThisMonth supports entry number generation
	CountEntriesThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error)
	// FindBySource retrieves the lines posted for an operation
	FindBySource(ctx context.Context, sourceType JournalSourceType, sourceID uuid.UUID) ([]*JournalEntry, error)
}

// ReceiptRepository persists receipts and their village sequences
type ReceiptRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Receipt, error)
	FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*Receipt, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) (*Receipt, error)
	FindByFilter(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, filter shared.Filter) (shared.Paginated[Receipt], error)
	Save(ctx context.Context, receipt *Receipt) error
	// NextSequence atomically increments and returns the village receipt
	// counter. The number is burned even if the caller later fails.
	NextSequence(ctx context.Context, villageID uuid.UUID) (int64, error)
}

// StatementRepository persists bank statement lines
type StatementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BankStatementLine, error)
	FindByIDForVillage(ctx context.Context, villageID, id uuid.UUID) (*BankStatementLine, error)
	FindByStatus(ctx context.Context, villageID uuid.UUID, status MatchStatus, filter shared.Filter) (shared.Paginated[BankStatementLine], error)
	// FindByBatch returns every line of one import batch
	FindByBatch(ctx context.Context, importBatchID uuid.UUID) ([]*BankStatementLine, error)
	// IsPaymentMatched enforces the 1:1 matching rule at commit time
	IsPaymentMatched(ctx context.Context, paymentID uuid.UUID) (bool, error)
	Save(ctx context.Context, line *BankStatementLine) error
	// CountImportedThisMonth supports statement number generation
	CountImportedThisMonth(ctx context.Context, villageID uuid.UUID, at time.Time) (int64, error)
}

// PostingHaltRepository persists village posting halts
type PostingHaltRepository interface {
	// FindActive returns the active halt for a village, or shared.ErrNotFound
	FindActive(ctx context.Context, villageID uuid.UUID) (*PostingHalt, error)
	Save(ctx context.Context, halt *PostingHalt) error
}

// Repositories bundles every ledger repository bound to one transaction
type Repositories struct {
	Invoices     InvoiceRepository
	Payments     PaymentRepository
	Allocations  AllocationRepository
	Credits      CreditBalanceRepository
	Accounts     AccountRepository
	Journal      JournalRepository
	Receipts     ReceiptRepository
	Statements   StatementRepository
	PostingHalts PostingHaltRepository
}

// UnitOfWork runs a function against transaction-bound repositories.
// The allocation engine depends on this for its all-or-nothing batch.
type UnitOfWork interface {
	// Execute runs fn inside a transaction; any error rolls everything back
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}
