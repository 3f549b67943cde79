package accounting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ledgerStore is an in-memory stand-in for the persistence layer shared
// by the service tests. It implements accounting.UnitOfWork; the fake
// repositories operate on its maps directly, so there is no rollback.
type ledgerStore struct {
	mu sync.Mutex

	invoices    map[uuid.UUID]*accounting.Invoice
	payments    map[uuid.UUID]*accounting.Payment
	allocations []*accounting.PaymentAllocation
	credits     map[uuid.UUID]map[uuid.UUID]*accounting.CreditBalance
	accounts    map[uuid.UUID]*accounting.Account
	journal     []*accounting.JournalEntry
	receipts    map[uuid.UUID]*accounting.Receipt
	sequences   map[uuid.UUID]int64
	lines       map[uuid.UUID]*accounting.BankStatementLine
	halts       []*accounting.PostingHalt
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		invoices:  make(map[uuid.UUID]*accounting.Invoice),
		payments:  make(map[uuid.UUID]*accounting.Payment),
		credits:   make(map[uuid.UUID]map[uuid.UUID]*accounting.CreditBalance),
		accounts:  make(map[uuid.UUID]*accounting.Account),
		receipts:  make(map[uuid.UUID]*accounting.Receipt),
		sequences: make(map[uuid.UUID]int64),
		lines:     make(map[uuid.UUID]*accounting.BankStatementLine),
	}
}

func (s *ledgerStore) Execute(_ context.Context, fn func(repos accounting.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(accounting.Repositories{
		Invoices:     fakeInvoiceRepo{s},
		Payments:     fakePaymentRepo{s},
		Allocations:  fakeAllocationRepo{s},
		Credits:      fakeCreditRepo{s},
		Accounts:     fakeAccountRepo{s},
		Journal:      fakeJournalRepo{s},
		Receipts:     fakeReceiptRepo{s},
		Statements:   fakeStatementRepo{s},
		PostingHalts: fakeHaltRepo{s},
	})
}

func (s *ledgerStore) seedChart(t *testing.T, villageID uuid.UUID) {
	t.Helper()
	accounts, err := accounting.DefaultChartOfAccounts(villageID)
	require.NoError(t, err)
	for _, acc := range accounts {
		s.accounts[acc.ID] = acc
	}
}

type fakeInvoiceRepo struct{ s *ledgerStore }

func (r fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.Invoice, error) {
	if inv, ok := r.s.invoices[id]; ok {
		return inv, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeInvoiceRepo) FindByIDForVillage(_ context.Context, villageID, id uuid.UUID) (*accounting.Invoice, error) {
	if inv, ok := r.s.invoices[id]; ok && inv.VillageID == villageID {
		return inv, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeInvoiceRepo) FindByReference(_ context.Context, villageID uuid.UUID, reference string) (*accounting.Invoice, error) {
	for _, inv := range r.s.invoices {
		if inv.VillageID == villageID && inv.ReferenceNumber == reference {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeInvoiceRepo) FindOutstandingByProperty(_ context.Context, villageID, propertyID uuid.UUID) ([]*accounting.Invoice, error) {
	var out []*accounting.Invoice
	for _, inv := range r.s.invoices {
		if inv.VillageID == villageID && inv.PropertyID == propertyID &&
			inv.Status.AcceptsAllocation() && !inv.IsSettled() {
			out = append(out, inv)
		}
	}
	accounting.SortInvoicesFIFO(out)
	return out, nil
}

func (r fakeInvoiceRepo) FindDueForOverdueSweep(_ context.Context, before time.Time, limit int) ([]*accounting.Invoice, error) {
	var out []*accounting.Invoice
	for _, inv := range r.s.invoices {
		if inv.Status == accounting.InvoiceStatusOverdue {
			continue
		}
		if inv.IsOverdueAt(before) {
			out = append(out, inv)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r fakeInvoiceRepo) FindByFilter(_ context.Context, villageID uuid.UUID, propertyID *uuid.UUID, status *accounting.InvoiceStatus, filter shared.Filter) (shared.Paginated[accounting.Invoice], error) {
	var items []accounting.Invoice
	for _, inv := range r.s.invoices {
		if inv.VillageID != villageID {
			continue
		}
		if propertyID != nil && inv.PropertyID != *propertyID {
			continue
		}
		if status != nil && inv.Status != *status {
			continue
		}
		items = append(items, *inv)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r fakeInvoiceRepo) Save(_ context.Context, invoice *accounting.Invoice) error {
	r.s.invoices[invoice.ID] = invoice
	return nil
}

func (r fakeInvoiceRepo) SaveWithLock(_ context.Context, invoice *accounting.Invoice, _ int) error {
	r.s.invoices[invoice.ID] = invoice
	return nil
}

func (r fakeInvoiceRepo) CountIssuedThisMonth(_ context.Context, villageID uuid.UUID, _ time.Time) (int64, error) {
	var n int64
	for _, inv := range r.s.invoices {
		if inv.VillageID == villageID {
			n++
		}
	}
	return n, nil
}

type fakePaymentRepo struct{ s *ledgerStore }

func (r fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.Payment, error) {
	if p, ok := r.s.payments[id]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakePaymentRepo) FindByIDForVillage(_ context.Context, villageID, id uuid.UUID) (*accounting.Payment, error) {
	if p, ok := r.s.payments[id]; ok && p.VillageID == villageID {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakePaymentRepo) FindPendingByVillage(_ context.Context, villageID uuid.UUID) ([]*accounting.Payment, error) {
	var out []*accounting.Payment
	for _, p := range r.s.payments {
		if p.VillageID == villageID && p.Status == accounting.PaymentStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r fakePaymentRepo) FindByExternalReference(_ context.Context, villageID uuid.UUID, reference string) (*accounting.Payment, error) {
	for _, p := range r.s.payments {
		if p.VillageID == villageID && p.ExternalReference == reference {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakePaymentRepo) Save(_ context.Context, payment *accounting.Payment) error {
	r.s.payments[payment.ID] = payment
	return nil
}

func (r fakePaymentRepo) SaveWithLock(_ context.Context, payment *accounting.Payment, _ int) error {
	r.s.payments[payment.ID] = payment
	return nil
}

type fakeAllocationRepo struct{ s *ledgerStore }

func (r fakeAllocationRepo) SaveAll(_ context.Context, allocations []*accounting.PaymentAllocation) error {
	r.s.allocations = append(r.s.allocations, allocations...)
	return nil
}

func (r fakeAllocationRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) ([]*accounting.PaymentAllocation, error) {
	var out []*accounting.PaymentAllocation
	for _, a := range r.s.allocations {
		if a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*accounting.PaymentAllocation, error) {
	var out []*accounting.PaymentAllocation
	for _, a := range r.s.allocations {
		if a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAllocationRepo) SumBySource(_ context.Context, paymentID uuid.UUID, source accounting.AllocationSource) (valueobject.Money, error) {
	total := valueobject.ZeroTHB()
	for _, a := range r.s.allocations {
		if a.PaymentID == paymentID && a.Source == source {
			total = total.MustAdd(a.Amount)
		}
	}
	return total, nil
}

type fakeCreditRepo struct{ s *ledgerStore }

func (r fakeCreditRepo) FindOrCreate(_ context.Context, villageID, propertyID uuid.UUID) (*accounting.CreditBalance, error) {
	byProperty, ok := r.s.credits[villageID]
	if !ok {
		byProperty = make(map[uuid.UUID]*accounting.CreditBalance)
		r.s.credits[villageID] = byProperty
	}
	if cb, ok := byProperty[propertyID]; ok {
		return cb, nil
	}
	cb := accounting.NewCreditBalance(villageID, propertyID)
	byProperty[propertyID] = cb
	return cb, nil
}

func (r fakeCreditRepo) Save(_ context.Context, balance *accounting.CreditBalance) error {
	r.s.credits[balance.VillageID][balance.PropertyID] = balance
	return nil
}

func (r fakeCreditRepo) SaveWithLock(_ context.Context, balance *accounting.CreditBalance, _ int) error {
	r.s.credits[balance.VillageID][balance.PropertyID] = balance
	return nil
}

type fakeAccountRepo struct{ s *ledgerStore }

func (r fakeAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.Account, error) {
	if acc, ok := r.s.accounts[id]; ok {
		return acc, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeAccountRepo) FindByCode(_ context.Context, villageID uuid.UUID, code string) (*accounting.Account, error) {
	for _, acc := range r.s.accounts {
		if acc.VillageID == villageID && acc.Code == code {
			return acc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeAccountRepo) FindActiveByVillage(_ context.Context, villageID uuid.UUID) ([]*accounting.Account, error) {
	var out []*accounting.Account
	for _, acc := range r.s.accounts {
		if acc.VillageID == villageID && acc.IsActive {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r fakeAccountRepo) SaveAll(_ context.Context, accounts []*accounting.Account) error {
	for _, acc := range accounts {
		r.s.accounts[acc.ID] = acc
	}
	return nil
}

func (r fakeAccountRepo) CountByVillage(_ context.Context, villageID uuid.UUID) (int64, error) {
	var n int64
	for _, acc := range r.s.accounts {
		if acc.VillageID == villageID {
			n++
		}
	}
	return n, nil
}

type fakeJournalRepo struct{ s *ledgerStore }

func (r fakeJournalRepo) SaveBatch(_ context.Context, batch *accounting.JournalBatch) error {
	if !batch.Balanced() {
		return shared.ErrLedgerIntegrity
	}
	r.s.journal = append(r.s.journal, batch.Entries...)
	return nil
}

func (r fakeJournalRepo) SumByAccount(_ context.Context, villageID, accountID uuid.UUID, asOf time.Time) (valueobject.Money, valueobject.Money, error) {
	debit := valueobject.ZeroTHB()
	credit := valueobject.ZeroTHB()
	for _, e := range r.s.journal {
		if e.VillageID == villageID && e.AccountID == accountID && !e.PostedAt.After(asOf) {
			debit = debit.MustAdd(e.DebitAmount)
			credit = credit.MustAdd(e.CreditAmount)
		}
	}
	return debit, credit, nil
}

func (r fakeJournalRepo) CountEntriesThisMonth(_ context.Context, villageID uuid.UUID, _ time.Time) (int64, error) {
	var n int64
	for _, e := range r.s.journal {
		if e.VillageID == villageID {
			n++
		}
	}
	return n, nil
}

func (r fakeJournalRepo) FindBySource(_ context.Context, sourceType accounting.JournalSourceType, sourceID uuid.UUID) ([]*accounting.JournalEntry, error) {
	var out []*accounting.JournalEntry
	for _, e := range r.s.journal {
		if e.SourceType == sourceType && e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeReceiptRepo struct{ s *ledgerStore }

func (r fakeReceiptRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.Receipt, error) {
	if rc, ok := r.s.receipts[id]; ok {
		return rc, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeReceiptRepo) FindByIDForVillage(_ context.Context, villageID, id uuid.UUID) (*accounting.Receipt, error) {
	if rc, ok := r.s.receipts[id]; ok && rc.VillageID == villageID {
		return rc, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeReceiptRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) (*accounting.Receipt, error) {
	for _, rc := range r.s.receipts {
		if rc.PaymentID == paymentID && rc.Status == accounting.ReceiptStatusIssued {
			return rc, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeReceiptRepo) FindByFilter(_ context.Context, villageID uuid.UUID, propertyID *uuid.UUID, filter shared.Filter) (shared.Paginated[accounting.Receipt], error) {
	var items []accounting.Receipt
	for _, rc := range r.s.receipts {
		if rc.VillageID != villageID {
			continue
		}
		if propertyID != nil {
			payment, ok := r.s.payments[rc.PaymentID]
			if !ok || payment.PropertyID != *propertyID {
				continue
			}
		}
		items = append(items, *rc)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r fakeReceiptRepo) Save(_ context.Context, receipt *accounting.Receipt) error {
	r.s.receipts[receipt.ID] = receipt
	return nil
}

func (r fakeReceiptRepo) NextSequence(_ context.Context, villageID uuid.UUID) (int64, error) {
	r.s.sequences[villageID]++
	return r.s.sequences[villageID], nil
}

type fakeStatementRepo struct{ s *ledgerStore }

func (r fakeStatementRepo) FindByID(_ context.Context, id uuid.UUID) (*accounting.BankStatementLine, error) {
	if l, ok := r.s.lines[id]; ok {
		return l, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeStatementRepo) FindByIDForVillage(_ context.Context, villageID, id uuid.UUID) (*accounting.BankStatementLine, error) {
	if l, ok := r.s.lines[id]; ok && l.VillageID == villageID {
		return l, nil
	}
	return nil, shared.ErrNotFound
}

func (r fakeStatementRepo) FindByStatus(_ context.Context, villageID uuid.UUID, status accounting.MatchStatus, filter shared.Filter) (shared.Paginated[accounting.BankStatementLine], error) {
	var items []accounting.BankStatementLine
	for _, l := range r.s.lines {
		if l.VillageID == villageID && l.Status == status {
			items = append(items, *l)
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r fakeStatementRepo) FindByBatch(_ context.Context, importBatchID uuid.UUID) ([]*accounting.BankStatementLine, error) {
	var out []*accounting.BankStatementLine
	for _, l := range r.s.lines {
		if l.ImportBatchID == importBatchID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r fakeStatementRepo) IsPaymentMatched(_ context.Context, paymentID uuid.UUID) (bool, error) {
	for _, l := range r.s.lines {
		if l.MatchedPayment != nil && *l.MatchedPayment == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeStatementRepo) Save(_ context.Context, line *accounting.BankStatementLine) error {
	r.s.lines[line.ID] = line
	return nil
}

func (r fakeStatementRepo) CountImportedThisMonth(_ context.Context, villageID uuid.UUID, _ time.Time) (int64, error) {
	var n int64
	for _, l := range r.s.lines {
		if l.VillageID == villageID {
			n++
		}
	}
	return n, nil
}

type fakeHaltRepo struct{ s *ledgerStore }

func (r fakeHaltRepo) FindActive(_ context.Context, villageID uuid.UUID) (*accounting.PostingHalt, error) {
	for _, h := range r.s.halts {
		if h.VillageID == villageID && h.IsActive() {
			return h, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r fakeHaltRepo) Save(_ context.Context, halt *accounting.PostingHalt) error {
	for i, existing := range r.s.halts {
		if existing.ID == halt.ID {
			r.s.halts[i] = halt
			return nil
		}
	}
	r.s.halts = append(r.s.halts, halt)
	return nil
}

// capturingPublisher records published events for assertions
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

func (p *capturingPublisher) hasType(eventType string) bool {
	for _, t := range p.eventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

// noopLocker satisfies PropertyLocker without real contention
type noopLocker struct{ acquired int }

func (l *noopLocker) Acquire(_ context.Context, _, _ uuid.UUID) (func(), error) {
	l.acquired++
	return func() {}, nil
}

// memIdempotency is a map-backed shared.IdempotencyStore
type memIdempotency struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{seen: make(map[string]bool)}
}

func (m *memIdempotency) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memIdempotency) IsProcessed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[key], nil
}

func (m *memIdempotency) Close() error { return nil }

// ledgerFixture wires every service against one shared in-memory store
type ledgerFixture struct {
	store      *ledgerStore
	publisher  *capturingPublisher
	locker     *noopLocker
	villageID  uuid.UUID
	propertyID uuid.UUID

	invoices       *InvoiceService
	receiptSvc     *ReceiptService
	allocations    *AllocationService
	reconciliation *ReconciliationService
	trialBalance   *TrialBalanceService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := newLedgerStore()
	publisher := &capturingPublisher{}
	locker := &noopLocker{}

	fx := &ledgerFixture{
		store:      store,
		publisher:  publisher,
		locker:     locker,
		villageID:  uuid.New(),
		propertyID: uuid.New(),
	}
	store.seedChart(t, fx.villageID)

	fx.invoices = NewInvoiceService(store, publisher)
	fx.receiptSvc = NewReceiptService(store, publisher)
	fx.allocations = NewAllocationService(store, locker, fx.receiptSvc, publisher, log)
	fx.reconciliation = NewReconciliationService(store,
		accounting.NewMatchScorer(accounting.DefaultMatcherConfig()),
		fx.allocations, newMemIdempotency(), publisher, log)
	fx.trialBalance = NewTrialBalanceService(store, log)
	return fx
}

func (fx *ledgerFixture) issueInvoice(t *testing.T, units int64, due time.Time) *accounting.Invoice {
	t.Helper()
	inv, err := fx.invoices.IssueInvoice(context.Background(), IssueInvoiceRequest{
		VillageID:   fx.villageID,
		PropertyID:  fx.propertyID,
		Type:        accounting.InvoiceTypeMonthlyFee,
		AmountUnits: units,
		DueDate:     due,
		Description: "common area fee",
	})
	require.NoError(t, err)
	return inv
}

func (fx *ledgerFixture) recordPayment(t *testing.T, units int64, reference string) *accounting.Payment {
	t.Helper()
	payment, err := fx.allocations.RecordPayment(context.Background(), RecordPaymentRequest{
		VillageID:         fx.villageID,
		PropertyID:        fx.propertyID,
		AmountUnits:       units,
		Method:            accounting.PaymentMethodBankTransfer,
		ReceivedAt:        time.Now(),
		ExternalReference: reference,
	})
	require.NoError(t, err)
	return payment
}
