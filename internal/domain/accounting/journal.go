package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// AccountType classifies an account and determines its normal balance
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsDebitNormal returns true for accounts whose balance grows with debits
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Well-known chart codes the posting rules depend on
const (
	AccountCodeBank           = "1112-01" // village operating bank account
	AccountCodeAR             = "1130-01" // accounts receivable, common fees
	AccountCodeDeferredIncome = "2140-01" // resident prepayments / credit balances
	AccountCodeRevenue        = "4100-01" // common area fee revenue
)

// Account is one row of a village's chart of accounts
type Account struct {
	shared.VillageAggregateRoot
	Code     string
	Name     string
	Type     AccountType
	IsActive bool
}

// NewAccount creates a chart-of-accounts entry
func NewAccount(villageID uuid.UUID, code, name string, accountType AccountType) (*Account, error) {
	if villageID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Village ID is required")
	}
	if code == "" || name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Account code and name are required")
	}
	if !accountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown account type")
	}
	return &Account{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		Code:                 code,
		Name:                 name,
		Type:                 accountType,
		IsActive:             true,
	}, nil
}

// DefaultChartOfAccounts returns the seed chart for a new village
func DefaultChartOfAccounts(villageID uuid.UUID) ([]*Account, error) {
	seed := []struct {
		code string
		name string
		typ  AccountType
	}{
		{"1111-00", "Cash on Hand", AccountTypeAsset},
		{AccountCodeBank, "Bank Deposits - Operating", AccountTypeAsset},
		{AccountCodeAR, "Accounts Receivable - Common Fees", AccountTypeAsset},
		{"1130-02", "Accounts Receivable - Utilities", AccountTypeAsset},
		{AccountCodeDeferredIncome, "Deferred Income - Prepayments", AccountTypeLiability},
		{"3100-00", "Accumulated Fund", AccountTypeEquity},
		{AccountCodeRevenue, "Common Area Fee Revenue", AccountTypeRevenue},
		{"4200-01", "Penalty Income", AccountTypeRevenue},
		{"5100-01", "Maintenance Expense", AccountTypeExpense},
		{"5200-01", "Utility Expense", AccountTypeExpense},
	}

	accounts := make([]*Account, 0, len(seed))
	for _, s := range seed {
		acc, err := NewAccount(villageID, s.code, s.name, s.typ)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// JournalSourceType names the operation that produced an entry
type JournalSourceType string

const (
	JournalSourceInvoice JournalSourceType = "invoice"
	JournalSourcePayment JournalSourceType = "payment"
	JournalSourceCredit  JournalSourceType = "credit"
)

// JournalEntry is a single immutable posting line. Exactly one of
// DebitAmount and CreditAmount is non-zero; entries are written in
// balanced groups sharing an entry number.
type JournalEntry struct {
	shared.BaseEntity
	VillageID    uuid.UUID
	AccountID    uuid.UUID
	AccountCode  string
	EntryNumber  string
	DebitAmount  valueobject.Money
	CreditAmount valueobject.Money
	SourceType   JournalSourceType
	SourceID     uuid.UUID
	Memo         string
	PostedAt     time.Time
}

// NewJournalEntry creates a posting line for one account
func NewJournalEntry(villageID, accountID uuid.UUID, accountCode, entryNumber string, debit, credit valueobject.Money, sourceType JournalSourceType, sourceID uuid.UUID, memo string, postedAt time.Time) (*JournalEntry, error) {
	if debit.IsNegative() || credit.IsNegative() {
		return nil, shared.ErrInvalidAmount
	}
	if debit.IsPositive() == credit.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Exactly one of debit and credit must be positive")
	}
	return &JournalEntry{
		BaseEntity:   shared.NewBaseEntity(),
		VillageID:    villageID,
		AccountID:    accountID,
		AccountCode:  accountCode,
		EntryNumber:  entryNumber,
		DebitAmount:  debit,
		CreditAmount: credit,
		SourceType:   sourceType,
		SourceID:     sourceID,
		Memo:         memo,
		PostedAt:     postedAt,
	}, nil
}

// FormatEntryNumber renders the JE-YYYY-MM-NNNN entry number
func FormatEntryNumber(at time.Time, sequence int64) string {
	return fmt.Sprintf("JE-%04d-%02d-%04d", at.Year(), int(at.Month()), sequence)
}

// AccountLookup resolves well-known chart codes for posting builders
type AccountLookup interface {
	ByCode(code string) (*Account, error)
}

// JournalBatch collects the balanced lines of one posting group
type JournalBatch struct {
	Entries []*JournalEntry
}

// Balanced verifies the batch-level debit == credit invariant
func (b *JournalBatch) Balanced() bool {
	debits := valueobject.ZeroTHB()
	credits := valueobject.ZeroTHB()
	for _, e := range b.Entries {
		debits = debits.MustAdd(e.DebitAmount)
		credits = credits.MustAdd(e.CreditAmount)
	}
	return debits.Equals(credits)
}

func (b *JournalBatch) add(e *JournalEntry, err error) error {
	if err != nil {
		return err
	}
	b.Entries = append(b.Entries, e)
	return nil
}

// BuildIssuancePostings posts Dr AR / Cr Revenue when an invoice is issued
func BuildIssuancePostings(accounts AccountLookup, inv *Invoice, entryNumber string, at time.Time) (*JournalBatch, error) {
	ar, err := accounts.ByCode(AccountCodeAR)
	if err != nil {
		return nil, err
	}
	revenue, err := accounts.ByCode(AccountCodeRevenue)
	if err != nil {
		return nil, err
	}

	memo := "Invoice " + inv.ReferenceNumber + " issued"
	batch := &JournalBatch{}
	if err := batch.add(NewJournalEntry(inv.VillageID, ar.ID, ar.Code, entryNumber, inv.Amount, valueobject.ZeroTHB(), JournalSourceInvoice, inv.ID, memo, at)); err != nil {
		return nil, err
	}
	if err := batch.add(NewJournalEntry(inv.VillageID, revenue.ID, revenue.Code, entryNumber, valueobject.ZeroTHB(), inv.Amount, JournalSourceInvoice, inv.ID, memo, at)); err != nil {
		return nil, err
	}
	return batch, nil
}

// BuildAllocationPostings posts the ledger effect of one committed plan:
//
//	Dr Bank (payment amount)
//	Cr AR (amount allocated from the payment)
//	Cr Deferred Income (excess kept as credit)
//	Dr Deferred Income / Cr AR (existing credit consumed)
func BuildAllocationPostings(accounts AccountLookup, payment *Payment, plan *AllocationPlan, entryNumber string, at time.Time) (*JournalBatch, error) {
	bank, err := accounts.ByCode(AccountCodeBank)
	if err != nil {
		return nil, err
	}
	ar, err := accounts.ByCode(AccountCodeAR)
	if err != nil {
		return nil, err
	}
	deferred, err := accounts.ByCode(AccountCodeDeferredIncome)
	if err != nil {
		return nil, err
	}

	memo := "Payment allocation"
	batch := &JournalBatch{}
	zero := valueobject.ZeroTHB()

	if payment.Amount.IsPositive() {
		if err := batch.add(NewJournalEntry(payment.VillageID, bank.ID, bank.Code, entryNumber, payment.Amount, zero, JournalSourcePayment, payment.ID, memo, at)); err != nil {
			return nil, err
		}
	}
	if plan.TotalAllocated.IsPositive() {
		if err := batch.add(NewJournalEntry(payment.VillageID, ar.ID, ar.Code, entryNumber, zero, plan.TotalAllocated, JournalSourcePayment, payment.ID, memo, at)); err != nil {
			return nil, err
		}
	}
	if plan.ExcessToCredit.IsPositive() {
		if err := batch.add(NewJournalEntry(payment.VillageID, deferred.ID, deferred.Code, entryNumber, zero, plan.ExcessToCredit, JournalSourcePayment, payment.ID, "Payment excess held as credit", at)); err != nil {
			return nil, err
		}
	}
	if plan.CreditConsumed.IsPositive() {
		if err := batch.add(NewJournalEntry(payment.VillageID, deferred.ID, deferred.Code, entryNumber, plan.CreditConsumed, zero, JournalSourceCredit, payment.ID, "Credit balance applied", at)); err != nil {
			return nil, err
		}
		if err := batch.add(NewJournalEntry(payment.VillageID, ar.ID, ar.Code, entryNumber, zero, plan.CreditConsumed, JournalSourceCredit, payment.ID, "Credit balance applied", at)); err != nil {
			return nil, err
		}
	}

	if !batch.Balanced() {
		return nil, shared.ErrLedgerIntegrity
	}
	return batch, nil
}
