package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// TrialBalanceStatus is the outcome of a trial balance run
type TrialBalanceStatus string

const (
	TrialBalanceStatusBalanced   TrialBalanceStatus = "balanced"
	TrialBalanceStatusUnbalanced TrialBalanceStatus = "unbalanced"
)

// AccountBalance is one account's derived position in a snapshot.
// Balance is signed by the account's normal side: a debit-normal
// account reports debits minus credits, the others the reverse.
type AccountBalance struct {
	AccountID   uuid.UUID         `json:"account_id"`
	AccountCode string            `json:"account_code"`
	AccountName string            `json:"account_name"`
	AccountType AccountType       `json:"account_type"`
	TotalDebit  valueobject.Money `json:"total_debit"`
	TotalCredit valueobject.Money `json:"total_credit"`
	Balance     valueobject.Money `json:"balance"`
}

// NewAccountBalance derives the signed balance from raw sums
func NewAccountBalance(account *Account, totalDebit, totalCredit valueobject.Money) AccountBalance {
	var balance valueobject.Money
	if account.Type.IsDebitNormal() {
		balance = totalDebit.MustSubtract(totalCredit)
	} else {
		balance = totalCredit.MustSubtract(totalDebit)
	}
	return AccountBalance{
		AccountID:   account.ID,
		AccountCode: account.Code,
		AccountName: account.Name,
		AccountType: account.Type,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Balance:     balance,
	}
}

// TrialBalanceResult is the read-only snapshot of a village ledger
type TrialBalanceResult struct {
	VillageID    uuid.UUID          `json:"village_id"`
	AsOf         time.Time          `json:"as_of"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Status       TrialBalanceStatus `json:"status"`
	TotalDebits  valueobject.Money  `json:"total_debits"`
	TotalCredits valueobject.Money  `json:"total_credits"`
	Difference   valueobject.Money  `json:"difference"`
	Accounts     []AccountBalance   `json:"accounts"`
}

// NewTrialBalanceResult assembles the snapshot and checks the closure
// invariant over the account balances.
func NewTrialBalanceResult(villageID uuid.UUID, asOf time.Time, balances []AccountBalance) *TrialBalanceResult {
	totalDebits := valueobject.ZeroTHB()
	totalCredits := valueobject.ZeroTHB()
	for _, b := range balances {
		totalDebits = totalDebits.MustAdd(b.TotalDebit)
		totalCredits = totalCredits.MustAdd(b.TotalCredit)
	}

	result := &TrialBalanceResult{
		VillageID:    villageID,
		AsOf:         asOf,
		GeneratedAt:  time.Now(),
		TotalDebits:  totalDebits,
		TotalCredits: totalCredits,
		Difference:   totalDebits.MustSubtract(totalCredits),
		Accounts:     balances,
	}
	if result.Difference.IsZero() {
		result.Status = TrialBalanceStatusBalanced
	} else {
		result.Status = TrialBalanceStatusUnbalanced
	}
	return result
}

// IsBalanced reports whether debits equal credits
func (r *TrialBalanceResult) IsBalanced() bool {
	return r.Status == TrialBalanceStatusBalanced
}

// PostingHalt blocks all posting for a village after an integrity
// violation until an operator clears it.
type PostingHalt struct {
	shared.BaseEntity
	VillageID uuid.UUID
	Reason    string
	HaltedAt  time.Time
	ClearedAt *time.Time
	ClearedBy string
}

// NewPostingHalt records a halt for a village
func NewPostingHalt(villageID uuid.UUID, reason string) *PostingHalt {
	return &PostingHalt{
		BaseEntity: shared.NewBaseEntity(),
		VillageID:  villageID,
		Reason:     reason,
		HaltedAt:   time.Now(),
	}
}

// IsActive reports whether the halt still blocks posting
func (h *PostingHalt) IsActive() bool {
	return h.ClearedAt == nil
}

// Clear lifts the halt after investigation
func (h *PostingHalt) Clear(operator string) error {
	if !h.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Posting halt is already cleared")
	}
	now := time.Now()
	h.ClearedAt = &now
	h.ClearedBy = operator
	h.Touch()
	return nil
}
