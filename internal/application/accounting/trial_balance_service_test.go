package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBalancedLedger(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	fx.issueInvoice(t, 50000, time.Now().AddDate(0, 0, 10))
	payment := fx.recordPayment(t, 50000, "TB-1")
	_, err := fx.allocations.ConfirmAndAllocate(ctx, fx.villageID, payment.ID)
	require.NoError(t, err)

	result, err := fx.trialBalance.Generate(ctx, fx.villageID, time.Time{})
	require.NoError(t, err)

	assert.True(t, result.IsBalanced())
	assert.True(t, result.TotalDebits.Equals(result.TotalCredits))
	assert.True(t, result.Difference.IsZero())
	assert.Len(t, result.Accounts, 10)
	assert.Empty(t, fx.store.halts)
}

func TestGenerateUnbalancedLedgerHaltsPosting(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	// Force a lone debit into the journal, bypassing batch validation.
	var bank *accounting.Account
	for _, acc := range fx.store.accounts {
		if acc.Code == accounting.AccountCodeBank {
			bank = acc
		}
	}
	require.NotNil(t, bank)
	entry, err := accounting.NewJournalEntry(fx.villageID, bank.ID, bank.Code, "JE-2026-08-0001",
		valueobject.NewMoneyTHB(12345), valueobject.ZeroTHB(),
		accounting.JournalSourcePayment, uuid.New(), "orphan debit", time.Now())
	require.NoError(t, err)
	fx.store.journal = append(fx.store.journal, entry)

	result, err := fx.trialBalance.Generate(ctx, fx.villageID, time.Time{})
	assert.ErrorIs(t, err, shared.ErrLedgerIntegrity)
	require.NotNil(t, result)
	assert.False(t, result.IsBalanced())
	assert.Equal(t, int64(12345), result.Difference.Units())

	// The halt blocks new postings until cleared.
	_, err = fx.invoices.IssueInvoice(ctx, IssueInvoiceRequest{
		VillageID:   fx.villageID,
		PropertyID:  fx.propertyID,
		Type:        accounting.InvoiceTypeMonthlyFee,
		AmountUnits: 10000,
		DueDate:     time.Now().AddDate(0, 0, 15),
	})
	assert.ErrorIs(t, err, shared.ErrPostingHalted)

	// Re-running the check must not stack a second halt.
	_, err = fx.trialBalance.Generate(ctx, fx.villageID, time.Time{})
	assert.ErrorIs(t, err, shared.ErrLedgerIntegrity)
	assert.Len(t, fx.store.halts, 1)

	require.NoError(t, fx.trialBalance.ClearHalt(ctx, fx.villageID, "auditor"))
	fx.issueInvoice(t, 10000, time.Now().AddDate(0, 0, 15))
}

func TestClearHaltWithoutActiveHalt(t *testing.T) {
	fx := newLedgerFixture(t)
	err := fx.trialBalance.ClearHalt(context.Background(), fx.villageID, "auditor")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnsureChartSeedsOnce(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	villageID := uuid.New()

	require.NoError(t, fx.trialBalance.EnsureChart(ctx, villageID))
	require.NoError(t, fx.trialBalance.EnsureChart(ctx, villageID))

	var count int
	for _, acc := range fx.store.accounts {
		if acc.VillageID == villageID {
			count++
		}
	}
	assert.Equal(t, 10, count)
}
