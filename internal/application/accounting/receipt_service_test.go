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

func TestIssueForAllocationAssignsSequentialNumbers(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	p1 := fx.recordPayment(t, 10000, "RCV-1")
	p2 := fx.recordPayment(t, 20000, "RCV-2")

	r1, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, p1.ID, valueobject.NewMoneyTHB(10000))
	require.NoError(t, err)
	r2, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, p2.ID, valueobject.NewMoneyTHB(20000))
	require.NoError(t, err)

	assert.Equal(t, int64(1), r1.SequenceNumber)
	assert.Equal(t, int64(2), r2.SequenceNumber)
	assert.Equal(t, accounting.FormatReceiptNumber(r1.IssuedAt, 1), r1.ReceiptNumber)
	assert.True(t, fx.publisher.hasType(accounting.EventTypeReceiptIssued))
}

func TestIssueForAllocationReturnsExistingReceipt(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	payment := fx.recordPayment(t, 10000, "RCV-3")

	first, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, payment.ID, valueobject.NewMoneyTHB(10000))
	require.NoError(t, err)
	second, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, payment.ID, valueobject.NewMoneyTHB(10000))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, fx.store.receipts, 1)
	// The retry burned a sequence number; that is the accepted cost of
	// never reusing one.
	assert.Equal(t, int64(2), fx.store.sequences[fx.villageID])
}

func TestVoidAndReissueBurnsTheNumber(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	payment := fx.recordPayment(t, 10000, "RCV-4")
	original, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, payment.ID, valueobject.NewMoneyTHB(10000))
	require.NoError(t, err)

	replacement, err := fx.receiptSvc.VoidAndReissue(ctx, fx.villageID, original.ID, "wrong payer name")
	require.NoError(t, err)

	assert.Equal(t, accounting.ReceiptStatusVoid, original.Status)
	assert.Equal(t, "wrong payer name", original.VoidReason)
	require.NotNil(t, original.VoidedAt)

	assert.Equal(t, accounting.ReceiptStatusIssued, replacement.Status)
	assert.Greater(t, replacement.SequenceNumber, original.SequenceNumber)
	require.NotNil(t, replacement.ReissuedFrom)
	assert.Equal(t, original.ID, *replacement.ReissuedFrom)
	assert.True(t, replacement.Amount.Equals(original.Amount))
	assert.True(t, fx.publisher.hasType(accounting.EventTypeReceiptVoided))
}

func TestVoidAndReissueTwiceFails(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	payment := fx.recordPayment(t, 10000, "RCV-5")
	original, err := fx.receiptSvc.IssueForAllocation(ctx, fx.villageID, payment.ID, valueobject.NewMoneyTHB(10000))
	require.NoError(t, err)

	_, err = fx.receiptSvc.VoidAndReissue(ctx, fx.villageID, original.ID, "first")
	require.NoError(t, err)
	_, err = fx.receiptSvc.VoidAndReissue(ctx, fx.villageID, original.ID, "second")
	require.Error(t, err)
}

func TestListReceiptsByProperty(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	fx.issueInvoice(t, 10000, time.Now().AddDate(0, 0, 3))
	payment := fx.recordPayment(t, 10000, "RCV-6")
	_, err := fx.allocations.ConfirmAndAllocate(ctx, fx.villageID, payment.ID)
	require.NoError(t, err)

	page, err := fx.receiptSvc.ListReceipts(ctx, fx.villageID, &fx.propertyID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	other := uuid.New()
	page, err = fx.receiptSvc.ListReceipts(ctx, fx.villageID, &other, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
}
