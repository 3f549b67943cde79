package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOverdueSweepFlagsPastDueInvoices(t *testing.T) {
	fx := newLedgerFixture(t)
	sweep := NewOverdueSweep(fx.store, fx.publisher, zaptest.NewLogger(t), 10)

	pastDue := fx.issueInvoice(t, 30000, time.Now().AddDate(0, 0, -2))
	current := fx.issueInvoice(t, 20000, time.Now().AddDate(0, 0, 5))

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Flagged)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, accounting.InvoiceStatusOverdue, pastDue.Status)
	assert.Equal(t, accounting.InvoiceStatusIssued, current.Status)
	assert.True(t, fx.publisher.hasType(accounting.EventTypeInvoiceOverdue))
}

func TestOverdueSweepIsRerunnable(t *testing.T) {
	fx := newLedgerFixture(t)
	sweep := NewOverdueSweep(fx.store, fx.publisher, zaptest.NewLogger(t), 10)

	fx.issueInvoice(t, 30000, time.Now().AddDate(0, 0, -2))

	first, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Flagged)

	second, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Flagged)
}

func TestOverdueSweepSkipsSettledInvoices(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	sweep := NewOverdueSweep(fx.store, fx.publisher, zaptest.NewLogger(t), 10)

	paid := fx.issueInvoice(t, 30000, time.Now().AddDate(0, 0, -2))
	payment := fx.recordPayment(t, 30000, "OD-1")
	_, err := fx.allocations.ConfirmAndAllocate(ctx, fx.villageID, payment.ID)
	require.NoError(t, err)

	result, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Flagged)
	assert.Equal(t, accounting.InvoiceStatusPaid, paid.Status)
}

func TestOverdueSweepHonorsCancellation(t *testing.T) {
	fx := newLedgerFixture(t)
	sweep := NewOverdueSweep(fx.store, fx.publisher, zaptest.NewLogger(t), 10)

	fx.issueInvoice(t, 30000, time.Now().AddDate(0, 0, -2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweep.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
