package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/lock"
	"github.com/smartvillage/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *Database {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.PaymentAllocationModel{},
		&models.CreditBalanceModel{},
		&models.AccountModel{},
		&models.JournalEntryModel{},
		&models.ReceiptModel{},
		&models.ReceiptSequenceModel{},
		&models.BankStatementLineModel{},
		&models.PostingHaltModel{},
	)
	require.NoError(t, err)

	return &Database{DB: db}
}

// dropPublisher swallows events; commit-path plumbing is covered elsewhere.
type dropPublisher struct{}

func (dropPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

// sabotagedUnitOfWork delegates to the real transaction but forces the
// chosen Execute call to fail after its body has written everything,
// mimicking a constraint violation on the final statement.
type sabotagedUnitOfWork struct {
	inner  accounting.UnitOfWork
	calls  int
	failOn int
	err    error
}

func (u *sabotagedUnitOfWork) Execute(ctx context.Context, fn func(accounting.Repositories) error) error {
	u.calls++
	if u.calls != u.failOn {
		return u.inner.Execute(ctx, fn)
	}
	return u.inner.Execute(ctx, func(repos accounting.Repositories) error {
		if err := fn(repos); err != nil {
			return err
		}
		return u.err
	})
}

func TestGormUnitOfWork_RollsBackOnError(t *testing.T) {
	db := setupLedgerTestDB(t)
	uow := NewGormUnitOfWork(db)
	ctx := context.Background()

	villageID := uuid.New()
	boom := errors.New("write rejected")

	err := uow.Execute(ctx, func(repos accounting.Repositories) error {
		invoice, err := accounting.NewInvoice(villageID, uuid.New(), "INV-2569-08-0001",
			accounting.InvoiceTypeMonthlyFee, valueobject.NewMoneyTHB(50000),
			time.Now().AddDate(0, 0, 15), "monthly fee")
		if err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.DB.Model(&models.InvoiceModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "rolled-back invoice must not survive")
}

func TestAllocationFailureLeavesNoPartialRows(t *testing.T) {
	db := setupLedgerTestDB(t)
	uow := NewGormUnitOfWork(db)
	ctx := context.Background()

	villageID := uuid.New()
	propertyID := uuid.New()
	seedChart(t, db.DB, villageID)

	// Seed one issued invoice and one pending payment through the real
	// transaction path.
	var paymentID uuid.UUID
	require.NoError(t, uow.Execute(ctx, func(repos accounting.Repositories) error {
		invoice, err := accounting.NewInvoice(villageID, propertyID, "INV-2569-08-0001",
			accounting.InvoiceTypeMonthlyFee, valueobject.NewMoneyTHB(50000),
			time.Now().AddDate(0, 0, 15), "monthly fee")
		if err != nil {
			return err
		}
		if err := invoice.Issue(); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return err
		}

		payment, err := accounting.NewPayment(villageID, propertyID, valueobject.NewMoneyTHB(50000),
			accounting.PaymentMethodBankTransfer, time.Now(), "TRX-ROLLBACK-1", "")
		if err != nil {
			return err
		}
		paymentID = payment.ID
		return repos.Payments.Save(ctx, payment)
	}))

	// Call 1 peeks the payment's property, call 2 is the allocation batch.
	boom := errors.New("disk full")
	poisoned := &sabotagedUnitOfWork{inner: uow, failOn: 2, err: boom}

	publisher := dropPublisher{}
	logger := zaptest.NewLogger(t)
	receipts := appaccounting.NewReceiptService(uow, publisher)
	allocations := appaccounting.NewAllocationService(poisoned, lock.NewPropertyLock(time.Second), receipts, publisher, logger)

	_, err := allocations.ConfirmAndAllocate(ctx, villageID, paymentID)
	require.ErrorIs(t, err, boom)

	// The batch wrote allocations, journal entries, the invoice update,
	// and the payment state before failing; none of it may survive.
	var allocationCount, journalCount, receiptCount int64
	require.NoError(t, db.DB.Model(&models.PaymentAllocationModel{}).Count(&allocationCount).Error)
	require.NoError(t, db.DB.Model(&models.JournalEntryModel{}).Count(&journalCount).Error)
	require.NoError(t, db.DB.Model(&models.ReceiptModel{}).Count(&receiptCount).Error)
	assert.Equal(t, int64(0), allocationCount)
	assert.Equal(t, int64(0), journalCount)
	assert.Equal(t, int64(0), receiptCount)

	require.NoError(t, uow.Execute(ctx, func(repos accounting.Repositories) error {
		payment, err := repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		if err != nil {
			return err
		}
		assert.Equal(t, accounting.PaymentStatusPending, payment.Status)
		assert.False(t, payment.IsAllocated())

		invoices, err := repos.Invoices.FindOutstandingByProperty(ctx, villageID, propertyID)
		if err != nil {
			return err
		}
		require.Len(t, invoices, 1)
		assert.Equal(t, int64(50000), invoices[0].OutstandingAmount().Units())
		return nil
	}))

	// The retry against the intact unit of work succeeds cleanly.
	allocations = appaccounting.NewAllocationService(uow, lock.NewPropertyLock(time.Second), receipts, publisher, logger)
	result, err := allocations.ConfirmAndAllocate(ctx, villageID, paymentID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.AllocatedUnits)
	require.NoError(t, db.DB.Model(&models.PaymentAllocationModel{}).Count(&allocationCount).Error)
	assert.Equal(t, int64(1), allocationCount)
}

func TestStatementImportFailureLeavesNoPaymentLink(t *testing.T) {
	db := setupLedgerTestDB(t)
	uow := NewGormUnitOfWork(db)
	ctx := context.Background()

	villageID := uuid.New()
	propertyID := uuid.New()
	seedChart(t, db.DB, villageID)

	// A pending payment the import will try to auto-match.
	var paymentID uuid.UUID
	require.NoError(t, uow.Execute(ctx, func(repos accounting.Repositories) error {
		payment, err := accounting.NewPayment(villageID, propertyID, valueobject.NewMoneyTHB(50000),
			accounting.PaymentMethodBankTransfer, time.Now(), "TRX-LINK-1", "")
		if err != nil {
			return err
		}
		paymentID = payment.ID
		return repos.Payments.Save(ctx, payment)
	}))

	boom := errors.New("statement save rejected")
	poisoned := &sabotagedUnitOfWork{inner: uow, failOn: 1, err: boom}

	publisher := dropPublisher{}
	logger := zaptest.NewLogger(t)
	receipts := appaccounting.NewReceiptService(uow, publisher)
	allocations := appaccounting.NewAllocationService(uow, lock.NewPropertyLock(time.Second), receipts, publisher, logger)
	reconciliation := appaccounting.NewReconciliationService(poisoned,
		accounting.NewMatchScorer(accounting.DefaultMatcherConfig()), allocations, nil, publisher, logger)

	result, err := reconciliation.ImportStatement(ctx, appaccounting.ImportRequest{
		VillageID: villageID,
		Lines: []appaccounting.ImportLineRequest{{
			RawReference: "TRX-LINK-1",
			AmountBaht:   "500.00",
			ValueDate:    time.Now(),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// Neither half of the match may survive: no line row, and the payment
	// is free to be matched again.
	var lineCount int64
	require.NoError(t, db.DB.Model(&models.BankStatementLineModel{}).Count(&lineCount).Error)
	assert.Equal(t, int64(0), lineCount)

	require.NoError(t, uow.Execute(ctx, func(repos accounting.Repositories) error {
		payment, err := repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		if err != nil {
			return err
		}
		assert.Nil(t, payment.MatchedLineID)
		return nil
	}))
}
