package persistence

import (
	"context"

	"github.com/smartvillage/backend/internal/domain/accounting"
	"gorm.io/gorm"
)

// NewRepositories binds every ledger repository to the given GORM handle.
// Pass a transaction handle to get transaction-bound repositories.
func NewRepositories(db *gorm.DB) accounting.Repositories {
	return accounting.Repositories{
		Invoices:     NewGormInvoiceRepository(db),
		Payments:     NewGormPaymentRepository(db),
		Allocations:  NewGormAllocationRepository(db),
		Credits:      NewGormCreditBalanceRepository(db),
		Accounts:     NewGormAccountRepository(db),
		Journal:      NewGormJournalRepository(db),
		Receipts:     NewGormReceiptRepository(db),
		Statements:   NewGormStatementRepository(db),
		PostingHalts: NewGormPostingHaltRepository(db),
	}
}

// GormUnitOfWork implements accounting.UnitOfWork over a database
// transaction. Every repository handed to fn shares the same
// transaction; an error from fn rolls the whole batch back.
type GormUnitOfWork struct {
	db *Database
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *Database) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn inside a transaction with transaction-bound repositories
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos accounting.Repositories) error) error {
	return u.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
