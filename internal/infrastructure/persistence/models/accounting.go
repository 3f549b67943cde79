package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	VillageAggregateModel
	PropertyID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	ReferenceNumber string                   `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_village_reference,priority:2"`
	Type            accounting.InvoiceType   `gorm:"type:varchar(30);not null"`
	Description     string                   `gorm:"type:text"`
	Amount          valueobject.Money        `gorm:"type:bigint;not null"`
	AllocatedAmount valueobject.Money        `gorm:"type:bigint;not null"`
	Status          accounting.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	DueDate         time.Time                `gorm:"not null;index"`
	IssuedAt        *time.Time
	PaidAt          *time.Time
	CanceledAt      *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *accounting.Invoice {
	inv := &accounting.Invoice{
		PropertyID:      m.PropertyID,
		ReferenceNumber: m.ReferenceNumber,
		Type:            m.Type,
		Description:     m.Description,
		Amount:          m.Amount,
		AllocatedAmount: m.AllocatedAmount,
		Status:          m.Status,
		DueDate:         m.DueDate,
		IssuedAt:        m.IssuedAt,
		PaidAt:          m.PaidAt,
		CanceledAt:      m.CanceledAt,
	}
	m.PopulateVillageAggregateRoot(&inv.VillageAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *accounting.Invoice) {
	m.FromDomainVillageAggregateRoot(inv.VillageAggregateRoot)
	m.PropertyID = inv.PropertyID
	m.ReferenceNumber = inv.ReferenceNumber
	m.Type = inv.Type
	m.Description = inv.Description
	m.Amount = inv.Amount
	m.AllocatedAmount = inv.AllocatedAmount
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.IssuedAt = inv.IssuedAt
	m.PaidAt = inv.PaidAt
	m.CanceledAt = inv.CanceledAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *accounting.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	VillageAggregateModel
	PropertyID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	Amount            valueobject.Money        `gorm:"type:bigint;not null"`
	Method            accounting.PaymentMethod `gorm:"type:varchar(30);not null"`
	ExternalReference string                   `gorm:"type:varchar(100);index"`
	Note              string                   `gorm:"type:text"`
	Status            accounting.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	ReceivedAt        time.Time                `gorm:"not null;index"`
	ConfirmedAt       *time.Time
	AllocatedAt       *time.Time
	MatchedLineID     *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *accounting.Payment {
	p := &accounting.Payment{
		PropertyID:        m.PropertyID,
		Amount:            m.Amount,
		Method:            m.Method,
		ExternalReference: m.ExternalReference,
		Note:              m.Note,
		Status:            m.Status,
		ReceivedAt:        m.ReceivedAt,
		ConfirmedAt:       m.ConfirmedAt,
		AllocatedAt:       m.AllocatedAt,
		MatchedLineID:     m.MatchedLineID,
	}
	m.PopulateVillageAggregateRoot(&p.VillageAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *accounting.Payment) {
	m.FromDomainVillageAggregateRoot(p.VillageAggregateRoot)
	m.PropertyID = p.PropertyID
	m.Amount = p.Amount
	m.Method = p.Method
	m.ExternalReference = p.ExternalReference
	m.Note = p.Note
	m.Status = p.Status
	m.ReceivedAt = p.ReceivedAt
	m.ConfirmedAt = p.ConfirmedAt
	m.AllocatedAt = p.AllocatedAt
	m.MatchedLineID = p.MatchedLineID
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *accounting.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentAllocationModel is the persistence model for the append-only
// allocation rows. Rows are never updated or deleted once written.
type PaymentAllocationModel struct {
	BaseModel
	VillageID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	PaymentID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Amount    valueobject.Money           `gorm:"type:bigint;not null"`
	Source    accounting.AllocationSource `gorm:"type:varchar(10);not null"`
}

// TableName returns the table name for GORM
func (PaymentAllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain PaymentAllocation.
func (m *PaymentAllocationModel) ToDomain() *accounting.PaymentAllocation {
	return &accounting.PaymentAllocation{
		BaseEntity: m.BaseModel.ToDomain(),
		VillageID:  m.VillageID,
		PaymentID:  m.PaymentID,
		InvoiceID:  m.InvoiceID,
		Amount:     m.Amount,
		Source:     m.Source,
	}
}

// FromDomain populates the persistence model from a domain PaymentAllocation.
func (m *PaymentAllocationModel) FromDomain(a *accounting.PaymentAllocation) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.VillageID = a.VillageID
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.Amount = a.Amount
	m.Source = a.Source
}

// CreditBalanceModel is the persistence model for per-property credit balances.
type CreditBalanceModel struct {
	VillageAggregateModel
	PropertyID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_credit_village_property,priority:2"`
	Balance    valueobject.Money `gorm:"type:bigint;not null;default:0"`
}

// TableName returns the table name for GORM
func (CreditBalanceModel) TableName() string {
	return "credit_balances"
}

// ToDomain converts the persistence model to a domain CreditBalance.
func (m *CreditBalanceModel) ToDomain() *accounting.CreditBalance {
	c := &accounting.CreditBalance{
		PropertyID: m.PropertyID,
		Balance:    m.Balance,
	}
	m.PopulateVillageAggregateRoot(&c.VillageAggregateRoot)
	return c
}

// FromDomain populates the persistence model from a domain CreditBalance.
func (m *CreditBalanceModel) FromDomain(c *accounting.CreditBalance) {
	m.FromDomainVillageAggregateRoot(c.VillageAggregateRoot)
	m.PropertyID = c.PropertyID
	m.Balance = c.Balance
}

// AccountModel is the persistence model for chart-of-accounts entries.
type AccountModel struct {
	VillageAggregateModel
	Code     string                 `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_village_code,priority:2"`
	Name     string                 `gorm:"type:varchar(200);not null"`
	Type     accounting.AccountType `gorm:"type:varchar(20);not null"`
	IsActive bool                   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account.
func (m *AccountModel) ToDomain() *accounting.Account {
	a := &accounting.Account{
		Code:     m.Code,
		Name:     m.Name,
		Type:     m.Type,
		IsActive: m.IsActive,
	}
	m.PopulateVillageAggregateRoot(&a.VillageAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain Account.
func (m *AccountModel) FromDomain(a *accounting.Account) {
	m.FromDomainVillageAggregateRoot(a.VillageAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.Type = a.Type
	m.IsActive = a.IsActive
}

// JournalEntryModel is the persistence model for journal lines. The
// journal is append-only; rows are never updated after insert.
type JournalEntryModel struct {
	BaseModel
	VillageID    uuid.UUID                    `gorm:"type:uuid;not null;index:idx_journal_village_posted,priority:1"`
	AccountID    uuid.UUID                    `gorm:"type:uuid;not null;index"`
	AccountCode  string                       `gorm:"type:varchar(20);not null"`
	EntryNumber  string                       `gorm:"type:varchar(30);not null;index"`
	DebitAmount  valueobject.Money            `gorm:"type:bigint;not null"`
	CreditAmount valueobject.Money            `gorm:"type:bigint;not null"`
	SourceType   accounting.JournalSourceType `gorm:"type:varchar(30);not null;index:idx_journal_source,priority:1"`
	SourceID     uuid.UUID                    `gorm:"type:uuid;not null;index:idx_journal_source,priority:2"`
	Memo         string                       `gorm:"type:varchar(500)"`
	PostedAt     time.Time                    `gorm:"not null;index:idx_journal_village_posted,priority:2"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ToDomain converts the persistence model to a domain JournalEntry.
func (m *JournalEntryModel) ToDomain() *accounting.JournalEntry {
	return &accounting.JournalEntry{
		BaseEntity:   m.BaseModel.ToDomain(),
		VillageID:    m.VillageID,
		AccountID:    m.AccountID,
		AccountCode:  m.AccountCode,
		EntryNumber:  m.EntryNumber,
		DebitAmount:  m.DebitAmount,
		CreditAmount: m.CreditAmount,
		SourceType:   m.SourceType,
		SourceID:     m.SourceID,
		Memo:         m.Memo,
		PostedAt:     m.PostedAt,
	}
}

// FromDomain populates the persistence model from a domain JournalEntry.
func (m *JournalEntryModel) FromDomain(e *accounting.JournalEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.VillageID = e.VillageID
	m.AccountID = e.AccountID
	m.AccountCode = e.AccountCode
	m.EntryNumber = e.EntryNumber
	m.DebitAmount = e.DebitAmount
	m.CreditAmount = e.CreditAmount
	m.SourceType = e.SourceType
	m.SourceID = e.SourceID
	m.Memo = e.Memo
	m.PostedAt = e.PostedAt
}

// ReceiptModel is the persistence model for the Receipt aggregate root.
type ReceiptModel struct {
	VillageAggregateModel
	PaymentID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	SequenceNumber int64                    `gorm:"not null;uniqueIndex:idx_receipt_village_sequence,priority:2"`
	ReceiptNumber  string                   `gorm:"type:varchar(20);not null;index"`
	Amount         valueobject.Money        `gorm:"type:bigint;not null"`
	Status         accounting.ReceiptStatus `gorm:"type:varchar(20);not null;default:'issued';index"`
	IssuedAt       time.Time                `gorm:"not null"`
	VoidedAt       *time.Time
	VoidReason     string     `gorm:"type:varchar(500)"`
	ReissuedFrom   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt.
func (m *ReceiptModel) ToDomain() *accounting.Receipt {
	r := &accounting.Receipt{
		PaymentID:      m.PaymentID,
		SequenceNumber: m.SequenceNumber,
		ReceiptNumber:  m.ReceiptNumber,
		Amount:         m.Amount,
		Status:         m.Status,
		IssuedAt:       m.IssuedAt,
		VoidedAt:       m.VoidedAt,
		VoidReason:     m.VoidReason,
		ReissuedFrom:   m.ReissuedFrom,
	}
	m.PopulateVillageAggregateRoot(&r.VillageAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain Receipt.
func (m *ReceiptModel) FromDomain(r *accounting.Receipt) {
	m.FromDomainVillageAggregateRoot(r.VillageAggregateRoot)
	m.PaymentID = r.PaymentID
	m.SequenceNumber = r.SequenceNumber
	m.ReceiptNumber = r.ReceiptNumber
	m.Amount = r.Amount
	m.Status = r.Status
	m.IssuedAt = r.IssuedAt
	m.VoidedAt = r.VoidedAt
	m.VoidReason = r.VoidReason
	m.ReissuedFrom = r.ReissuedFrom
}

// ReceiptSequenceModel holds the per-village receipt counter. The row
// is incremented atomically; a consumed value is never handed out again.
type ReceiptSequenceModel struct {
	VillageID uuid.UUID `gorm:"type:uuid;primary_key"`
	NextValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReceiptSequenceModel) TableName() string {
	return "receipt_sequences"
}

// BankStatementLineModel is the persistence model for imported bank
// statement lines.
type BankStatementLineModel struct {
	VillageAggregateModel
	ImportBatchID   uuid.UUID                  `gorm:"type:uuid;not null;index"`
	StatementNumber string                     `gorm:"type:varchar(20);not null;index"`
	RawReference    string                     `gorm:"type:varchar(100)"`
	Description     string                     `gorm:"type:text"`
	Amount          valueobject.Money          `gorm:"type:bigint;not null"`
	ValueDate       time.Time                  `gorm:"not null;index"`
	Status          accounting.MatchStatus     `gorm:"type:varchar(20);not null;default:'unmatched';index"`
	MatchedPayment  *uuid.UUID                 `gorm:"type:uuid;index"`
	MatchConfidence float64                    `gorm:"not null;default:0"`
	Candidates      accounting.MatchCandidates `gorm:"type:jsonb;default:'[]'"`
	PropertyHint    *uuid.UUID                 `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (BankStatementLineModel) TableName() string {
	return "bank_statement_lines"
}

// ToDomain converts the persistence model to a domain BankStatementLine.
func (m *BankStatementLineModel) ToDomain() *accounting.BankStatementLine {
	l := &accounting.BankStatementLine{
		ImportBatchID:   m.ImportBatchID,
		StatementNumber: m.StatementNumber,
		RawReference:    m.RawReference,
		Description:     m.Description,
		Amount:          m.Amount,
		ValueDate:       m.ValueDate,
		Status:          m.Status,
		MatchedPayment:  m.MatchedPayment,
		MatchConfidence: m.MatchConfidence,
		Candidates:      m.Candidates,
		PropertyHint:    m.PropertyHint,
	}
	m.PopulateVillageAggregateRoot(&l.VillageAggregateRoot)
	return l
}

// FromDomain populates the persistence model from a domain BankStatementLine.
func (m *BankStatementLineModel) FromDomain(l *accounting.BankStatementLine) {
	m.FromDomainVillageAggregateRoot(l.VillageAggregateRoot)
	m.ImportBatchID = l.ImportBatchID
	m.StatementNumber = l.StatementNumber
	m.RawReference = l.RawReference
	m.Description = l.Description
	m.Amount = l.Amount
	m.ValueDate = l.ValueDate
	m.Status = l.Status
	m.MatchedPayment = l.MatchedPayment
	m.MatchConfidence = l.MatchConfidence
	m.Candidates = l.Candidates
	m.PropertyHint = l.PropertyHint
}

// PostingHaltModel is the persistence model for village posting halts.
type PostingHaltModel struct {
	BaseModel
	VillageID uuid.UUID `gorm:"type:uuid;not null;index"`
	Reason    string    `gorm:"type:text;not null"`
	HaltedAt  time.Time `gorm:"not null"`
	ClearedAt *time.Time
	ClearedBy string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (PostingHaltModel) TableName() string {
	return "posting_halts"
}

// ToDomain converts the persistence model to a domain PostingHalt.
func (m *PostingHaltModel) ToDomain() *accounting.PostingHalt {
	return &accounting.PostingHalt{
		BaseEntity: m.BaseModel.ToDomain(),
		VillageID:  m.VillageID,
		Reason:     m.Reason,
		HaltedAt:   m.HaltedAt,
		ClearedAt:  m.ClearedAt,
		ClearedBy:  m.ClearedBy,
	}
}

// FromDomain populates the persistence model from a domain PostingHalt.
func (m *PostingHaltModel) FromDomain(h *accounting.PostingHalt) {
	m.FromDomainBaseEntity(h.BaseEntity)
	m.VillageID = h.VillageID
	m.Reason = h.Reason
	m.HaltedAt = h.HaltedAt
	m.ClearedAt = h.ClearedAt
	m.ClearedBy = h.ClearedBy
}
