package accounting

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
)

// MatchStatus is the reconciliation state of a bank statement line
type MatchStatus string

const (
	MatchStatusUnmatched    MatchStatus = "unmatched"
	MatchStatusAutoMatched  MatchStatus = "auto_matched"
	MatchStatusManualReview MatchStatus = "manual_review"
	MatchStatusMatched      MatchStatus = "matched"
)

// IsTerminal returns true once a line is tied to a payment
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusAutoMatched || s == MatchStatusMatched
}

// MatchCandidate is one scored payment proposal kept for manual review
type MatchCandidate struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Score     float64   `json:"score"`
}

// MatchCandidates is stored as a JSONB column on the statement line
type MatchCandidates []MatchCandidate

// Value implements driver.Valuer for JSONB storage
func (c MatchCandidates) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB retrieval
func (c *MatchCandidates) Scan(value any) error {
	if value == nil {
		*c = MatchCandidates{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MatchCandidates", value)
	}
	return json.Unmarshal(data, c)
}

// BankStatementLine is one imported row of a bank statement. The line
// holds at most one matched payment; replaying an import leaves lines
// in a terminal status untouched.
type BankStatementLine struct {
	shared.VillageAggregateRoot
	ImportBatchID   uuid.UUID
	StatementNumber string
	RawReference    string
	Description     string
	Amount          valueobject.Money
	ValueDate       time.Time
	Status          MatchStatus
	MatchedPayment  *uuid.UUID
	MatchConfidence float64
	Candidates      MatchCandidates
	PropertyHint    *uuid.UUID
}

// NewBankStatementLine creates an unmatched line from an import batch
func NewBankStatementLine(villageID, importBatchID uuid.UUID, statementNumber, rawReference, description string, amount valueobject.Money, valueDate time.Time, propertyHint *uuid.UUID) (*BankStatementLine, error) {
	if villageID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Village ID is required")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if valueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Value date is required")
	}
	return &BankStatementLine{
		VillageAggregateRoot: shared.NewVillageAggregateRoot(villageID),
		ImportBatchID:        importBatchID,
		StatementNumber:      statementNumber,
		RawReference:         rawReference,
		Description:          description,
		Amount:               amount,
		ValueDate:            valueDate,
		Status:               MatchStatusUnmatched,
		Candidates:           MatchCandidates{},
		PropertyHint:         propertyHint,
	}, nil
}

// FormatStatementNumber renders the STMTYYYYMM### statement number
func FormatStatementNumber(at time.Time, sequence int64) string {
	return fmt.Sprintf("STMT%04d%02d%03d", at.Year(), int(at.Month()), sequence)
}

// AutoMatch binds the line to a payment found by the scorer
func (l *BankStatementLine) AutoMatch(paymentID uuid.UUID, confidence float64) error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Statement line is already matched")
	}
	l.Status = MatchStatusAutoMatched
	l.MatchedPayment = &paymentID
	l.MatchConfidence = confidence
	l.Candidates = MatchCandidates{}
	l.Touch()
	l.IncrementVersion()

	l.AddDomainEvent(NewStatementLineMatchedEvent(l, true))
	return nil
}

// RouteToReview parks the line with its scored candidates
func (l *BankStatementLine) RouteToReview(candidates MatchCandidates) error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Statement line is already matched")
	}
	l.Status = MatchStatusManualReview
	l.Candidates = candidates
	l.Touch()
	l.IncrementVersion()
	return nil
}

// ManualMatch binds the line to an operator-chosen payment
func (l *BankStatementLine) ManualMatch(paymentID uuid.UUID) error {
	if l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Statement line is already matched")
	}
	l.Status = MatchStatusMatched
	l.MatchedPayment = &paymentID
	l.MatchConfidence = 1.0
	l.Candidates = MatchCandidates{}
	l.Touch()
	l.IncrementVersion()

	l.AddDomainEvent(NewStatementLineMatchedEvent(l, false))
	return nil
}

// Unmatch releases the payment link so the line can be matched again
func (l *BankStatementLine) Unmatch() error {
	if !l.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Statement line is not matched")
	}
	l.Status = MatchStatusUnmatched
	l.MatchedPayment = nil
	l.MatchConfidence = 0
	l.Touch()
	l.IncrementVersion()
	return nil
}

// Event types for the statement aggregate
const (
	EventTypeStatementLineMatched = "statement_line.matched"
)

const aggregateTypeStatementLine = "BankStatementLine"

// StatementLineMatchedEvent is raised when a line is tied to a payment
type StatementLineMatchedEvent struct {
	shared.BaseDomainEvent
	PaymentID   string  `json:"payment_id"`
	Automatic   bool    `json:"automatic"`
	Confidence  float64 `json:"confidence"`
	AmountUnits int64   `json:"amount_units"`
}

// NewStatementLineMatchedEvent creates the event from the aggregate
func NewStatementLineMatchedEvent(l *BankStatementLine, automatic bool) *StatementLineMatchedEvent {
	return &StatementLineMatchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatementLineMatched, aggregateTypeStatementLine, l.ID, l.VillageID),
		PaymentID:       l.MatchedPayment.String(),
		Automatic:       automatic,
		Confidence:      l.MatchConfidence,
		AmountUnits:     l.Amount.Units(),
	}
}
