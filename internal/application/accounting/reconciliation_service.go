package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconciliationService imports OCR-extracted bank statement lines and
// matches them against pending payments. Import batches are replayable:
// lines in a terminal status are skipped and a batch-level idempotency
// key short-circuits full re-submissions.
type ReconciliationService struct {
	uow         accounting.UnitOfWork
	scorer      *accounting.MatchScorer
	allocations *AllocationService
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewReconciliationService creates a ReconciliationService
func NewReconciliationService(uow accounting.UnitOfWork, scorer *accounting.MatchScorer, allocations *AllocationService, idempotency shared.IdempotencyStore, publisher shared.EventPublisher, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		uow:         uow,
		scorer:      scorer,
		allocations: allocations,
		idempotency: idempotency,
		publisher:   publisher,
		logger:      logger,
	}
}

// ImportLineRequest is one statement row extracted upstream
type ImportLineRequest struct {
	RawReference string
	Description  string
	AmountBaht   string
	ValueDate    time.Time
	PropertyHint *uuid.UUID
}

// ImportRequest is one statement import batch
type ImportRequest struct {
	VillageID uuid.UUID
	BatchKey  string // file hash or upstream batch identifier
	Lines     []ImportLineRequest
}

// LineOutcome reports what happened to one imported line
type LineOutcome struct {
	LineID  uuid.UUID  `json:"line_id,omitempty"`
	Status  string     `json:"status"`
	Detail  string     `json:"detail,omitempty"`
	Matched *uuid.UUID `json:"matched_payment_id,omitempty"`
}

// ImportResult summarizes one import batch
type ImportResult struct {
	BatchID     uuid.UUID     `json:"batch_id"`
	Replayed    bool          `json:"replayed"`
	Total       int           `json:"total"`
	AutoMatched int           `json:"auto_matched"`
	InReview    int           `json:"in_review"`
	Unmatched   int           `json:"unmatched"`
	Failed      int           `json:"failed"`
	Outcomes    []LineOutcome `json:"outcomes"`
}

const importDedupTTL = 30 * 24 * time.Hour

// ImportStatement ingests a batch of statement lines and runs matching
// per line. A single failing line is reported, not fatal to the batch.
func (s *ReconciliationService) ImportStatement(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "import")
	defer span.End()
	telemetry.SetAttributes(span,
		"village_id", req.VillageID.String(),
		"line_count", len(req.Lines),
	)

	result := &ImportResult{BatchID: uuid.New(), Total: len(req.Lines)}

	var dedupKey string
	if req.BatchKey != "" {
		dedupKey = "stmt-import:" + req.VillageID.String() + ":" + req.BatchKey
		processed, err := s.idempotency.IsProcessed(ctx, dedupKey)
		if err != nil {
			s.logger.Warn("idempotency store unavailable, continuing without batch dedup", zap.Error(err))
			dedupKey = ""
		} else if processed {
			result.Replayed = true
			return result, nil
		}
	}

	now := time.Now()
	for i, lineReq := range req.Lines {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := s.importLine(ctx, req.VillageID, result.BatchID, lineReq, now, int64(i+1))
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Status {
		case string(accounting.MatchStatusAutoMatched):
			result.AutoMatched++
		case string(accounting.MatchStatusManualReview):
			result.InReview++
		case string(accounting.MatchStatusUnmatched):
			result.Unmatched++
		default:
			result.Failed++
		}
	}

	// Record the batch only once it ran to completion, so an interrupted
	// or wholly failed import stays re-runnable within the TTL.
	if dedupKey != "" && (result.Total == 0 || result.Failed < result.Total) {
		if _, err := s.idempotency.MarkProcessed(ctx, dedupKey, importDedupTTL); err != nil {
			s.logger.Warn("failed to record import batch key", zap.Error(err))
		}
	}
	return result, nil
}

func (s *ReconciliationService) importLine(ctx context.Context, villageID, batchID uuid.UUID, req ImportLineRequest, now time.Time, offset int64) LineOutcome {
	amount, err := valueobject.ParseMoneyTHB(req.AmountBaht)
	if err != nil {
		return LineOutcome{Status: "failed", Detail: err.Error()}
	}

	var (
		line    *accounting.BankStatementLine
		matched *uuid.UUID
	)
	err = s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		seq, err := repos.Statements.CountImportedThisMonth(ctx, villageID, now)
		if err != nil {
			return err
		}
		line, err = accounting.NewBankStatementLine(villageID, batchID,
			accounting.FormatStatementNumber(now, seq+offset),
			req.RawReference, req.Description, amount, req.ValueDate, req.PropertyHint)
		if err != nil {
			return err
		}

		pending, err := repos.Payments.FindPendingByVillage(ctx, villageID)
		if err != nil {
			return err
		}
		candidates := s.scorer.RankCandidates(line, pending)

		switch {
		case s.scorer.IsAutoMatch(candidates):
			paymentID := candidates[0].PaymentID
			taken, err := repos.Statements.IsPaymentMatched(ctx, paymentID)
			if err != nil {
				return err
			}
			if taken {
				if err := line.RouteToReview(candidates); err != nil {
					return err
				}
				break
			}
			payment, err := repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
			if err != nil {
				return err
			}
			if err := payment.AttachStatementLine(line.ID); err != nil {
				return err
			}
			if err := line.AutoMatch(paymentID, candidates[0].Score); err != nil {
				return err
			}
			if err := repos.Payments.SaveWithLock(ctx, payment, payment.GetVersion()-1); err != nil {
				return err
			}
			matched = &paymentID
		case len(candidates) > 0:
			if err := line.RouteToReview(candidates); err != nil {
				return err
			}
		case req.PropertyHint != nil:
			// No pending payment matches but the OCR layer identified the
			// property: record a confirmed payment straight from the line.
			payment, err := accounting.NewPayment(villageID, *req.PropertyHint, amount,
				accounting.PaymentMethodBankTransfer, req.ValueDate, req.RawReference,
				"auto-created from bank statement")
			if err != nil {
				return err
			}
			if err := payment.Confirm(); err != nil {
				return err
			}
			if err := payment.AttachStatementLine(line.ID); err != nil {
				return err
			}
			if err := repos.Payments.Save(ctx, payment); err != nil {
				return err
			}
			if err := line.AutoMatch(payment.ID, 1.0); err != nil {
				return err
			}
			id := payment.ID
			matched = &id
		}

		// The line and its payment link commit together: a payment can
		// never point at a statement line that was not persisted.
		return repos.Statements.Save(ctx, line)
	})
	if err != nil {
		return LineOutcome{Status: "failed", Detail: err.Error()}
	}

	s.publishLineEvents(ctx, line)

	outcome := LineOutcome{LineID: line.ID, Status: string(line.Status), Matched: matched}
	if matched != nil {
		if _, aErr := s.allocations.ConfirmAndAllocate(ctx, villageID, *matched); aErr != nil {
			s.logger.Error("statement line matched but allocation failed",
				zap.String("line_id", line.ID.String()),
				zap.String("payment_id", matched.String()),
				zap.Error(aErr))
			outcome.Detail = "allocation failed: " + aErr.Error()
		}
	}
	return outcome
}

// ManualMatch ties a reviewed line to an operator-chosen payment and
// hands the payment to the allocation engine.
func (s *ReconciliationService) ManualMatch(ctx context.Context, villageID, lineID, paymentID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "manual_match")
	defer span.End()
	telemetry.SetAttributes(span, "line_id", lineID.String(), "payment_id", paymentID.String())

	var line *accounting.BankStatementLine
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		line, err = repos.Statements.FindByIDForVillage(ctx, villageID, lineID)
		if err != nil {
			return err
		}
		payment, err := repos.Payments.FindByIDForVillage(ctx, villageID, paymentID)
		if err != nil {
			return err
		}
		if !line.Amount.Equals(payment.Amount) {
			return shared.NewDomainError("INVALID_AMOUNT", "Statement line and payment amounts differ")
		}
		taken, err := repos.Statements.IsPaymentMatched(ctx, paymentID)
		if err != nil {
			return err
		}
		if taken {
			return shared.NewDomainError("INVALID_STATE", "Payment is already matched to another line")
		}

		if err := payment.AttachStatementLine(line.ID); err != nil {
			return err
		}
		if err := line.ManualMatch(paymentID); err != nil {
			return err
		}
		if err := repos.Payments.SaveWithLock(ctx, payment, payment.GetVersion()-1); err != nil {
			return err
		}
		return repos.Statements.Save(ctx, line)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.publishLineEvents(ctx, line)

	if _, err := s.allocations.ConfirmAndAllocate(ctx, villageID, paymentID); err != nil {
		return fmt.Errorf("line matched but allocation failed: %w", err)
	}
	return nil
}

// Unmatch releases a matched line and its payment link
func (s *ReconciliationService) Unmatch(ctx context.Context, villageID, lineID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "unmatch")
	defer span.End()
	telemetry.SetAttributes(span, "line_id", lineID.String())

	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		line, err := repos.Statements.FindByIDForVillage(ctx, villageID, lineID)
		if err != nil {
			return err
		}
		if line.MatchedPayment != nil {
			payment, err := repos.Payments.FindByID(ctx, *line.MatchedPayment)
			if err != nil && !errorsIsNotFound(err) {
				return err
			}
			if payment != nil {
				if payment.IsAllocated() {
					return shared.NewDomainError("INVALID_STATE", "Cannot unmatch a line whose payment is already allocated")
				}
				payment.DetachStatementLine()
				if err := repos.Payments.SaveWithLock(ctx, payment, payment.GetVersion()-1); err != nil {
					return err
				}
			}
		}
		if err := line.Unmatch(); err != nil {
			return err
		}
		return repos.Statements.Save(ctx, line)
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// ListLines pages statement lines by match status
func (s *ReconciliationService) ListLines(ctx context.Context, villageID uuid.UUID, status accounting.MatchStatus, filter shared.Filter) (shared.Paginated[accounting.BankStatementLine], error) {
	var page shared.Paginated[accounting.BankStatementLine]
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		page, err = repos.Statements.FindByStatus(ctx, villageID, status, filter)
		return err
	})
	return page, err
}

func (s *ReconciliationService) publishLineEvents(ctx context.Context, line *accounting.BankStatementLine) {
	events := line.GetDomainEvents()
	line.ClearDomainEvents()
	if len(events) > 0 {
		_ = s.publisher.Publish(ctx, events...)
	}
}
