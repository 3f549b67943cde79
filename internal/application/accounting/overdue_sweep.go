package accounting

import (
	"context"
	"time"

	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OverdueSweep flags unpaid invoices past their due date. The sweep
// checks the context between invoices so a shutdown can cancel it
// mid-run without losing the invoices already flagged.
type OverdueSweep struct {
	uow       accounting.UnitOfWork
	publisher shared.EventPublisher
	logger    *zap.Logger
	batchSize int
}

// NewOverdueSweep creates an OverdueSweep
func NewOverdueSweep(uow accounting.UnitOfWork, publisher shared.EventPublisher, logger *zap.Logger, batchSize int) *OverdueSweep {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &OverdueSweep{uow: uow, publisher: publisher, logger: logger, batchSize: batchSize}
}

// SweepResult summarizes one sweep run
type SweepResult struct {
	Flagged int `json:"flagged"`
	Skipped int `json:"skipped"`
}

// Run flags every invoice past due as of now
func (s *OverdueSweep) Run(ctx context.Context) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "overdue_sweep")
	defer span.End()

	now := time.Now()
	result := &SweepResult{}

	for {
		var due []*accounting.Invoice
		err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
			var err error
			due, err = repos.Invoices.FindDueForOverdueSweep(ctx, now, s.batchSize)
			return err
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return result, err
		}
		if len(due) == 0 {
			break
		}

		progressed := false
		for _, invoice := range due {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := s.flagOne(ctx, invoice, now); err != nil {
				// A conflict on one invoice must not stall the sweep.
				s.logger.Warn("overdue sweep skipped invoice",
					zap.String("invoice_id", invoice.ID.String()),
					zap.Error(err))
				result.Skipped++
				continue
			}
			result.Flagged++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	telemetry.SetAttributes(span, "flagged", result.Flagged, "skipped", result.Skipped)
	return result, nil
}

func (s *OverdueSweep) flagOne(ctx context.Context, invoice *accounting.Invoice, now time.Time) error {
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		if err := invoice.MarkOverdue(now); err != nil {
			return err
		}
		return repos.Invoices.SaveWithLock(ctx, invoice, invoice.GetVersion()-1)
	})
	if err != nil {
		return err
	}

	events := invoice.GetDomainEvents()
	invoice.ClearDomainEvents()
	if len(events) > 0 {
		_ = s.publisher.Publish(ctx, events...)
	}
	return nil
}
