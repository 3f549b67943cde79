package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/domain/shared/valueobject"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
)

// ReceiptService issues numbered receipts for committed allocation
// batches. The village sequence is advanced in its own transaction so a
// failure downstream burns the number instead of recycling it.
type ReceiptService struct {
	uow       accounting.UnitOfWork
	publisher shared.EventPublisher
}

// NewReceiptService creates a ReceiptService
func NewReceiptService(uow accounting.UnitOfWork, publisher shared.EventPublisher) *ReceiptService {
	return &ReceiptService{uow: uow, publisher: publisher}
}

// IssueForAllocation creates the receipt for one allocation batch
func (s *ReceiptService) IssueForAllocation(ctx context.Context, villageID, paymentID uuid.UUID, amount valueobject.Money) (*accounting.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "issue")
	defer span.End()
	telemetry.SetAttributes(span,
		"village_id", villageID.String(),
		"payment_id", paymentID.String(),
	)

	var sequence int64
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		sequence, err = repos.Receipts.NextSequence(ctx, villageID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var receipt *accounting.Receipt
	err = s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		existing, err := repos.Receipts.FindByPayment(ctx, paymentID)
		if err != nil && !errorsIsNotFound(err) {
			return err
		}
		if existing != nil && existing.Status == accounting.ReceiptStatusIssued {
			receipt = existing
			return nil
		}

		receipt, err = accounting.NewReceipt(villageID, paymentID, sequence, amount, time.Now())
		if err != nil {
			return err
		}
		return repos.Receipts.Save(ctx, receipt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, receipt)
	return receipt, nil
}

// VoidAndReissue voids a receipt and issues its replacement under a
// fresh sequence number
func (s *ReceiptService) VoidAndReissue(ctx context.Context, villageID, receiptID uuid.UUID, reason string) (*accounting.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "void_and_reissue")
	defer span.End()
	telemetry.SetAttributes(span, "receipt_id", receiptID.String())

	var original, replacement *accounting.Receipt
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		original, err = repos.Receipts.FindByIDForVillage(ctx, villageID, receiptID)
		if err != nil {
			return err
		}
		if err := original.Void(reason); err != nil {
			return err
		}

		sequence, err := repos.Receipts.NextSequence(ctx, villageID)
		if err != nil {
			return err
		}
		replacement, err = original.Reissue(sequence, time.Now())
		if err != nil {
			return err
		}

		if err := repos.Receipts.Save(ctx, original); err != nil {
			return err
		}
		return repos.Receipts.Save(ctx, replacement)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, original)
	s.publishEvents(ctx, replacement)
	return replacement, nil
}

// ListReceipts pages receipts for a village, optionally by property
func (s *ReceiptService) ListReceipts(ctx context.Context, villageID uuid.UUID, propertyID *uuid.UUID, filter shared.Filter) (shared.Paginated[accounting.Receipt], error) {
	var page shared.Paginated[accounting.Receipt]
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		var err error
		page, err = repos.Receipts.FindByFilter(ctx, villageID, propertyID, filter)
		return err
	})
	return page, err
}

func (s *ReceiptService) publishEvents(ctx context.Context, receipt *accounting.Receipt) {
	events := receipt.GetDomainEvents()
	receipt.ClearDomainEvents()
	if len(events) > 0 {
		_ = s.publisher.Publish(ctx, events...)
	}
}
