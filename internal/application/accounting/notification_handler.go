package accounting

import (
	"context"

	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Notifier is the external delivery collaborator. The channels (LINE,
// email, push) live outside this service; this interface is all the
// ledger knows about them.
type Notifier interface {
	Notify(ctx context.Context, villageID string, kind string, payload map[string]any) error
}

// NotificationHandler forwards ledger events to the notification
// collaborator. It is registered on the event bus behind the
// idempotent-handler wrapper so redeliveries do not double-send.
type NotificationHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(notifier Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifier: notifier, logger: logger}
}

// EventTypes lists the events that produce resident-facing notifications
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		accounting.EventTypeInvoiceIssued,
		accounting.EventTypeInvoiceOverdue,
		accounting.EventTypePaymentAllocated,
		accounting.EventTypeReceiptIssued,
	}
}

// Handle forwards one event to the notifier
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload := map[string]any{
		"event_id":     event.EventID().String(),
		"aggregate_id": event.AggregateID().String(),
		"occurred_at":  event.OccurredAt(),
	}

	switch e := event.(type) {
	case *accounting.InvoiceIssuedEvent:
		payload["reference_number"] = e.ReferenceNumber
		payload["amount_units"] = e.AmountUnits
		payload["due_date"] = e.DueDate
	case *accounting.InvoiceOverdueEvent:
		payload["reference_number"] = e.ReferenceNumber
		payload["outstanding_units"] = e.OutstandingUnits
	case *accounting.PaymentAllocatedEvent:
		payload["allocated_units"] = e.AllocatedUnits
		payload["credited_units"] = e.CreditedUnits
	case *accounting.ReceiptIssuedEvent:
		payload["receipt_number"] = e.ReceiptNumber
		payload["amount_units"] = e.AmountUnits
	}

	if err := h.notifier.Notify(ctx, event.VillageID().String(), event.EventType(), payload); err != nil {
		h.logger.Warn("notification delivery failed",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err))
		return err
	}
	return nil
}
