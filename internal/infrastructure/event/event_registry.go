package event

import (
	"github.com/smartvillage/backend/internal/domain/accounting"
)

// RegisterAllEvents registers all domain event types with the serializer.
// This is required for the OutboxProcessor to deserialize events from
// the outbox table.
func RegisterAllEvents(serializer *EventSerializer) {
	// Invoice lifecycle events
	serializer.Register(accounting.EventTypeInvoiceIssued, &accounting.InvoiceIssuedEvent{})
	serializer.Register(accounting.EventTypeInvoicePaid, &accounting.InvoicePaidEvent{})
	serializer.Register(accounting.EventTypeInvoiceOverdue, &accounting.InvoiceOverdueEvent{})
	serializer.Register(accounting.EventTypeInvoiceCanceled, &accounting.InvoiceCanceledEvent{})

	// Payment and allocation events
	serializer.Register(accounting.EventTypePaymentRecorded, &accounting.PaymentRecordedEvent{})
	serializer.Register(accounting.EventTypePaymentConfirmed, &accounting.PaymentConfirmedEvent{})
	serializer.Register(accounting.EventTypePaymentAllocated, &accounting.PaymentAllocatedEvent{})

	// Receipt events
	serializer.Register(accounting.EventTypeReceiptIssued, &accounting.ReceiptIssuedEvent{})
	serializer.Register(accounting.EventTypeReceiptVoided, &accounting.ReceiptVoidedEvent{})

	// Reconciliation events
	serializer.Register(accounting.EventTypeStatementLineMatched, &accounting.StatementLineMatchedEvent{})
}
