// Package notification provides delivery adapters for resident-facing
// notifications. The real channels (LINE, email) are operated outside this
// service; the adapters here are what the ledger wires in their place.
package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the application log. It is the
// default adapter until an external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification payload
func (n *LogNotifier) Notify(ctx context.Context, villageID string, kind string, payload map[string]any) error {
	n.logger.Info("notification",
		zap.String("village_id", villageID),
		zap.String("kind", kind),
		zap.Any("payload", payload),
	)
	return nil
}
