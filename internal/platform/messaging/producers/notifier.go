package producers

import (
	"context"
	"log/slog"

	"github.com/atlas-transfers/internal/domain/shared"
)

// Notifier emits transfer and balance notifications through a message
// publisher. Every method is fire-and-forget: a publish failure is logged
// and dropped, it never reaches the caller.
type Notifier struct {
	publisher MessagePublisher
	logger    *slog.Logger
}

// NewNotifier creates a notifier backed by the given publisher
func NewNotifier(logger *slog.Logger, publisher MessagePublisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyTransfer announces a transfer reaching a terminal status
func (n *Notifier) NotifyTransfer(ctx context.Context, notification *shared.TransferNotification) {
	key := notification.TransferID.String()
	if err := n.publisher.Publish(ctx, key, notification); err != nil {
		n.logger.Warn("Failed to publish transfer notification",
			"transfer_id", key,
			"event_type", notification.EventType,
			"error", err,
		)
	}
}

// NotifyBalanceUpdated announces one side of a committed balance mutation
func (n *Notifier) NotifyBalanceUpdated(ctx context.Context, notification *shared.BalanceUpdatedNotification) {
	key := notification.AccountID.String()
	if err := n.publisher.Publish(ctx, key, notification); err != nil {
		n.logger.Warn("Failed to publish balance notification",
			"account_id", key,
			"operation", notification.Operation,
			"error", err,
		)
	}
}
