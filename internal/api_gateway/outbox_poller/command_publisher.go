// Package outbox_poller drains the transfer outbox into the broker. The
// poller runs inside the gateway process, next to the transaction that
// fills the outbox.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlas-transfers/internal/domain/outbox"
	"github.com/atlas-transfers/internal/platform/messaging/producers"
)

// CommandPublisher publishes outbox messages to the command topic
type CommandPublisher interface {
	PublishCommand(ctx context.Context, message *outbox.Message) error
}

// CommandPublisherImpl implements CommandPublisher
type CommandPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewCommandPublisher creates a new publisher
func NewCommandPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) CommandPublisher {
	return &CommandPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishCommand hands one outbox message to the broker and marks it
// processed. Messages are keyed by sender account so all of a sender's
// transfers land on the same partition and keep their order.
func (p *CommandPublisherImpl) PublishCommand(ctx context.Context, message *outbox.Message) error {
	command, err := message.GetTransferCommand()
	if err != nil {
		p.logger.Error("Failed to decode transfer command from outbox payload",
			"outbox_id", message.ID, "transfer_id", message.TransferID.String(), "error", err,
		)
		message.MarkAsFailed()
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if command.CorrelationID != "" {
		logger = p.logger.With("correlation_id", command.CorrelationID)
	}

	key := message.SenderAccountID.String()
	if err := p.producer.Publish(ctx, key, command); err != nil {
		return fmt.Errorf("failed to publish outbox %d to command topic: %w", message.ID, err)
	}

	message.MarkAsProcessed()
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "transfer_id", message.TransferID.String(), "error", err,
		)
		return fmt.Errorf("command for %s published, but failed to mark outbox %d as PROCESSED: %w", message.TransferID.String(), message.ID, err)
	}

	logger.Info("Outbox message published to command topic", "outbox_id", message.ID, "transfer_id", message.TransferID.String())
	return nil
}
