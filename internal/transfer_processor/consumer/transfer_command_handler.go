// Package consumer adapts broker messages into processing service calls.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atlas-transfers/internal/domain/shared"
	"github.com/atlas-transfers/internal/platform/messaging/producers"
	"github.com/atlas-transfers/internal/transfer_processor/service"
)

// TransferCommandHandler handles incoming transfer command messages from Kafka
type TransferCommandHandler struct {
	processingService service.ProcessingService
	dlqProducer       producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewTransferCommandHandler creates a new handler
func NewTransferCommandHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	dlqProducer producers.DeadLetterPublisher,
) *TransferCommandHandler {
	return &TransferCommandHandler{
		processingService: processingService,
		dlqProducer:       dlqProducer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages. Undecodable payloads go to the
// DLQ so one poison message cannot stall the partition.
func (h *TransferCommandHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var cmd shared.TransferCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal transfer command from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.dlqProducer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.dlqProducer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				// Message parked, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if cmd.CorrelationID != "" {
		logger = h.logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Info("Received transfer command",
		"transfer_id", cmd.TransferID.String(),
		"sender_account_id", cmd.SenderAccountID.String(),
		"receiver_account_id", cmd.ReceiverAccountID.String(),
	)

	if err := h.processingService.ProcessTransfer(ctx, &cmd); err != nil {
		logger.Error("Failed to process transfer command",
			"transfer_id", cmd.TransferID.String(),
			"error", err,
		)
		return fmt.Errorf("processing transfer %s failed: %w", cmd.TransferID.String(), err)
	}

	logger.Info("Transfer command processed", "transfer_id", cmd.TransferID.String())
	return nil // Success, commit offset
}
