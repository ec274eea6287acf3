package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/domain/event"
	"github.com/atlas-transfers/internal/domain/shared"
	"github.com/atlas-transfers/internal/domain/transfer"
)

// Failure reasons recorded on transfers that cannot complete
const (
	FailureReasonAccountNotFound = "Sender or receiver account not found"
	FailureReasonGeneric         = "Failed to process transfer"
)

type ProcessingServiceImpl struct {
	transferRepo  transfer.Repository
	eventRepo     event.Repository
	verifier      AccountVerifier
	applier       BalanceApplier
	notifier      TransferNotifier
	lookupTimeout time.Duration
	applyTimeout  time.Duration
	logger        *slog.Logger
}

func NewProcessingService(
	transferRepo transfer.Repository,
	eventRepo event.Repository,
	verifier AccountVerifier,
	applier BalanceApplier,
	notifier TransferNotifier,
	lookupTimeout time.Duration,
	applyTimeout time.Duration,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		transferRepo:  transferRepo,
		eventRepo:     eventRepo,
		verifier:      verifier,
		applier:       applier,
		notifier:      notifier,
		lookupTimeout: lookupTimeout,
		applyTimeout:  applyTimeout,
		logger:        logger,
	}
}

// ProcessTransfer drives one transfer command to a terminal status.
// Returning nil acknowledges the message; returning an error leaves it
// uncommitted for redelivery. Redelivered commands are safe: terminal
// transfers are acknowledged without reprocessing, and the balance ledger
// skips transfers it has already applied.
func (s *ProcessingServiceImpl) ProcessTransfer(ctx context.Context, cmd *shared.TransferCommand) error {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = s.logger.With("correlation_id", cmd.CorrelationID)
	}

	logger.Info("Processing transfer", "transfer_id", cmd.TransferID.String())

	t, err := s.transferRepo.GetByID(ctx, cmd.TransferID)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			logger.Warn("Transfer referenced by command does not exist, acknowledging", "transfer_id", cmd.TransferID.String())
			return nil
		}
		return err // Let the broker redeliver
	}

	if t.Status.Terminal() {
		logger.Info("Transfer already in terminal status, acknowledging",
			"transfer_id", t.ID.String(),
			"status", string(t.Status),
		)
		return nil
	}

	if t.Status == transfer.StatusPending {
		if err := s.transition(ctx, logger, t, transfer.StatusProcessing, event.EventProcessingStarted, "Processing started", ""); err != nil {
			return err
		}
	}

	lookupCtx, cancelLookup := context.WithTimeout(ctx, s.lookupTimeout)
	err = s.verifier.VerifyAccounts(lookupCtx, cmd.SenderAccountID, cmd.ReceiverAccountID)
	cancelLookup()
	if err != nil {
		if errors.Is(err, balance.ErrAccountNotFound{}) {
			logger.Warn("Account lookup failed", "transfer_id", t.ID.String(), "error", err)
			return s.fail(ctx, logger, t, FailureReasonAccountNotFound)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Account lookup timed out", "transfer_id", t.ID.String(), "timeout", s.lookupTimeout.String())
			return s.fail(ctx, logger, t, FailureReasonGeneric)
		}
		return fmt.Errorf("account verification for transfer %s failed: %w", t.ID.String(), err)
	}

	applyCtx, cancelApply := context.WithTimeout(ctx, s.applyTimeout)
	result, err := s.applier.ApplyTransfer(applyCtx, cmd)
	cancelApply()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Balance application timed out", "transfer_id", t.ID.String(), "timeout", s.applyTimeout.String())
			return s.fail(ctx, logger, t, FailureReasonGeneric)
		}
		return fmt.Errorf("balance application for transfer %s failed: %w", t.ID.String(), err)
	}

	if !result.Success {
		logger.Info("Transfer rejected by balance ledger",
			"transfer_id", t.ID.String(),
			"reason", result.Message,
		)
		return s.fail(ctx, logger, t, result.Message)
	}

	if result.AlreadyProcessed {
		logger.Info("Balances already reflect this transfer", "transfer_id", t.ID.String())
	}

	if err := s.transition(ctx, logger, t, transfer.StatusCompleted, event.EventCompleted, "Transfer completed", ""); err != nil {
		return err
	}

	s.notifier.NotifyTransfer(ctx, &shared.TransferNotification{
		EventType:         shared.NotificationTransferCompleted,
		TransferID:        t.ID,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		Amount:            t.Amount,
		Status:            string(transfer.StatusCompleted),
		Timestamp:         time.Now(),
	})

	logger.Info("Transfer completed", "transfer_id", t.ID.String())
	return nil
}

// fail drives the transfer to FAILED with the given reason and emits the
// failure notification. Returns nil so the command is acknowledged.
func (s *ProcessingServiceImpl) fail(ctx context.Context, logger *slog.Logger, t *transfer.Transfer, reason string) error {
	if err := s.transition(ctx, logger, t, transfer.StatusFailed, event.EventFailed, reason, reason); err != nil {
		return err
	}

	s.notifier.NotifyTransfer(ctx, &shared.TransferNotification{
		EventType:         shared.NotificationTransferFailed,
		TransferID:        t.ID,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		Amount:            t.Amount,
		Status:            string(transfer.StatusFailed),
		Timestamp:         time.Now(),
	})

	return nil
}

// transition updates the persisted status and appends the matching audit
// event. The status write must succeed; a lost audit event is logged only.
func (s *ProcessingServiceImpl) transition(ctx context.Context, logger *slog.Logger, t *transfer.Transfer, next transfer.Status, eventType event.EventType, description, failureReason string) error {
	if err := s.transferRepo.UpdateStatus(ctx, t.ID, next, failureReason); err != nil {
		return fmt.Errorf("failed to move transfer %s to %s: %w", t.ID.String(), string(next), err)
	}

	previous := t.Status
	e := event.New(t.ID, eventType, &previous, next, description)
	if err := s.eventRepo.Append(ctx, e); err != nil {
		logger.Error("Failed to append audit event",
			"transfer_id", t.ID.String(),
			"event_type", string(eventType),
			"error", err,
		)
	}

	t.Status = next
	t.FailureReason = failureReason
	return nil
}
