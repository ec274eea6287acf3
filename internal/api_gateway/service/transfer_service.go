package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlas-transfers/internal/domain/event"
	"github.com/atlas-transfers/internal/domain/outbox"
	"github.com/atlas-transfers/internal/domain/shared"
	"github.com/atlas-transfers/internal/domain/transfer"
)

// TxManager runs a function inside a database transaction
type TxManager interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransferServiceImpl implements the TransferService interface
type TransferServiceImpl struct {
	txManager    TxManager
	transferRepo transfer.Repository
	outboxRepo   outbox.Repository
	eventRepo    event.Repository
	logger       *slog.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	logger *slog.Logger,
	txManager TxManager,
	transferRepo transfer.Repository,
	outboxRepo outbox.Repository,
	eventRepo event.Repository,
) TransferService {
	return &TransferServiceImpl{
		txManager:    txManager,
		transferRepo: transferRepo,
		outboxRepo:   outboxRepo,
		eventRepo:    eventRepo,
		logger:       logger,
	}
}

// CreateTransfer persists the PENDING transfer together with its outbox
// command in one transaction, then records the CREATED audit event. The
// caller gets an answer as soon as the transfer is accepted; settlement
// happens asynchronously once the outbox poller hands the command to the
// broker.
func (s *TransferServiceImpl) CreateTransfer(ctx context.Context, t *transfer.Transfer, correlationID string) (*transfer.Transfer, bool, error) {
	if t.IdempotencyKey != "" {
		existing, err := s.transferRepo.GetByIdempotencyKey(ctx, t.IdempotencyKey)
		if err != nil {
			s.logger.Error("Failed to check for existing transfer with idempotency key",
				"idempotency_key", t.IdempotencyKey,
				"error", err,
			)
			return nil, false, err
		}
		if existing != nil {
			s.logger.Info("Found existing transfer with idempotency key",
				"idempotency_key", t.IdempotencyKey,
				"transfer_id", existing.ID.String(),
				"status", string(existing.Status),
			)
			return existing, true, nil
		}
	}

	command := &shared.TransferCommand{
		TransferID:        t.ID,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		TotalAmount:       t.TotalAmount,
		NetAmount:         t.Amount,
		CorrelationID:     correlationID,
		Timestamp:         time.Now(),
	}

	message, err := outbox.NewMessage(command)
	if err != nil {
		return nil, false, err
	}

	err = s.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.transferRepo.WithTx(tx).Create(ctx, t); err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, message)
	})
	if err != nil {
		// Two requests with the same fresh idempotency key can both miss the
		// lookup above; the loser hits the unique constraint. Serve it the
		// winner's transfer instead of an error.
		if errors.Is(err, transfer.ErrDuplicateTransfer{}) && t.IdempotencyKey != "" {
			existing, lookupErr := s.transferRepo.GetByIdempotencyKey(ctx, t.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				s.logger.Info("Lost transfer creation race, returning existing transfer",
					"idempotency_key", t.IdempotencyKey,
					"transfer_id", existing.ID.String(),
				)
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	createdEvent := event.New(t.ID, event.EventCreated, nil, transfer.StatusPending, "Transfer accepted")
	if err := s.eventRepo.Append(ctx, createdEvent); err != nil {
		// The transfer is already committed; a lost audit event must not
		// fail the request.
		s.logger.Error("Failed to append CREATED event", "transfer_id", t.ID.String(), "error", err)
	}

	s.logger.Info("Transfer accepted",
		"transfer_id", t.ID.String(),
		"sender_account_id", t.SenderAccountID.String(),
		"receiver_account_id", t.ReceiverAccountID.String(),
		"type", string(t.Type),
		"amount", t.Amount.String(),
		"fee", t.Fee.String(),
	)

	return t, false, nil
}

// GetTransferByID retrieves a transfer by its ID
func (s *TransferServiceImpl) GetTransferByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	return s.transferRepo.GetByID(ctx, id)
}

// ListTransfers retrieves a page of transfers for an account
func (s *TransferServiceImpl) ListTransfers(ctx context.Context, filter transfer.ListFilter) ([]*transfer.Transfer, int64, error) {
	return s.transferRepo.List(ctx, filter)
}

// GetTransferEvents retrieves the audit trail for a transfer
func (s *TransferServiceImpl) GetTransferEvents(ctx context.Context, id uuid.UUID) ([]*event.TransferEvent, error) {
	if _, err := s.transferRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByTransferID(ctx, id)
}
