package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlas-transfers/internal/domain/event"
	"github.com/atlas-transfers/internal/domain/transfer"
)

// TransferService defines the interface for transfer operations
type TransferService interface {
	// CreateTransfer accepts a new transfer for asynchronous processing.
	// When the idempotency key matches a previously accepted transfer, that
	// transfer is returned with existing=true and nothing new is persisted.
	CreateTransfer(ctx context.Context, t *transfer.Transfer, correlationID string) (result *transfer.Transfer, existing bool, err error)

	// GetTransferByID retrieves a transfer by its ID
	// Returns ErrTransferNotFound if the transfer doesn't exist
	GetTransferByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error)

	// ListTransfers retrieves a page of transfers where the account is
	// sender or receiver, plus the total matching count
	ListTransfers(ctx context.Context, filter transfer.ListFilter) ([]*transfer.Transfer, int64, error)

	// GetTransferEvents retrieves the audit trail for a transfer in
	// chronological order
	GetTransferEvents(ctx context.Context, id uuid.UUID) ([]*event.TransferEvent, error)
}
