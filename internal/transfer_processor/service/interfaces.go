package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlas-transfers/internal/balance_ledger"
	"github.com/atlas-transfers/internal/domain/shared"
)

// ProcessingService defines the interface for processing transfer commands.
type ProcessingService interface {
	ProcessTransfer(ctx context.Context, cmd *shared.TransferCommand) error
}

// AccountVerifier checks that both parties of a transfer exist before any
// money moves
type AccountVerifier interface {
	VerifyAccounts(ctx context.Context, senderID, receiverID uuid.UUID) error
}

// BalanceApplier performs the atomic debit and credit.
// balance_ledger.Service satisfies this.
type BalanceApplier interface {
	ApplyTransfer(ctx context.Context, cmd *shared.TransferCommand) (*balance_ledger.ApplyTransferResult, error)
}

// TransferNotifier emits terminal status notifications, best-effort
type TransferNotifier interface {
	NotifyTransfer(ctx context.Context, notification *shared.TransferNotification)
}
