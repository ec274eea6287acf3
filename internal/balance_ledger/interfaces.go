// Package balance_ledger owns account balances and their audit trail. It is
// the single writer of balance state; transfer application is atomic and
// idempotent so the broker may redeliver commands freely.
package balance_ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/domain/shared"
)

// Service defines the balance ledger operations
type Service interface {
	// CreateAccount opens an account with the given opening balance and
	// records the INITIAL history row.
	// Returns ErrDuplicateAccount if the document number is already taken.
	CreateAccount(ctx context.Context, ownerName, documentNumber string, initialBalance decimal.Decimal) (*balance.AccountBalance, error)

	// GetBalance retrieves an account's balance, served from cache when a
	// fresh snapshot exists
	GetBalance(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error)

	// GetHistory retrieves paginated balance history for an account, newest first
	GetHistory(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*balance.History, error)

	// ApplyTransfer atomically debits the sender and credits the receiver.
	// A command whose transfer already has history rows reports
	// AlreadyProcessed without touching balances. Insufficient funds is a
	// business outcome, not an error: the result carries Success=false and
	// no state changes.
	ApplyTransfer(ctx context.Context, cmd *shared.TransferCommand) (*ApplyTransferResult, error)
}

// ApplyTransferResult reports the outcome of a transfer application
type ApplyTransferResult struct {
	Success                 bool             `json:"success"`
	AlreadyProcessed        bool             `json:"already_processed,omitempty"`
	Message                 string           `json:"message,omitempty"`
	SenderBalance           *decimal.Decimal `json:"sender_balance,omitempty"`
	SenderPreviousBalance   *decimal.Decimal `json:"sender_previous_balance,omitempty"`
	ReceiverBalance         *decimal.Decimal `json:"receiver_balance,omitempty"`
	ReceiverPreviousBalance *decimal.Decimal `json:"receiver_previous_balance,omitempty"`
	CurrentBalance          *decimal.Decimal `json:"current_balance,omitempty"`
	RequiredAmount          *decimal.Decimal `json:"required_amount,omitempty"`
}

// TxManager runs a function inside a database transaction
type TxManager interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Cache is the best-effort balance cache
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Notifier publishes balance change notifications. Implementations must not
// fail the caller; delivery is fire-and-forget.
type Notifier interface {
	NotifyBalanceUpdated(ctx context.Context, notification *shared.BalanceUpdatedNotification)
}
