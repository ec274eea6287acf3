package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines account balance persistence operations
type Repository interface {
	Create(ctx context.Context, ab *AccountBalance) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error)

	// LockForUpdate acquires a row lock on the balance inside the current
	// transaction; serialization of concurrent transfers per account relies
	// on this lock, which must hold across replicas
	LockForUpdate(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error)

	UpdateBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal) error
	WithTx(tx pgx.Tx) Repository
}

// HistoryRepository manages the append-only balance audit trail. The
// existence check by transfer id is the single source of truth for
// "already applied" under at-least-once delivery.
type HistoryRepository interface {
	Append(ctx context.Context, h *History) error
	ExistsByTransferID(ctx context.Context, transferID uuid.UUID) (bool, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*History, error)
	WithTx(tx pgx.Tx) HistoryRepository
}

// ErrAccountNotFound indicates a missing account balance row
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account balance not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrDuplicateAccount indicates a document number uniqueness violation
type ErrDuplicateAccount struct {
	DocumentNumber string
}

func (e ErrDuplicateAccount) Error() string {
	return "account with document number already exists: " + e.DocumentNumber
}
