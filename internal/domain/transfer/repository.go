package transfer

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListFilter narrows and paginates account transfer listings. Page starts
// at 1; Limit is clamped to [1,100] by the caller.
type ListFilter struct {
	AccountID uuid.UUID
	Status    *Status
	Type      *Type
	Page      int
	Limit     int
}

// Repository defines transfer persistence operations. Transfers are never
// deleted; status changes go through UpdateStatus only.
type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// GetByIdempotencyKey returns nil, nil when no transfer carries the key
	GetByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)

	// List returns transfers where the account is sender or receiver,
	// newest first, along with the total matching count
	List(ctx context.Context, filter ListFilter) ([]*Transfer, int64, error)

	// UpdateStatus moves the transfer to status, recording the failure
	// reason for FAILED and the completion time for COMPLETED
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, failureReason string) error

	WithTx(tx pgx.Tx) Repository
}

// ErrTransferNotFound indicates a missing transfer
type ErrTransferNotFound struct {
	ID uuid.UUID
}

func (e ErrTransferNotFound) Error() string {
	return "transfer not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrTransferNotFound
func (e ErrTransferNotFound) Is(target error) bool {
	t, ok := target.(ErrTransferNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateTransfer indicates an id or idempotency key collision
type ErrDuplicateTransfer struct {
	ID uuid.UUID
}

func (e ErrDuplicateTransfer) Error() string {
	return "duplicate transfer: " + e.ID.String()
}

func (e ErrDuplicateTransfer) Is(target error) bool {
	t, ok := target.(ErrDuplicateTransfer)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
