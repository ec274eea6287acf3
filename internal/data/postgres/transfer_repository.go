// Package postgres provides PostgreSQL implementations of the domain
// repositories. Money columns are NUMERIC(15,2); values cross the driver
// boundary as strings to keep decimal arithmetic exact.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/atlas-transfers/internal/domain/transfer"
	"github.com/atlas-transfers/internal/platform/persistence"
)

// uniqueViolationCode is the Postgres error code for unique constraint violations
const uniqueViolationCode = "23505"

// TransferRepository implements the transfer.Repository interface for PostgreSQL
type TransferRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransferRepository creates a new PostgreSQL transfer repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) transfer.Repository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *TransferRepository) WithTx(tx pgx.Tx) transfer.Repository {
	return &TransferRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transferColumns = `
	id, sender_account_id, receiver_account_id,
	amount::text, fee::text, total_amount::text,
	description, type, status,
	COALESCE(external_id, ''), COALESCE(idempotency_key, ''), COALESCE(failure_reason, ''),
	retry_count, created_at, updated_at, completed_at, cancelled_at
`

// Create stores a new transfer. An idempotency key collision surfaces as
// ErrDuplicateTransfer.
func (r *TransferRepository) Create(ctx context.Context, t *transfer.Transfer) error {
	query := `
		INSERT INTO transfers (id, sender_account_id, receiver_account_id, amount, fee, total_amount,
			description, type, status, external_id, idempotency_key, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.SenderAccountID,
		t.ReceiverAccountID,
		t.Amount.String(),
		t.Fee.String(),
		t.TotalAmount.String(),
		t.Description,
		string(t.Type),
		string(t.Status),
		t.ExternalID,
		t.IdempotencyKey,
		t.RetryCount,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return transfer.ErrDuplicateTransfer{ID: t.ID}
		}
		r.logger.Error("Failed to create transfer", "error", err)
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	t, err := r.scanTransfer(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{ID: id}
		}
		r.logger.Error("Failed to get transfer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return t, nil
}

// GetByIdempotencyKey retrieves a transfer by its idempotency key.
// Returns nil, nil when no transfer carries the key.
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE idempotency_key = $1`

	t, err := r.scanTransfer(r.querier.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transfer by idempotency key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}

	return t, nil
}

// List returns transfers where the account appears as sender or receiver,
// newest first, optionally narrowed by status and type, plus the total
// matching count for pagination.
func (r *TransferRepository) List(ctx context.Context, filter transfer.ListFilter) ([]*transfer.Transfer, int64, error) {
	where := `WHERE (sender_account_id = $1 OR receiver_account_id = $1)`
	args := []interface{}{filter.AccountID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM transfers ` + where
	if err := r.querier.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count transfers", "account_id", filter.AccountID.String(), "error", err)
		return nil, 0, fmt.Errorf("failed to count transfers: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	args = append(args, filter.Limit, offset)
	listQuery := fmt.Sprintf(
		`SELECT %s FROM transfers %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transferColumns, where, len(args)-1, len(args),
	)

	rows, err := r.querier.Query(ctx, listQuery, args...)
	if err != nil {
		r.logger.Error("Failed to list transfers", "account_id", filter.AccountID.String(), "error", err)
		return nil, 0, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		t, err := r.scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over transfers: %w", err)
	}

	return transfers, total, nil
}

// UpdateStatus moves a transfer to the given status, recording the failure
// reason for FAILED and the completion time for COMPLETED.
func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status transfer.Status, failureReason string) error {
	query := `
		UPDATE transfers
		SET status = $1,
		    failure_reason = NULLIF($2, ''),
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, string(status), failureReason, id)
	if err != nil {
		r.logger.Error("Failed to update transfer status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update transfer status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transfer.ErrTransferNotFound{ID: id}
	}

	return nil
}

// scanTransfer reads one transfer row; pgx.Row and pgx.Rows both satisfy
// the scan contract
func (r *TransferRepository) scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
	var (
		t           transfer.Transfer
		amount      string
		fee         string
		totalAmount string
		typ         string
		status      string
		completedAt *time.Time
		cancelledAt *time.Time
	)

	err := row.Scan(
		&t.ID,
		&t.SenderAccountID,
		&t.ReceiverAccountID,
		&amount,
		&fee,
		&totalAmount,
		&t.Description,
		&typ,
		&status,
		&t.ExternalID,
		&t.IdempotencyKey,
		&t.FailureReason,
		&t.RetryCount,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("invalid fee %q: %w", fee, err)
	}
	if t.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total amount %q: %w", totalAmount, err)
	}

	t.Type = transfer.Type(typ)
	t.Status = transfer.Status(status)
	t.CompletedAt = completedAt
	t.CancelledAt = cancelledAt

	return &t, nil
}
