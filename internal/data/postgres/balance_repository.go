package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/atlas-transfers/internal/domain/balance"
	"github.com/atlas-transfers/internal/platform/persistence"
)

// BalanceRepository implements the balance.Repository interface for PostgreSQL
type BalanceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBalanceRepository creates a new PostgreSQL account balance repository
func NewBalanceRepository(logger *slog.Logger, db *persistence.PostgresDB) balance.Repository {
	return &BalanceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *BalanceRepository) WithTx(tx pgx.Tx) balance.Repository {
	return &BalanceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account balance row
func (r *BalanceRepository) Create(ctx context.Context, ab *balance.AccountBalance) error {
	query := `
		INSERT INTO account_balances (account_id, owner_name, document_number, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		ab.AccountID,
		ab.OwnerName,
		ab.DocumentNumber,
		ab.Balance.String(),
		ab.CreatedAt,
		ab.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return balance.ErrDuplicateAccount{DocumentNumber: ab.DocumentNumber}
		}
		r.logger.Error("Failed to create account balance", "account_id", ab.AccountID.String(), "error", err)
		return fmt.Errorf("failed to create account balance: %w", err)
	}

	return nil
}

// GetByAccountID retrieves an account balance without locking
func (r *BalanceRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error) {
	query := `
		SELECT account_id, owner_name, document_number, balance::text, created_at, updated_at
		FROM account_balances
		WHERE account_id = $1
	`
	return r.queryBalance(ctx, query, accountID)
}

// LockForUpdate retrieves an account balance holding a row lock until the
// surrounding transaction ends. Callers must lock accounts in a stable
// order to avoid deadlocks.
func (r *BalanceRepository) LockForUpdate(ctx context.Context, accountID uuid.UUID) (*balance.AccountBalance, error) {
	query := `
		SELECT account_id, owner_name, document_number, balance::text, created_at, updated_at
		FROM account_balances
		WHERE account_id = $1
		FOR UPDATE
	`
	return r.queryBalance(ctx, query, accountID)
}

func (r *BalanceRepository) queryBalance(ctx context.Context, query string, accountID uuid.UUID) (*balance.AccountBalance, error) {
	var (
		ab  balance.AccountBalance
		bal string
	)

	err := r.querier.QueryRow(ctx, query, accountID).Scan(
		&ab.AccountID,
		&ab.OwnerName,
		&ab.DocumentNumber,
		&bal,
		&ab.CreatedAt,
		&ab.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, balance.ErrAccountNotFound{AccountID: accountID}
		}
		r.logger.Error("Failed to get account balance", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	if ab.Balance, err = decimal.NewFromString(bal); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", bal, err)
	}

	return &ab, nil
}

// UpdateBalance writes the new balance for an account
func (r *BalanceRepository) UpdateBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal) error {
	query := `
		UPDATE account_balances
		SET balance = $1::numeric, updated_at = NOW()
		WHERE account_id = $2
	`

	result, err := r.querier.Exec(ctx, query, newBalance.String(), accountID)
	if err != nil {
		r.logger.Error("Failed to update account balance", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return balance.ErrAccountNotFound{AccountID: accountID}
	}

	return nil
}

// HistoryRepository implements the balance.HistoryRepository interface for PostgreSQL
type HistoryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewHistoryRepository creates a new PostgreSQL balance history repository
func NewHistoryRepository(logger *slog.Logger, db *persistence.PostgresDB) balance.HistoryRepository {
	return &HistoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *HistoryRepository) WithTx(tx pgx.Tx) balance.HistoryRepository {
	return &HistoryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append stores an immutable balance history row and backfills its ID
func (r *HistoryRepository) Append(ctx context.Context, h *balance.History) error {
	query := `
		INSERT INTO balance_history (account_id, transfer_id, previous_balance, new_balance, amount, operation, description, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		h.AccountID,
		h.TransferID,
		h.PreviousBalance.String(),
		h.NewBalance.String(),
		h.Amount.String(),
		string(h.Operation),
		h.Description,
		h.CreatedAt,
	).Scan(&h.ID)
	if err != nil {
		r.logger.Error("Failed to append balance history", "account_id", h.AccountID.String(), "error", err)
		return fmt.Errorf("failed to append balance history: %w", err)
	}

	return nil
}

// ExistsByTransferID reports whether any history row references the transfer
func (r *HistoryRepository) ExistsByTransferID(ctx context.Context, transferID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM balance_history WHERE transfer_id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, transferID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check balance history existence", "transfer_id", transferID.String(), "error", err)
		return false, fmt.Errorf("failed to check balance history existence: %w", err)
	}

	return exists, nil
}

// ListByAccountID returns history rows for an account, newest first
func (r *HistoryRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*balance.History, error) {
	query := `
		SELECT id, account_id, transfer_id, previous_balance::text, new_balance::text, amount::text, operation, description, created_at
		FROM balance_history
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list balance history", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list balance history: %w", err)
	}
	defer rows.Close()

	var entries []*balance.History
	for rows.Next() {
		var (
			h        balance.History
			previous string
			next     string
			amount   string
			op       string
		)
		err := rows.Scan(&h.ID, &h.AccountID, &h.TransferID, &previous, &next, &amount, &op, &h.Description, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}
		if h.PreviousBalance, err = decimal.NewFromString(previous); err != nil {
			return nil, fmt.Errorf("invalid previous balance %q: %w", previous, err)
		}
		if h.NewBalance, err = decimal.NewFromString(next); err != nil {
			return nil, fmt.Errorf("invalid new balance %q: %w", next, err)
		}
		if h.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		h.Operation = balance.Operation(op)
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over balance history: %w", err)
	}

	return entries, nil
}
