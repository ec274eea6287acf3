package balance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyOwnerName        = errors.New("owner name cannot be empty")
	ErrEmptyDocumentNumber   = errors.New("document number cannot be empty")
	ErrNegativeInitialAmount = errors.New("initial balance cannot be negative")
)

// AccountBalance is the authoritative balance for one account. The
// non-negative invariant is enforced by the apply-transfer algorithm, not
// by a storage constraint.
type AccountBalance struct {
	AccountID      uuid.UUID       `json:"account_id"`
	OwnerName      string          `json:"owner_name"`
	DocumentNumber string          `json:"document_number"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewAccountBalance creates an account balance record with the given
// opening balance
func NewAccountBalance(ownerName, documentNumber string, initial decimal.Decimal) (*AccountBalance, error) {
	if ownerName == "" {
		return nil, ErrEmptyOwnerName
	}
	if documentNumber == "" {
		return nil, ErrEmptyDocumentNumber
	}
	if initial.IsNegative() {
		return nil, ErrNegativeInitialAmount
	}

	now := time.Now()
	return &AccountBalance{
		AccountID:      uuid.New(),
		OwnerName:      ownerName,
		DocumentNumber: documentNumber,
		Balance:        initial,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Operation classifies a balance history row
type Operation string

const (
	OperationDebit   Operation = "DEBIT"
	OperationCredit  Operation = "CREDIT"
	OperationInitial Operation = "INITIAL"
)

// History is one immutable row of the balance audit trail. For a fixed
// (account, transfer) pair at most one DEBIT or CREDIT row exists; that
// uniqueness is the idempotency guard for transfer application. The sum of
// Amount for an account since creation equals its current balance.
type History struct {
	ID              int64           `json:"id"`
	AccountID       uuid.UUID       `json:"account_id"`
	TransferID      *uuid.UUID      `json:"transfer_id,omitempty"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Amount          decimal.Decimal `json:"amount"` // signed: negative for debits
	Operation       Operation       `json:"operation"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewDebit records totalAmount leaving the account for a transfer
func NewDebit(accountID, transferID uuid.UUID, previous, totalAmount decimal.Decimal, description string) *History {
	return &History{
		AccountID:       accountID,
		TransferID:      &transferID,
		PreviousBalance: previous,
		NewBalance:      previous.Sub(totalAmount),
		Amount:          totalAmount.Neg(),
		Operation:       OperationDebit,
		Description:     description,
		CreatedAt:       time.Now(),
	}
}

// NewCredit records netAmount entering the account for a transfer
func NewCredit(accountID, transferID uuid.UUID, previous, netAmount decimal.Decimal, description string) *History {
	return &History{
		AccountID:       accountID,
		TransferID:      &transferID,
		PreviousBalance: previous,
		NewBalance:      previous.Add(netAmount),
		Amount:          netAmount,
		Operation:       OperationCredit,
		Description:     description,
		CreatedAt:       time.Now(),
	}
}

// NewInitial records the opening balance of a freshly created account
func NewInitial(accountID uuid.UUID, amount decimal.Decimal) *History {
	return &History{
		AccountID:       accountID,
		PreviousBalance: decimal.Zero,
		NewBalance:      amount,
		Amount:          amount,
		Operation:       OperationInitial,
		Description:     "Initial balance",
		CreatedAt:       time.Now(),
	}
}
