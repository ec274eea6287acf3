package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrSameAccount     = errors.New("sender and receiver accounts must differ")
	ErrInvalidAmount   = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidType     = errors.New("invalid transfer type")
	ErrInvalidStatus   = errors.New("invalid transfer status")
	ErrNotTransitional = errors.New("transfer is in a terminal status")
)

// Type defines the kind of money movement
type Type string

const (
	TypeTransfer   Type = "TRANSFER"
	TypePix        Type = "PIX"
	TypeTed        Type = "TED"
	TypeDoc        Type = "DOC"
	TypePayment    Type = "PAYMENT"
	TypeDeposit    Type = "DEPOSIT"
	TypeWithdrawal Type = "WITHDRAWAL"
)

// Status defines transfer processing states
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusReversed   Status = "REVERSED"
)

// Terminal reports whether no further transitions may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// ParseType validates and converts a raw transfer type string
func ParseType(raw string) (Type, error) {
	t := Type(raw)
	switch t {
	case TypeTransfer, TypePix, TypeTed, TypeDoc, TypePayment, TypeDeposit, TypeWithdrawal:
		return t, nil
	}
	return "", ErrInvalidType
}

// ParseStatus validates and converts a raw transfer status string
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return s, nil
	}
	return "", ErrInvalidStatus
}

var (
	transferFeeRate = decimal.RequireFromString("0.01")
	tedFlatFee      = decimal.RequireFromString("10")
	docFlatFee      = decimal.RequireFromString("5")
)

// FeeFor returns the fee charged for moving amount with the given transfer type.
// PIX is free, TRANSFER costs 1% of the amount, TED and DOC carry flat fees.
func FeeFor(t Type, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case TypeTransfer:
		return amount.Mul(transferFeeRate).Round(2)
	case TypeTed:
		return tedFlatFee
	case TypeDoc:
		return docFlatFee
	default:
		return decimal.Zero
	}
}

// Transfer represents a money movement between two accounts
type Transfer struct {
	ID                uuid.UUID       `json:"id"`
	SenderAccountID   uuid.UUID       `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID       `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Description       string          `json:"description"`
	Type              Type            `json:"type"`
	Status            Status          `json:"status"`
	ExternalID        string          `json:"external_id,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	RetryCount        int             `json:"retry_count"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
}

// New creates a PENDING transfer with the fee and total amount derived
// from the schedule. The amount must be positive with at most two decimal
// places, and the two accounts must differ.
func New(senderID, receiverID uuid.UUID, amount decimal.Decimal, description string, t Type, externalID, idempotencyKey string) (*Transfer, error) {
	if senderID == receiverID {
		return nil, ErrSameAccount
	}
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return nil, ErrInvalidAmount
	}
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}

	fee := FeeFor(t, amount)
	now := time.Now()

	return &Transfer{
		ID:                uuid.New(),
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
		Fee:               fee,
		TotalAmount:       amount.Add(fee),
		Description:       description,
		Type:              t,
		Status:            StatusPending,
		ExternalID:        externalID,
		IdempotencyKey:    idempotencyKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
