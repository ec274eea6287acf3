package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notification event types consumed by the notification sink
const (
	NotificationTransferCompleted = "TRANSFER_COMPLETED"
	NotificationTransferFailed    = "TRANSFER_FAILED"
)

// TransferNotification announces a transfer reaching a terminal status.
// Emission is fire-and-forget: failures are logged and swallowed, never
// retried or rolled back.
type TransferNotification struct {
	EventType         string          `json:"event_type"`
	TransferID        uuid.UUID       `json:"transfer_id"`
	SenderAccountID   uuid.UUID       `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID       `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	Timestamp         time.Time       `json:"timestamp"`
}

// BalanceUpdatedNotification announces one side of a committed balance
// mutation. Same best-effort semantics as TransferNotification.
type BalanceUpdatedNotification struct {
	AccountID  uuid.UUID       `json:"account_id"`
	Operation  string          `json:"operation"` // DEBIT or CREDIT
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	TransferID *uuid.UUID      `json:"transfer_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
