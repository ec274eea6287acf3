package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferCommand is the broker message that drives asynchronous transfer
// processing. Delivery is at-least-once; duplicates are absorbed by the
// balance history idempotency guard, not by the transport.
type TransferCommand struct {
	TransferID        uuid.UUID       `json:"transfer_id"`
	SenderAccountID   uuid.UUID       `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID       `json:"receiver_account_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"` // debited from the sender
	NetAmount         decimal.Decimal `json:"net_amount"`   // credited to the receiver
	CorrelationID     string          `json:"correlation_id"`
	Timestamp         time.Time       `json:"timestamp"`
}
