package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/atlas-transfers/internal/domain/shared"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message stores a transfer command for reliable handoff to the broker.
// It is written in the same database transaction as the PENDING transfer,
// so every accepted transfer eventually gets a processing attempt.
type Message struct {
	ID              int64           `json:"id"`
	TransferID      uuid.UUID       `json:"transfer_id"`
	SenderAccountID uuid.UUID       `json:"sender_account_id"`
	Payload         json.RawMessage `json:"payload"`
	Status          Status          `json:"status"`
	Attempts        int             `json:"attempts"`
	CreatedAt       time.Time       `json:"created_at"`
	LastAttemptAt   *time.Time      `json:"last_attempt_at,omitempty"`
}

func NewMessage(cmd *shared.TransferCommand) (*Message, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	return &Message{
		TransferID:      cmd.TransferID,
		SenderAccountID: cmd.SenderAccountID,
		Payload:         payload,
		Status:          StatusPending,
		Attempts:        0,
		CreatedAt:       time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetTransferCommand extracts the transfer command from the payload
func (m *Message) GetTransferCommand() (*shared.TransferCommand, error) {
	var cmd shared.TransferCommand
	if err := json.Unmarshal(m.Payload, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
