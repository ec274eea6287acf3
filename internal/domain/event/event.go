package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/atlas-transfers/internal/domain/transfer"
)

// EventType identifies the state transition being recorded
type EventType string

const (
	EventCreated            EventType = "CREATED"
	EventProcessingStarted  EventType = "PROCESSING_STARTED"
	EventCompleted          EventType = "COMPLETED"
	EventFailed             EventType = "FAILED"
)

// PerformedBySystem marks transitions driven by the processing pipeline
const PerformedBySystem = "SYSTEM"

// TransferEvent is one immutable row of a transfer's audit trail. The
// ordered sequence of events for a transfer reconstructs its full history.
type TransferEvent struct {
	ID             uuid.UUID        `json:"id" bson:"_id"`
	TransferID     uuid.UUID        `json:"transfer_id" bson:"transfer_id"`
	EventType      EventType        `json:"event_type" bson:"event_type"`
	PreviousStatus *transfer.Status `json:"previous_status,omitempty" bson:"previous_status,omitempty"`
	NewStatus      transfer.Status  `json:"new_status" bson:"new_status"`
	Description    string           `json:"description" bson:"description"`
	PerformedBy    string           `json:"performed_by" bson:"performed_by"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
}

// New builds an audit event for a transition. previous is nil for the
// CREATED event.
func New(transferID uuid.UUID, eventType EventType, previous *transfer.Status, next transfer.Status, description string) *TransferEvent {
	return &TransferEvent{
		ID:             uuid.New(),
		TransferID:     transferID,
		EventType:      eventType,
		PreviousStatus: previous,
		NewStatus:      next,
		Description:    description,
		PerformedBy:    PerformedBySystem,
		CreatedAt:      time.Now(),
	}
}

// Repository manages the append-only audit trail
type Repository interface {
	Append(ctx context.Context, e *TransferEvent) error
	ListByTransferID(ctx context.Context, transferID uuid.UUID) ([]*TransferEvent, error)
}
