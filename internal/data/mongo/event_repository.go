// Package mongo stores the transfer event audit trail in MongoDB. Events
// are append-only; nothing in the system updates or deletes them.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/atlas-transfers/internal/domain/event"
)

const (
	// EventCollectionName is the name of the transfer events collection in MongoDB
	EventCollectionName = "transfer_events"
)

// EventRepository implements the event.Repository interface for MongoDB
type EventRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewEventRepository creates a new MongoDB transfer event repository
func NewEventRepository(logger *slog.Logger, db *mongo.Database) event.Repository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new transfer event
func (r *EventRepository) Append(ctx context.Context, e *event.TransferEvent) error {
	collection := r.db.Collection(EventCollectionName)

	_, err := collection.InsertOne(ctx, e)
	if err != nil {
		r.logger.Error("Failed to append transfer event",
			"transfer_id", e.TransferID.String(),
			"event_type", string(e.EventType),
			"error", err)
		return fmt.Errorf("failed to append transfer event: %w", err)
	}

	return nil
}

// ListByTransferID retrieves all events for a transfer in the order they
// were recorded
func (r *EventRepository) ListByTransferID(ctx context.Context, transferID uuid.UUID) ([]*event.TransferEvent, error) {
	collection := r.db.Collection(EventCollectionName)

	filter := bson.M{"transfer_id": transferID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transfer events",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transfer events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*event.TransferEvent
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode transfer events",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transfer events: %w", err)
	}

	return events, nil
}
