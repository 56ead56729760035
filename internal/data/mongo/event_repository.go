// Package mongo persists the payment audit trail. Audit events are
// append-only documents; MongoDB keeps them out of the transactional
// Postgres write path.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crowdpay-contribution-ledger/internal/domain/audit"
)

const (
	// EventCollectionName is the name of the audit event collection
	EventCollectionName = "payment_events"
)

// EventRepository implements the audit.Repository interface for MongoDB
type EventRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewEventRepository creates a new MongoDB audit event repository
func NewEventRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends an audit event. Events are never updated or deleted.
func (r *EventRepository) Record(ctx context.Context, event *audit.Event) error {
	collection := r.db.Collection(EventCollectionName)

	_, err := collection.InsertOne(ctx, event)
	if err != nil {
		r.logger.Error("Failed to record audit event",
			"type", event.Type,
			"reference", event.Reference,
			"error", err)
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	return nil
}

// GetByReference retrieves paginated audit events for a charge reference,
// newest first.
func (r *EventRepository) GetByReference(ctx context.Context, reference string, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(EventCollectionName)

	filter := bson.M{"reference": reference}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}

// CountByReference counts audit events recorded for a charge reference
func (r *EventRepository) CountByReference(ctx context.Context, reference string) (int64, error) {
	collection := r.db.Collection(EventCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"reference": reference})
	if err != nil {
		r.logger.Error("Failed to count audit events", "reference", reference, "error", err)
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves audit events within a time window, oldest first
func (r *EventRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(EventCollectionName)

	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events by time range", "error", err)
		return nil, fmt.Errorf("failed to get audit events by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events", "error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}
