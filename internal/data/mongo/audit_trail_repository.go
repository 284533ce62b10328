// Package mongo provides the MongoDB implementation of the append-only,
// hash-chained audit trail.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit trail collection in MongoDB
	AuditCollectionName = "audit_events"
)

// AuditTrailRepository implements the audit.TrailRepository interface for
// MongoDB. Appends are serialized with a mutex so the hash chain never forks;
// a single poller owns the chain, the mutex guards against misuse.
type AuditTrailRepository struct {
	db     *mongo.Database
	logger *slog.Logger
	mu     sync.Mutex
}

// NewAuditTrailRepository creates a new MongoDB audit trail repository
func NewAuditTrailRepository(logger *slog.Logger, db *mongo.Database) audit.TrailRepository {
	return &AuditTrailRepository{
		db:     db,
		logger: logger,
	}
}

// Append seals the event against the current chain head and stores it
func (r *AuditTrailRepository) Append(ctx context.Context, ev *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.Head(ctx)
	if err != nil {
		return err
	}

	previousHash := audit.GenesisHash
	var sequence int64 = 1
	if head != nil {
		previousHash = head.Hash
		sequence = head.Sequence + 1
	}

	if err := ev.Seal(previousHash, sequence); err != nil {
		r.logger.Error("Failed to seal audit event", "event_id", ev.ID.String(), "error", err)
		return fmt.Errorf("failed to seal audit event: %w", err)
	}

	collection := r.db.Collection(AuditCollectionName)
	if _, err := collection.InsertOne(ctx, ev); err != nil {
		r.logger.Error("Failed to append audit event",
			"event_id", ev.ID.String(),
			"sequence", ev.Sequence,
			"error", err)
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// GetByID retrieves an audit event by its ID
func (r *AuditTrailRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	var ev audit.Event
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("audit event not found: %s", id)
		}
		r.logger.Error("Failed to get audit event", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}

	return &ev, nil
}

// ListByParticipant retrieves a participant's audit events newest first
func (r *AuditTrailRepository) ListByParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*audit.Event, error) {
	return r.list(ctx, bson.M{"participant_id": participantID}, limit, offset)
}

// ListByEntity retrieves the audit events of one entity newest first
func (r *AuditTrailRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*audit.Event, error) {
	return r.list(ctx, bson.M{"entity_type": entityType, "entity_id": entityID}, limit, offset)
}

// ListRange returns events with sequence in [from, to], ascending. Used by
// chain verification, which must walk links in order.
func (r *AuditTrailRepository) ListRange(ctx context.Context, from, to int64) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"sequence": bson.M{"$gte": from, "$lte": to}}
	opts := options.Find().SetSort(bson.M{"sequence": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit events by range", "from", from, "to", to, "error", err)
		return nil, fmt.Errorf("failed to get audit events by range: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}

// Head returns the latest sealed event, or nil on an empty chain
func (r *AuditTrailRepository) Head(ctx context.Context) (*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.FindOne().SetSort(bson.M{"sequence": -1})
	var ev audit.Event
	err := collection.FindOne(ctx, bson.M{}, opts).Decode(&ev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Empty chain
		}
		r.logger.Error("Failed to get audit chain head", "error", err)
		return nil, fmt.Errorf("failed to get audit chain head: %w", err)
	}

	return &ev, nil
}

func (r *AuditTrailRepository) list(ctx context.Context, filter bson.M, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	opts := options.Find().
		SetSort(bson.M{"sequence": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list audit events", "error", err)
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	return events, nil
}
