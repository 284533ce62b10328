package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TrailRepository defines the append-only trail store. Append must seal each
// event against the current chain head; implementations serialize appends so
// the chain never forks.
type TrailRepository interface {
	Append(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Event, error)
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*Event, error)

	// ListRange returns events with sequence in [from, to], ascending
	ListRange(ctx context.Context, from, to int64) ([]*Event, error)

	// Head returns the latest sealed event, or nil on an empty chain
	Head(ctx context.Context) (*Event, error)
}

// OutboxRepository defines relational persistence for pending relay rows
type OutboxRepository interface {
	Create(ctx context.Context, row *OutboxRow) error

	// FetchPending claims up to limit pending rows in creation order
	FetchPending(ctx context.Context, limit int) ([]*OutboxRow, error)

	MarkRelayed(ctx context.Context, id uuid.UUID) error

	// RecordAttempt logs a relay failure but leaves the row pending for retry
	RecordAttempt(ctx context.Context, id uuid.UUID, lastError string) error

	// MarkFailed parks the row after retries are exhausted
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error

	WithTx(tx pgx.Tx) OutboxRepository
}
