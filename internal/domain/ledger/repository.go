package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages immutable ledger entry persistence. Entries are written
// in the same database transaction as the wallet mutation they record.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetBySourceRef returns the entry recorded for an idempotency key,
	// or nil when the key has never been applied.
	GetBySourceRef(ctx context.Context, sourceRef string) (*Entry, error)

	GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}
