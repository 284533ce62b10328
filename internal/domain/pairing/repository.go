package pairing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines pairing cycle persistence
type Repository interface {
	Create(ctx context.Context, cycle *Cycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cycle, error)

	// GetByParticipantAndDate returns the cycle recorded for a participant on
	// a calendar day, or nil when none exists. The replay guard for pairing.
	GetByParticipantAndDate(ctx context.Context, participantID uuid.UUID, cycleDate time.Time) (*Cycle, error)

	GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Cycle, error)

	// MarkPaid links the cycle to the commission that paid it out
	MarkPaid(ctx context.Context, id, commissionID uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}
