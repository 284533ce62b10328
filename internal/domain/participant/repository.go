package participant

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Repository defines participant persistence operations. Leg business and team
// counters are mutated only through atomic increments; callers never
// read-modify-write them.
type Repository interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Participant, error)
	GetByReferralCode(ctx context.Context, code string) (*Participant, error)

	// GetChild returns the occupant of a parent's left or right slot,
	// or nil when the slot is empty.
	GetChild(ctx context.Context, parentID uuid.UUID, position shared.Position) (*Participant, error)

	// IncrementChildCount bumps the parent's left or right member count
	IncrementChildCount(ctx context.Context, parentID uuid.UUID, position shared.Position) error

	// IncrementTeamCount bumps a per-level team counter on an upline ancestor
	IncrementTeamCount(ctx context.Context, id uuid.UUID, level int) error

	// AddLegBusiness atomically adds volume to one leg's current-cycle counter
	AddLegBusiness(ctx context.Context, id uuid.UUID, position shared.Position, amount decimal.Decimal) error

	// LockForPairing takes a row lock and returns a consistent snapshot of the
	// participant's binary counters for one pairing calculation.
	LockForPairing(ctx context.Context, id uuid.UUID) (*Participant, error)

	// ApplyPairingResult resets current-cycle counters, installs the new
	// carry-forward, and adds the matched pairs to the lifetime total.
	ApplyPairingResult(ctx context.Context, id uuid.UUID, carryLeft, carryRight decimal.Decimal, pairs int) error

	// ListWithVolume returns IDs of active participants holding any current or
	// carried business on either leg, the candidate set for a pairing run.
	ListWithVolume(ctx context.Context) ([]uuid.UUID, error)

	WithTx(tx pgx.Tx) Repository
}
