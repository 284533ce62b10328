package investment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Repository defines investment and distribution-log persistence
type Repository interface {
	Create(ctx context.Context, inv *Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)
	GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Investment, error)

	// HasActive reports whether the participant currently holds at least one
	// active investment; the eligibility gate for level commissions.
	HasActive(ctx context.Context, participantID uuid.UUID) (bool, error)

	// ListDueIDs returns IDs of active investments whose next payout date has
	// arrived, the candidate set for the daily ROI job.
	ListDueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// LockForPayout takes a row lock on one investment for a payout cycle
	LockForPayout(ctx context.Context, id uuid.UUID) (*Investment, error)

	// Update persists mutable payout-tracking fields of a locked investment
	Update(ctx context.Context, inv *Investment) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.InvestmentStatus) error

	// HasDistributionOn reports whether a payout was already logged for the
	// investment on the given calendar day.
	HasDistributionOn(ctx context.Context, investmentID uuid.UUID, day time.Time) (bool, error)

	// AppendDistribution adds one row to the append-only payout log
	AppendDistribution(ctx context.Context, dist *Distribution) error

	ListDistributions(ctx context.Context, investmentID uuid.UUID) ([]*Distribution, error)

	WithTx(tx pgx.Tx) Repository
}
