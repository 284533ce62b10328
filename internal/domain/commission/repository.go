package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Repository defines commission persistence. Create must surface the
// (source_event_id, recipient_id, type, level) uniqueness violation as
// ErrDuplicateCommission.
type Repository interface {
	Create(ctx context.Context, c *Commission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Commission, error)

	// GetByEventKey returns the commission recorded for a uniqueness key,
	// or nil when none exists.
	GetByEventKey(ctx context.Context, sourceEventID, recipientID uuid.UUID, ctype shared.CommissionType, level int) (*Commission, error)

	GetByRecipientID(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Commission, error)
	CountByRecipientID(ctx context.Context, recipientID uuid.UUID) (int64, error)

	// MarkPaid stamps the commission paid with its backing ledger reference
	MarkPaid(ctx context.Context, id uuid.UUID, ledgerRef string, paidAt time.Time) error

	// MarkRejected records why an approved claim was not paid
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) error

	WithTx(tx pgx.Tx) Repository
}
