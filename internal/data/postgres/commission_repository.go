package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bkcjanta/roi-project/internal/domain/commission"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach
const uniqueViolation = "23505"

// CommissionRepository implements the commission.Repository interface for PostgreSQL
type CommissionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCommissionRepository creates a new PostgreSQL commission repository
func NewCommissionRepository(logger *slog.Logger, db *persistence.PostgresDB) commission.Repository {
	return &CommissionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *CommissionRepository) WithTx(tx pgx.Tx) commission.Repository {
	return &CommissionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const commissionColumns = `
	id, recipient_id, source_participant_id, type, level, amount, percentage,
	source_event_id, source_amount, status, rejection_reason, ledger_ref,
	created_at, paid_at
`

// Create stores a new commission. A replayed business event trips the
// (source_event_id, recipient_id, type, level) constraint and surfaces as
// ErrDuplicateCommission, which callers treat as success.
func (r *CommissionRepository) Create(ctx context.Context, c *commission.Commission) error {
	query := `
		INSERT INTO commissions (
			id, recipient_id, source_participant_id, type, level, amount, percentage,
			source_event_id, source_amount, status, rejection_reason, ledger_ref,
			created_at, paid_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID,
		c.RecipientID,
		c.SourceParticipantID,
		c.Type,
		c.Level,
		c.Amount,
		c.Percentage,
		c.SourceEventID,
		c.SourceAmount,
		c.Status,
		c.RejectionReason,
		c.LedgerRef,
		c.CreatedAt,
		c.PaidAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return commission.ErrDuplicateCommission{
				SourceEventID: c.SourceEventID,
				RecipientID:   c.RecipientID,
			}
		}
		r.logger.Error("Failed to create commission",
			"recipient_id", c.RecipientID.String(),
			"source_event_id", c.SourceEventID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create commission: %w", err)
	}

	return nil
}

// GetByID retrieves a commission by its ID
func (r *CommissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*commission.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = $1`

	c, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("commission not found: %s", id)
		}
		r.logger.Error("Failed to get commission", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}

	return c, nil
}

// GetByEventKey returns the commission recorded for a uniqueness key, or nil
// when none exists.
func (r *CommissionRepository) GetByEventKey(ctx context.Context, sourceEventID, recipientID uuid.UUID, ctype shared.CommissionType, level int) (*commission.Commission, error) {
	query := `
		SELECT ` + commissionColumns + `
		FROM commissions
		WHERE source_event_id = $1 AND recipient_id = $2 AND type = $3 AND level = $4
	`

	c, err := r.scanOne(ctx, query, sourceEventID, recipientID, ctype, level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get commission by event key",
			"source_event_id", sourceEventID.String(),
			"recipient_id", recipientID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get commission by event key: %w", err)
	}

	return c, nil
}

// GetByRecipientID retrieves a recipient's commissions newest first
func (r *CommissionRepository) GetByRecipientID(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*commission.Commission, error) {
	query := `
		SELECT ` + commissionColumns + `
		FROM commissions
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get commissions", "recipient_id", recipientID.String(), "error", err)
		return nil, fmt.Errorf("failed to get commissions: %w", err)
	}
	defer rows.Close()

	var commissions []*commission.Commission
	for rows.Next() {
		var c commission.Commission
		err := rows.Scan(
			&c.ID,
			&c.RecipientID,
			&c.SourceParticipantID,
			&c.Type,
			&c.Level,
			&c.Amount,
			&c.Percentage,
			&c.SourceEventID,
			&c.SourceAmount,
			&c.Status,
			&c.RejectionReason,
			&c.LedgerRef,
			&c.CreatedAt,
			&c.PaidAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		commissions = append(commissions, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over commissions: %w", err)
	}

	return commissions, nil
}

// CountByRecipientID returns the recipient's total commission count for pagination
func (r *CommissionRepository) CountByRecipientID(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM commissions WHERE recipient_id = $1`,
		recipientID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count commissions", "recipient_id", recipientID.String(), "error", err)
		return 0, fmt.Errorf("failed to count commissions: %w", err)
	}

	return count, nil
}

// MarkPaid stamps the commission paid with its backing ledger reference
func (r *CommissionRepository) MarkPaid(ctx context.Context, id uuid.UUID, ledgerRef string, paidAt time.Time) error {
	query := `
		UPDATE commissions
		SET status = $1, ledger_ref = $2, paid_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, shared.CommissionStatusPaid, ledgerRef, paidAt, id)
	if err != nil {
		r.logger.Error("Failed to mark commission paid", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark commission paid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("commission not found: %s", id)
	}

	return nil
}

// MarkRejected records why an approved claim was not paid
func (r *CommissionRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE commissions
		SET status = $1, rejection_reason = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, shared.CommissionStatusRejected, reason, id)
	if err != nil {
		r.logger.Error("Failed to mark commission rejected", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark commission rejected: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("commission not found: %s", id)
	}

	return nil
}

func (r *CommissionRepository) scanOne(ctx context.Context, query string, args ...any) (*commission.Commission, error) {
	var c commission.Commission
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.RecipientID,
		&c.SourceParticipantID,
		&c.Type,
		&c.Level,
		&c.Amount,
		&c.Percentage,
		&c.SourceEventID,
		&c.SourceAmount,
		&c.Status,
		&c.RejectionReason,
		&c.LedgerRef,
		&c.CreatedAt,
		&c.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
