package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// InvestmentRepository implements the investment.Repository interface for PostgreSQL
type InvestmentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewInvestmentRepository creates a new PostgreSQL investment repository
func NewInvestmentRepository(logger *slog.Logger, db *persistence.PostgresDB) investment.Repository {
	return &InvestmentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic payout cycles
func (r *InvestmentRepository) WithTx(tx pgx.Tx) investment.Repository {
	return &InvestmentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const investmentColumns = `
	id, participant_id, amount, daily_rate, total_cap, total_paid,
	days_completed, frequency, next_payout_date, maturity_date, status,
	source_event_id, created_at, updated_at, completed_at
`

// Create stores a new investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *investment.Investment) error {
	query := `
		INSERT INTO investments (
			id, participant_id, amount, daily_rate, total_cap, total_paid,
			days_completed, frequency, next_payout_date, maturity_date, status,
			source_event_id, created_at, updated_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		inv.ID,
		inv.ParticipantID,
		inv.Amount,
		inv.DailyRate,
		inv.TotalCap,
		inv.TotalPaid,
		inv.DaysCompleted,
		inv.Frequency,
		inv.NextPayoutDate,
		inv.MaturityDate,
		inv.Status,
		inv.SourceEventID,
		inv.CreatedAt,
		inv.UpdatedAt,
		inv.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create investment", "id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to create investment: %w", err)
	}

	return nil
}

// GetByID retrieves an investment by its ID
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	inv, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, investment.ErrInvestmentNotFound{InvestmentID: id}
		}
		r.logger.Error("Failed to get investment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}

	return inv, nil
}

// GetByParticipantID retrieves a participant's investments newest first
func (r *InvestmentRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*investment.Investment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM investments
		WHERE participant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, participantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get investments", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to get investments: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// HasActive reports whether the participant holds at least one active investment
func (r *InvestmentRepository) HasActive(ctx context.Context, participantID uuid.UUID) (bool, error) {
	var exists bool
	err := r.querier.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM investments WHERE participant_id = $1 AND status = $2)`,
		participantID, shared.InvestmentStatusActive,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check active investment", "participant_id", participantID.String(), "error", err)
		return false, fmt.Errorf("failed to check active investment: %w", err)
	}

	return exists, nil
}

// ListDueIDs returns IDs of active investments whose payout date has arrived,
// oldest first so long-waiting investments are processed before newer ones.
func (r *InvestmentRepository) ListDueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM investments
		WHERE status = $1 AND next_payout_date <= $2
		ORDER BY next_payout_date ASC
	`

	rows, err := r.querier.Query(ctx, query, shared.InvestmentStatusActive, now)
	if err != nil {
		r.logger.Error("Failed to list due investments", "error", err)
		return nil, fmt.Errorf("failed to list due investments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan investment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over due investments: %w", err)
	}

	return ids, nil
}

// LockForPayout obtains a row lock on one investment for a payout cycle.
// Must be called within a transaction.
func (r *InvestmentRepository) LockForPayout(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`

	inv, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, investment.ErrInvestmentNotFound{InvestmentID: id}
		}
		r.logger.Error("Failed to lock investment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock investment: %w", err)
	}

	return inv, nil
}

// Update persists the mutable payout-tracking fields of a locked investment
func (r *InvestmentRepository) Update(ctx context.Context, inv *investment.Investment) error {
	query := `
		UPDATE investments
		SET total_paid = $1, days_completed = $2, next_payout_date = $3,
		    status = $4, completed_at = $5, updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.querier.Exec(ctx, query,
		inv.TotalPaid,
		inv.DaysCompleted,
		inv.NextPayoutDate,
		inv.Status,
		inv.CompletedAt,
		inv.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update investment", "id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to update investment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return investment.ErrInvestmentNotFound{InvestmentID: inv.ID}
	}

	return nil
}

// UpdateStatus moves an investment to a new lifecycle state
func (r *InvestmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.InvestmentStatus) error {
	result, err := r.querier.Exec(ctx,
		`UPDATE investments SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		r.logger.Error("Failed to update investment status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update investment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return investment.ErrInvestmentNotFound{InvestmentID: id}
	}

	return nil
}

// HasDistributionOn reports whether a payout was already logged for the
// investment on the given calendar day.
func (r *InvestmentRepository) HasDistributionOn(ctx context.Context, investmentID uuid.UUID, day time.Time) (bool, error) {
	var exists bool
	err := r.querier.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM roi_distributions WHERE investment_id = $1 AND payout_date = $2)`,
		investmentID, day,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check distribution", "investment_id", investmentID.String(), "error", err)
		return false, fmt.Errorf("failed to check distribution: %w", err)
	}

	return exists, nil
}

// AppendDistribution adds one row to the append-only payout log. The unique
// (investment_id, payout_date) constraint rejects a duplicate for the day.
func (r *InvestmentRepository) AppendDistribution(ctx context.Context, dist *investment.Distribution) error {
	query := `
		INSERT INTO roi_distributions (id, investment_id, payout_date, amount, ledger_ref, job_run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		dist.ID,
		dist.InvestmentID,
		dist.PayoutDate,
		dist.Amount,
		dist.LedgerRef,
		dist.JobRunID,
		dist.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append distribution",
			"investment_id", dist.InvestmentID.String(),
			"payout_date", dist.PayoutDate.Format("2006-01-02"),
			"error", err,
		)
		return fmt.Errorf("failed to append distribution: %w", err)
	}

	return nil
}

// ListDistributions returns an investment's payout log oldest first
func (r *InvestmentRepository) ListDistributions(ctx context.Context, investmentID uuid.UUID) ([]*investment.Distribution, error) {
	query := `
		SELECT id, investment_id, payout_date, amount, ledger_ref, job_run_id, created_at
		FROM roi_distributions
		WHERE investment_id = $1
		ORDER BY payout_date ASC
	`

	rows, err := r.querier.Query(ctx, query, investmentID)
	if err != nil {
		r.logger.Error("Failed to list distributions", "investment_id", investmentID.String(), "error", err)
		return nil, fmt.Errorf("failed to list distributions: %w", err)
	}
	defer rows.Close()

	var dists []*investment.Distribution
	for rows.Next() {
		var d investment.Distribution
		err := rows.Scan(&d.ID, &d.InvestmentID, &d.PayoutDate, &d.Amount, &d.LedgerRef, &d.JobRunID, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		dists = append(dists, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over distributions: %w", err)
	}

	return dists, nil
}

func (r *InvestmentRepository) scanOne(ctx context.Context, query string, args ...any) (*investment.Investment, error) {
	var inv investment.Investment
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&inv.ID,
		&inv.ParticipantID,
		&inv.Amount,
		&inv.DailyRate,
		&inv.TotalCap,
		&inv.TotalPaid,
		&inv.DaysCompleted,
		&inv.Frequency,
		&inv.NextPayoutDate,
		&inv.MaturityDate,
		&inv.Status,
		&inv.SourceEventID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
		&inv.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvestmentRepository) collect(rows pgx.Rows) ([]*investment.Investment, error) {
	var investments []*investment.Investment
	for rows.Next() {
		var inv investment.Investment
		err := rows.Scan(
			&inv.ID,
			&inv.ParticipantID,
			&inv.Amount,
			&inv.DailyRate,
			&inv.TotalCap,
			&inv.TotalPaid,
			&inv.DaysCompleted,
			&inv.Frequency,
			&inv.NextPayoutDate,
			&inv.MaturityDate,
			&inv.Status,
			&inv.SourceEventID,
			&inv.CreatedAt,
			&inv.UpdatedAt,
			&inv.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over investments: %w", err)
	}
	return investments, nil
}
