package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/pairing"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// PairingRepository implements the pairing.Repository interface for PostgreSQL
type PairingRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPairingRepository creates a new PostgreSQL pairing cycle repository
func NewPairingRepository(logger *slog.Logger, db *persistence.PostgresDB) pairing.Repository {
	return &PairingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the cycle record commits
// atomically with the counter reset it documents.
func (r *PairingRepository) WithTx(tx pgx.Tx) pairing.Repository {
	return &PairingRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const cycleColumns = `
	id, participant_id, cycle_date, left_volume, right_volume, carry_in_left,
	carry_in_right, pairs_matched, pair_value, gross_commission, cap,
	capping_applied, final_commission, carry_out_left, carry_out_right,
	commission_id, status, created_at
`

// Create stores a pairing cycle record. The unique (participant_id, cycle_date)
// constraint rejects a second record for the same day.
func (r *PairingRepository) Create(ctx context.Context, cycle *pairing.Cycle) error {
	query := `
		INSERT INTO binary_pairing_cycles (
			id, participant_id, cycle_date, left_volume, right_volume, carry_in_left,
			carry_in_right, pairs_matched, pair_value, gross_commission, cap,
			capping_applied, final_commission, carry_out_left, carry_out_right,
			commission_id, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.querier.Exec(ctx, query,
		cycle.ID,
		cycle.ParticipantID,
		cycle.CycleDate,
		cycle.LeftVolume,
		cycle.RightVolume,
		cycle.CarryInLeft,
		cycle.CarryInRight,
		cycle.PairsMatched,
		cycle.PairValue,
		cycle.GrossCommission,
		cycle.Cap,
		cycle.CappingApplied,
		cycle.FinalCommission,
		cycle.CarryOutLeft,
		cycle.CarryOutRight,
		nullableID(cycle.CommissionID),
		cycle.Status,
		cycle.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create pairing cycle",
			"participant_id", cycle.ParticipantID.String(),
			"cycle_date", cycle.CycleDate.Format("2006-01-02"),
			"error", err,
		)
		return fmt.Errorf("failed to create pairing cycle: %w", err)
	}

	return nil
}

// GetByID retrieves a pairing cycle by its ID
func (r *PairingRepository) GetByID(ctx context.Context, id uuid.UUID) (*pairing.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM binary_pairing_cycles WHERE id = $1`

	c, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pairing cycle not found: %s", id)
		}
		r.logger.Error("Failed to get pairing cycle", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get pairing cycle: %w", err)
	}

	return c, nil
}

// GetByParticipantAndDate returns the cycle recorded for a participant on a
// calendar day, or nil when none exists.
func (r *PairingRepository) GetByParticipantAndDate(ctx context.Context, participantID uuid.UUID, cycleDate time.Time) (*pairing.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM binary_pairing_cycles WHERE participant_id = $1 AND cycle_date = $2`

	c, err := r.scanOne(ctx, query, participantID, cycleDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get pairing cycle by date",
			"participant_id", participantID.String(),
			"cycle_date", cycleDate.Format("2006-01-02"),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get pairing cycle by date: %w", err)
	}

	return c, nil
}

// GetByParticipantID retrieves a participant's cycles newest first
func (r *PairingRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*pairing.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM binary_pairing_cycles
		WHERE participant_id = $1
		ORDER BY cycle_date DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, participantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get pairing cycles", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to get pairing cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*pairing.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over pairing cycles: %w", err)
	}

	return cycles, nil
}

// MarkPaid links the cycle to the commission that paid it out
func (r *PairingRepository) MarkPaid(ctx context.Context, id, commissionID uuid.UUID) error {
	query := `
		UPDATE binary_pairing_cycles
		SET status = $1, commission_id = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, pairing.CycleStatusPaid, commissionID, id)
	if err != nil {
		r.logger.Error("Failed to mark pairing cycle paid", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark pairing cycle paid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pairing cycle not found: %s", id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*pairing.Cycle, error) {
	var (
		c            pairing.Cycle
		commissionID *uuid.UUID
	)
	err := row.Scan(
		&c.ID,
		&c.ParticipantID,
		&c.CycleDate,
		&c.LeftVolume,
		&c.RightVolume,
		&c.CarryInLeft,
		&c.CarryInRight,
		&c.PairsMatched,
		&c.PairValue,
		&c.GrossCommission,
		&c.Cap,
		&c.CappingApplied,
		&c.FinalCommission,
		&c.CarryOutLeft,
		&c.CarryOutRight,
		&commissionID,
		&c.Status,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if commissionID != nil {
		c.CommissionID = *commissionID
	}
	return &c, nil
}

func (r *PairingRepository) scanOne(ctx context.Context, query string, args ...any) (*pairing.Cycle, error) {
	return scanCycle(r.querier.QueryRow(ctx, query, args...))
}
