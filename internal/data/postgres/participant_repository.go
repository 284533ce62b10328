// Package postgres provides PostgreSQL implementations of the domain
// repositories. All counter mutations are single atomic statements so
// concurrent api-gateway and worker instances never lose updates.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// ParticipantRepository implements the participant.Repository interface for PostgreSQL
type ParticipantRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewParticipantRepository creates a new PostgreSQL participant repository
func NewParticipantRepository(logger *slog.Logger, db *persistence.PostgresDB) participant.Repository {
	return &ParticipantRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing placement and
// counter updates to commit atomically with other repository calls.
func (r *ParticipantRepository) WithTx(tx pgx.Tx) participant.Repository {
	return &ParticipantRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const participantColumns = `
	id, referral_code, sponsor_id, binary_parent_id, binary_position,
	left_count, right_count, left_business, right_business,
	carry_left, carry_right, total_pairs, status, created_at, updated_at
`

// Create stores a new participant together with its frozen upline chain.
// The partial unique index on (binary_parent_id, binary_position) rejects a
// second occupant of the same slot.
func (r *ParticipantRepository) Create(ctx context.Context, p *participant.Participant) error {
	query := `
		INSERT INTO participants (
			id, referral_code, sponsor_id, binary_parent_id, binary_position,
			left_count, right_count, left_business, right_business,
			carry_left, carry_right, total_pairs, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.ReferralCode,
		nullableID(p.SponsorID),
		nullableID(p.BinaryParentID),
		p.BinaryPosition,
		p.BinaryTeam.LeftCount,
		p.BinaryTeam.RightCount,
		p.BinaryTeam.LeftBusiness,
		p.BinaryTeam.RightBusiness,
		p.BinaryTeam.CarryLeft,
		p.BinaryTeam.CarryRight,
		p.BinaryTeam.TotalPairs,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create participant", "id", p.ID.String(), "error", err)
		return fmt.Errorf("failed to create participant: %w", err)
	}

	for _, entry := range p.UplineChain {
		_, err := r.querier.Exec(ctx,
			`INSERT INTO upline_links (participant_id, ancestor_id, level) VALUES ($1, $2, $3)`,
			p.ID, entry.ParticipantID, entry.Level,
		)
		if err != nil {
			r.logger.Error("Failed to store upline link",
				"participant_id", p.ID.String(),
				"level", entry.Level,
				"error", err,
			)
			return fmt.Errorf("failed to store upline link: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a participant and its upline chain by ID
func (r *ParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, participant.ErrParticipantNotFound{ParticipantID: id}
		}
		r.logger.Error("Failed to get participant", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	if err := r.loadUplineChain(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByReferralCode retrieves a participant by its referral code
func (r *ParticipantRepository) GetByReferralCode(ctx context.Context, code string) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE referral_code = $1`

	p, err := r.scanOne(ctx, query, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, participant.ErrSponsorNotFound
		}
		r.logger.Error("Failed to get participant by referral code", "code", code, "error", err)
		return nil, fmt.Errorf("failed to get participant by referral code: %w", err)
	}

	if err := r.loadUplineChain(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetChild returns the occupant of a parent's slot, or nil when it is empty
func (r *ParticipantRepository) GetChild(ctx context.Context, parentID uuid.UUID, position shared.Position) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE binary_parent_id = $1 AND binary_position = $2`

	p, err := r.scanOne(ctx, query, parentID, position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Empty slot
		}
		r.logger.Error("Failed to get child",
			"parent_id", parentID.String(),
			"position", string(position),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get child: %w", err)
	}

	return p, nil
}

// IncrementChildCount bumps the parent's member count for one leg
func (r *ParticipantRepository) IncrementChildCount(ctx context.Context, parentID uuid.UUID, position shared.Position) error {
	column := "left_count"
	if position == shared.PositionRight {
		column = "right_count"
	}
	query := `UPDATE participants SET ` + column + ` = ` + column + ` + 1, updated_at = NOW() WHERE id = $1`

	result, err := r.querier.Exec(ctx, query, parentID)
	if err != nil {
		r.logger.Error("Failed to increment child count", "parent_id", parentID.String(), "error", err)
		return fmt.Errorf("failed to increment child count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return participant.ErrParticipantNotFound{ParticipantID: parentID}
	}
	return nil
}

// IncrementTeamCount bumps an ancestor's per-level team counter, creating the
// counter row on first use.
func (r *ParticipantRepository) IncrementTeamCount(ctx context.Context, id uuid.UUID, level int) error {
	query := `
		INSERT INTO team_levels (participant_id, level, member_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (participant_id, level)
		DO UPDATE SET member_count = team_levels.member_count + 1
	`

	_, err := r.querier.Exec(ctx, query, id, level)
	if err != nil {
		r.logger.Error("Failed to increment team count", "id", id.String(), "level", level, "error", err)
		return fmt.Errorf("failed to increment team count: %w", err)
	}
	return nil
}

// AddLegBusiness atomically adds volume to one leg's current-cycle counter
func (r *ParticipantRepository) AddLegBusiness(ctx context.Context, id uuid.UUID, position shared.Position, amount decimal.Decimal) error {
	column := "left_business"
	if position == shared.PositionRight {
		column = "right_business"
	}
	query := `UPDATE participants SET ` + column + ` = ` + column + ` + $1, updated_at = NOW() WHERE id = $2`

	result, err := r.querier.Exec(ctx, query, amount, id)
	if err != nil {
		r.logger.Error("Failed to add leg business", "id", id.String(), "error", err)
		return fmt.Errorf("failed to add leg business: %w", err)
	}
	if result.RowsAffected() == 0 {
		return participant.ErrParticipantNotFound{ParticipantID: id}
	}
	return nil
}

// LockForPairing obtains a row lock and returns a consistent counter snapshot.
// Must be called within a transaction.
func (r *ParticipantRepository) LockForPairing(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1 FOR UPDATE`

	p, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, participant.ErrParticipantNotFound{ParticipantID: id}
		}
		r.logger.Error("Failed to lock participant for pairing", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock participant for pairing: %w", err)
	}

	return p, nil
}

// ApplyPairingResult resets current-cycle counters, installs the carry-forward,
// and adds the matched pairs to the lifetime total.
func (r *ParticipantRepository) ApplyPairingResult(ctx context.Context, id uuid.UUID, carryLeft, carryRight decimal.Decimal, pairs int) error {
	query := `
		UPDATE participants
		SET left_business = 0, right_business = 0,
		    carry_left = $1, carry_right = $2,
		    total_pairs = total_pairs + $3,
		    updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, carryLeft, carryRight, pairs, id)
	if err != nil {
		r.logger.Error("Failed to apply pairing result", "id", id.String(), "error", err)
		return fmt.Errorf("failed to apply pairing result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return participant.ErrParticipantNotFound{ParticipantID: id}
	}
	return nil
}

// ListWithVolume returns IDs of active participants holding any current or
// carried business on either leg.
func (r *ParticipantRepository) ListWithVolume(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM participants
		WHERE status = $1
		  AND (left_business > 0 OR right_business > 0 OR carry_left > 0 OR carry_right > 0)
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, shared.ParticipantActive)
	if err != nil {
		r.logger.Error("Failed to list participants with volume", "error", err)
		return nil, fmt.Errorf("failed to list participants with volume: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over participants: %w", err)
	}

	return ids, nil
}

func (r *ParticipantRepository) scanOne(ctx context.Context, query string, args ...any) (*participant.Participant, error) {
	var (
		p         participant.Participant
		sponsorID *uuid.UUID
		parentID  *uuid.UUID
	)
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.ReferralCode,
		&sponsorID,
		&parentID,
		&p.BinaryPosition,
		&p.BinaryTeam.LeftCount,
		&p.BinaryTeam.RightCount,
		&p.BinaryTeam.LeftBusiness,
		&p.BinaryTeam.RightBusiness,
		&p.BinaryTeam.CarryLeft,
		&p.BinaryTeam.CarryRight,
		&p.BinaryTeam.TotalPairs,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sponsorID != nil {
		p.SponsorID = *sponsorID
	}
	if parentID != nil {
		p.BinaryParentID = *parentID
	}
	return &p, nil
}

func (r *ParticipantRepository) loadUplineChain(ctx context.Context, p *participant.Participant) error {
	rows, err := r.querier.Query(ctx,
		`SELECT ancestor_id, level FROM upline_links WHERE participant_id = $1 ORDER BY level ASC`,
		p.ID,
	)
	if err != nil {
		r.logger.Error("Failed to load upline chain", "id", p.ID.String(), "error", err)
		return fmt.Errorf("failed to load upline chain: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry participant.UplineEntry
		if err := rows.Scan(&entry.ParticipantID, &entry.Level); err != nil {
			return fmt.Errorf("failed to scan upline link: %w", err)
		}
		p.UplineChain = append(p.UplineChain, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over upline links: %w", err)
	}
	return nil
}

// nullableID maps uuid.Nil to SQL NULL for optional foreign keys
func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
