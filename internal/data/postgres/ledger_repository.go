package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/ledger"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so entries commit atomically
// with the wallet balance they describe.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const ledgerColumns = `
	id, participant_id, wallet, direction, amount, balance_before,
	balance_after, reason, source_ref, correlation_id, status, created_at
`

// Create appends an immutable ledger entry. The unique source_ref constraint
// rejects a second application of the same business event.
func (r *LedgerRepository) Create(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (
			id, participant_id, wallet, direction, amount, balance_before,
			balance_after, reason, source_ref, correlation_id, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.ParticipantID,
		e.Wallet,
		e.Direction,
		e.Amount,
		e.BalanceBefore,
		e.BalanceAfter,
		e.Reason,
		e.SourceRef,
		e.CorrelationID,
		e.Status,
		e.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"participant_id", e.ParticipantID.String(),
			"source_ref", e.SourceRef,
			"error", err,
		)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	e, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{SourceRef: id.String()}
		}
		r.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return e, nil
}

// GetBySourceRef returns the entry recorded for an idempotency key, or nil
// when the key was never applied.
func (r *LedgerRepository) GetBySourceRef(ctx context.Context, sourceRef string) (*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE source_ref = $1`

	e, err := r.scanOne(ctx, query, sourceRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Never applied
		}
		r.logger.Error("Failed to get ledger entry by source ref", "source_ref", sourceRef, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry by source ref: %w", err)
	}

	return e, nil
}

// GetByParticipantID retrieves a participant's entries newest first
func (r *LedgerRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE participant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, participantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		err := rows.Scan(
			&e.ID,
			&e.ParticipantID,
			&e.Wallet,
			&e.Direction,
			&e.Amount,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.Reason,
			&e.SourceRef,
			&e.CorrelationID,
			&e.Status,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}

// CountByParticipantID returns the participant's total entry count for pagination
func (r *LedgerRepository) CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE participant_id = $1`,
		participantID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count ledger entries", "participant_id", participantID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

func (r *LedgerRepository) scanOne(ctx context.Context, query string, args ...any) (*ledger.Entry, error) {
	var e ledger.Entry
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&e.ID,
		&e.ParticipantID,
		&e.Wallet,
		&e.Direction,
		&e.Amount,
		&e.BalanceBefore,
		&e.BalanceAfter,
		&e.Reason,
		&e.SourceRef,
		&e.CorrelationID,
		&e.Status,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
