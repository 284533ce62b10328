package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// VolumeEventLog implements the shared.VolumeEventLog interface for PostgreSQL
type VolumeEventLog struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewVolumeEventLog creates a new PostgreSQL volume event log
func NewVolumeEventLog(logger *slog.Logger, db *persistence.PostgresDB) shared.VolumeEventLog {
	return &VolumeEventLog{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the log to a transaction so the applied-event row commits or
// rolls back together with the leg increments it guards.
func (r *VolumeEventLog) WithTx(tx pgx.Tx) shared.VolumeEventLog {
	return &VolumeEventLog{
		querier: tx,
		logger:  r.logger,
	}
}

// MarkApplied claims the event. The primary key makes a second delivery of the
// same event insert nothing, which reports it as already applied.
func (r *VolumeEventLog) MarkApplied(ctx context.Context, eventID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO applied_volume_events (event_id, applied_at)
		VALUES ($1, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query, eventID)
	if err != nil {
		r.logger.Error("Failed to mark volume event applied", "event_id", eventID.String(), "error", err)
		return false, fmt.Errorf("failed to mark volume event applied: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
