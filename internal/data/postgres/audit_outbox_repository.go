package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// AuditOutboxRepository implements the audit.OutboxRepository interface for
// PostgreSQL. Rows are written in the same transaction as the financial
// mutation they describe and relayed to the trail store by a poller.
type AuditOutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditOutboxRepository creates a new PostgreSQL audit outbox repository
func NewAuditOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.OutboxRepository {
	return &AuditOutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so outbox rows commit
// atomically with the mutation they record.
func (r *AuditOutboxRepository) WithTx(tx pgx.Tx) audit.OutboxRepository {
	return &AuditOutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a pending outbox row
func (r *AuditOutboxRepository) Create(ctx context.Context, row *audit.OutboxRow) error {
	query := `
		INSERT INTO audit_outbox (
			id, event_type, entity_type, entity_id, participant_id, payload,
			correlation_id, status, attempts, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		row.ID,
		row.EventType,
		row.EntityType,
		row.EntityID,
		row.ParticipantID,
		row.Payload,
		row.CorrelationID,
		row.Status,
		row.Attempts,
		row.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit outbox row",
			"event_type", row.EventType,
			"entity_id", row.EntityID,
			"error", err,
		)
		return fmt.Errorf("failed to create audit outbox row: %w", err)
	}

	return nil
}

// FetchPending claims up to limit pending rows in creation order so the trail
// store receives events in the order they were committed.
func (r *AuditOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*audit.OutboxRow, error) {
	query := `
		SELECT id, event_type, entity_type, entity_id, participant_id, payload,
		       correlation_id, status, attempts, last_error, created_at, relayed_at
		FROM audit_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending audit outbox rows", "error", err)
		return nil, fmt.Errorf("failed to fetch pending audit outbox rows: %w", err)
	}
	defer rows.Close()

	var pending []*audit.OutboxRow
	for rows.Next() {
		var (
			row       audit.OutboxRow
			lastError *string
		)
		err := rows.Scan(
			&row.ID,
			&row.EventType,
			&row.EntityType,
			&row.EntityID,
			&row.ParticipantID,
			&row.Payload,
			&row.CorrelationID,
			&row.Status,
			&row.Attempts,
			&lastError,
			&row.CreatedAt,
			&row.RelayedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit outbox row: %w", err)
		}
		if lastError != nil {
			row.LastError = *lastError
		}
		pending = append(pending, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit outbox rows: %w", err)
	}

	return pending, nil
}

// MarkRelayed stamps a row as delivered to the trail store
func (r *AuditOutboxRepository) MarkRelayed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE audit_outbox
		SET status = $1, relayed_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, shared.OutboxStatusProcessed, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark audit outbox row relayed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark audit outbox row relayed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("audit outbox row not found: %s", id)
	}

	return nil
}

// RecordAttempt logs a relay failure but leaves the row pending for retry
func (r *AuditOutboxRepository) RecordAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE audit_outbox
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, lastError, id)
	if err != nil {
		r.logger.Error("Failed to record audit outbox attempt", "id", id.String(), "error", err)
		return fmt.Errorf("failed to record audit outbox attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("audit outbox row not found: %s", id)
	}

	return nil
}

// MarkFailed parks the row after retries are exhausted
func (r *AuditOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE audit_outbox
		SET status = $1, attempts = attempts + 1, last_error = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, shared.OutboxStatusFailed, lastError, id)
	if err != nil {
		r.logger.Error("Failed to mark audit outbox row failed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark audit outbox row failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("audit outbox row not found: %s", id)
	}

	return nil
}
