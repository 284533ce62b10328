package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// SchedJobRepository implements the schedjob.Repository interface for PostgreSQL
type SchedJobRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSchedJobRepository creates a new PostgreSQL scheduled job repository
func NewSchedJobRepository(logger *slog.Logger, db *persistence.PostgresDB) schedjob.Repository {
	return &SchedJobRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *SchedJobRepository) WithTx(tx pgx.Tx) schedjob.Repository {
	return &SchedJobRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const jobColumns = `
	id, name, is_locked, locked_by, locked_at, lock_expiry, last_run_at,
	last_run_status, consecutive_failures, total_runs, successful_runs,
	failed_runs, created_at, updated_at
`

// Ensure creates the coordination record for a job name if it does not exist
func (r *SchedJobRepository) Ensure(ctx context.Context, name string) error {
	query := `
		INSERT INTO scheduled_jobs (id, name, is_locked, consecutive_failures, execution_history, created_at, updated_at)
		VALUES ($1, $2, FALSE, 0, '[]'::jsonb, NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query, uuid.New(), name)
	if err != nil {
		r.logger.Error("Failed to ensure scheduled job", "name", name, "error", err)
		return fmt.Errorf("failed to ensure scheduled job: %w", err)
	}

	return nil
}

// GetByName retrieves a job's coordination record
func (r *SchedJobRepository) GetByName(ctx context.Context, name string) (*schedjob.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE name = $1`

	j, err := r.scanOne(ctx, query, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedjob.ErrJobNotFound{JobName: name}
		}
		r.logger.Error("Failed to get scheduled job", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get scheduled job: %w", err)
	}

	return j, nil
}

// AcquireLock takes the job lock with a single compare-and-set update. The
// condition admits exactly one runner: either the job is unlocked or its
// previous lock has expired, which recovers locks left by crashed runners.
func (r *SchedJobRepository) AcquireLock(ctx context.Context, name, runnerID string, expiry time.Time) error {
	query := `
		UPDATE scheduled_jobs
		SET is_locked = TRUE, locked_by = $2, locked_at = NOW(), lock_expiry = $3, updated_at = NOW()
		WHERE name = $1 AND (is_locked = FALSE OR lock_expiry <= NOW())
	`

	result, err := r.querier.Exec(ctx, query, name, runnerID, expiry)
	if err != nil {
		r.logger.Error("Failed to acquire job lock", "name", name, "runner_id", runnerID, "error", err)
		return fmt.Errorf("failed to acquire job lock: %w", err)
	}

	if result.RowsAffected() == 0 {
		job, err := r.GetByName(ctx, name)
		if err != nil {
			return err
		}
		return schedjob.ErrLockContention{JobName: name, HeldBy: job.LockedBy}
	}

	return nil
}

// ReleaseLock clears the lock only when held by runnerID. A zero-row result
// means the lock expired and was taken over; that is logged, not an error.
func (r *SchedJobRepository) ReleaseLock(ctx context.Context, name, runnerID string) error {
	query := `
		UPDATE scheduled_jobs
		SET is_locked = FALSE, locked_by = '', locked_at = NULL, lock_expiry = NULL, updated_at = NOW()
		WHERE name = $1 AND locked_by = $2
	`

	result, err := r.querier.Exec(ctx, query, name, runnerID)
	if err != nil {
		r.logger.Error("Failed to release job lock", "name", name, "runner_id", runnerID, "error", err)
		return fmt.Errorf("failed to release job lock: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn("Job lock no longer held at release time", "name", name, "runner_id", runnerID)
	}

	return nil
}

// RecordExecution appends a run to the job's history ring and updates the
// aggregate counters. Only the lock holder calls this, so the read-modify-write
// of the history document is not racy.
func (r *SchedJobRepository) RecordExecution(ctx context.Context, name string, rec *schedjob.ExecutionRecord, historyDepth int) (int, error) {
	var raw []byte
	err := r.querier.QueryRow(ctx,
		`SELECT execution_history FROM scheduled_jobs WHERE name = $1`,
		name,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, schedjob.ErrJobNotFound{JobName: name}
		}
		r.logger.Error("Failed to read execution history", "name", name, "error", err)
		return 0, fmt.Errorf("failed to read execution history: %w", err)
	}

	var history []*schedjob.ExecutionRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			r.logger.Error("Failed to decode execution history", "name", name, "error", err)
			return 0, fmt.Errorf("failed to decode execution history: %w", err)
		}
	}

	history = append([]*schedjob.ExecutionRecord{rec}, history...)
	if historyDepth <= 0 {
		historyDepth = schedjob.DefaultHistoryDepth
	}
	if len(history) > historyDepth {
		history = history[:historyDepth]
	}

	encoded, err := json.Marshal(history)
	if err != nil {
		return 0, fmt.Errorf("failed to encode execution history: %w", err)
	}

	failed := rec.Status == shared.RunStatusFailed
	query := `
		UPDATE scheduled_jobs
		SET execution_history = $2,
		    last_run_at = $3,
		    last_run_status = $4,
		    consecutive_failures = CASE WHEN $5 THEN consecutive_failures + 1 ELSE 0 END,
		    total_runs = total_runs + 1,
		    successful_runs = successful_runs + CASE WHEN $5 THEN 0 ELSE 1 END,
		    failed_runs = failed_runs + CASE WHEN $5 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE name = $1
		RETURNING consecutive_failures
	`

	var consecutiveFailures int
	err = r.querier.QueryRow(ctx, query, name, encoded, rec.FinishedAt, rec.Status, failed).Scan(&consecutiveFailures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, schedjob.ErrJobNotFound{JobName: name}
		}
		r.logger.Error("Failed to record execution", "name", name, "error", err)
		return 0, fmt.Errorf("failed to record execution: %w", err)
	}

	return consecutiveFailures, nil
}

// ListExecutions returns the retained history, most recent first
func (r *SchedJobRepository) ListExecutions(ctx context.Context, name string) ([]*schedjob.ExecutionRecord, error) {
	var raw []byte
	err := r.querier.QueryRow(ctx,
		`SELECT execution_history FROM scheduled_jobs WHERE name = $1`,
		name,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedjob.ErrJobNotFound{JobName: name}
		}
		r.logger.Error("Failed to list executions", "name", name, "error", err)
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	var history []*schedjob.ExecutionRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			return nil, fmt.Errorf("failed to decode execution history: %w", err)
		}
	}

	return history, nil
}

// ListJobs returns all coordination records
func (r *SchedJobRepository) ListJobs(ctx context.Context) ([]*schedjob.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs ORDER BY name ASC`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list scheduled jobs", "error", err)
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*schedjob.ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over scheduled jobs: %w", err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*schedjob.ScheduledJob, error) {
	var (
		j         schedjob.ScheduledJob
		lockedBy  *string
		runStatus *string
	)
	err := row.Scan(
		&j.ID,
		&j.Name,
		&j.IsLocked,
		&lockedBy,
		&j.LockedAt,
		&j.LockExpiry,
		&j.LastRunAt,
		&runStatus,
		&j.ConsecutiveFailures,
		&j.TotalRuns,
		&j.SuccessfulRuns,
		&j.FailedRuns,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lockedBy != nil {
		j.LockedBy = *lockedBy
	}
	if runStatus != nil {
		j.LastRunStatus = shared.RunStatus(*runStatus)
	}
	return &j, nil
}

func (r *SchedJobRepository) scanOne(ctx context.Context, query string, args ...any) (*schedjob.ScheduledJob, error) {
	return scanJob(r.querier.QueryRow(ctx, query, args...))
}
