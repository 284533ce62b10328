// Package scheduler coordinates the daily distribution jobs: cron triggering,
// database run-locks so only one worker instance executes a job, bounded
// execution history and failure alerting.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Job is one lockable unit of batch work
type Job interface {
	Name() string

	// Run processes the job's full candidate set and reports item counts.
	// Item-level failures are counted, not returned; a returned error means
	// the run itself could not proceed.
	Run(ctx context.Context, runID string) (processed, failed int, err error)
}

// LockedRunner executes jobs under the database run-lock. Lock contention is
// a clean no-op: some other instance is doing the work.
type LockedRunner struct {
	jobRepo    schedjob.Repository
	outboxRepo audit.OutboxRepository
	cfg        *config.SchedulerConfig
	logger     *slog.Logger
}

// NewLockedRunner creates a runner bound to one runner identity
func NewLockedRunner(logger *slog.Logger, jobRepo schedjob.Repository, outboxRepo audit.OutboxRepository, cfg *config.SchedulerConfig) *LockedRunner {
	return &LockedRunner{
		jobRepo:    jobRepo,
		outboxRepo: outboxRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Execute runs one job cycle: acquire the lock, run within the timeout,
// release, record history, and alert when the consecutive failure threshold
// is crossed.
func (r *LockedRunner) Execute(ctx context.Context, job Job) error {
	name := job.Name()
	runID := uuid.New().String()
	logger := r.logger.With("job", name, "run_id", runID, "runner_id", r.cfg.RunnerID)

	// Lock expiry covers the timeout plus a buffer so a healthy slow run is
	// never treated as crashed while a dead runner's lock still expires.
	expiry := time.Now().Add(r.cfg.JobTimeout + r.cfg.LockBuffer)
	if err := r.jobRepo.AcquireLock(ctx, name, r.cfg.RunnerID, expiry); err != nil {
		if errors.Is(err, schedjob.ErrLockContention{}) {
			logger.Info("Job locked by another runner, skipping cycle")
			return nil
		}
		return fmt.Errorf("failed to acquire lock for %s: %w", name, err)
	}

	logger.Info("Job started")
	startedAt := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	processed, failed, runErr := job.Run(runCtx, runID)
	cancel()

	status := shared.RunStatusSuccess
	errText := ""
	switch {
	case runErr != nil:
		status = shared.RunStatusFailed
		errText = runErr.Error()
	case failed > 0:
		status = shared.RunStatusPartial
	}

	record := &schedjob.ExecutionRecord{
		RunID:          runID,
		RunnerID:       r.cfg.RunnerID,
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
		Status:         status,
		ItemsProcessed: processed,
		ItemsFailed:    failed,
		Error:          errText,
	}

	// History is a read-modify-write of the job row's jsonb ring, safe only
	// while this runner still holds the lock. Record first, release after.
	consecutiveFailures, err := r.jobRepo.RecordExecution(ctx, name, record, r.cfg.HistoryDepth)
	if err != nil {
		logger.Error("Failed to record job execution", "error", err)
	}

	if err := r.jobRepo.ReleaseLock(ctx, name, r.cfg.RunnerID); err != nil {
		logger.Error("Failed to release job lock", "error", err)
	}

	logger.Info("Job finished",
		"status", string(status),
		"processed", processed,
		"failed", failed,
		"duration", record.FinishedAt.Sub(startedAt).String(),
	)

	if consecutiveFailures >= r.cfg.AlertThreshold && r.cfg.AlertThreshold > 0 {
		r.alert(ctx, name, consecutiveFailures, errText, logger)
	}

	return runErr
}

// alert records a threshold crossing in the audit trail and logs it loudly.
// Alerting failures must not fail the run that triggered them.
func (r *LockedRunner) alert(ctx context.Context, name string, failures int, lastError string, logger *slog.Logger) {
	logger.Error("Job failure threshold crossed",
		"consecutive_failures", failures,
		"threshold", r.cfg.AlertThreshold,
	)

	payload := map[string]any{
		"job":                  name,
		"consecutive_failures": failures,
		"threshold":            r.cfg.AlertThreshold,
		"last_error":           lastError,
	}
	row, err := audit.NewOutboxRow(audit.EventJobAlert, "scheduled_job", name, uuid.Nil, payload, "")
	if err != nil {
		logger.Error("Failed to build job alert event", "error", err)
		return
	}
	if err := r.outboxRepo.Create(ctx, row); err != nil {
		logger.Error("Failed to enqueue job alert event", "error", err)
	}
}
