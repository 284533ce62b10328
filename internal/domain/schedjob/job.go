// Package schedjob models named batch jobs coordinated through a database
// lock so that exactly one runner executes a given job at a time.
package schedjob

import (
	"time"

	"github.com/google/uuid"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Job names used by the distribution worker
const (
	JobDailyROI      = "daily_roi_distribution"
	JobBinaryPairing = "binary_pairing"
)

// DefaultHistoryDepth bounds the retained execution history per job
const DefaultHistoryDepth = 10

// ScheduledJob is the persisted coordination record for one named job
type ScheduledJob struct {
	ID                  uuid.UUID        `json:"id"`
	Name                string           `json:"name"`
	IsLocked            bool             `json:"is_locked"`
	LockedBy            string           `json:"locked_by,omitempty"`
	LockedAt            *time.Time       `json:"locked_at,omitempty"`
	LockExpiry          *time.Time       `json:"lock_expiry,omitempty"`
	LastRunAt           *time.Time       `json:"last_run_at,omitempty"`
	LastRunStatus       shared.RunStatus `json:"last_run_status,omitempty"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	TotalRuns           int64            `json:"total_runs"`
	SuccessfulRuns      int64            `json:"successful_runs"`
	FailedRuns          int64            `json:"failed_runs"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ExecutionRecord is one entry of a job's bounded run history
type ExecutionRecord struct {
	RunID          string           `json:"run_id"`
	RunnerID       string           `json:"runner_id"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	Status         shared.RunStatus `json:"status"`
	ItemsProcessed int              `json:"items_processed"`
	ItemsFailed    int              `json:"items_failed"`
	Error          string           `json:"error,omitempty"`
}

// ErrLockContention indicates another runner holds an unexpired lock on the
// job. The contending runner skips this cycle without treating it as failure.
type ErrLockContention struct {
	JobName string
	HeldBy  string
}

func (e ErrLockContention) Error() string {
	return "job " + e.JobName + " is locked by " + e.HeldBy
}

// Is matches any ErrLockContention when the target carries an empty job name
func (e ErrLockContention) Is(target error) bool {
	t, ok := target.(ErrLockContention)
	if !ok {
		return false
	}
	if t.JobName == "" {
		return true
	}
	return e.JobName == t.JobName
}

// ErrJobNotFound indicates a job record missing from the coordination table
type ErrJobNotFound struct {
	JobName string
}

func (e ErrJobNotFound) Error() string {
	return "scheduled job not found: " + e.JobName
}

// Is matches any ErrJobNotFound when the target carries an empty job name
func (e ErrJobNotFound) Is(target error) bool {
	t, ok := target.(ErrJobNotFound)
	if !ok {
		return false
	}
	if t.JobName == "" {
		return true
	}
	return e.JobName == t.JobName
}
