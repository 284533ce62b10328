package schedjob

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository defines scheduled job coordination persistence
type Repository interface {
	// Ensure creates the job record if it does not yet exist
	Ensure(ctx context.Context, name string) error

	GetByName(ctx context.Context, name string) (*ScheduledJob, error)

	// AcquireLock takes the job lock with a single compare-and-set update:
	// it succeeds only when the job is unlocked or its previous lock has
	// expired, and returns ErrLockContention otherwise. expiry should cover
	// the job timeout plus a safety buffer.
	AcquireLock(ctx context.Context, name, runnerID string, expiry time.Time) error

	// ReleaseLock clears the lock only when held by runnerID
	ReleaseLock(ctx context.Context, name, runnerID string) error

	// RecordExecution appends a run to the job's history, trimmed to
	// historyDepth entries, and updates last-run status. A failed run
	// increments the consecutive failure counter; any other status resets it.
	// Returns the counter value after the update.
	RecordExecution(ctx context.Context, name string, rec *ExecutionRecord, historyDepth int) (int, error)

	// ListExecutions returns the retained history, most recent first
	ListExecutions(ctx context.Context, name string) ([]*ExecutionRecord, error)

	// ListJobs returns all coordination records for operational inspection
	ListJobs(ctx context.Context) ([]*ScheduledJob, error)

	WithTx(tx pgx.Tx) Repository
}
