package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
)

func TestSchedJobRepository_Ensure(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SchedJobRepository{querier: mock, logger: newTestLogger()}

	query := `INSERT INTO scheduled_jobs \(id, name, is_locked, consecutive_failures, execution_history, created_at, updated_at\)`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(pgxmock.AnyArg(), schedjob.JobDailyROI).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Ensure(ctx, schedjob.JobDailyROI)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing record is a no-op", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(pgxmock.AnyArg(), schedjob.JobDailyROI).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := repo.Ensure(ctx, schedjob.JobDailyROI)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSchedJobRepository_AcquireLock(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SchedJobRepository{querier: mock, logger: newTestLogger()}
	runnerID := "worker-1"
	expiry := time.Now().Add(10 * time.Minute)

	query := `
		UPDATE scheduled_jobs
		SET is_locked = TRUE, locked_by = \$2, locked_at = NOW\(\), lock_expiry = \$3, updated_at = NOW\(\)
		WHERE name = \$1 AND \(is_locked = FALSE OR lock_expiry <= NOW\(\)\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(schedjob.JobBinaryPairing, runnerID, expiry).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.AcquireLock(ctx, schedjob.JobBinaryPairing, runnerID, expiry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("held lock surfaces contention with the holder", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(schedjob.JobBinaryPairing, runnerID, expiry).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		holder := "worker-2"
		status := "success"
		lockedAt := time.Now()
		rows := pgxmock.NewRows([]string{
			"id", "name", "is_locked", "locked_by", "locked_at", "lock_expiry", "last_run_at",
			"last_run_status", "consecutive_failures", "total_runs", "successful_runs",
			"failed_runs", "created_at", "updated_at",
		}).AddRow(
			uuid.New(), schedjob.JobBinaryPairing, true, &holder, &lockedAt, &expiry,
			(*time.Time)(nil), &status, 0, int64(5), int64(5), int64(0), lockedAt, lockedAt,
		)
		mock.ExpectQuery(`FROM scheduled_jobs WHERE name = \$1`).
			WithArgs(schedjob.JobBinaryPairing).
			WillReturnRows(rows)

		err := repo.AcquireLock(ctx, schedjob.JobBinaryPairing, runnerID, expiry)
		assert.Error(t, err)
		var contention schedjob.ErrLockContention
		assert.ErrorAs(t, err, &contention)
		assert.Equal(t, holder, contention.HeldBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(schedjob.JobBinaryPairing, runnerID, expiry).
			WillReturnError(dbErr)

		err := repo.AcquireLock(ctx, schedjob.JobBinaryPairing, runnerID, expiry)
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSchedJobRepository_ReleaseLock(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SchedJobRepository{querier: mock, logger: newTestLogger()}

	query := `SET is_locked = FALSE, locked_by = '', locked_at = NULL, lock_expiry = NULL, updated_at = NOW\(\)`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(schedjob.JobDailyROI, "worker-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.ReleaseLock(ctx, schedjob.JobDailyROI, "worker-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired takeover is logged not failed", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(schedjob.JobDailyROI, "worker-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.ReleaseLock(ctx, schedjob.JobDailyROI, "worker-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
