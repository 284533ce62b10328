package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// MockJobRepository is a mock implementation of schedjob.Repository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Ensure(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockJobRepository) GetByName(ctx context.Context, name string) (*schedjob.ScheduledJob, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedjob.ScheduledJob), args.Error(1)
}

func (m *MockJobRepository) AcquireLock(ctx context.Context, name, runnerID string, expiry time.Time) error {
	args := m.Called(ctx, name, runnerID, expiry)
	return args.Error(0)
}

func (m *MockJobRepository) ReleaseLock(ctx context.Context, name, runnerID string) error {
	args := m.Called(ctx, name, runnerID)
	return args.Error(0)
}

func (m *MockJobRepository) RecordExecution(ctx context.Context, name string, rec *schedjob.ExecutionRecord, historyDepth int) (int, error) {
	args := m.Called(ctx, name, rec, historyDepth)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) ListExecutions(ctx context.Context, name string) ([]*schedjob.ExecutionRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedjob.ExecutionRecord), args.Error(1)
}

func (m *MockJobRepository) ListJobs(ctx context.Context) ([]*schedjob.ScheduledJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedjob.ScheduledJob), args.Error(1)
}

func (m *MockJobRepository) WithTx(tx pgx.Tx) schedjob.Repository {
	m.Called(tx)
	return m
}

// MockOutboxRepository is a mock implementation of audit.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, row *audit.OutboxRow) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*audit.OutboxRow, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.OutboxRow), args.Error(1)
}

func (m *MockOutboxRepository) MarkRelayed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) RecordAttempt(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) audit.OutboxRepository {
	m.Called(tx)
	return m
}

// fakeJob runs a canned function under a fixed name
type fakeJob struct {
	name string
	run  func(ctx context.Context, runID string) (int, int, error)
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context, runID string) (int, int, error) {
	return j.run(ctx, runID)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testSchedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		RunnerID:       "runner-test",
		JobTimeout:     time.Minute,
		LockBuffer:     30 * time.Second,
		AlertThreshold: 3,
		HistoryDepth:   10,
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run records success and releases the lock", func(t *testing.T) {
		jobRepo := new(MockJobRepository)
		outboxRepo := new(MockOutboxRepository)
		runner := NewLockedRunner(newTestLogger(), jobRepo, outboxRepo, testSchedulerConfig())

		job := &fakeJob{name: "test_job", run: func(ctx context.Context, runID string) (int, int, error) {
			return 5, 0, nil
		}}

		jobRepo.On("AcquireLock", ctx, "test_job", "runner-test", mock.AnythingOfType("time.Time")).Return(nil).Once()
		jobRepo.On("ReleaseLock", ctx, "test_job", "runner-test").Return(nil).Once()
		jobRepo.On("RecordExecution", ctx, "test_job", mock.MatchedBy(func(rec *schedjob.ExecutionRecord) bool {
			return rec.Status == shared.RunStatusSuccess && rec.ItemsProcessed == 5
		}), 10).Return(0, nil).Once()

		err := runner.Execute(ctx, job)

		require.NoError(t, err)
		jobRepo.AssertExpectations(t)
		outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("lock contention skips the cycle cleanly", func(t *testing.T) {
		jobRepo := new(MockJobRepository)
		outboxRepo := new(MockOutboxRepository)
		runner := NewLockedRunner(newTestLogger(), jobRepo, outboxRepo, testSchedulerConfig())

		ran := false
		job := &fakeJob{name: "test_job", run: func(ctx context.Context, runID string) (int, int, error) {
			ran = true
			return 0, 0, nil
		}}

		jobRepo.On("AcquireLock", ctx, "test_job", "runner-test", mock.AnythingOfType("time.Time")).
			Return(schedjob.ErrLockContention{JobName: "test_job", HeldBy: "other"}).Once()

		err := runner.Execute(ctx, job)

		require.NoError(t, err)
		assert.False(t, ran)
		jobRepo.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
		jobRepo.AssertNotCalled(t, "RecordExecution", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("item failures record a partial run", func(t *testing.T) {
		jobRepo := new(MockJobRepository)
		outboxRepo := new(MockOutboxRepository)
		runner := NewLockedRunner(newTestLogger(), jobRepo, outboxRepo, testSchedulerConfig())

		job := &fakeJob{name: "test_job", run: func(ctx context.Context, runID string) (int, int, error) {
			return 8, 2, nil
		}}

		jobRepo.On("AcquireLock", ctx, "test_job", "runner-test", mock.AnythingOfType("time.Time")).Return(nil).Once()
		jobRepo.On("ReleaseLock", ctx, "test_job", "runner-test").Return(nil).Once()
		jobRepo.On("RecordExecution", ctx, "test_job", mock.MatchedBy(func(rec *schedjob.ExecutionRecord) bool {
			return rec.Status == shared.RunStatusPartial && rec.ItemsFailed == 2
		}), 10).Return(0, nil).Once()

		err := runner.Execute(ctx, job)

		require.NoError(t, err)
		jobRepo.AssertExpectations(t)
	})

	t.Run("history is recorded before the lock is released", func(t *testing.T) {
		jobRepo := new(MockJobRepository)
		outboxRepo := new(MockOutboxRepository)
		runner := NewLockedRunner(newTestLogger(), jobRepo, outboxRepo, testSchedulerConfig())

		job := &fakeJob{name: "test_job", run: func(ctx context.Context, runID string) (int, int, error) {
			return 1, 0, nil
		}}

		recorded := false
		jobRepo.On("AcquireLock", ctx, "test_job", "runner-test", mock.AnythingOfType("time.Time")).Return(nil).Once()
		jobRepo.On("RecordExecution", ctx, "test_job", mock.AnythingOfType("*schedjob.ExecutionRecord"), 10).
			Run(func(args mock.Arguments) { recorded = true }).
			Return(0, nil).Once()
		jobRepo.On("ReleaseLock", ctx, "test_job", "runner-test").
			Run(func(args mock.Arguments) {
				// The history read-modify-write must happen under the lock
				assert.True(t, recorded)
			}).
			Return(nil).Once()

		err := runner.Execute(ctx, job)

		require.NoError(t, err)
		jobRepo.AssertExpectations(t)
	})

	t.Run("crossing the failure threshold enqueues an alert", func(t *testing.T) {
		jobRepo := new(MockJobRepository)
		outboxRepo := new(MockOutboxRepository)
		runner := NewLockedRunner(newTestLogger(), jobRepo, outboxRepo, testSchedulerConfig())

		runErr := errors.New("candidate query failed")
		job := &fakeJob{name: "test_job", run: func(ctx context.Context, runID string) (int, int, error) {
			return 0, 0, runErr
		}}

		jobRepo.On("AcquireLock", ctx, "test_job", "runner-test", mock.AnythingOfType("time.Time")).Return(nil).Once()
		jobRepo.On("ReleaseLock", ctx, "test_job", "runner-test").Return(nil).Once()
		jobRepo.On("RecordExecution", ctx, "test_job", mock.MatchedBy(func(rec *schedjob.ExecutionRecord) bool {
			return rec.Status == shared.RunStatusFailed && rec.Error == runErr.Error()
		}), 10).Return(3, nil).Once()
		outboxRepo.On("Create", ctx, mock.MatchedBy(func(row *audit.OutboxRow) bool {
			return row.EventType == audit.EventJobAlert && row.EntityID == "test_job"
		})).Return(nil).Once()

		err := runner.Execute(ctx, job)

		assert.ErrorIs(t, err, runErr)
		jobRepo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})
}

var (
	_ schedjob.Repository    = (*MockJobRepository)(nil)
	_ audit.OutboxRepository = (*MockOutboxRepository)(nil)
	_ Job                    = (*fakeJob)(nil)
)
