package settings

import (
	"context"
	"errors"
	"os"
	"testing"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetAll(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockRepository) WithTx(tx pgx.Tx) Repository {
	args := m.Called(tx)
	return args.Get(0).(Repository)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table yields the defaults", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(newTestLogger(), mockRepo)

		mockRepo.On("GetAll", ctx).Return(map[string]string{}, nil).Once()

		snap, err := svc.Load(ctx)

		require.NoError(t, err)
		assert.True(t, snap.DirectPercent.Equal(decimal.NewFromInt(10)))
		assert.True(t, snap.PairValue.Equal(decimal.NewFromInt(1000)))
		assert.True(t, snap.BinaryEnabled)
		mockRepo.AssertExpectations(t)
	})

	t.Run("stored rows overlay the defaults", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(newTestLogger(), mockRepo)

		mockRepo.On("GetAll", ctx).Return(map[string]string{
			KeyDirectPercent: "12.5",
			KeyPairValue:     "500",
			KeyBinaryEnabled: "false",
			KeyLevel3Percent: "4",
		}, nil).Once()

		snap, err := svc.Load(ctx)

		require.NoError(t, err)
		assert.True(t, snap.DirectPercent.Equal(decimal.RequireFromString("12.5")))
		assert.True(t, snap.PairValue.Equal(decimal.NewFromInt(500)))
		assert.False(t, snap.BinaryEnabled)
		assert.True(t, snap.LevelPercents[3].Equal(decimal.NewFromInt(4)))
		// Untouched keys keep their defaults
		assert.True(t, snap.LevelPercents[2].Equal(decimal.NewFromInt(5)))
		mockRepo.AssertExpectations(t)
	})

	t.Run("unparseable rows are skipped", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(newTestLogger(), mockRepo)

		mockRepo.On("GetAll", ctx).Return(map[string]string{
			KeyDirectPercent: "not-a-number",
			KeyBinaryEnabled: "maybe",
		}, nil).Once()

		snap, err := svc.Load(ctx)

		require.NoError(t, err)
		assert.True(t, snap.DirectPercent.Equal(decimal.NewFromInt(10)))
		assert.True(t, snap.BinaryEnabled)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		mockRepo := new(MockRepository)
		svc := NewService(newTestLogger(), mockRepo)

		mockRepo.On("GetAll", ctx).Return(nil, errors.New("connection refused")).Once()

		_, err := svc.Load(ctx)

		assert.Error(t, err)
		mockRepo.AssertExpectations(t)
	})
}

func TestLevelPercent(t *testing.T) {
	snap := Defaults()

	assert.True(t, snap.LevelPercent(1).Equal(decimal.NewFromInt(10)))
	assert.True(t, snap.LevelPercent(4).Equal(decimal.NewFromInt(2)))
	assert.True(t, snap.LevelPercent(9).IsZero())
}

var _ Repository = (*MockRepository)(nil)
