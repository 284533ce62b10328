package referral

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/commission"
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/settings"
)

// MockCommissionRepository is a mock implementation of commission.Repository
type MockCommissionRepository struct {
	mock.Mock
}

func (m *MockCommissionRepository) Create(ctx context.Context, c *commission.Commission) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCommissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*commission.Commission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.Commission), args.Error(1)
}

func (m *MockCommissionRepository) GetByEventKey(ctx context.Context, sourceEventID, recipientID uuid.UUID, ctype shared.CommissionType, level int) (*commission.Commission, error) {
	args := m.Called(ctx, sourceEventID, recipientID, ctype, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commission.Commission), args.Error(1)
}

func (m *MockCommissionRepository) GetByRecipientID(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*commission.Commission, error) {
	args := m.Called(ctx, recipientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*commission.Commission), args.Error(1)
}

func (m *MockCommissionRepository) CountByRecipientID(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommissionRepository) MarkPaid(ctx context.Context, id uuid.UUID, ledgerRef string, paidAt time.Time) error {
	args := m.Called(ctx, id, ledgerRef, paidAt)
	return args.Error(0)
}

func (m *MockCommissionRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockCommissionRepository) WithTx(tx pgx.Tx) commission.Repository {
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

func inv30DaysOut() time.Time {
	return time.Now().AddDate(0, 1, 0)
}

func TestOnInvestmentCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("root investors generate no commissions", func(t *testing.T) {
		mockRepo := new(MockParticipantRepository)
		engine := NewCommissionEngine(newTestLogger(), nil, mockRepo, nil, nil, nil, nil)

		investor, _ := participant.New("ROOT")
		inv, err := investment.New(investor.ID, decimal.NewFromInt(5000),
			decimal.RequireFromString("0.01"), decimal.NewFromInt(3),
			shared.FrequencyDaily, inv30DaysOut())
		require.NoError(t, err)

		err = engine.OnInvestmentCreated(ctx, inv, investor, settings.Defaults(), "corr-1")

		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("zero percent levels are skipped without lookups", func(t *testing.T) {
		mockRepo := new(MockParticipantRepository)
		engine := NewCommissionEngine(newTestLogger(), nil, mockRepo, nil, nil, nil, nil)

		sponsorID := uuid.New()
		investor, _ := participant.New("MEMBER")
		investor.SponsorID = sponsorID
		investor.UplineChain = []participant.UplineEntry{
			{ParticipantID: sponsorID, Level: 1},
			{ParticipantID: uuid.New(), Level: 2},
		}

		inv, err := investment.New(investor.ID, decimal.NewFromInt(5000),
			decimal.RequireFromString("0.01"), decimal.NewFromInt(3),
			shared.FrequencyDaily, inv30DaysOut())
		require.NoError(t, err)

		snap := settings.Snapshot{LevelPercents: map[int]decimal.Decimal{}}

		err = engine.OnInvestmentCreated(ctx, inv, investor, snap, "corr-1")

		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})
}

func TestSettleCommission(t *testing.T) {
	ctx := context.Background()

	rejectedCommission := func() *commission.Commission {
		return &commission.Commission{
			ID:                  uuid.New(),
			RecipientID:         uuid.New(),
			SourceParticipantID: uuid.New(),
			Type:                shared.CommissionLevel,
			Level:               3,
			Amount:              decimal.NewFromInt(150),
			Percentage:          decimal.NewFromInt(3),
			SourceEventID:       uuid.New(),
			SourceAmount:        decimal.NewFromInt(5000),
			Status:              shared.CommissionStatusRejected,
			RejectionReason:     "recipient holds no active investment",
			CreatedAt:           time.Now(),
		}
	}

	t.Run("rejection persists the row and records the rejection event", func(t *testing.T) {
		mockCommissions := new(MockCommissionRepository)
		mockOutbox := new(MockOutboxRepository)
		engine := NewCommissionEngine(newTestLogger(), nil, nil, nil, mockCommissions, nil, mockOutbox)

		c := rejectedCommission()
		mockCommissions.On("WithTx", nil).Return(nil).Once()
		mockCommissions.On("Create", ctx, c).Return(nil).Once()
		mockOutbox.On("WithTx", nil).Return(nil).Once()
		mockOutbox.On("Create", ctx, mock.MatchedBy(func(row *audit.OutboxRow) bool {
			return row.EventType == audit.EventCommissionRejected &&
				row.ParticipantID == c.RecipientID &&
				row.EntityID == c.ID.String()
		})).Return(nil).Once()

		err := engine.settleCommission(ctx, nil, c, shared.WalletLevel, "level commission", "corr-1")

		require.NoError(t, err)
		mockCommissions.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockCommissions.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("duplicate record is replay success without a second event", func(t *testing.T) {
		mockCommissions := new(MockCommissionRepository)
		mockOutbox := new(MockOutboxRepository)
		engine := NewCommissionEngine(newTestLogger(), nil, nil, nil, mockCommissions, nil, mockOutbox)

		c := rejectedCommission()
		mockCommissions.On("WithTx", nil).Return(nil).Once()
		mockCommissions.On("Create", ctx, c).Return(commission.ErrDuplicateCommission{
			SourceEventID: c.SourceEventID,
			RecipientID:   c.RecipientID,
		}).Once()

		err := engine.settleCommission(ctx, nil, c, shared.WalletLevel, "level commission", "corr-1")

		require.NoError(t, err)
		mockOutbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
