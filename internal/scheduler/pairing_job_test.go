package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/domain/pairing"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// MockParticipantRepository is a mock implementation of participant.Repository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Create(ctx context.Context, p *participant.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockParticipantRepository) GetByReferralCode(ctx context.Context, code string) (*participant.Participant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockParticipantRepository) GetChild(ctx context.Context, parentID uuid.UUID, position shared.Position) (*participant.Participant, error) {
	args := m.Called(ctx, parentID, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockParticipantRepository) IncrementChildCount(ctx context.Context, parentID uuid.UUID, position shared.Position) error {
	args := m.Called(ctx, parentID, position)
	return args.Error(0)
}

func (m *MockParticipantRepository) IncrementTeamCount(ctx context.Context, id uuid.UUID, level int) error {
	args := m.Called(ctx, id, level)
	return args.Error(0)
}

func (m *MockParticipantRepository) AddLegBusiness(ctx context.Context, id uuid.UUID, position shared.Position, amount decimal.Decimal) error {
	args := m.Called(ctx, id, position, amount)
	return args.Error(0)
}

func (m *MockParticipantRepository) LockForPairing(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*participant.Participant), args.Error(1)
}

func (m *MockParticipantRepository) ApplyPairingResult(ctx context.Context, id uuid.UUID, carryLeft, carryRight decimal.Decimal, pairs int) error {
	args := m.Called(ctx, id, carryLeft, carryRight, pairs)
	return args.Error(0)
}

func (m *MockParticipantRepository) ListWithVolume(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockParticipantRepository) WithTx(tx pgx.Tx) participant.Repository {
	m.Called(tx)
	return m
}

// MockPairingRepository is a mock implementation of pairing.Repository
type MockPairingRepository struct {
	mock.Mock
}

func (m *MockPairingRepository) Create(ctx context.Context, cycle *pairing.Cycle) error {
	args := m.Called(ctx, cycle)
	return args.Error(0)
}

func (m *MockPairingRepository) GetByID(ctx context.Context, id uuid.UUID) (*pairing.Cycle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pairing.Cycle), args.Error(1)
}

func (m *MockPairingRepository) GetByParticipantAndDate(ctx context.Context, participantID uuid.UUID, cycleDate time.Time) (*pairing.Cycle, error) {
	args := m.Called(ctx, participantID, cycleDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pairing.Cycle), args.Error(1)
}

func (m *MockPairingRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*pairing.Cycle, error) {
	args := m.Called(ctx, participantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pairing.Cycle), args.Error(1)
}

func (m *MockPairingRepository) MarkPaid(ctx context.Context, id, commissionID uuid.UUID) error {
	args := m.Called(ctx, id, commissionID)
	return args.Error(0)
}

func (m *MockPairingRepository) WithTx(tx pgx.Tx) pairing.Repository {
	m.Called(tx)
	return m
}

func testPairingConfig() pairing.Config {
	return pairing.Config{
		PairValue:         decimal.NewFromInt(1000),
		CommissionPerPair: decimal.NewFromInt(100),
		DailyCap:          decimal.NewFromInt(500),
	}
}

func TestPairTx(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cycleDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	t.Run("a cycle already closed today is left alone", func(t *testing.T) {
		partRepo := new(MockParticipantRepository)
		pairRepo := new(MockPairingRepository)
		outboxRepo := new(MockOutboxRepository)
		job := NewBinaryPairingJob(newTestLogger(), nil, partRepo, pairRepo, nil, nil, outboxRepo, 4)

		p, _ := participant.New("MEMBER")
		p.BinaryTeam.LeftBusiness = decimal.NewFromInt(3000)
		p.BinaryTeam.RightBusiness = decimal.NewFromInt(2000)

		partRepo.On("WithTx", nil).Return(nil).Once()
		pairRepo.On("WithTx", nil).Return(nil).Once()
		partRepo.On("LockForPairing", ctx, p.ID).Return(p, nil).Once()
		pairRepo.On("GetByParticipantAndDate", ctx, p.ID, cycleDate).
			Return(&pairing.Cycle{ID: uuid.New(), ParticipantID: p.ID}, nil).Once()

		err := job.pairTx(ctx, nil, p.ID, cycleDate, testPairingConfig(), "run-2")

		require.NoError(t, err)
		pairRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		partRepo.AssertNotCalled(t, "ApplyPairingResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		outboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		partRepo.AssertExpectations(t)
		pairRepo.AssertExpectations(t)
	})

	t.Run("no pair formed leaves every counter untouched", func(t *testing.T) {
		partRepo := new(MockParticipantRepository)
		pairRepo := new(MockPairingRepository)
		outboxRepo := new(MockOutboxRepository)
		job := NewBinaryPairingJob(newTestLogger(), nil, partRepo, pairRepo, nil, nil, outboxRepo, 4)

		p, _ := participant.New("MEMBER")
		p.BinaryTeam.LeftBusiness = decimal.NewFromInt(300)

		partRepo.On("WithTx", nil).Return(nil).Once()
		pairRepo.On("WithTx", nil).Return(nil).Once()
		partRepo.On("LockForPairing", ctx, p.ID).Return(p, nil).Once()
		pairRepo.On("GetByParticipantAndDate", ctx, p.ID, cycleDate).Return(nil, nil).Once()

		err := job.pairTx(ctx, nil, p.ID, cycleDate, testPairingConfig(), "run-1")

		require.NoError(t, err)
		pairRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		partRepo.AssertNotCalled(t, "ApplyPairingResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		partRepo.AssertExpectations(t)
		pairRepo.AssertExpectations(t)
	})
}

var (
	_ participant.Repository = (*MockParticipantRepository)(nil)
	_ pairing.Repository     = (*MockPairingRepository)(nil)
)
