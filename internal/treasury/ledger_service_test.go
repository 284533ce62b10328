package treasury

import (
	"context"
	"os"
	"testing"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/ledger"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
)

// MockWalletRepository is a mock implementation of wallet.Repository
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) LockForUpdate(ctx context.Context, participantID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) SetBalance(ctx context.Context, participantID uuid.UUID, name shared.WalletName, balance decimal.Decimal, earnedDelta decimal.Decimal) error {
	args := m.Called(ctx, participantID, name, balance, earnedDelta)
	return args.Error(0)
}

func (m *MockWalletRepository) AddInvested(ctx context.Context, participantID uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, participantID, amount)
	return args.Error(0)
}

func (m *MockWalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	m.Called(tx)
	return m
}

// MockLedgerRepository is a mock implementation of ledger.Repository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetBySourceRef(ctx context.Context, sourceRef string) (*ledger.Entry, error) {
	args := m.Called(ctx, sourceRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, participantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByParticipantID(ctx context.Context, participantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, participantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
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

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type serviceMocks struct {
	walletRepo *MockWalletRepository
	ledgerRepo *MockLedgerRepository
	outboxRepo *MockOutboxRepository
}

func newTestService() (*LedgerService, serviceMocks) {
	m := serviceMocks{
		walletRepo: new(MockWalletRepository),
		ledgerRepo: new(MockLedgerRepository),
		outboxRepo: new(MockOutboxRepository),
	}
	svc := NewLedgerService(newTestLogger(), nil, m.walletRepo, m.ledgerRepo, m.outboxRepo)
	return svc, m
}

func validApply(participantID uuid.UUID) Apply {
	return Apply{
		ParticipantID: participantID,
		Wallet:        shared.WalletROI,
		Amount:        decimal.NewFromInt(100),
		Reason:        "roi_distribution",
		SourceRef:     "roi:" + uuid.NewString(),
		CorrelationID: "corr-1",
	}
}

func TestCreditTx(t *testing.T) {
	ctx := context.Background()
	participantID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc, m := newTestService()
		apply := validApply(participantID)

		w := wallet.New(participantID)
		w.ROIBalance = decimal.NewFromInt(50)

		m.ledgerRepo.On("WithTx", nil).Return(nil).Once()
		m.walletRepo.On("WithTx", nil).Return(nil).Once()
		m.outboxRepo.On("WithTx", nil).Return(nil).Once()
		m.ledgerRepo.On("GetBySourceRef", ctx, apply.SourceRef).Return(nil, nil).Once()
		m.walletRepo.On("LockForUpdate", ctx, participantID).Return(w, nil).Once()
		m.walletRepo.On("SetBalance", ctx, participantID, shared.WalletROI,
			decimal.NewFromInt(150), decimal.NewFromInt(100)).Return(nil).Once()
		m.ledgerRepo.On("Create", ctx, mock.AnythingOfType("*ledger.Entry")).Return(nil).Once()
		m.outboxRepo.On("Create", ctx, mock.AnythingOfType("*audit.OutboxRow")).Return(nil).Once()

		entry, err := svc.CreditTx(ctx, nil, apply)

		require.NoError(t, err)
		assert.Equal(t, shared.DirectionCredit, entry.Direction)
		assert.True(t, entry.BalanceBefore.Equal(decimal.NewFromInt(50)))
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, shared.EntryStatusCompleted, entry.Status)
		m.walletRepo.AssertExpectations(t)
		m.ledgerRepo.AssertExpectations(t)
		m.outboxRepo.AssertExpectations(t)
	})

	t.Run("replayed source ref returns the prior entry untouched", func(t *testing.T) {
		svc, m := newTestService()
		apply := validApply(participantID)

		prior := &ledger.Entry{ID: uuid.New(), SourceRef: apply.SourceRef}
		m.ledgerRepo.On("WithTx", nil).Return(nil).Once()
		m.walletRepo.On("WithTx", nil).Return(nil).Once()
		m.ledgerRepo.On("GetBySourceRef", ctx, apply.SourceRef).Return(prior, nil).Once()

		entry, err := svc.CreditTx(ctx, nil, apply)

		require.NoError(t, err)
		assert.Equal(t, prior, entry)
		m.walletRepo.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
		m.walletRepo.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.ledgerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid input before touching the wallet", func(t *testing.T) {
		svc, m := newTestService()
		apply := validApply(participantID)
		apply.Amount = decimal.Zero

		_, err := svc.CreditTx(ctx, nil, apply)

		assert.Error(t, err)
		m.ledgerRepo.AssertNotCalled(t, "GetBySourceRef", mock.Anything, mock.Anything)
	})
}

func TestDebitTx(t *testing.T) {
	ctx := context.Background()
	participantID := uuid.New()

	t.Run("success leaves lifetime earnings untouched", func(t *testing.T) {
		svc, m := newTestService()
		apply := validApply(participantID)
		apply.Wallet = shared.WalletMain

		w := wallet.New(participantID)
		w.MainBalance = decimal.NewFromInt(300)

		m.ledgerRepo.On("WithTx", nil).Return(nil).Once()
		m.walletRepo.On("WithTx", nil).Return(nil).Once()
		m.outboxRepo.On("WithTx", nil).Return(nil).Once()
		m.ledgerRepo.On("GetBySourceRef", ctx, apply.SourceRef).Return(nil, nil).Once()
		m.walletRepo.On("LockForUpdate", ctx, participantID).Return(w, nil).Once()
		m.walletRepo.On("SetBalance", ctx, participantID, shared.WalletMain,
			decimal.NewFromInt(200), decimal.Zero).Return(nil).Once()
		m.ledgerRepo.On("Create", ctx, mock.AnythingOfType("*ledger.Entry")).Return(nil).Once()
		m.outboxRepo.On("Create", ctx, mock.AnythingOfType("*audit.OutboxRow")).Return(nil).Once()

		entry, err := svc.DebitTx(ctx, nil, apply)

		require.NoError(t, err)
		assert.Equal(t, shared.DirectionDebit, entry.Direction)
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(200)))
		m.walletRepo.AssertExpectations(t)
	})

	t.Run("insufficient balance aborts before any write", func(t *testing.T) {
		svc, m := newTestService()
		apply := validApply(participantID)
		apply.Wallet = shared.WalletMain

		w := wallet.New(participantID)
		w.MainBalance = decimal.NewFromInt(40)

		m.ledgerRepo.On("WithTx", nil).Return(nil).Once()
		m.walletRepo.On("WithTx", nil).Return(nil).Once()
		m.ledgerRepo.On("GetBySourceRef", ctx, apply.SourceRef).Return(nil, nil).Once()
		m.walletRepo.On("LockForUpdate", ctx, participantID).Return(w, nil).Once()
		m.outboxRepo.On("Create", ctx, mock.MatchedBy(func(row *audit.OutboxRow) bool {
			return row.EventType == audit.EventLedgerRejected && row.ParticipantID == participantID
		})).Return(nil).Once()

		_, err := svc.DebitTx(ctx, nil, apply)

		assert.ErrorIs(t, err, wallet.ErrInsufficientBalance{})
		m.walletRepo.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.ledgerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		// The rejection event is written on the pool connection, never inside
		// the transaction that is about to roll back
		m.outboxRepo.AssertNotCalled(t, "WithTx", mock.Anything)
		m.outboxRepo.AssertExpectations(t)
	})
}

func TestGetEntries(t *testing.T) {
	ctx := context.Background()
	participantID := uuid.New()

	svc, m := newTestService()
	expected := []*ledger.Entry{{ID: uuid.New(), ParticipantID: participantID}}

	m.ledgerRepo.On("GetByParticipantID", ctx, participantID, 10, 0).Return(expected, nil).Once()
	m.ledgerRepo.On("CountByParticipantID", ctx, participantID).Return(int64(1), nil).Once()

	entries, count, err := svc.GetEntries(ctx, participantID, 10, 0)

	require.NoError(t, err)
	assert.Equal(t, expected, entries)
	assert.Equal(t, int64(1), count)
	m.ledgerRepo.AssertExpectations(t)
}

var (
	_ wallet.Repository      = (*MockWalletRepository)(nil)
	_ ledger.Repository      = (*MockLedgerRepository)(nil)
	_ audit.OutboxRepository = (*MockOutboxRepository)(nil)
)
