package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
	"github.com/bkcjanta/roi-project/internal/platform/messaging/producers"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/referral"
	"github.com/bkcjanta/roi-project/internal/settings"
)

// defaultTermMonths is the investment term applied when the request omits one
const defaultTermMonths = 12

// ErrParticipantInactive rejects investments from suspended or closed participants
var ErrParticipantInactive = errors.New("participant is not active")

// InvestmentServiceImpl implements the InvestmentService interface
type InvestmentServiceImpl struct {
	db              *persistence.PostgresDB
	participantRepo participant.Repository
	investmentRepo  investment.Repository
	walletRepo      wallet.Repository
	outboxRepo      audit.OutboxRepository
	engine          *referral.CommissionEngine
	settingsService *settings.Service
	volumeProducer  producers.MessagePublisher // nil disables volume dispatch
	logger          *slog.Logger
}

// NewInvestmentService creates a new investment service
func NewInvestmentService(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	participantRepo participant.Repository,
	investmentRepo investment.Repository,
	walletRepo wallet.Repository,
	outboxRepo audit.OutboxRepository,
	engine *referral.CommissionEngine,
	settingsService *settings.Service,
	volumeProducer producers.MessagePublisher,
) InvestmentService {
	return &InvestmentServiceImpl{
		db:              db,
		participantRepo: participantRepo,
		investmentRepo:  investmentRepo,
		walletRepo:      walletRepo,
		outboxRepo:      outboxRepo,
		engine:          engine,
		settingsService: settingsService,
		volumeProducer:  volumeProducer,
		logger:          logger,
	}
}

// CreateInvestment locks a principal into the current rate plan. The
// investment row, the lifetime invested total, and the audit outbox row
// commit in one transaction. Commission fan-out runs synchronously after the
// commit; each upline recipient settles in its own transaction, so a failed
// level never takes the investment down with it. The binary volume event is
// dispatched last and propagated asynchronously by the distribution worker.
func (s *InvestmentServiceImpl) CreateInvestment(ctx context.Context, participantID uuid.UUID, amount decimal.Decimal, frequency shared.PayoutFrequency, durationMonths int, correlationID string) (*investment.Investment, error) {
	investor, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if !investor.IsActive() {
		return nil, ErrParticipantInactive
	}

	snap, err := s.settingsService.Load(ctx)
	if err != nil {
		return nil, err
	}

	if durationMonths <= 0 {
		durationMonths = defaultTermMonths
	}
	maturity := time.Now().AddDate(0, durationMonths, 0)

	inv, err := investment.New(participantID, amount, snap.DefaultDailyRate, snap.DefaultCapMultiple, frequency, maturity)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.investmentRepo.WithTx(tx).Create(ctx, inv); err != nil {
			return err
		}
		if err := s.walletRepo.WithTx(tx).AddInvested(ctx, participantID, amount); err != nil {
			return err
		}

		row, err := audit.NewOutboxRow(audit.EventInvestmentCreated, "investment", inv.ID.String(), participantID, inv, correlationID)
		if err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	if err := s.engine.OnInvestmentCreated(ctx, inv, investor, snap, correlationID); err != nil {
		// The investment stands; failed levels are recorded per recipient
		s.logger.Error("Commission fan-out completed with failures",
			"investment_id", inv.ID.String(),
			"error", err,
		)
	}

	s.dispatchVolume(ctx, inv, investor, correlationID)

	s.logger.Info("Investment created",
		"investment_id", inv.ID.String(),
		"participant_id", participantID.String(),
		"amount", amount.String(),
	)
	return inv, nil
}

// dispatchVolume publishes the binary volume event. Roots have no ancestors
// to credit, and a publish failure only delays pairing for the affected legs,
// so neither case fails the investment.
func (s *InvestmentServiceImpl) dispatchVolume(ctx context.Context, inv *investment.Investment, investor *participant.Participant, correlationID string) {
	if s.volumeProducer == nil || investor.IsRoot() {
		return
	}

	event := shared.VolumeEvent{
		EventID:       uuid.New(),
		InvestmentID:  inv.ID,
		ParticipantID: investor.ID,
		ParentID:      investor.BinaryParentID,
		Position:      investor.BinaryPosition,
		Amount:        inv.Amount,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}
	if err := s.volumeProducer.Publish(ctx, investor.ID.String(), event); err != nil {
		s.logger.Error("Failed to dispatch volume event",
			"investment_id", inv.ID.String(),
			"participant_id", investor.ID.String(),
			"error", err,
		)
	}
}

// GetInvestmentsByParticipant retrieves a paginated list of a participant's investments
func (s *InvestmentServiceImpl) GetInvestmentsByParticipant(ctx context.Context, participantID uuid.UUID, page, perPage int) ([]*investment.Investment, error) {
	offset := (page - 1) * perPage
	return s.investmentRepo.GetByParticipantID(ctx, participantID, perPage, offset)
}

// GetDistributions returns the append-only payout log of one investment
func (s *InvestmentServiceImpl) GetDistributions(ctx context.Context, investmentID uuid.UUID) ([]*investment.Distribution, error) {
	return s.investmentRepo.ListDistributions(ctx, investmentID)
}
