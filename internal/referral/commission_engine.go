package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/commission"
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/settings"
	"github.com/bkcjanta/roi-project/internal/treasury"
)

// Ledger reasons for commission credits
const (
	reasonDirectCommission = "direct referral commission"
	reasonLevelCommission  = "level commission"
	reasonBinaryCommission = "binary pairing commission"
)

// hundred converts percentages to fractions
var hundred = decimal.NewFromInt(100)

// CommissionEngine turns investment events into commission records and pays
// them through the treasury. Each recipient is processed in its own
// transaction so one failure never rolls back the others.
type CommissionEngine struct {
	db              *persistence.PostgresDB
	participantRepo participant.Repository
	investmentRepo  investment.Repository
	commissionRepo  commission.Repository
	ledgerService   *treasury.LedgerService
	outboxRepo      audit.OutboxRepository
	logger          *slog.Logger
}

// NewCommissionEngine creates a new commission engine
func NewCommissionEngine(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	participantRepo participant.Repository,
	investmentRepo investment.Repository,
	commissionRepo commission.Repository,
	ledgerService *treasury.LedgerService,
	outboxRepo audit.OutboxRepository,
) *CommissionEngine {
	return &CommissionEngine{
		db:              db,
		participantRepo: participantRepo,
		investmentRepo:  investmentRepo,
		commissionRepo:  commissionRepo,
		ledgerService:   ledgerService,
		outboxRepo:      outboxRepo,
		logger:          logger,
	}
}

// OnInvestmentCreated fans out the direct commission to the sponsor and level
// commissions to upline levels 2 through 5. A failed or ineligible level is
// recorded and skipped, never retried when eligibility is gained later.
func (e *CommissionEngine) OnInvestmentCreated(ctx context.Context, inv *investment.Investment, investor *participant.Participant, snap settings.Snapshot, correlationID string) error {
	if investor.SponsorID == uuid.Nil {
		return nil // Roots generate no commissions
	}

	var errs []error
	for _, entry := range investor.UplineChain {
		if err := e.payLevel(ctx, inv, investor, entry, snap, correlationID); err != nil {
			e.logger.Error("Commission fan-out failed for level",
				"investment_id", inv.ID.String(),
				"recipient_id", entry.ParticipantID.String(),
				"level", entry.Level,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("level %d: %w", entry.Level, err))
		}
	}

	return errors.Join(errs...)
}

// payLevel processes one upline recipient. Level 1 is the direct commission,
// requiring only an active sponsor; deeper levels additionally require the
// recipient to hold an active investment.
func (e *CommissionEngine) payLevel(ctx context.Context, inv *investment.Investment, investor *participant.Participant, entry participant.UplineEntry, snap settings.Snapshot, correlationID string) error {
	percent := snap.LevelPercent(entry.Level)
	if percent.Sign() <= 0 {
		return nil
	}

	recipient, err := e.participantRepo.GetByID(ctx, entry.ParticipantID)
	if err != nil {
		return err
	}

	ctype := shared.CommissionLevel
	walletName := shared.WalletLevel
	reason := reasonLevelCommission
	if entry.Level == 1 {
		ctype = shared.CommissionDirect
		walletName = shared.WalletReferral
		reason = reasonDirectCommission
	}

	rejection := ""
	if !recipient.IsActive() {
		rejection = "recipient not active"
	} else if entry.Level > 1 {
		hasActive, err := e.investmentRepo.HasActive(ctx, recipient.ID)
		if err != nil {
			return err
		}
		if !hasActive {
			rejection = "recipient holds no active investment"
		}
	}

	amount := inv.Amount.Mul(percent).Div(hundred)
	c := &commission.Commission{
		ID:                  uuid.New(),
		RecipientID:         recipient.ID,
		SourceParticipantID: investor.ID,
		Type:                ctype,
		Level:               entry.Level,
		Amount:              amount,
		Percentage:          percent,
		SourceEventID:       inv.SourceEventID,
		SourceAmount:        inv.Amount,
		Status:              shared.CommissionStatusApproved,
		CreatedAt:           time.Now(),
	}
	if rejection != "" {
		c.Status = shared.CommissionStatusRejected
		c.RejectionReason = rejection
	}

	return e.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return e.settleCommission(ctx, tx, c, walletName, reason, correlationID)
	})
}

// settleCommission records one commission inside the caller's transaction and
// pays it when approved. A rejection persists the rejected row and enqueues a
// rejection audit event in the same transaction; the recipient is never
// credited retroactively.
func (e *CommissionEngine) settleCommission(ctx context.Context, tx pgx.Tx, c *commission.Commission, walletName shared.WalletName, reason, correlationID string) error {
	commissionRepo := e.commissionRepo.WithTx(tx)

	if err := commissionRepo.Create(ctx, c); err != nil {
		if errors.Is(err, commission.ErrDuplicateCommission{}) {
			// Replay of the same event: the prior record stands
			e.logger.Info("Commission already recorded for event",
				"source_event_id", c.SourceEventID.String(),
				"recipient_id", c.RecipientID.String(),
				"level", c.Level,
			)
			return nil
		}
		return err
	}

	if c.Status == shared.CommissionStatusRejected {
		e.logger.Info("Commission rejected",
			"recipient_id", c.RecipientID.String(),
			"level", c.Level,
			"reason", c.RejectionReason,
		)
		row, err := audit.NewOutboxRow(audit.EventCommissionRejected, "commission", c.ID.String(), c.RecipientID, c, correlationID)
		if err != nil {
			return err
		}
		return e.outboxRepo.WithTx(tx).Create(ctx, row)
	}

	paidEntry, err := e.ledgerService.CreditTx(ctx, tx, treasury.Apply{
		ParticipantID: c.RecipientID,
		Wallet:        walletName,
		Amount:        c.Amount,
		Reason:        reason,
		SourceRef:     c.LedgerSourceRef(),
		CorrelationID: correlationID,
	})
	if err != nil {
		return err
	}

	return commissionRepo.MarkPaid(ctx, c.ID, paidEntry.SourceRef, time.Now())
}

// PayBinaryCommission records and pays the commission for one closed pairing
// cycle. cycleID doubles as the idempotency anchor so a crashed run that
// re-processes the cycle cannot pay twice.
func (e *CommissionEngine) PayBinaryCommission(ctx context.Context, tx pgx.Tx, recipientID, cycleID uuid.UUID, amount, usedVolume decimal.Decimal, correlationID string) (*commission.Commission, error) {
	c := &commission.Commission{
		ID:                  uuid.New(),
		RecipientID:         recipientID,
		SourceParticipantID: recipientID,
		Type:                shared.CommissionBinary,
		Level:               0,
		Amount:              amount,
		Percentage:          decimal.Zero,
		SourceEventID:       cycleID,
		SourceAmount:        usedVolume,
		Status:              shared.CommissionStatusApproved,
		CreatedAt:           time.Now(),
	}

	commissionRepo := e.commissionRepo.WithTx(tx)
	if err := commissionRepo.Create(ctx, c); err != nil {
		if errors.Is(err, commission.ErrDuplicateCommission{}) {
			prior, getErr := commissionRepo.GetByEventKey(ctx, cycleID, recipientID, shared.CommissionBinary, 0)
			if getErr != nil {
				return nil, getErr
			}
			return prior, nil
		}
		return nil, err
	}

	paidEntry, err := e.ledgerService.CreditTx(ctx, tx, treasury.Apply{
		ParticipantID: recipientID,
		Wallet:        shared.WalletBinary,
		Amount:        amount,
		Reason:        reasonBinaryCommission,
		SourceRef:     c.LedgerSourceRef(),
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}

	if err := commissionRepo.MarkPaid(ctx, c.ID, paidEntry.SourceRef, time.Now()); err != nil {
		return nil, err
	}
	c.Status = shared.CommissionStatusPaid

	return c, nil
}
