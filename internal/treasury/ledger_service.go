// Package treasury is the sole writer of wallet balances. Every credit and
// debit locks the wallet row, writes the new balance together with an
// immutable ledger entry, and enqueues an audit outbox row in one transaction.
package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/ledger"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// Apply is the input for one balance mutation
type Apply struct {
	ParticipantID uuid.UUID
	Wallet        shared.WalletName
	Amount        decimal.Decimal // Always positive
	Reason        string
	SourceRef     string // Idempotency key, unique per business event
	CorrelationID string
}

func (a Apply) validate() error {
	if a.ParticipantID == uuid.Nil {
		return fmt.Errorf("participant id is required")
	}
	if !a.Wallet.Valid() {
		return fmt.Errorf("unknown wallet name: %s", a.Wallet)
	}
	if a.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if a.SourceRef == "" {
		return fmt.Errorf("source ref is required")
	}
	return nil
}

// LedgerService applies balance mutations with exactness and idempotency
// guarantees. Replaying a source ref returns the original entry untouched.
type LedgerService struct {
	db         *persistence.PostgresDB
	walletRepo wallet.Repository
	ledgerRepo ledger.Repository
	outboxRepo audit.OutboxRepository
	logger     *slog.Logger
}

// NewLedgerService creates the treasury ledger service
func NewLedgerService(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	walletRepo wallet.Repository,
	ledgerRepo ledger.Repository,
	outboxRepo audit.OutboxRepository,
) *LedgerService {
	return &LedgerService{
		db:         db,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Credit applies a credit in its own transaction
func (s *LedgerService) Credit(ctx context.Context, apply Apply) (*ledger.Entry, error) {
	var entry *ledger.Entry
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		entry, txErr = s.CreditTx(ctx, tx, apply)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit applies a debit in its own transaction
func (s *LedgerService) Debit(ctx context.Context, apply Apply) (*ledger.Entry, error) {
	var entry *ledger.Entry
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		entry, txErr = s.DebitTx(ctx, tx, apply)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx applies a credit inside the caller's transaction. Credits count
// toward lifetime earnings.
func (s *LedgerService) CreditTx(ctx context.Context, tx pgx.Tx, apply Apply) (*ledger.Entry, error) {
	return s.applyTx(ctx, tx, apply, shared.DirectionCredit)
}

// DebitTx applies a debit inside the caller's transaction. A debit that would
// take the balance negative fails with ErrInsufficientBalance.
func (s *LedgerService) DebitTx(ctx context.Context, tx pgx.Tx, apply Apply) (*ledger.Entry, error) {
	return s.applyTx(ctx, tx, apply, shared.DirectionDebit)
}

func (s *LedgerService) applyTx(ctx context.Context, tx pgx.Tx, apply Apply, direction shared.EntryDirection) (*ledger.Entry, error) {
	if err := apply.validate(); err != nil {
		return nil, err
	}

	ledgerRepo := s.ledgerRepo.WithTx(tx)
	walletRepo := s.walletRepo.WithTx(tx)

	// Idempotency check before any mutation: a replayed source ref returns
	// the original entry and changes nothing.
	existing, err := ledgerRepo.GetBySourceRef(ctx, apply.SourceRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Ledger entry already applied, returning prior result",
			"source_ref", apply.SourceRef,
			"entry_id", existing.ID.String(),
		)
		return existing, nil
	}

	w, err := walletRepo.LockForUpdate(ctx, apply.ParticipantID)
	if err != nil {
		return nil, err
	}

	before := w.Balance(apply.Wallet)
	var after decimal.Decimal
	earnedDelta := decimal.Zero

	switch direction {
	case shared.DirectionCredit:
		after = before.Add(apply.Amount)
		earnedDelta = apply.Amount
	case shared.DirectionDebit:
		after = before.Sub(apply.Amount)
		if after.Sign() < 0 {
			rejErr := wallet.ErrInsufficientBalance{
				ParticipantID: apply.ParticipantID,
				Wallet:        apply.Wallet,
			}
			s.recordRejection(ctx, apply, direction, rejErr.Error())
			return nil, rejErr
		}
	}

	entry := &ledger.Entry{
		ID:            uuid.New(),
		ParticipantID: apply.ParticipantID,
		Wallet:        apply.Wallet,
		Direction:     direction,
		Amount:        apply.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        apply.Reason,
		SourceRef:     apply.SourceRef,
		CorrelationID: apply.CorrelationID,
		Status:        shared.EntryStatusCompleted,
		CreatedAt:     time.Now(),
	}
	if err := entry.CheckExactness(); err != nil {
		s.logger.Error("Ledger exactness violation, aborting mutation",
			"entry_id", entry.ID.String(),
			"source_ref", apply.SourceRef,
		)
		s.recordRejection(ctx, apply, direction, err.Error())
		return nil, err
	}

	if err := walletRepo.SetBalance(ctx, apply.ParticipantID, apply.Wallet, after, earnedDelta); err != nil {
		return nil, err
	}
	if err := ledgerRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.enqueueAudit(ctx, tx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Applied ledger entry",
		"entry_id", entry.ID.String(),
		"participant_id", apply.ParticipantID.String(),
		"wallet", string(apply.Wallet),
		"direction", string(direction),
		"amount", apply.Amount.String(),
	)
	return entry, nil
}

// recordRejection writes a ledger rejection event straight to the outbox pool
// connection. The mutation it describes is about to roll back; going through
// the transaction would erase the event with it. Best effort: a failed write
// is logged, never escalated over the rejection itself.
func (s *LedgerService) recordRejection(ctx context.Context, apply Apply, direction shared.EntryDirection, reason string) {
	payload := map[string]string{
		"wallet":     string(apply.Wallet),
		"direction":  string(direction),
		"amount":     apply.Amount.String(),
		"source_ref": apply.SourceRef,
		"reason":     reason,
	}
	row, err := audit.NewOutboxRow(audit.EventLedgerRejected, "ledger_entry", apply.SourceRef, apply.ParticipantID, payload, apply.CorrelationID)
	if err != nil {
		s.logger.Error("Failed to build ledger rejection event", "source_ref", apply.SourceRef, "error", err)
		return
	}
	if err := s.outboxRepo.Create(ctx, row); err != nil {
		s.logger.Error("Failed to enqueue ledger rejection event", "source_ref", apply.SourceRef, "error", err)
	}
}

func (s *LedgerService) enqueueAudit(ctx context.Context, tx pgx.Tx, entry *ledger.Entry) error {
	eventType := audit.EventCommissionPaid
	switch {
	case entry.Direction == shared.DirectionDebit:
		eventType = "ledger.debited"
	case entry.Wallet == shared.WalletROI:
		eventType = audit.EventROIDistributed
	case entry.Wallet == shared.WalletMain:
		eventType = "ledger.credited"
	}

	row, err := audit.NewOutboxRow(eventType, "ledger_entry", entry.ID.String(), entry.ParticipantID, entry, entry.CorrelationID)
	if err != nil {
		return fmt.Errorf("failed to build audit outbox row: %w", err)
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, row)
}

// GetWallet returns a participant's wallet
func (s *LedgerService) GetWallet(ctx context.Context, participantID uuid.UUID) (*wallet.Wallet, error) {
	return s.walletRepo.GetByParticipantID(ctx, participantID)
}

// GetEntries returns a page of a participant's ledger history with its total count
func (s *LedgerService) GetEntries(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*ledger.Entry, int64, error) {
	entries, err := s.ledgerRepo.GetByParticipantID(ctx, participantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.ledgerRepo.CountByParticipantID(ctx, participantID)
	if err != nil {
		return nil, 0, err
	}
	return entries, count, nil
}
