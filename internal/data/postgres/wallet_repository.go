package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so balance writes commit
// atomically with their ledger entries.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const walletColumns = `
	id, participant_id, main_balance, roi_balance, referral_balance,
	level_balance, binary_balance, hold_balance, total_earnings,
	total_invested, created_at, updated_at
`

// balanceColumn maps a wallet name to its column. Names are validated in the
// domain layer; the fallback never reaches SQL in practice.
func balanceColumn(name shared.WalletName) string {
	switch name {
	case shared.WalletMain:
		return "main_balance"
	case shared.WalletROI:
		return "roi_balance"
	case shared.WalletReferral:
		return "referral_balance"
	case shared.WalletLevel:
		return "level_balance"
	case shared.WalletBinary:
		return "binary_balance"
	case shared.WalletHold:
		return "hold_balance"
	}
	return "main_balance"
}

// Create stores a new wallet
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, participant_id, main_balance, roi_balance, referral_balance,
			level_balance, binary_balance, hold_balance, total_earnings,
			total_invested, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.ParticipantID,
		w.MainBalance,
		w.ROIBalance,
		w.ReferralBalance,
		w.LevelBalance,
		w.BinaryBalance,
		w.HoldBalance,
		w.TotalEarnings,
		w.TotalInvested,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "participant_id", w.ParticipantID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByParticipantID retrieves a wallet by its owner
func (r *WalletRepository) GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE participant_id = $1`

	w, err := r.scanOne(ctx, query, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{ParticipantID: participantID}
		}
		r.logger.Error("Failed to get wallet", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// LockForUpdate obtains a pessimistic lock on the wallet row and returns its
// current state. Must be called within a transaction.
func (r *WalletRepository) LockForUpdate(ctx context.Context, participantID uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE participant_id = $1 FOR UPDATE`

	w, err := r.scanOne(ctx, query, participantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{ParticipantID: participantID}
		}
		r.logger.Error("Failed to lock wallet", "participant_id", participantID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	return w, nil
}

// SetBalance writes a named balance to the exact value computed under the row
// lock, bumping total earnings by earnedDelta when positive.
func (r *WalletRepository) SetBalance(ctx context.Context, participantID uuid.UUID, name shared.WalletName, balance decimal.Decimal, earnedDelta decimal.Decimal) error {
	column := balanceColumn(name)
	query := `
		UPDATE wallets
		SET ` + column + ` = $1, total_earnings = total_earnings + $2, updated_at = NOW()
		WHERE participant_id = $3
	`

	result, err := r.querier.Exec(ctx, query, balance, earnedDelta, participantID)
	if err != nil {
		r.logger.Error("Failed to set wallet balance",
			"participant_id", participantID.String(),
			"wallet", string(name),
			"error", err,
		)
		return fmt.Errorf("failed to set wallet balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return wallet.ErrWalletNotFound{ParticipantID: participantID}
	}

	return nil
}

// AddInvested atomically bumps the lifetime invested total
func (r *WalletRepository) AddInvested(ctx context.Context, participantID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET total_invested = total_invested + $1, updated_at = NOW()
		WHERE participant_id = $2
	`

	result, err := r.querier.Exec(ctx, query, amount, participantID)
	if err != nil {
		r.logger.Error("Failed to add invested total", "participant_id", participantID.String(), "error", err)
		return fmt.Errorf("failed to add invested total: %w", err)
	}
	if result.RowsAffected() == 0 {
		return wallet.ErrWalletNotFound{ParticipantID: participantID}
	}

	return nil
}

func (r *WalletRepository) scanOne(ctx context.Context, query string, args ...any) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&w.ID,
		&w.ParticipantID,
		&w.MainBalance,
		&w.ROIBalance,
		&w.ReferralBalance,
		&w.LevelBalance,
		&w.BinaryBalance,
		&w.HoldBalance,
		&w.TotalEarnings,
		&w.TotalInvested,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
