package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Repository defines wallet persistence operations. Balance writes happen only
// inside treasury transactions holding the wallet's row lock.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByParticipantID(ctx context.Context, participantID uuid.UUID) (*Wallet, error)

	// LockForUpdate acquires the wallet's row lock and returns its current
	// state. Must run inside a transaction.
	LockForUpdate(ctx context.Context, participantID uuid.UUID) (*Wallet, error)

	// SetBalance writes a named balance to an exact value computed under the
	// row lock, bumping lifetime totals when earned is true.
	SetBalance(ctx context.Context, participantID uuid.UUID, name shared.WalletName, balance decimal.Decimal, earnedDelta decimal.Decimal) error

	// AddInvested atomically bumps the lifetime invested total
	AddInvested(ctx context.Context, participantID uuid.UUID, amount decimal.Decimal) error

	WithTx(tx pgx.Tx) Repository
}
