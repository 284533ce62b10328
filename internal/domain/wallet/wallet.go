// Package wallet models the per-participant container of named balances.
// Balances are mutated exclusively by the treasury ledger service.
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Wallet holds the independent named balances of one participant plus
// lifetime earning totals. Created at join time, never deleted.
type Wallet struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`

	MainBalance     decimal.Decimal `json:"main_balance"`
	ROIBalance      decimal.Decimal `json:"roi_balance"`
	ReferralBalance decimal.Decimal `json:"referral_balance"`
	LevelBalance    decimal.Decimal `json:"level_balance"`
	BinaryBalance   decimal.Decimal `json:"binary_balance"`
	HoldBalance     decimal.Decimal `json:"hold_balance"`

	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalInvested decimal.Decimal `json:"total_invested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty wallet for a participant
func New(participantID uuid.UUID) *Wallet {
	now := time.Now()
	return &Wallet{
		ID:              uuid.New(),
		ParticipantID:   participantID,
		MainBalance:     decimal.Zero,
		ROIBalance:      decimal.Zero,
		ReferralBalance: decimal.Zero,
		LevelBalance:    decimal.Zero,
		BinaryBalance:   decimal.Zero,
		HoldBalance:     decimal.Zero,
		TotalEarnings:   decimal.Zero,
		TotalInvested:   decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Balance returns the named balance. Unknown names return zero.
func (w *Wallet) Balance(name shared.WalletName) decimal.Decimal {
	switch name {
	case shared.WalletMain:
		return w.MainBalance
	case shared.WalletROI:
		return w.ROIBalance
	case shared.WalletReferral:
		return w.ReferralBalance
	case shared.WalletLevel:
		return w.LevelBalance
	case shared.WalletBinary:
		return w.BinaryBalance
	case shared.WalletHold:
		return w.HoldBalance
	}
	return decimal.Zero
}

// ErrInsufficientBalance indicates a debit that would take a named balance negative
type ErrInsufficientBalance struct {
	ParticipantID uuid.UUID
	Wallet        shared.WalletName
}

func (e ErrInsufficientBalance) Error() string {
	return "insufficient " + string(e.Wallet) + " balance for participant " + e.ParticipantID.String()
}

// Is matches any ErrInsufficientBalance when the target carries a nil participant ID
func (e ErrInsufficientBalance) Is(target error) bool {
	t, ok := target.(ErrInsufficientBalance)
	if !ok {
		return false
	}
	if t.ParticipantID == uuid.Nil {
		return true
	}
	return e.ParticipantID == t.ParticipantID && e.Wallet == t.Wallet
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	ParticipantID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found for participant: " + e.ParticipantID.String()
}

// Is matches any ErrWalletNotFound when the target carries a nil participant ID
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.ParticipantID == uuid.Nil {
		return true
	}
	return e.ParticipantID == t.ParticipantID
}
