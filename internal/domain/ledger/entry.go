// Package ledger models the immutable transaction records backing every
// wallet balance mutation.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Entry is one immutable ledger record. Invariant: BalanceAfter equals
// BalanceBefore plus the signed amount, and a wallet's live balance equals the
// BalanceAfter of its most recent completed entry.
type Entry struct {
	ID            uuid.UUID             `json:"id"`
	ParticipantID uuid.UUID             `json:"participant_id"`
	Wallet        shared.WalletName     `json:"wallet"`
	Direction     shared.EntryDirection `json:"direction"`
	Amount        decimal.Decimal       `json:"amount"` // Always positive; Direction carries the sign
	BalanceBefore decimal.Decimal       `json:"balance_before"`
	BalanceAfter  decimal.Decimal       `json:"balance_after"`
	Reason        string                `json:"reason"`
	SourceRef     string                `json:"source_ref"` // Caller-supplied idempotency key
	CorrelationID string                `json:"correlation_id,omitempty"`
	Status        shared.EntryStatus    `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
}

// SignedAmount returns the amount with the direction's sign applied
func (e *Entry) SignedAmount() decimal.Decimal {
	if e.Direction == shared.DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// CheckExactness verifies the balance arithmetic of the entry
func (e *Entry) CheckExactness() error {
	if !e.BalanceAfter.Equal(e.BalanceBefore.Add(e.SignedAmount())) {
		return ErrLedgerInconsistency{EntryID: e.ID}
	}
	return nil
}

// ErrLedgerInconsistency indicates a balance arithmetic mismatch. Fatal for the
// operation that detects it; never silently corrected.
type ErrLedgerInconsistency struct {
	EntryID uuid.UUID
}

func (e ErrLedgerInconsistency) Error() string {
	return "ledger inconsistency detected on entry: " + e.EntryID.String()
}

// Is matches any ErrLedgerInconsistency when the target carries a nil entry ID
func (e ErrLedgerInconsistency) Is(target error) bool {
	t, ok := target.(ErrLedgerInconsistency)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}

// ErrEntryNotFound indicates a missing ledger entry
type ErrEntryNotFound struct {
	SourceRef string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.SourceRef
}

// Is matches any ErrEntryNotFound when the target carries an empty source ref
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.SourceRef == "" {
		return true
	}
	return e.SourceRef == t.SourceRef
}
