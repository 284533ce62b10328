// Package commission models payable claims generated by investment events and
// binary pairing cycles.
package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// Commission is a payable claim. At most one commission may exist per
// (SourceEventID, RecipientID, Type, Level); replays of the same business
// event must not create a second claim.
type Commission struct {
	ID                  uuid.UUID               `json:"id"`
	RecipientID         uuid.UUID               `json:"recipient_id"`
	SourceParticipantID uuid.UUID               `json:"source_participant_id"`
	Type                shared.CommissionType   `json:"type"`
	Level               int                     `json:"level"` // 0 when not a level commission
	Amount              decimal.Decimal         `json:"amount"`
	Percentage          decimal.Decimal         `json:"percentage"`
	SourceEventID       uuid.UUID               `json:"source_event_id"`
	SourceAmount        decimal.Decimal         `json:"source_amount"`
	Status              shared.CommissionStatus `json:"status"`
	RejectionReason     string                  `json:"rejection_reason,omitempty"`
	LedgerRef           string                  `json:"ledger_ref,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	PaidAt              *time.Time              `json:"paid_at,omitempty"`
}

// LedgerSourceRef derives the idempotency key used when crediting this
// commission through the ledger service.
func (c *Commission) LedgerSourceRef() string {
	return "commission:" + c.ID.String()
}

// ErrDuplicateCommission indicates the uniqueness constraint fired for a
// replayed event. Callers treat it as success and fetch the prior record.
type ErrDuplicateCommission struct {
	SourceEventID uuid.UUID
	RecipientID   uuid.UUID
}

func (e ErrDuplicateCommission) Error() string {
	return "commission already recorded for event " + e.SourceEventID.String() +
		" and recipient " + e.RecipientID.String()
}

// Is matches any ErrDuplicateCommission when the target carries nil IDs
func (e ErrDuplicateCommission) Is(target error) bool {
	t, ok := target.(ErrDuplicateCommission)
	if !ok {
		return false
	}
	if t.SourceEventID == uuid.Nil && t.RecipientID == uuid.Nil {
		return true
	}
	return e.SourceEventID == t.SourceEventID && e.RecipientID == t.RecipientID
}

// ErrEligibilityFailure indicates an upline recipient lacked a qualifying
// active investment. The commission is skipped, never retried later.
type ErrEligibilityFailure struct {
	RecipientID uuid.UUID
	Level       int
}

func (e ErrEligibilityFailure) Error() string {
	return "recipient " + e.RecipientID.String() + " not eligible for level commission"
}
