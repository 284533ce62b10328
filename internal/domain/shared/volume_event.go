package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrInvalidPosition = errors.New("position must be left or right")

// VolumeEvent is the Kafka message dispatched after an investment commits.
// The distribution worker consumes it and propagates the invested amount up
// the binary placement tree, side-aware at every ancestor.
type VolumeEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	InvestmentID  uuid.UUID       `json:"investment_id"`
	ParticipantID uuid.UUID       `json:"participant_id"`
	ParentID      uuid.UUID       `json:"parent_id"`
	Position      Position        `json:"position"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// VolumeEventLog records which volume events have already been applied to the
// tree. Kafka delivers at least once; the log makes redelivery of a partially
// applied event a no-op instead of a second round of leg credits.
type VolumeEventLog interface {
	// MarkApplied claims the event for the current delivery. Returns false
	// when an earlier delivery already applied it.
	MarkApplied(ctx context.Context, eventID uuid.UUID) (bool, error)

	WithTx(tx pgx.Tx) VolumeEventLog
}

// Validate checks the event carries enough data to start a propagation walk
func (e *VolumeEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return errors.New("event id is required")
	}
	if e.ParentID == uuid.Nil {
		return errors.New("parent id is required")
	}
	if e.Position != PositionLeft && e.Position != PositionRight {
		return ErrInvalidPosition
	}
	if e.Amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}
