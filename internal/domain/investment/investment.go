// Package investment models a principal amount locked into a rate plan and
// the append-only payout distribution log used for idempotency.
package investment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

var (
	ErrInvalidAmount = errors.New("investment amount must be positive")
	ErrInvalidRate   = errors.New("daily rate must be positive")
	ErrInvalidCap    = errors.New("total cap must be at least the principal")
)

// Investment is a principal locked into a rate plan. TotalCap is the maximum
// cumulative payout in absolute terms (principal times the cap percentage).
type Investment struct {
	ID             uuid.UUID               `json:"id"`
	ParticipantID  uuid.UUID               `json:"participant_id"`
	Amount         decimal.Decimal         `json:"amount"`
	DailyRate      decimal.Decimal         `json:"daily_rate"` // Fraction, e.g. 0.02 for 2%/day
	TotalCap       decimal.Decimal         `json:"total_cap"`
	TotalPaid      decimal.Decimal         `json:"total_paid"`
	DaysCompleted  int                     `json:"days_completed"`
	Frequency      shared.PayoutFrequency  `json:"frequency"`
	NextPayoutDate time.Time               `json:"next_payout_date"`
	MaturityDate   time.Time               `json:"maturity_date"`
	Status         shared.InvestmentStatus `json:"status"`
	SourceEventID  uuid.UUID               `json:"source_event_id"` // Commission idempotency anchor
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
}

// New creates an active investment. capMultiple is the payout ceiling as a
// multiple of principal (e.g. 2 for a 200% cap).
func New(participantID uuid.UUID, amount, dailyRate, capMultiple decimal.Decimal, frequency shared.PayoutFrequency, maturity time.Time) (*Investment, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if dailyRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	totalCap := amount.Mul(capMultiple)
	if totalCap.LessThan(amount) {
		return nil, ErrInvalidCap
	}
	now := time.Now()
	return &Investment{
		ID:             uuid.New(),
		ParticipantID:  participantID,
		Amount:         amount,
		DailyRate:      dailyRate,
		TotalCap:       totalCap,
		TotalPaid:      decimal.Zero,
		Frequency:      frequency,
		NextPayoutDate: NextPayoutAfter(now, frequency),
		MaturityDate:   maturity,
		Status:         shared.InvestmentStatusActive,
		SourceEventID:  uuid.New(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// DailyPayout returns the nominal per-period payout before cap clipping
func (i *Investment) DailyPayout() decimal.Decimal {
	return i.Amount.Mul(i.DailyRate)
}

// CapReached reports whether the cumulative payout ceiling has been hit
func (i *Investment) CapReached() bool {
	return i.TotalPaid.GreaterThanOrEqual(i.TotalCap)
}

// NextPayout returns the amount due for the next cycle, clipped so the
// cumulative total never exceeds the cap.
func (i *Investment) NextPayout() decimal.Decimal {
	due := i.DailyPayout()
	remaining := i.TotalCap.Sub(i.TotalPaid)
	if due.GreaterThan(remaining) {
		return remaining
	}
	return due
}

// NextPayoutAfter returns the start of the next payout day for the frequency,
// truncated to midnight.
func NextPayoutAfter(from time.Time, frequency shared.PayoutFrequency) time.Time {
	var next time.Time
	switch frequency {
	case shared.FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case shared.FrequencyMonthly:
		next = from.AddDate(0, 1, 0)
	default:
		next = from.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}

// Distribution is one append-only payout log row. The unique
// (investment, payout date) pair is the idempotency check preventing a second
// payout for the same calendar day.
type Distribution struct {
	ID           uuid.UUID       `json:"id"`
	InvestmentID uuid.UUID       `json:"investment_id"`
	PayoutDate   time.Time       `json:"payout_date"` // Calendar day, midnight
	Amount       decimal.Decimal `json:"amount"`
	LedgerRef    string          `json:"ledger_ref"`
	JobRunID     string          `json:"job_run_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ErrInvestmentNotFound indicates a missing investment
type ErrInvestmentNotFound struct {
	InvestmentID uuid.UUID
}

func (e ErrInvestmentNotFound) Error() string {
	return "investment not found: " + e.InvestmentID.String()
}

// Is matches any ErrInvestmentNotFound when the target carries a nil ID
func (e ErrInvestmentNotFound) Is(target error) bool {
	t, ok := target.(ErrInvestmentNotFound)
	if !ok {
		return false
	}
	if t.InvestmentID == uuid.Nil {
		return true
	}
	return e.InvestmentID == t.InvestmentID
}
