// Package pairing implements the binary volume-matching calculation and the
// per-cycle record it produces.
package pairing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config carries the settings snapshot one pairing run operates under
type Config struct {
	PairValue         decimal.Decimal
	CommissionPerPair decimal.Decimal
	DailyCap          decimal.Decimal
}

// Result is the outcome of one participant's pairing calculation
type Result struct {
	TotalLeft       decimal.Decimal
	TotalRight      decimal.Decimal
	Pairs           int64
	UsedVolume      decimal.Decimal
	GrossCommission decimal.Decimal
	FinalCommission decimal.Decimal
	CappingApplied  bool
	CarryLeft       decimal.Decimal
	CarryRight      decimal.Decimal
}

// Matched reports whether at least one pair was formed this cycle
func (r Result) Matched() bool {
	return r.Pairs > 0
}

// Calculate matches left-leg and right-leg volume into pairs.
//
// Current-cycle business and carried volume are summed per leg; the weaker
// leg's total divided by the pair value (floor) gives the pair count. When no
// pair forms, the zero Result signals the caller to leave all counters exactly
// as they are: current-cycle volume stays current and does not age into
// carry-forward. After a matched cycle the stronger leg keeps its unconsumed
// total as carry and the weaker leg's carry becomes zero; when both legs are
// exactly equal, neither is stronger and both carries are zero.
func Calculate(team BinaryVolumes, cfg Config) Result {
	totalLeft := team.LeftBusiness.Add(team.CarryLeft)
	totalRight := team.RightBusiness.Add(team.CarryRight)

	res := Result{
		TotalLeft:  totalLeft,
		TotalRight: totalRight,
		CarryLeft:  team.CarryLeft,
		CarryRight: team.CarryRight,
	}

	if cfg.PairValue.Sign() <= 0 {
		return res
	}

	weaker := decimal.Min(totalLeft, totalRight)
	pairs := weaker.Div(cfg.PairValue).Floor()
	if pairs.Sign() <= 0 {
		return res
	}

	res.Pairs = pairs.IntPart()
	res.UsedVolume = pairs.Mul(cfg.PairValue)
	res.GrossCommission = pairs.Mul(cfg.CommissionPerPair)
	res.FinalCommission = res.GrossCommission
	if cfg.DailyCap.Sign() > 0 && res.FinalCommission.GreaterThan(cfg.DailyCap) {
		res.FinalCommission = cfg.DailyCap
		res.CappingApplied = true
	}

	res.CarryLeft = decimal.Zero
	res.CarryRight = decimal.Zero
	if totalLeft.GreaterThan(totalRight) {
		res.CarryLeft = totalLeft.Sub(res.UsedVolume)
	} else if totalRight.GreaterThan(totalLeft) {
		res.CarryRight = totalRight.Sub(res.UsedVolume)
	}

	return res
}

// BinaryVolumes is the consistent snapshot of one participant's leg counters
// taken under a row lock for the duration of a pairing calculation.
type BinaryVolumes struct {
	LeftBusiness  decimal.Decimal
	RightBusiness decimal.Decimal
	CarryLeft     decimal.Decimal
	CarryRight    decimal.Decimal
}

// CycleStatus defines pairing cycle record states
type CycleStatus string

const (
	CycleStatusCalculated CycleStatus = "calculated"
	CycleStatusPaid       CycleStatus = "paid"
)

// Cycle is the persisted record of one participant's pairing run
type Cycle struct {
	ID              uuid.UUID       `json:"id"`
	ParticipantID   uuid.UUID       `json:"participant_id"`
	CycleDate       time.Time       `json:"cycle_date"`
	LeftVolume      decimal.Decimal `json:"left_volume"`  // Current-cycle business only
	RightVolume     decimal.Decimal `json:"right_volume"` // Current-cycle business only
	CarryInLeft     decimal.Decimal `json:"carry_in_left"`
	CarryInRight    decimal.Decimal `json:"carry_in_right"`
	PairsMatched    int64           `json:"pairs_matched"`
	PairValue       decimal.Decimal `json:"pair_value"`
	GrossCommission decimal.Decimal `json:"gross_commission"`
	Cap             decimal.Decimal `json:"cap"`
	CappingApplied  bool            `json:"capping_applied"`
	FinalCommission decimal.Decimal `json:"final_commission"`
	CarryOutLeft    decimal.Decimal `json:"carry_out_left"`
	CarryOutRight   decimal.Decimal `json:"carry_out_right"`
	CommissionID    uuid.UUID       `json:"commission_id"`
	Status          CycleStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewCycle assembles the cycle record from a calculation and its inputs
func NewCycle(participantID uuid.UUID, cycleDate time.Time, team BinaryVolumes, cfg Config, res Result) *Cycle {
	return &Cycle{
		ID:              uuid.New(),
		ParticipantID:   participantID,
		CycleDate:       cycleDate,
		LeftVolume:      team.LeftBusiness,
		RightVolume:     team.RightBusiness,
		CarryInLeft:     team.CarryLeft,
		CarryInRight:    team.CarryRight,
		PairsMatched:    res.Pairs,
		PairValue:       cfg.PairValue,
		GrossCommission: res.GrossCommission,
		Cap:             cfg.DailyCap,
		CappingApplied:  res.CappingApplied,
		FinalCommission: res.FinalCommission,
		CarryOutLeft:    res.CarryLeft,
		CarryOutRight:   res.CarryRight,
		Status:          CycleStatusCalculated,
		CreatedAt:       time.Now(),
	}
}
