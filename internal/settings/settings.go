// Package settings loads the commission and payout parameters a distribution
// run operates under. Values live as key/value rows; missing keys fall back
// to documented defaults so a fresh database behaves sensibly.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Setting keys stored in system_settings
const (
	KeyDirectPercent      = "commission.direct_percent"
	KeyLevel2Percent      = "commission.level2_percent"
	KeyLevel3Percent      = "commission.level3_percent"
	KeyLevel4Percent      = "commission.level4_percent"
	KeyLevel5Percent      = "commission.level5_percent"
	KeyPairValue          = "binary.pair_value"
	KeyCommissionPerPair  = "binary.commission_per_pair"
	KeyBinaryDailyCap     = "binary.daily_cap"
	KeyBinaryEnabled      = "binary.enabled"
	KeyDefaultDailyRate   = "investment.default_daily_rate"
	KeyDefaultCapMultiple = "investment.default_cap_multiple"
)

// Snapshot is the full parameter set captured once at the start of a run and
// passed explicitly; a run never mixes values from two snapshots.
type Snapshot struct {
	DirectPercent      decimal.Decimal
	LevelPercents      map[int]decimal.Decimal // Levels 2..5
	PairValue          decimal.Decimal
	CommissionPerPair  decimal.Decimal
	BinaryDailyCap     decimal.Decimal
	BinaryEnabled      bool
	DefaultDailyRate   decimal.Decimal
	DefaultCapMultiple decimal.Decimal
}

// Defaults returns the snapshot used when no overriding rows exist
func Defaults() Snapshot {
	return Snapshot{
		DirectPercent: decimal.NewFromInt(10),
		LevelPercents: map[int]decimal.Decimal{
			2: decimal.NewFromInt(5),
			3: decimal.NewFromInt(3),
			4: decimal.NewFromInt(2),
			5: decimal.NewFromInt(1),
		},
		PairValue:          decimal.NewFromInt(1000),
		CommissionPerPair:  decimal.NewFromInt(100),
		BinaryDailyCap:     decimal.NewFromInt(50000),
		BinaryEnabled:      true,
		DefaultDailyRate:   decimal.RequireFromString("0.01"),
		DefaultCapMultiple: decimal.NewFromInt(3),
	}
}

// LevelPercent returns the percentage for an upline level, zero when unset
func (s Snapshot) LevelPercent(level int) decimal.Decimal {
	if level == 1 {
		return s.DirectPercent
	}
	if p, ok := s.LevelPercents[level]; ok {
		return p
	}
	return decimal.Zero
}

// Repository defines key/value settings persistence
type Repository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	WithTx(tx pgx.Tx) Repository
}

// Service assembles run snapshots from stored rows over defaults
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(logger *slog.Logger, repo Repository) *Service {
	return &Service{repo: repo, logger: logger}
}

// Load reads all settings rows and overlays them on the defaults. Rows that
// fail to parse are logged and skipped rather than failing the run.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	snap := Defaults()

	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load settings: %w", err)
	}

	for key, value := range rows {
		if err := snap.apply(key, value); err != nil {
			s.logger.Warn("Ignoring unparseable setting", "key", key, "value", value, "error", err)
		}
	}

	return snap, nil
}

func (s *Snapshot) apply(key, value string) error {
	switch key {
	case KeyBinaryEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		s.BinaryEnabled = b
		return nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}

	switch key {
	case KeyDirectPercent:
		s.DirectPercent = d
	case KeyLevel2Percent:
		s.LevelPercents[2] = d
	case KeyLevel3Percent:
		s.LevelPercents[3] = d
	case KeyLevel4Percent:
		s.LevelPercents[4] = d
	case KeyLevel5Percent:
		s.LevelPercents[5] = d
	case KeyPairValue:
		s.PairValue = d
	case KeyCommissionPerPair:
		s.CommissionPerPair = d
	case KeyBinaryDailyCap:
		s.BinaryDailyCap = d
	case KeyDefaultDailyRate:
		s.DefaultDailyRate = d
	case KeyDefaultCapMultiple:
		s.DefaultCapMultiple = d
	default:
		// Unknown keys are inert
	}
	return nil
}
