package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/panjf2000/ants/v2"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/pairing"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/referral"
	"github.com/bkcjanta/roi-project/internal/settings"
)

// BinaryPairingJob closes one pairing cycle per participant per day: matching
// leg volume into pairs, paying the capped commission, and installing the
// carry-forward. Participants without a single full pair are left completely
// untouched.
type BinaryPairingJob struct {
	db              *persistence.PostgresDB
	participantRepo participant.Repository
	pairingRepo     pairing.Repository
	engine          *referral.CommissionEngine
	settingsService *settings.Service
	outboxRepo      audit.OutboxRepository
	poolSize        int
	logger          *slog.Logger
}

// NewBinaryPairingJob creates the daily binary pairing job
func NewBinaryPairingJob(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	participantRepo participant.Repository,
	pairingRepo pairing.Repository,
	engine *referral.CommissionEngine,
	settingsService *settings.Service,
	outboxRepo audit.OutboxRepository,
	poolSize int,
) *BinaryPairingJob {
	return &BinaryPairingJob{
		db:              db,
		participantRepo: participantRepo,
		pairingRepo:     pairingRepo,
		engine:          engine,
		settingsService: settingsService,
		outboxRepo:      outboxRepo,
		poolSize:        poolSize,
		logger:          logger,
	}
}

// Name returns the job's coordination name
func (j *BinaryPairingJob) Name() string {
	return schedjob.JobBinaryPairing
}

// Run pairs every participant holding volume, under one settings snapshot
func (j *BinaryPairingJob) Run(ctx context.Context, runID string) (int, int, error) {
	snap, err := j.settingsService.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	if !snap.BinaryEnabled {
		j.logger.Info("Binary pairing disabled by settings, skipping run", "run_id", runID)
		return 0, 0, nil
	}

	candidates, err := j.participantRepo.ListWithVolume(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	cfg := pairing.Config{
		PairValue:         snap.PairValue,
		CommissionPerPair: snap.CommissionPerPair,
		DailyCap:          snap.BinaryDailyCap,
	}
	now := time.Now()
	cycleDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	pool, err := ants.NewPool(j.poolSize)
	if err != nil {
		return 0, 0, err
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		processed atomic.Int64
		failed    atomic.Int64
	)
	for _, id := range candidates {
		id := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := j.processParticipant(ctx, id, cycleDate, cfg, runID); err != nil {
				j.logger.Error("Pairing failed for participant",
					"participant_id", id.String(),
					"run_id", runID,
					"error", err,
				)
				failed.Add(1)
				return
			}
			processed.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
		}
	}
	wg.Wait()

	return int(processed.Load()), int(failed.Load()), nil
}

// processParticipant closes one participant's cycle in one transaction. The
// per-day cycle record is the replay guard; a matched cycle commits counter
// reset, cycle record, commission, and ledger credit atomically.
func (j *BinaryPairingJob) processParticipant(ctx context.Context, id uuid.UUID, cycleDate time.Time, cfg pairing.Config, runID string) error {
	return j.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return j.pairTx(ctx, tx, id, cycleDate, cfg, runID)
	})
}

// pairTx closes one participant's cycle inside the caller's transaction
func (j *BinaryPairingJob) pairTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, cycleDate time.Time, cfg pairing.Config, runID string) error {
	participantRepo := j.participantRepo.WithTx(tx)
	pairingRepo := j.pairingRepo.WithTx(tx)

	p, err := participantRepo.LockForPairing(ctx, id)
	if err != nil {
		return err
	}

	existing, err := pairingRepo.GetByParticipantAndDate(ctx, id, cycleDate)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil // Cycle already closed today
	}

	team := pairing.BinaryVolumes{
		LeftBusiness:  p.BinaryTeam.LeftBusiness,
		RightBusiness: p.BinaryTeam.RightBusiness,
		CarryLeft:     p.BinaryTeam.CarryLeft,
		CarryRight:    p.BinaryTeam.CarryRight,
	}
	res := pairing.Calculate(team, cfg)
	if !res.Matched() {
		return nil // No pair formed: counters stay exactly as they are
	}

	cycle := pairing.NewCycle(id, cycleDate, team, cfg, res)
	if err := pairingRepo.Create(ctx, cycle); err != nil {
		return err
	}

	if err := participantRepo.ApplyPairingResult(ctx, id, res.CarryLeft, res.CarryRight, int(res.Pairs)); err != nil {
		return err
	}

	c, err := j.engine.PayBinaryCommission(ctx, tx, id, cycle.ID, res.FinalCommission, res.UsedVolume, runID)
	if err != nil {
		return err
	}
	if err := pairingRepo.MarkPaid(ctx, cycle.ID, c.ID); err != nil {
		return err
	}
	cycle.CommissionID = c.ID
	cycle.Status = pairing.CycleStatusPaid

	row, err := audit.NewOutboxRow(audit.EventPairingCycleClosed, "pairing_cycle", cycle.ID.String(), id, cycle, runID)
	if err != nil {
		return err
	}
	return j.outboxRepo.WithTx(tx).Create(ctx, row)
}
