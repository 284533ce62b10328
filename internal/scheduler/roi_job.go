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
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/treasury"
)

// ROIDistributionJob pays each due investment its periodic return. Every
// investment is processed in its own transaction; one bad investment is
// counted and skipped, never aborting the run.
type ROIDistributionJob struct {
	db             *persistence.PostgresDB
	investmentRepo investment.Repository
	ledgerService  *treasury.LedgerService
	outboxRepo     audit.OutboxRepository
	poolSize       int
	logger         *slog.Logger
}

// NewROIDistributionJob creates the daily ROI distribution job
func NewROIDistributionJob(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	investmentRepo investment.Repository,
	ledgerService *treasury.LedgerService,
	outboxRepo audit.OutboxRepository,
	poolSize int,
) *ROIDistributionJob {
	return &ROIDistributionJob{
		db:             db,
		investmentRepo: investmentRepo,
		ledgerService:  ledgerService,
		outboxRepo:     outboxRepo,
		poolSize:       poolSize,
		logger:         logger,
	}
}

// Name returns the job's coordination name
func (j *ROIDistributionJob) Name() string {
	return schedjob.JobDailyROI
}

// Run pays out every due investment through a worker pool
func (j *ROIDistributionJob) Run(ctx context.Context, runID string) (int, int, error) {
	now := time.Now()
	due, err := j.investmentRepo.ListDueIDs(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	if len(due) == 0 {
		return 0, 0, nil
	}

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
	for _, id := range due {
		id := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := j.processInvestment(ctx, id, runID, now); err != nil {
				j.logger.Error("ROI payout failed for investment",
					"investment_id", id.String(),
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

// processInvestment runs one payout cycle for one investment. The row lock
// plus the per-day distribution log make the operation idempotent: a crashed
// run re-processing the same day changes nothing.
func (j *ROIDistributionJob) processInvestment(ctx context.Context, id uuid.UUID, runID string, now time.Time) error {
	return j.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return j.payoutTx(ctx, tx, id, runID, now)
	})
}

// payoutTx applies one investment's payout inside the caller's transaction
func (j *ROIDistributionJob) payoutTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, runID string, now time.Time) error {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	invRepo := j.investmentRepo.WithTx(tx)

	inv, err := invRepo.LockForPayout(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != shared.InvestmentStatusActive || inv.NextPayoutDate.After(now) {
		return nil // Changed since the candidate scan
	}

	already, err := invRepo.HasDistributionOn(ctx, id, day)
	if err != nil {
		return err
	}
	if already {
		return nil // Today's payout was applied by an earlier run
	}

	amount := inv.NextPayout()
	if amount.Sign() > 0 {
		sourceRef := "roi:" + inv.ID.String() + ":" + day.Format("2006-01-02")
		entry, err := j.ledgerService.CreditTx(ctx, tx, treasury.Apply{
			ParticipantID: inv.ParticipantID,
			Wallet:        shared.WalletROI,
			Amount:        amount,
			Reason:        "daily roi payout",
			SourceRef:     sourceRef,
			CorrelationID: runID,
		})
		if err != nil {
			return err
		}

		dist := &investment.Distribution{
			ID:           uuid.New(),
			InvestmentID: inv.ID,
			PayoutDate:   day,
			Amount:       amount,
			LedgerRef:    entry.SourceRef,
			JobRunID:     runID,
			CreatedAt:    time.Now(),
		}
		if err := invRepo.AppendDistribution(ctx, dist); err != nil {
			return err
		}

		inv.TotalPaid = inv.TotalPaid.Add(amount)
		inv.DaysCompleted++
	}
	inv.NextPayoutDate = investment.NextPayoutAfter(inv.NextPayoutDate, inv.Frequency)

	eventType := ""
	switch {
	case inv.CapReached():
		inv.Status = shared.InvestmentStatusCompleted
		completedAt := time.Now()
		inv.CompletedAt = &completedAt
		eventType = audit.EventInvestmentCompleted
	case !now.Before(inv.MaturityDate):
		inv.Status = shared.InvestmentStatusMatured
		eventType = audit.EventInvestmentMatured
	}

	if err := invRepo.Update(ctx, inv); err != nil {
		return err
	}

	if eventType != "" {
		row, err := audit.NewOutboxRow(eventType, "investment", inv.ID.String(), inv.ParticipantID, inv, runID)
		if err != nil {
			return err
		}
		if err := j.outboxRepo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
	}

	return nil
}
