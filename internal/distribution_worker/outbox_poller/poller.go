// Package outbox_poller relays committed audit events from the relational
// outbox to the hash-chained trail store.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bkcjanta/roi-project/internal/config"
	"github.com/bkcjanta/roi-project/internal/domain/audit"
)

// Poller relays pending audit outbox rows in commit order. Relay order
// determines chain order, so a single poller instance owns the relay.
type Poller struct {
	outboxRepo       audit.OutboxRepository
	trailRepo        audit.TrailRepository
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// NewPoller creates the audit relay poller
func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo audit.OutboxRepository,
	trailRepo audit.TrailRepository,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		trailRepo:        trailRepo,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until the context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting audit outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Audit outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingRows(ctx); err != nil {
				p.logger.Error("Error during batch relay of pending audit rows", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingRows(ctx context.Context) error {
	rows, err := p.outboxRepo.FetchPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending audit rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	p.logger.Info("Fetched pending audit rows", "count", len(rows))

	for _, row := range rows {
		logger := p.logger
		if row.CorrelationID != "" {
			logger = p.logger.With("correlation_id", row.CorrelationID)
		}

		if err := p.trailRepo.Append(ctx, row.ToEvent()); err != nil {
			logger.Error("Failed to append audit event to trail",
				"outbox_id", row.ID.String(),
				"event_type", row.EventType,
				"current_attempts", row.Attempts,
				"error", err,
			)

			if row.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for audit row, marking FAILED",
					"outbox_id", row.ID.String(),
					"attempts_made", row.Attempts+1,
				)
				if errMark := p.outboxRepo.MarkFailed(ctx, row.ID, err.Error()); errMark != nil {
					logger.Error("Failed to mark audit row failed", "outbox_id", row.ID.String(), "error", errMark)
				}
			} else {
				// Leave pending; the next tick retries with the attempt recorded
				if errMark := p.outboxRepo.RecordAttempt(ctx, row.ID, err.Error()); errMark != nil {
					logger.Error("Failed to record audit relay attempt", "outbox_id", row.ID.String(), "error", errMark)
				}
			}
			continue
		}

		if err := p.outboxRepo.MarkRelayed(ctx, row.ID); err != nil {
			logger.Error("Failed to mark audit row relayed", "outbox_id", row.ID.String(), "error", err)
			continue
		}
		logger.Info("Relayed audit event to trail", "outbox_id", row.ID.String(), "event_type", row.EventType)
	}
	return nil
}
