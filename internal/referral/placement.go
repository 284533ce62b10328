// Package referral implements the two referral structures: upline chain
// construction and binary tree placement, volume propagation up the tree, and
// the commission engine that reacts to investment events.
package referral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
)

// maxTreeIterations bounds every tree walk. Hitting the ceiling means the
// placement data is corrupted or cyclic, never a legitimately deep tree.
const maxTreeIterations = 1000

// TreePlacementService handles upline chain snapshots, binary slot selection
// and volume propagation.
type TreePlacementService struct {
	db              *persistence.PostgresDB
	participantRepo participant.Repository
	eventLog        shared.VolumeEventLog
	logger          *slog.Logger
}

// NewTreePlacementService creates a new tree placement service
func NewTreePlacementService(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	participantRepo participant.Repository,
	eventLog shared.VolumeEventLog,
) *TreePlacementService {
	return &TreePlacementService{
		db:              db,
		participantRepo: participantRepo,
		eventLog:        eventLog,
		logger:          logger,
	}
}

// BuildUplineChain derives a new member's frozen sponsor chain from the
// sponsor's own stored chain: the sponsor becomes level 1 and each of the
// sponsor's ancestors shifts one level deeper, truncated at the maximum.
// No tree walk is needed because chains are immutable once written.
func (s *TreePlacementService) BuildUplineChain(sponsor *participant.Participant) []participant.UplineEntry {
	chain := make([]participant.UplineEntry, 0, participant.MaxUplineLevels)
	chain = append(chain, participant.UplineEntry{ParticipantID: sponsor.ID, Level: 1})

	for _, entry := range sponsor.UplineChain {
		if entry.Level+1 > participant.MaxUplineLevels {
			break
		}
		chain = append(chain, participant.UplineEntry{
			ParticipantID: entry.ParticipantID,
			Level:         entry.Level + 1,
		})
	}

	return chain
}

// FindBinaryPlacement selects the slot for a new member: the sponsor's direct
// left, then direct right, then breadth-first spillover through the sponsor's
// subtree visiting each node's left slot before its right, shallowest level
// first, in insertion order.
func (s *TreePlacementService) FindBinaryPlacement(ctx context.Context, sponsor *participant.Participant) (participant.Placement, error) {
	queue := []uuid.UUID{sponsor.ID}

	for i := 0; i < maxTreeIterations && len(queue) > 0; i++ {
		parentID := queue[0]
		queue = queue[1:]

		for _, position := range []shared.Position{shared.PositionLeft, shared.PositionRight} {
			child, err := s.participantRepo.GetChild(ctx, parentID, position)
			if err != nil {
				return participant.Placement{}, fmt.Errorf("failed to inspect slot: %w", err)
			}
			if child == nil {
				return participant.Placement{ParentID: parentID, Position: position}, nil
			}
			queue = append(queue, child.ID)
		}
	}

	return participant.Placement{}, participant.TreeIntegrityError{
		ParticipantID: sponsor.ID,
		Reason:        "no open slot found within iteration ceiling",
	}
}

// IncrementUplineTeamCounts bumps the per-level team counters of every
// ancestor in a new member's chain.
func (s *TreePlacementService) IncrementUplineTeamCounts(ctx context.Context, chain []participant.UplineEntry) error {
	for _, entry := range chain {
		if err := s.participantRepo.IncrementTeamCount(ctx, entry.ParticipantID, entry.Level); err != nil {
			return fmt.Errorf("failed to increment team count at level %d: %w", entry.Level, err)
		}
	}
	return nil
}

// IncrementChildCounts bumps the left/right member counts of every binary
// ancestor of a newly placed member. The credited leg at each ancestor is the
// position of the node the walk arrived from, recomputed at every step.
func (s *TreePlacementService) IncrementChildCounts(ctx context.Context, placed *participant.Participant) error {
	current := placed
	for i := 0; i < maxTreeIterations; i++ {
		if current.IsRoot() {
			return nil
		}

		if err := s.participantRepo.IncrementChildCount(ctx, current.BinaryParentID, current.BinaryPosition); err != nil {
			return err
		}

		parent, err := s.participantRepo.GetByID(ctx, current.BinaryParentID)
		if err != nil {
			s.logger.Warn("Binary parent missing during count propagation",
				"participant_id", current.ID.String(),
				"parent_id", current.BinaryParentID.String(),
			)
			return nil
		}
		current = parent
	}

	return participant.TreeIntegrityError{
		ParticipantID: placed.ID,
		Reason:        "count propagation exceeded iteration ceiling",
	}
}

// ApplyVolumeEvent propagates one investment event's volume in a single
// transaction claimed by the event ID. A redelivered event whose first walk
// only partially committed starts over from zero credits; a redelivered event
// whose walk committed is skipped entirely. No ancestor is ever credited twice
// for the same event.
func (s *TreePlacementService) ApplyVolumeEvent(ctx context.Context, event shared.VolumeEvent) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.ApplyVolumeEventTx(ctx, tx, event)
	})
}

// ApplyVolumeEventTx composes the event application into the caller's
// transaction.
func (s *TreePlacementService) ApplyVolumeEventTx(ctx context.Context, tx pgx.Tx, event shared.VolumeEvent) error {
	fresh, err := s.eventLog.WithTx(tx).MarkApplied(ctx, event.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		s.logger.Info("Volume event already applied, skipping",
			"event_id", event.EventID.String(),
			"participant_id", event.ParticipantID.String(),
		)
		return nil
	}

	return s.propagateVolume(ctx, s.participantRepo.WithTx(tx), event.ParticipantID, event.Amount)
}

// PropagateVolumeUpline credits investment volume to the matching leg of every
// binary ancestor of the origin. Callers handling redeliverable events must go
// through ApplyVolumeEvent instead.
func (s *TreePlacementService) PropagateVolumeUpline(ctx context.Context, originID uuid.UUID, amount decimal.Decimal) error {
	return s.propagateVolume(ctx, s.participantRepo, originID, amount)
}

// propagateVolume walks from the origin to the root. Each ancestor's credited
// leg is the position of the child the walk arrived from, so a node sitting in
// its parent's right slot adds to the parent's right leg even when the volume
// originated deep in a left subtree below it. Increments are atomic; a missing
// ancestor ends the walk without failing the whole propagation.
func (s *TreePlacementService) propagateVolume(ctx context.Context, repo participant.Repository, originID uuid.UUID, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("volume must be positive")
	}

	current, err := repo.GetByID(ctx, originID)
	if err != nil {
		return err
	}

	for i := 0; i < maxTreeIterations; i++ {
		if current.IsRoot() {
			return nil
		}

		if err := repo.AddLegBusiness(ctx, current.BinaryParentID, current.BinaryPosition, amount); err != nil {
			return err
		}

		parent, err := repo.GetByID(ctx, current.BinaryParentID)
		if err != nil {
			s.logger.Warn("Binary parent missing during volume propagation",
				"participant_id", current.ID.String(),
				"parent_id", current.BinaryParentID.String(),
			)
			return nil
		}
		current = parent
	}

	return participant.TreeIntegrityError{
		ParticipantID: originID,
		Reason:        "volume propagation exceeded iteration ceiling",
	}
}
