package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
	"github.com/bkcjanta/roi-project/internal/domain/wallet"
	"github.com/bkcjanta/roi-project/internal/platform/persistence"
	"github.com/bkcjanta/roi-project/internal/referral"
)

// EnrollmentServiceImpl implements the EnrollmentService interface
type EnrollmentServiceImpl struct {
	db              *persistence.PostgresDB
	participantRepo participant.Repository
	walletRepo      wallet.Repository
	outboxRepo      audit.OutboxRepository
	placement       *referral.TreePlacementService
	logger          *slog.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	participantRepo participant.Repository,
	walletRepo wallet.Repository,
	outboxRepo audit.OutboxRepository,
	placement *referral.TreePlacementService,
) EnrollmentService {
	return &EnrollmentServiceImpl{
		db:              db,
		participantRepo: participantRepo,
		walletRepo:      walletRepo,
		outboxRepo:      outboxRepo,
		placement:       placement,
		logger:          logger,
	}
}

// Enroll creates a participant, snapshots its upline chain from the sponsor's
// stored chain, places it in the first open binary slot under the sponsor, and
// creates the wallet. Participant and wallet rows commit in one transaction;
// counter propagation runs after the commit because every increment is an
// independent atomic statement.
func (s *EnrollmentServiceImpl) Enroll(ctx context.Context, referralCode, sponsorCode, correlationID string) (*participant.Participant, error) {
	if _, err := s.participantRepo.GetByReferralCode(ctx, referralCode); err == nil {
		return nil, participant.ErrDuplicateReferralCode
	} else if !errors.Is(err, participant.ErrSponsorNotFound) {
		return nil, err
	}

	p, err := participant.New(referralCode)
	if err != nil {
		return nil, err
	}

	var sponsor *participant.Participant
	if sponsorCode != "" {
		sponsor, err = s.participantRepo.GetByReferralCode(ctx, sponsorCode)
		if err != nil {
			return nil, err
		}

		p.SponsorID = sponsor.ID
		p.UplineChain = s.placement.BuildUplineChain(sponsor)

		placement, err := s.placement.FindBinaryPlacement(ctx, sponsor)
		if err != nil {
			return nil, err
		}
		p.BinaryParentID = placement.ParentID
		p.BinaryPosition = placement.Position
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.participantRepo.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}
		if err := s.walletRepo.WithTx(tx).Create(ctx, wallet.New(p.ID)); err != nil {
			return err
		}

		row, err := audit.NewOutboxRow(audit.EventParticipantEnrolled, "participant", p.ID.String(), p.ID, p, correlationID)
		if err != nil {
			return err
		}
		return s.outboxRepo.WithTx(tx).Create(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	if sponsor != nil {
		if err := s.placement.IncrementChildCounts(ctx, p); err != nil {
			s.logger.Error("Child count propagation failed after enrollment",
				"participant_id", p.ID.String(),
				"error", err,
			)
		}
		if err := s.placement.IncrementUplineTeamCounts(ctx, p.UplineChain); err != nil {
			s.logger.Error("Team count propagation failed after enrollment",
				"participant_id", p.ID.String(),
				"error", err,
			)
		}
	}

	s.logger.Info("Participant enrolled",
		"participant_id", p.ID.String(),
		"referral_code", referralCode,
		"sponsor_code", sponsorCode,
	)
	return p, nil
}

// GetParticipant retrieves a participant by its ID
func (s *EnrollmentServiceImpl) GetParticipant(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	return s.participantRepo.GetByID(ctx, id)
}

// GetTree returns a participant with the occupants of both binary slots
func (s *EnrollmentServiceImpl) GetTree(ctx context.Context, id uuid.UUID) (*TreeView, error) {
	p, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	left, err := s.participantRepo.GetChild(ctx, id, shared.PositionLeft)
	if err != nil {
		return nil, err
	}
	right, err := s.participantRepo.GetChild(ctx, id, shared.PositionRight)
	if err != nil {
		return nil, err
	}

	return &TreeView{Participant: p, LeftChild: left, RightChild: right}, nil
}

// GetUpline returns the frozen sponsor chain, level 1 first
func (s *EnrollmentServiceImpl) GetUpline(ctx context.Context, id uuid.UUID) ([]participant.UplineEntry, error) {
	p, err := s.participantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.UplineChain, nil
}
