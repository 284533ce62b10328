package service

import (
	"context"
	"log/slog"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/scheduler"
)

// AdminServiceImpl implements the AdminService interface
type AdminServiceImpl struct {
	scheduler *scheduler.DistributionScheduler
	jobRepo   schedjob.Repository
	trailRepo audit.TrailRepository
	logger    *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	logger *slog.Logger,
	sched *scheduler.DistributionScheduler,
	jobRepo schedjob.Repository,
	trailRepo audit.TrailRepository,
) AdminService {
	return &AdminServiceImpl{
		scheduler: sched,
		jobRepo:   jobRepo,
		trailRepo: trailRepo,
		logger:    logger,
	}
}

// RunJob triggers a registered job immediately under the normal run-lock
func (s *AdminServiceImpl) RunJob(ctx context.Context, name string) error {
	s.logger.Info("On-demand job run requested", "job", name)
	return s.scheduler.RunNow(ctx, name)
}

// ListJobs returns all job coordination records
func (s *AdminServiceImpl) ListJobs(ctx context.Context) ([]*schedjob.ScheduledJob, error) {
	return s.jobRepo.ListJobs(ctx)
}

// ListExecutions returns a job's retained run history, most recent first
func (s *AdminServiceImpl) ListExecutions(ctx context.Context, name string) ([]*schedjob.ExecutionRecord, error) {
	return s.jobRepo.ListExecutions(ctx, name)
}

// VerifyAuditChain walks the whole trail in sequence order, recomputing each
// hash against its predecessor, and reports the first divergence found.
func (s *AdminServiceImpl) VerifyAuditChain(ctx context.Context) (*ChainVerification, error) {
	head, err := s.trailRepo.Head(ctx)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return &ChainVerification{EventsChecked: 0}, nil
	}

	events, err := s.trailRepo.ListRange(ctx, 1, head.Sequence)
	if err != nil {
		return nil, err
	}

	result := &ChainVerification{EventsChecked: len(events), Break: audit.VerifyChain(events)}
	if result.Break != nil {
		s.logger.Error("Audit chain verification failed", "break", result.Break.String())
	}
	return result, nil
}
