package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DistributionScheduler triggers the distribution jobs on their cron
// schedules and supports on-demand runs through the admin API. Every
// trigger path goes through the locked runner, so a manual run and a
// cron run can never execute the same job concurrently.
type DistributionScheduler struct {
	cron   *cron.Cron
	runner *LockedRunner
	jobs   map[string]Job
	logger *slog.Logger
}

// New creates a scheduler; jobs are registered with Register before Start
func New(logger *slog.Logger, runner *LockedRunner) *DistributionScheduler {
	return &DistributionScheduler{
		cron:   cron.New(),
		runner: runner,
		jobs:   make(map[string]Job),
		logger: logger,
	}
}

// Register binds a job to a cron schedule (standard 5-field expressions)
func (s *DistributionScheduler) Register(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.runner.Execute(context.Background(), job); err != nil {
			s.logger.Error("Scheduled job run failed", "job", job.Name(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.jobs[job.Name()] = job
	s.logger.Info("Registered scheduled job", "job", job.Name(), "schedule", schedule)
	return nil
}

// Start begins cron triggering
func (s *DistributionScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Distribution scheduler started")
}

// Stop halts triggering and waits for in-flight runs started by cron
func (s *DistributionScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Distribution scheduler stopped")
}

// RunNow executes a registered job immediately under the normal run-lock
func (s *DistributionScheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	return s.runner.Execute(ctx, job)
}

// JobNames returns the registered job names
func (s *DistributionScheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
