package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/spendwise/pkg/observability"
)

// SessionSweeper removes expired sessions
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SchedulerConfig holds the housekeeping schedules in cron syntax
type SchedulerConfig struct {
	// AutoPurge enables the retention purge job
	AutoPurge     bool
	PurgeSchedule string
	RetentionDays int

	// SweepSchedule runs the session sweep. Empty disables it.
	SweepSchedule string

	// JobTimeout bounds each run (default 5 minutes)
	JobTimeout time.Duration
}

// Scheduler runs retention purges and session sweeps in the background
type Scheduler struct {
	cron    *cron.Cron
	config  SchedulerConfig
	service *Service
	sweeper SessionSweeper
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewScheduler registers the configured jobs. It does not start them.
func NewScheduler(config SchedulerConfig, service *Service, sweeper SessionSweeper, logger *observability.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}

	s := &Scheduler{
		cron:    cron.New(),
		config:  config,
		service: service,
		sweeper: sweeper,
		logger:  logger,
		metrics: metrics,
	}

	if config.AutoPurge {
		if _, err := s.cron.AddFunc(config.PurgeSchedule, s.purgeJob); err != nil {
			return nil, fmt.Errorf("failed to schedule activity purge: %w", err)
		}
	}

	if config.SweepSchedule != "" && sweeper != nil {
		if _, err := s.cron.AddFunc(config.SweepSchedule, s.sweepJob); err != nil {
			return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
		}
	}

	return s, nil
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"auto_purge":     s.config.AutoPurge,
		"purge_schedule": s.config.PurgeSchedule,
		"sweep_schedule": s.config.SweepSchedule,
	}).Info("Housekeeping scheduler started")
}

// Stop prevents new runs and waits for running jobs or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) purgeJob() {
	defer observability.RecoverPanic(s.logger, "activity retention purge")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	if _, err := s.RunPurge(ctx); err != nil {
		s.logger.WithError(err).Error("Activity retention purge failed")
	}
}

func (s *Scheduler) sweepJob() {
	defer observability.RecoverPanic(s.logger, "session sweep")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	if _, err := s.RunSweep(ctx); err != nil {
		s.logger.WithError(err).Error("Session sweep failed")
	}
}

// RunPurge performs one retention purge immediately
func (s *Scheduler) RunPurge(ctx context.Context) (int64, error) {
	return s.service.purge(ctx, s.config.RetentionDays)
}

// RunSweep deletes expired sessions once
func (s *Scheduler) RunSweep(ctx context.Context) (int64, error) {
	deleted, err := s.sweeper.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.SessionsSwept.Add(float64(deleted))
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Swept expired sessions")
	}
	return deleted, nil
}
