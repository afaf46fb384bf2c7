package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
)

// Service runs the full pipeline on a cron schedule. A tick that fires while
// the previous run is still active is skipped, not queued.
type Service struct {
	config *common.Config
	runner *Runner
	logger arbor.ILogger
	cron   *cron.Cron

	mu        sync.Mutex
	isRunning bool
	started   bool
}

// NewService creates the cron scheduler around a job runner.
func NewService(config *common.Config, runner *Runner, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		runner: runner,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the schedule and begins ticking.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("scheduler already running")
	}

	spec := s.config.Schedule.Cron
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.logger.Info().Str("cron", spec).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *Service) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.started = false
	s.logger.Info().Msg("Scheduler stopped")
}

// tick runs one scheduled pipeline pass. News is collected for the previous
// day, which has fully elapsed; everything else uses today's date.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous run still active, skipping scheduled run")
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	if err := s.runner.RunJob(ctx, JobAll, common.Today(), common.PreviousDay()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled run failed")
	}
}
