package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/services/etf"
	"github.com/ternarybob/bigrise/internal/services/industry"
	"github.com/ternarybob/bigrise/internal/services/matcher"
	"github.com/ternarybob/bigrise/internal/services/news"
)

// Job names accepted by RunJob.
const (
	JobIndustry = "industry"
	JobETF      = "etf"
	JobNews     = "news"
	JobMatch    = "match"
	JobAll      = "all"
)

// Runner executes collection jobs. Each run gets a fresh set of services;
// collectors keep no state between runs.
type Runner struct {
	config *common.Config
	logger arbor.ILogger

	// Job implementations, replaceable in tests.
	collectIndustry func(ctx context.Context, date common.RunDate) error
	collectETF      func(ctx context.Context, date common.RunDate) error
	collectNews     func(ctx context.Context, date common.RunDate) error
	runMatch        func(date common.RunDate) error
}

// NewRunner creates a job runner.
func NewRunner(config *common.Config, logger arbor.ILogger) *Runner {
	return &Runner{
		config: config,
		logger: logger,
		collectIndustry: func(ctx context.Context, date common.RunDate) error {
			return industry.NewService(config, logger).Collect(ctx, date)
		},
		collectETF: func(ctx context.Context, date common.RunDate) error {
			return etf.NewService(config, logger).Collect(ctx, date)
		},
		collectNews: func(ctx context.Context, date common.RunDate) error {
			return news.NewService(config, logger).Collect(ctx, date)
		},
		runMatch: func(date common.RunDate) error {
			return matcher.NewService(config, logger).Run(date)
		},
	}
}

// RunJob dispatches a single named job for the run date. newsDate lets the
// scheduler collect news for the previous, fully elapsed day while the rest
// of the run uses the current date.
func (r *Runner) RunJob(ctx context.Context, job string, date, newsDate common.RunDate) error {
	runID := uuid.New().String()
	logger := r.logger
	started := time.Now()

	logger.Info().
		Str("run_id", runID).
		Str("job", job).
		Str("date", date.String()).
		Msg("Run started")

	var err error
	switch job {
	case JobIndustry:
		err = r.collectIndustry(ctx, date)
	case JobETF:
		err = r.collectETF(ctx, date)
	case JobNews:
		err = r.collectNews(ctx, newsDate)
	case JobMatch:
		err = r.runMatch(date)
	case JobAll:
		err = r.runAll(ctx, date, newsDate)
	default:
		err = fmt.Errorf("unknown job %q", job)
	}

	if err != nil {
		logger.Error().
			Str("run_id", runID).
			Str("job", job).
			Str("elapsed", time.Since(started).String()).
			Err(err).
			Msg("Run failed")
		return err
	}

	logger.Info().
		Str("run_id", runID).
		Str("job", job).
		Str("elapsed", time.Since(started).String()).
		Msg("Run complete")
	return nil
}

// runAll executes the three collectors concurrently, then the matcher. Any
// collector failure fails the run and the matcher does not execute.
func (r *Runner) runAll(ctx context.Context, date, newsDate common.RunDate) error {
	collectors := []struct {
		name string
		run  func(context.Context) error
	}{
		{JobIndustry, func(ctx context.Context) error {
			return r.collectIndustry(ctx, date)
		}},
		{JobETF, func(ctx context.Context) error {
			return r.collectETF(ctx, date)
		}},
		{JobNews, func(ctx context.Context) error {
			return r.collectNews(ctx, newsDate)
		}},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(collectors))

	for _, c := range collectors {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errs <- fmt.Errorf("%s collector: %w", name, err)
			}
		}(c.name, c.run)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		// First failure wins; the rest are already logged by their services.
		return err
	}

	return r.runMatch(date)
}
