// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// JobSweeper requeues categorization jobs stuck in PROCESSING.
type JobSweeper interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ConfigRefresher reloads the bank parser config snapshot from the database.
type ConfigRefresher interface {
	Refresh(ctx context.Context) error
}

// KeywordRefresher reloads admin categorization keywords into the engine.
type KeywordRefresher interface {
	RefreshKeywords(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron            *cron.Cron
	sweeper         JobSweeper
	configs         ConfigRefresher
	keywords        KeywordRefresher
	staleAfter      time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(sweeper JobSweeper, configs ConfigRefresher, keywords KeywordRefresher, staleAfter, refreshInterval time.Duration, logger *slog.Logger) *Scheduler {
	// Standard 5-field format, no seconds
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:            c,
		sweeper:         sweeper,
		configs:         configs,
		keywords:        keywords,
		staleAfter:      staleAfter,
		refreshInterval: refreshInterval,
		logger:          logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Stale job sweep: every 5 minutes
	if _, err := s.cron.AddFunc("*/5 * * * *", s.sweepStaleJobs); err != nil {
		return err
	}

	// Config and keyword refresh at the configured interval
	every := cron.Every(s.refreshInterval)
	s.cron.Schedule(every, cron.FuncJob(s.refreshConfigs))

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the refresh jobs (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepStaleJobs()
	go s.refreshConfigs()
}

// sweepStaleJobs returns jobs abandoned by a crashed worker to the queue.
func (s *Scheduler) sweepStaleJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	requeued, err := s.sweeper.RequeueStale(ctx, s.staleAfter)
	if err != nil {
		s.logger.Error("stale job sweep failed", slog.Any("error", err))
		return
	}
	if requeued > 0 {
		s.logger.Info("requeued stale categorization jobs",
			slog.Int64("count", requeued),
		)
	}
}

// refreshConfigs reloads the bank parser snapshot and admin keywords so
// handler requests keep serving the previous snapshot until the swap.
func (s *Scheduler) refreshConfigs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.configs.Refresh(ctx); err != nil {
		s.logger.Warn("bank config refresh failed", slog.Any("error", err))
	}
	if err := s.keywords.RefreshKeywords(ctx); err != nil {
		s.logger.Warn("keyword refresh failed", slog.Any("error", err))
	}
}
