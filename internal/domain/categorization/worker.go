package categorization

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// maxJobAttempts bounds retries: the first attempt plus one retry. A job
// that fails twice is FAILED permanently and its rows stay uncategorized.
const maxJobAttempts = 2

// Worker drains the categorization job queue out-of-band from imports. One
// claim per tick, rate-limited so a burst of imports cannot saturate the
// database with classification UPDATEs.
type Worker struct {
	repo    *Repository
	engine  *Engine
	limiter *rate.Limiter
	logger  *slog.Logger

	batchSize int
}

// NewWorker creates a queue worker. jobsPerSecond throttles claims.
func NewWorker(repo *Repository, engine *Engine, jobsPerSecond float64, logger *slog.Logger) *Worker {
	if jobsPerSecond <= 0 {
		jobsPerSecond = 1
	}
	return &Worker{
		repo:      repo,
		engine:    engine,
		limiter:   rate.NewLimiter(rate.Limit(jobsPerSecond), 1),
		logger:    logger,
		batchSize: 500,
	}
}

// Run polls until the context is cancelled. Blocking; start in a goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		job, err := w.repo.ClaimPending(ctx)
		if errors.Is(err, ErrNoPendingJobs) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim categorization job", slog.Any("error", err))
			continue
		}

		w.process(ctx, job)
	}
}

// ProcessOne claims and processes a single job. Used by tests and by the
// synchronous fallback when background dispatch is disabled.
func (w *Worker) ProcessOne(ctx context.Context) error {
	job, err := w.repo.ClaimPending(ctx)
	if err != nil {
		return err
	}
	w.process(ctx, job)
	return nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", job.UserID.String()),
		slog.Int("attempt", job.Attempts),
	)

	categorized, err := w.categorizeUser(ctx, job)
	if err != nil {
		log.Warn("categorization job failed", slog.Any("error", err))
		if mErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), maxJobAttempts); mErr != nil {
			log.Error("mark job failed", slog.Any("error", mErr))
		}
		return
	}

	if err := w.repo.MarkDone(ctx, job.ID); err != nil {
		log.Error("mark job done", slog.Any("error", err))
		return
	}
	log.Info("categorization job done", slog.Int("categorized", categorized))
}

func (w *Worker) categorizeUser(ctx context.Context, job Job) (int, error) {
	total := 0
	for {
		rows, err := w.repo.ListUncategorized(ctx, job.UserID, w.batchSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		progressed := false
		for _, row := range rows {
			category := w.engine.Classify(row.Description)
			if category == Uncategorized {
				continue
			}
			if err := w.repo.SetCategory(ctx, row.ID, category); err != nil {
				return total, err
			}
			total++
			progressed = true
		}
		// Everything left in this batch is unclassifiable; stop rather
		// than spin on the same rows.
		if !progressed || len(rows) < w.batchSize {
			return total, nil
		}
	}
}
