package categorization

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Job statuses. PENDING rows are claimed by the worker, one at a time.
const (
	JobPending    = "PENDING"
	JobProcessing = "PROCESSING"
	JobDone       = "DONE"
	JobFailed     = "FAILED"
)

// Job is one background categorization request: re-classify every
// uncategorized transaction a user imported.
type Job struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Status      string
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ErrNoPendingJobs is returned by ClaimPending when the queue is empty.
var ErrNoPendingJobs = errors.New("no pending categorization jobs")

// DB is the pgx query surface the repository needs; satisfied by
// *pgxpool.Pool and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists categorization jobs and admin keyword overrides.
type Repository struct {
	db DB
}

// NewRepository creates a categorization repository backed by Postgres.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a PENDING job for the user. Duplicate pending jobs for the
// same user collapse into one.
func (r *Repository) Enqueue(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO categorization_jobs (user_id, status)
		VALUES ($1, $2)
		ON CONFLICT (user_id) WHERE status = 'PENDING' DO UPDATE SET updated_at = now()
		RETURNING id`,
		userID, JobPending,
	).Scan(&id)
	return id, err
}

// ClaimPending atomically moves the oldest PENDING job to PROCESSING and
// returns it. ErrNoPendingJobs when the queue is empty.
func (r *Repository) ClaimPending(ctx context.Context) (Job, error) {
	var j Job
	err := r.db.QueryRow(ctx, `
		UPDATE categorization_jobs
		SET status = $1, attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM categorization_jobs
			WHERE status = $2
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, user_id, status, attempts, last_error, created_at, updated_at, completed_at`,
		JobProcessing, JobPending,
	).Scan(&j.ID, &j.UserID, &j.Status, &j.Attempts, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNoPendingJobs
	}
	return j, err
}

// MarkDone completes a job.
func (r *Repository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE categorization_jobs
		SET status = $2, updated_at = now(), completed_at = now()
		WHERE id = $1`,
		id, JobDone)
	return err
}

// MarkFailed records a failure. Transient failures go back to PENDING for
// one retry; after maxAttempts the job is FAILED permanently and the
// affected rows simply stay uncategorized.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE categorization_jobs
		SET status = CASE WHEN attempts >= $3 THEN $4 ELSE $5 END,
			last_error = $2, updated_at = now()
		WHERE id = $1`,
		id, cause, maxAttempts, JobFailed, JobPending)
	return err
}

// RequeueStale returns PROCESSING jobs older than the cutoff to PENDING.
// Run from the cron sweep; covers workers that died mid-job.
func (r *Repository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE categorization_jobs
		SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3::interval`,
		JobPending, JobProcessing, olderThan.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListKeywords returns admin-defined keyword overrides, highest priority
// first. Layered over BuiltinKeywords when the engine is built.
func (r *Repository) ListKeywords(ctx context.Context) ([]Keyword, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pattern, category, priority
		FROM categorization_keywords
		ORDER BY priority DESC, pattern`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var kw Keyword
		if err := rows.Scan(&kw.Pattern, &kw.Category, &kw.Priority); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// UncategorizedNarration is one imported row awaiting a category.
type UncategorizedNarration struct {
	ID          uuid.UUID
	Description string
}

// ListUncategorized returns the user's transactions with no category yet.
func (r *Repository) ListUncategorized(ctx context.Context, userID uuid.UUID, limit int) ([]UncategorizedNarration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, description
		FROM transactions
		WHERE user_id = $1 AND category = '' AND deleted_at IS NULL
		ORDER BY transaction_date DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UncategorizedNarration
	for rows.Next() {
		var n UncategorizedNarration
		if err := rows.Scan(&n.ID, &n.Description); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetCategory writes a category label onto one transaction.
func (r *Repository) SetCategory(ctx context.Context, txnID uuid.UUID, category string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE transactions SET category = $2, updated_at = now()
		WHERE id = $1 AND category = ''`,
		txnID, category)
	return err
}
