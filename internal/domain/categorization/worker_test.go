package categorization

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobRows(id, userID uuid.UUID, status string, attempts int) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "user_id", "status", "attempts", "last_error",
		"created_at", "updated_at", "completed_at",
	}).AddRow(id, userID, status, attempts, nil, now, now, nil)
}

func TestWorker_ProcessOne_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	userID := uuid.New()
	txnID := uuid.New()

	mock.ExpectQuery("UPDATE categorization_jobs").
		WithArgs(JobProcessing, JobPending).
		WillReturnRows(jobRows(jobID, userID, JobProcessing, 1))
	mock.ExpectQuery("SELECT id, description").
		WithArgs(userID, 500).
		WillReturnRows(pgxmock.NewRows([]string{"id", "description"}).
			AddRow(txnID, "UPI-SWIGGY-ORDER-4091"))
	mock.ExpectExec("UPDATE transactions SET category").
		WithArgs(txnID, "Food").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE categorization_jobs").
		WithArgs(jobID, JobDone).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	w := NewWorker(NewRepository(mock), NewEngine(BuiltinKeywords()), 10, slog.Default())
	require.NoError(t, w.ProcessOne(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_ProcessOne_TransientFailureRequeues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("UPDATE categorization_jobs").
		WithArgs(JobProcessing, JobPending).
		WillReturnRows(jobRows(jobID, userID, JobProcessing, 1))
	mock.ExpectQuery("SELECT id, description").
		WithArgs(userID, 500).
		WillReturnError(assert.AnError)
	mock.ExpectExec("UPDATE categorization_jobs").
		WithArgs(jobID, assert.AnError.Error(), maxJobAttempts, JobFailed, JobPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	w := NewWorker(NewRepository(mock), NewEngine(nil), 10, slog.Default())
	require.NoError(t, w.ProcessOne(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_ProcessOne_EmptyQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE categorization_jobs").
		WithArgs(JobProcessing, JobPending).
		WillReturnError(pgx.ErrNoRows)

	w := NewWorker(NewRepository(mock), NewEngine(nil), 10, slog.Default())
	err = w.ProcessOne(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingJobs)
}

func TestWorker_UnclassifiableRowsDoNotSpin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jobID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery("UPDATE categorization_jobs").
		WithArgs(JobProcessing, JobPending).
		WillReturnRows(jobRows(jobID, userID, JobProcessing, 1))
	mock.ExpectQuery("SELECT id, description").
		WithArgs(userID, 500).
		WillReturnRows(pgxmock.NewRows([]string{"id", "description"}).
			AddRow(uuid.New(), "TOTALLY OPAQUE NARRATION"))
	mock.ExpectExec("UPDATE categorization_jobs").
		WithArgs(jobID, JobDone).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	w := NewWorker(NewRepository(mock), NewEngine(BuiltinKeywords()), 10, slog.Default())
	require.NoError(t, w.ProcessOne(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RequeueStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE categorization_jobs").
		WithArgs(JobPending, JobProcessing, (10 * time.Minute).String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := NewRepository(mock).RequeueStale(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
