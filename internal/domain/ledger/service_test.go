package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrail/statement-ingest/internal/domain/categorization"
)

// fakeRepo mimics the dedup index: one row per tuple, conflicts silently
// dropped, exactly like ON CONFLICT DO NOTHING.
type fakeRepo struct {
	rows map[string]Transaction
	err  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]Transaction)}
}

func dedupKey(t Transaction) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		t.UserID, t.Description, t.Credit.String(), t.Debit.String(),
		t.TransactionDate.Format(time.RFC3339))
}

func (f *fakeRepo) BulkInsert(_ context.Context, txns []Transaction) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	inserted := 0
	for _, t := range txns {
		key := dedupKey(t)
		if _, dup := f.rows[key]; dup {
			continue
		}
		f.rows[key] = t
		inserted++
	}
	return inserted, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID uuid.UUID, _, _ time.Time) ([]Transaction, error) {
	var out []Transaction
	for _, t := range f.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, userID, txnID uuid.UUID) error {
	for key, t := range f.rows {
		if t.UserID == userID && t.ID == txnID {
			delete(f.rows, key)
			return nil
		}
	}
	return ErrTransactionNotFound
}

type fakeCategorizer struct {
	enqueued   []uuid.UUID
	enqueueErr error
	indexed    []categorization.NarrationDocument
}

func (f *fakeCategorizer) EnqueueJob(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if f.enqueueErr != nil {
		return uuid.Nil, f.enqueueErr
	}
	f.enqueued = append(f.enqueued, userID)
	return uuid.New(), nil
}

func (f *fakeCategorizer) IndexNarrations(docs []categorization.NarrationDocument) {
	f.indexed = append(f.indexed, docs...)
}

func record(desc string, debit, credit float64, day int) Transaction {
	return Transaction{
		TransactionDate: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Description:     desc,
		Debit:           decimal.NewFromFloat(debit),
		Credit:          decimal.NewFromFloat(credit),
	}
}

func TestImport_ReimportIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	userID := uuid.New()

	records := []Transaction{
		record("UPI-SWIGGY-4091", 450, 0, 3),
		record("SALARY JAN", 0, 85000, 1),
		record("ATM WDL", 2000, 0, 5),
	}

	first, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: records})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 0, first.Duplicates)

	// Fresh copies: IDs differ but the dedup tuple is identical.
	again := []Transaction{
		record("UPI-SWIGGY-4091", 450, 0, 3),
		record("SALARY JAN", 0, 85000, 1),
		record("ATM WDL", 2000, 0, 5),
	}
	second, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: again})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Len(t, repo.rows, 3)
}

func TestImport_LargeStatementReimport(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	userID := uuid.New()

	build := func() []Transaction {
		faker := gofakeit.New(7)
		records := make([]Transaction, 0, 1200)
		for i := 0; i < 1200; i++ {
			records = append(records, Transaction{
				TransactionDate: time.Date(2024, 1, 1+i%28, 0, 0, 0, 0, time.UTC),
				Description:     fmt.Sprintf("UPI-%s-%06d", faker.Company(), i),
				Debit:           decimal.NewFromInt(int64(100 + i)),
				Credit:          decimal.Zero,
			})
		}
		return records
	}

	first, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: build()})
	require.NoError(t, err)
	assert.Equal(t, 1200, first.Inserted)

	second, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: build()})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1200, second.Duplicates)
}

func TestImport_OverlappingPeriodsYieldUnion(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	userID := uuid.New()

	janFeb := []Transaction{
		record("RENT JAN", 15000, 0, 2),
		record("UPI-GROCERY-11", 900, 0, 20),
		record("SHARED FEB ROW", 120, 0, 28),
	}
	febMar := []Transaction{
		record("SHARED FEB ROW", 120, 0, 28),
		record("RENT FEB", 15000, 0, 30),
	}

	res1, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: janFeb})
	require.NoError(t, err)
	assert.Equal(t, 3, res1.Inserted)

	res2, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: febMar})
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Inserted)
	assert.Equal(t, 1, res2.Duplicates)

	all, err := svc.List(context.Background(), userID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestImport_SameRowDifferentUsersBothLand(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())

	row := record("UPI-SWIGGY-4091", 450, 0, 3)

	res1, err := svc.Import(context.Background(), ImportInput{UserID: uuid.New(), Records: []Transaction{row}})
	require.NoError(t, err)
	res2, err := svc.Import(context.Background(), ImportInput{UserID: uuid.New(), Records: []Transaction{row}})
	require.NoError(t, err)

	assert.Equal(t, 1, res1.Inserted)
	assert.Equal(t, 1, res2.Inserted)
}

func TestImport_BalanceValidationBlocks(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())

	bad := record("UPI-SWIGGY-4091", 450, 0, 3)
	bad.BalanceMismatch = true

	_, err := svc.Import(context.Background(), ImportInput{
		UserID:          uuid.New(),
		Records:         []Transaction{bad},
		ValidateBalance: true,
	})
	require.ErrorIs(t, err, ErrBalanceValidation)
	assert.Empty(t, repo.rows, "nothing may be written when validation blocks")
}

func TestImport_MismatchWithoutValidationImports(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())

	bad := record("UPI-SWIGGY-4091", 450, 0, 3)
	bad.BalanceMismatch = true

	res, err := svc.Import(context.Background(), ImportInput{
		UserID:  uuid.New(),
		Records: []Transaction{bad},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.BalanceWarnings)
}

func TestImport_EmptyRecords(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, slog.Default())
	_, err := svc.Import(context.Background(), ImportInput{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestImport_AssignsTypeAndIDs(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	userID := uuid.New()

	records := []Transaction{
		record("SALARY JAN", 0, 85000, 1),
		record("UPI-SWIGGY-4091", 450, 0, 3),
	}
	_, err := svc.Import(context.Background(), ImportInput{UserID: userID, Records: records})
	require.NoError(t, err)

	for _, t2 := range repo.rows {
		assert.NotEqual(t, uuid.Nil, t2.ID)
		assert.Equal(t, userID, t2.UserID)
		if t2.Credit.IsPositive() {
			assert.Equal(t, TypeIncome, t2.Type)
		} else {
			assert.Equal(t, TypeExpense, t2.Type)
		}
	}
}

func TestImport_BackgroundCategorizationDispatch(t *testing.T) {
	t.Run("enqueues when asked", func(t *testing.T) {
		cat := &fakeCategorizer{}
		svc := NewService(newFakeRepo(), cat, nil, slog.Default())
		userID := uuid.New()

		_, err := svc.Import(context.Background(), ImportInput{
			UserID:                 userID,
			Records:                []Transaction{record("UPI-SWIGGY-4091", 450, 0, 3)},
			UseAICategorization:    true,
			CategorizeInBackground: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{userID}, cat.enqueued)
		assert.Len(t, cat.indexed, 1)
	})

	t.Run("skips dispatch when background is off", func(t *testing.T) {
		cat := &fakeCategorizer{}
		svc := NewService(newFakeRepo(), cat, nil, slog.Default())

		_, err := svc.Import(context.Background(), ImportInput{
			UserID:              uuid.New(),
			Records:             []Transaction{record("UPI-SWIGGY-4091", 450, 0, 3)},
			UseAICategorization: true,
		})
		require.NoError(t, err)
		assert.Empty(t, cat.enqueued)
		assert.Len(t, cat.indexed, 1, "narrations are still indexed")
	})

	t.Run("enqueue failure never fails the import", func(t *testing.T) {
		cat := &fakeCategorizer{enqueueErr: assert.AnError}
		svc := NewService(newFakeRepo(), cat, nil, slog.Default())

		res, err := svc.Import(context.Background(), ImportInput{
			UserID:                 uuid.New(),
			Records:                []Transaction{record("UPI-SWIGGY-4091", 450, 0, 3)},
			UseAICategorization:    true,
			CategorizeInBackground: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Inserted)
	})

	t.Run("nil categorizer is fine", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, slog.Default())
		_, err := svc.Import(context.Background(), ImportInput{
			UserID:                 uuid.New(),
			Records:                []Transaction{record("UPI-SWIGGY-4091", 450, 0, 3)},
			UseAICategorization:    true,
			CategorizeInBackground: true,
		})
		require.NoError(t, err)
	})
}

func TestDelete_MissingRow(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, slog.Default())
	err := svc.Delete(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
