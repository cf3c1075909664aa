package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txnFixture(userID uuid.UUID, desc string, debit float64) Transaction {
	return Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		TransactionDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Description:     desc,
		Debit:           decimal.NewFromFloat(debit),
		Credit:          decimal.Zero,
		Type:            TypeExpense,
		Currency:        "INR",
	}
}

func TestBulkInsert_CountsOnlyFreshRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	txns := []Transaction{
		txnFixture(userID, "UPI-SWIGGY-4091", 450),
		txnFixture(userID, "ATM WDL", 2000),
	}

	// insertSQL binds 22 placeholders per row.
	anyInsertArgs := make([]interface{}, 22)
	for i := range anyInsertArgs {
		anyInsertArgs[i] = pgxmock.AnyArg()
	}

	eb := mock.ExpectBatch()
	// First row lands, second hits the dedup index.
	eb.ExpectExec("INSERT INTO transactions").
		WithArgs(anyInsertArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	eb.ExpectExec("INSERT INTO transactions").
		WithArgs(anyInsertArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewPostgresRepository(mock)
	inserted, err := repo.BulkInsert(context.Background(), txns)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsert_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	inserted, err := NewPostgresRepository(mock).BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSoftDelete(t *testing.T) {
	userID := uuid.New()
	txnID := uuid.New()

	t.Run("marks the row deleted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("UPDATE transactions SET deleted_at").
			WithArgs(txnID, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = NewPostgresRepository(mock).SoftDelete(context.Background(), userID, txnID)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or already deleted row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("UPDATE transactions SET deleted_at").
			WithArgs(txnID, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = NewPostgresRepository(mock).SoftDelete(context.Background(), userID, txnID)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestListByUser_UnboundedRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery("SELECT").
		WithArgs(userID, time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "transaction_date", "description", "raw_description",
			"debit", "credit", "balance", "type", "category",
			"store", "person", "vpa", "transfer_type", "bank_branch", "bank_ref",
			"self_transfer", "bank_code", "account_number", "currency", "raw_row", "balance_mismatch",
			"created_at", "updated_at",
		}))

	txns, err := NewPostgresRepository(mock).ListByUser(context.Background(), userID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
