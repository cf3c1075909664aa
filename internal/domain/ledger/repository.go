package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// insertBatchSize bounds one write round-trip, keeping transaction size and
// memory flat regardless of statement length.
const insertBatchSize = 500

// DB is the pgx surface the repository needs; satisfied by *pgxpool.Pool and
// pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ErrTransactionNotFound is returned when a delete targets a missing or
// already deleted row.
var ErrTransactionNotFound = errors.New("transaction not found")

// Repository is the persistence surface the import service depends on.
type Repository interface {
	BulkInsert(ctx context.Context, txns []Transaction) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Transaction, error)
	SoftDelete(ctx context.Context, userID, txnID uuid.UUID) error
}

// PostgresRepository stores ledger rows. Duplicate suppression happens in the
// database: a partial unique index over the dedup tuple plus ON CONFLICT DO
// NOTHING makes concurrent imports of overlapping periods safe without a
// read-then-write race.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a ledger repository backed by Postgres.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const insertSQL = `
	INSERT INTO transactions (
		id, user_id, transaction_date, description, raw_description,
		debit, credit, balance, type, category,
		store, person, vpa, transfer_type, bank_branch, bank_ref,
		self_transfer, bank_code, account_number, currency, raw_row, balance_mismatch
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
	)
	ON CONFLICT (user_id, description, credit, debit, transaction_date)
		WHERE deleted_at IS NULL
	DO NOTHING`

// BulkInsert writes transactions in batches and returns how many rows were
// actually inserted; the remainder hit the dedup index.
func (r *PostgresRepository) BulkInsert(ctx context.Context, txns []Transaction) (int, error) {
	inserted := 0
	for start := 0; start < len(txns); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(txns) {
			end = len(txns)
		}

		batch := &pgx.Batch{}
		for _, t := range txns[start:end] {
			rawRow, err := json.Marshal(t.RawRow)
			if err != nil {
				return inserted, fmt.Errorf("encode raw row: %w", err)
			}
			batch.Queue(insertSQL,
				t.ID, t.UserID, t.TransactionDate, t.Description, t.RawDescription,
				t.Debit, t.Credit, t.Balance, t.Type, t.Category,
				t.Store, t.Person, t.VPA, t.TransferType, t.BankBranch, t.BankRef,
				t.SelfTransfer, t.BankCode, t.AccountNumber, t.Currency, rawRow, t.BalanceMismatch,
			)
		}

		res := r.db.SendBatch(ctx, batch)
		batchInserted, err := drainBatch(res, end-start)
		inserted += batchInserted
		if err != nil {
			return inserted, fmt.Errorf("insert transactions batch: %w", err)
		}
	}
	return inserted, nil
}

func drainBatch(res pgx.BatchResults, n int) (int, error) {
	defer res.Close()
	inserted := 0
	for i := 0; i < n; i++ {
		tag, err := res.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const selectCols = `
	id, user_id, transaction_date, description, raw_description,
	debit, credit, balance, type, category,
	store, person, vpa, transfer_type, bank_branch, bank_ref,
	self_transfer, bank_code, account_number, currency, raw_row, balance_mismatch,
	created_at, updated_at`

// ListByUser returns a user's non-deleted transactions in a date range,
// newest first. Zero time bounds mean unbounded.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+selectCols+`
		FROM transactions
		WHERE user_id = $1 AND deleted_at IS NULL
			AND transaction_date >= $2 AND transaction_date <= $3
		ORDER BY transaction_date DESC, created_at DESC`,
		userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SoftDelete marks one transaction deleted. The row leaves the dedup tuple,
// so re-importing the statement restores it as a fresh insert.
func (r *PostgresRepository) SoftDelete(ctx context.Context, userID, txnID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		txnID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t       Transaction
		balance *decimal.Decimal
		rawRow  []byte
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.TransactionDate, &t.Description, &t.RawDescription,
		&t.Debit, &t.Credit, &balance, &t.Type, &t.Category,
		&t.Store, &t.Person, &t.VPA, &t.TransferType, &t.BankBranch, &t.BankRef,
		&t.SelfTransfer, &t.BankCode, &t.AccountNumber, &t.Currency, &rawRow, &t.BalanceMismatch,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	t.Balance = balance
	if len(rawRow) > 0 {
		if err := json.Unmarshal(rawRow, &t.RawRow); err != nil {
			return Transaction{}, fmt.Errorf("decode raw row: %w", err)
		}
	}
	return t, nil
}
