package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fintrail/statement-ingest/internal/domain/categorization"
	"github.com/fintrail/statement-ingest/pkg/metrics"
)

// ErrBalanceValidation blocks an import when the caller asked for strict
// balance validation and the parsed statement carried mismatches.
var ErrBalanceValidation = errors.New("statement failed balance validation")

// ErrNoRecords is returned for an import request with an empty record list.
var ErrNoRecords = errors.New("no records to import")

// Categorizer is the slice of the categorization service the importer uses.
type Categorizer interface {
	EnqueueJob(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	IndexNarrations(docs []categorization.NarrationDocument)
}

// ImportInput is the import entry point payload.
type ImportInput struct {
	UserID                 uuid.UUID
	Records                []Transaction
	Metadata               map[string]string
	UseAICategorization    bool
	ValidateBalance        bool
	CategorizeInBackground bool
}

// ImportResult reports what one import call did.
type ImportResult struct {
	Inserted        int `json:"inserted"`
	Duplicates      int `json:"duplicates"`
	BalanceWarnings int `json:"balanceWarnings"`
}

// Service is the import/dedup engine: the only component with side effects
// on persistent storage.
type Service struct {
	repo        Repository
	categorizer Categorizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewService creates an import service. categorizer may be nil when the
// deployment runs without background categorization.
func NewService(repo Repository, categorizer Categorizer, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, categorizer: categorizer, metrics: m, logger: logger}
}

// Import writes the normalized records for one owner. Re-running the same
// statement is fully idempotent: every row lands on the dedup index and the
// duplicate count equals the record count.
func (s *Service) Import(ctx context.Context, in ImportInput) (ImportResult, error) {
	if in.UserID == uuid.Nil {
		return ImportResult{}, fmt.Errorf("user id is required")
	}
	if len(in.Records) == 0 {
		return ImportResult{}, ErrNoRecords
	}

	warnings := 0
	for i := range in.Records {
		r := &in.Records[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.UserID = in.UserID
		if r.Type == "" {
			if r.Credit.IsZero() {
				r.Type = TypeExpense
			} else {
				r.Type = TypeIncome
			}
		}
		if r.BalanceMismatch {
			warnings++
		}
	}

	if in.ValidateBalance && warnings > 0 {
		return ImportResult{BalanceWarnings: warnings},
			fmt.Errorf("%w: %d rows with mismatched running balance", ErrBalanceValidation, warnings)
	}

	start := time.Now()
	inserted, err := s.repo.BulkInsert(ctx, in.Records)
	if err != nil {
		return ImportResult{Inserted: inserted}, err
	}
	duplicates := len(in.Records) - inserted

	if s.metrics != nil {
		s.metrics.ImportedRows.Add(float64(inserted))
		s.metrics.DuplicateRows.Add(float64(duplicates))
	}
	s.logger.Info("statement imported",
		slog.String("user_id", in.UserID.String()),
		slog.Int("inserted", inserted),
		slog.Int("duplicates", duplicates),
		slog.Int("balance_warnings", warnings),
		slog.Duration("took", time.Since(start)))

	s.afterImport(ctx, in, inserted)

	return ImportResult{Inserted: inserted, Duplicates: duplicates, BalanceWarnings: warnings}, nil
}

// afterImport runs the side channels that must never affect the import
// outcome: narration indexing and background categorization dispatch.
func (s *Service) afterImport(ctx context.Context, in ImportInput, inserted int) {
	if s.categorizer == nil || inserted == 0 {
		return
	}

	docs := make([]categorization.NarrationDocument, 0, len(in.Records))
	for _, r := range in.Records {
		docs = append(docs, categorization.NarrationDocument{
			ID:        r.ID.String(),
			Narration: r.Description,
			BankCode:  r.BankCode,
			Category:  r.Category,
			UserID:    r.UserID.String(),
		})
	}
	s.categorizer.IndexNarrations(docs)

	if !in.UseAICategorization || !in.CategorizeInBackground {
		return
	}
	jobID, err := s.categorizer.EnqueueJob(ctx, in.UserID)
	if err != nil {
		// Fire-and-forget: a failed dispatch is logged, never rolled into
		// the import result.
		s.logger.Warn("enqueue categorization job",
			slog.String("user_id", in.UserID.String()),
			slog.Any("error", err))
		return
	}
	s.logger.Info("categorization job enqueued",
		slog.String("user_id", in.UserID.String()),
		slog.String("job_id", jobID.String()))
}

// List exposes the ledger for the read API.
func (s *Service) List(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	return s.repo.ListByUser(ctx, userID, from, to)
}

// Delete soft-deletes one transaction.
func (s *Service) Delete(ctx context.Context, userID, txnID uuid.UUID) error {
	return s.repo.SoftDelete(ctx, userID, txnID)
}
