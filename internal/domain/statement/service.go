// Package statement exposes the parse pipeline to the HTTP surface.
package statement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrail/statement-ingest/internal/domain/ledger"
	"github.com/fintrail/statement-ingest/internal/domain/statement/pipeline"
	"github.com/fintrail/statement-ingest/pkg/metrics"
)

// ParseRequest carries one uploaded statement through a parse call.
type ParseRequest struct {
	Data           []byte
	Ext            string
	FileName       string
	BankHint       string
	HolderName     string
	Currency       string
	OpeningBalance *decimal.Decimal
	Debug          bool
}

// ParseResult is the parse outcome handed to the HTTP layer. FailedStage is
// empty unless the pipeline hard-failed.
type ParseResult struct {
	Transactions   []ledger.Transaction
	BankCode       string
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	AccountNumber  string
	Currency       string
	Diagnostics    []string
	DebugLogs      []string
	FailedStage    string
}

// Service runs the parse pipeline and records its instruments.
type Service struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
}

// NewService creates a parse service. metrics may be nil in tests.
func NewService(p *pipeline.Pipeline, m *metrics.Metrics) *Service {
	return &Service{pipeline: p, metrics: m}
}

// Parse runs the full pipeline on one upload. The error is non-nil only for
// hard failures; soft problems surface as diagnostics on the result.
func (s *Service) Parse(ctx context.Context, req ParseRequest) (ParseResult, error) {
	job := pipeline.NewJob(req.Data, req.Ext)
	job.BankHint = req.BankHint
	job.HolderName = req.HolderName
	job.Currency = req.Currency
	job.OpeningBalance = req.OpeningBalance

	start := time.Now()
	err := s.pipeline.Run(ctx, job)
	if s.metrics != nil {
		s.metrics.ParseDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.ParseFailures.WithLabelValues(job.FailedStage).Inc()
		} else {
			s.metrics.ParsedStatements.WithLabelValues(job.BankCode).Inc()
		}
	}

	res := ParseResult{
		Transactions:   job.Txns,
		BankCode:       job.BankCode,
		OpeningBalance: job.OpeningBalance,
		ClosingBalance: job.ClosingBalance,
		AccountNumber:  job.AccountNumber,
		Currency:       job.Currency,
		Diagnostics:    job.Diagnostics,
		FailedStage:    job.FailedStage,
	}
	// Debug logs ship when asked for, and always on an empty result so the
	// caller can see where the rows went.
	if req.Debug || len(job.Txns) == 0 {
		res.DebugLogs = job.DebugLogs
	}
	if res.Currency == "" {
		res.Currency = "INR"
	}
	return res, err
}
