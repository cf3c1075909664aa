// Package pipeline orchestrates statement parsing: extraction, bank
// detection, config resolution, row extraction, normalization and balance
// reconciliation run strictly sequentially over one shared job context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fintrail/statement-ingest/internal/domain/ledger"
	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
	"github.com/fintrail/statement-ingest/internal/domain/statement/detector"
	"github.com/fintrail/statement-ingest/internal/domain/statement/extractor"
	"github.com/fintrail/statement-ingest/internal/domain/statement/rows"
	"github.com/fintrail/statement-ingest/internal/domain/statement/style"
)

// Job states, in pipeline order.
const (
	StateReceived       = "RECEIVED"
	StateExtracted      = "EXTRACTED"
	StateBankDetected   = "BANK_DETECTED"
	StateHeaderResolved = "HEADER_RESOLVED"
	StateRowsExtracted  = "ROWS_EXTRACTED"
	StateNormalized     = "NORMALIZED"
	StateReconciled     = "RECONCILED"
	StateImported       = "IMPORTED"
	StateFailed         = "FAILED"
)

// Job is the per-upload context every stage reads and enriches. Never shared
// between goroutines.
type Job struct {
	// Input.
	Data       []byte
	Ext        string
	BankHint   string
	HolderName string
	Currency   string

	// Enriched by stages.
	State       string
	FailedStage string
	Extracted   *extractor.Result
	BankCode    string
	Config      bankcfg.ParserConfig
	Snapshot    *bankcfg.Snapshot
	RowResult   *rows.Result
	Txns        []ledger.Transaction

	// OpeningBalance may be supplied by the caller when the statement
	// declares one; the reconciler seeds from it and fills in both ends.
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	AccountNumber  string

	Diagnostics []string
	DebugLogs   []string
}

// NewJob creates a job in the RECEIVED state.
func NewJob(data []byte, ext string) *Job {
	return &Job{Data: data, Ext: ext, State: StateReceived}
}

func (j *Job) diag(format string, args ...any) {
	j.Diagnostics = append(j.Diagnostics, fmt.Sprintf(format, args...))
}

func (j *Job) debug(format string, args ...any) {
	j.DebugLogs = append(j.DebugLogs, fmt.Sprintf(format, args...))
}

func (j *Job) fail(stage string) {
	j.State = StateFailed
	j.FailedStage = stage
}

// Pipeline wires the parsing stages to their dependencies.
type Pipeline struct {
	store  *bankcfg.Store
	styles *style.Registry
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a pipeline.
func New(store *bankcfg.Store, styles *style.Registry, logger *slog.Logger, tracer trace.Tracer) *Pipeline {
	return &Pipeline{store: store, styles: styles, logger: logger, tracer: tracer}
}

type stage struct {
	name string
	run  func(ctx context.Context, job *Job) error
}

// Run executes every stage in order on one job. The returned error is non-nil
// only for hard failures (unsupported format, header miss); everything else
// degrades to partial results with diagnostics.
func (p *Pipeline) Run(ctx context.Context, job *Job) error {
	ctx, span := p.tracer.Start(ctx, "statement.pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("statement.ext", job.Ext),
		attribute.Int("statement.bytes", len(job.Data)),
	)

	stages := []stage{
		{"extract", p.extract},
		{"detect_bank", p.detectBank},
		{"resolve_config", p.resolveConfig},
		{"extract_rows", p.extractRows},
		{"normalize", p.normalize},
		{"reconcile", p.reconcile},
	}

	start := time.Now()
	for _, s := range stages {
		if err := s.run(ctx, job); err != nil {
			job.fail(s.name)
			span.SetAttributes(attribute.String("statement.failed_stage", s.name))
			p.logger.Warn("pipeline stage failed",
				slog.String("stage", s.name),
				slog.Any("error", err))
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
	}

	span.SetAttributes(
		attribute.String("statement.bank_code", job.BankCode),
		attribute.Int("statement.transactions", len(job.Txns)),
	)
	p.logger.Info("statement parsed",
		slog.String("bank_code", job.BankCode),
		slog.Int("transactions", len(job.Txns)),
		slog.Int("diagnostics", len(job.Diagnostics)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// extract decodes the raw file. UnsupportedFormat is hard; a decode failure
// degrades to empty content.
func (p *Pipeline) extract(_ context.Context, job *Job) error {
	res, err := extractor.Extract(job.Data, job.Ext)
	switch {
	case errors.Is(err, extractor.ErrUnsupportedFormat):
		return err
	case err != nil:
		job.diag("extraction failed: %v", err)
		job.Extracted = &extractor.Result{}
	default:
		job.Extracted = res
	}
	job.State = StateExtracted
	job.debug("extracted %d rows of content", len(job.Extracted.Grid))
	return nil
}

// detectBank scans the text against the active configs. A caller-supplied
// bank hint short-circuits detection.
func (p *Pipeline) detectBank(_ context.Context, job *Job) error {
	job.Snapshot = p.store.Snapshot()

	if job.BankHint != "" {
		job.BankCode = job.BankHint
		job.debug("bank hint %q short-circuits detection", job.BankHint)
	} else {
		match := detector.DetectMatch(job.Extracted.Text, job.Snapshot.Configs())
		job.BankCode = match.BankCode
		if match.Keyword != "" {
			job.debug("bank %s detected via keyword %q", match.BankCode, match.Keyword)
		} else {
			job.diag("no bank detection keyword matched; using generic config")
		}
	}
	job.State = StateBankDetected
	return nil
}

// resolveConfig is snapshot-consistent: the snapshot taken at detection
// serves the whole run.
func (p *Pipeline) resolveConfig(_ context.Context, job *Job) error {
	job.Config = job.Snapshot.Resolve(job.BankCode)
	job.State = StateHeaderResolved
	job.debug("resolved parser config %s v%d", job.Config.BankCode, job.Config.Version)
	return nil
}

// extractRows locates the header and projects data rows. A header miss is
// hard for this stage; Run reports it and the caller decides whether to
// surface zero transactions.
func (p *Pipeline) extractRows(_ context.Context, job *Job) error {
	res, err := rows.Extract(job.Extracted.Grid, job.Config)
	if err != nil {
		if errors.Is(err, rows.ErrHeaderNotFound) {
			job.diag("header row not found in first rows of statement")
		}
		return err
	}
	job.RowResult = res
	job.Diagnostics = append(job.Diagnostics, res.Diagnostics...)
	job.AccountNumber = accountNumber(job.Extracted.Grid, res.HeaderIndex)
	if job.AccountNumber != "" {
		job.debug("account number found in statement preamble")
	}
	job.State = StateRowsExtracted
	job.debug("header at row %d, %d candidates", res.HeaderIndex, len(res.Candidates))
	return nil
}

var (
	accountInlineRe = regexp.MustCompile(`(?i)(?:account|a/c)\s*(?:no\.?|number|#)?\s*[:\-]?\s*([0-9Xx*]{6,24})`)
	accountLabelRe  = regexp.MustCompile(`(?i)(?:account|a/c)\s*(?:no\.?|number|#)?\s*[:\-]?\s*$`)
	accountValueRe  = regexp.MustCompile(`^[0-9Xx*]{6,24}$`)
)

// accountNumber scans the preamble rows above the header for the account
// number banks print there, either inline after the label or in the adjacent
// cell. Masked digits stay as printed.
func accountNumber(grid [][]string, headerIndex int) string {
	if headerIndex > len(grid) {
		headerIndex = len(grid)
	}
	for i := 0; i < headerIndex; i++ {
		for j, cell := range grid[i] {
			if m := accountInlineRe.FindStringSubmatch(cell); m != nil {
				return m[1]
			}
			if !accountLabelRe.MatchString(cell) {
				continue
			}
			for _, next := range grid[i][j+1:] {
				next = strings.TrimSpace(next)
				if next == "" {
					continue
				}
				if accountValueRe.MatchString(next) {
					return next
				}
				break
			}
		}
	}
	return ""
}
