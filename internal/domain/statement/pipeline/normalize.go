package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrail/statement-ingest/internal/domain/categorization"
	"github.com/fintrail/statement-ingest/internal/domain/ledger"
	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
	"github.com/fintrail/statement-ingest/internal/domain/statement/rows"
	"github.com/fintrail/statement-ingest/internal/domain/statement/style"
)

// normalize types each raw candidate and applies the bank style. Per-row
// failures degrade: the row is skipped (unparseable date) or zero-filled
// (bad amount) with a diagnostic, never aborting the document.
func (p *Pipeline) normalize(_ context.Context, job *Job) error {
	formats := job.Snapshot.DateFormatsFor(job.BankCode)
	loc := p.timezoneFor(job)
	st := p.styles.Get(job.BankCode)

	txns := make([]ledger.Transaction, 0, len(job.RowResult.Candidates))
	for _, cand := range job.RowResult.Candidates {
		date, ok := parseDate(cand.DateText, formats, loc)
		if !ok {
			job.diag("row %d: unparseable date %q, row skipped", cand.RowIndex, cand.DateText)
			continue
		}

		debit, diag := rows.ParseAmount(cand.DebitText)
		if diag != "" {
			job.diag("row %d: debit %s", cand.RowIndex, diag)
		}
		credit, diag := rows.ParseAmount(cand.CreditText)
		if diag != "" {
			job.diag("row %d: credit %s", cand.RowIndex, diag)
		}

		var balance *decimal.Decimal
		if b, diag := rows.ParseAmount(cand.BalanceText); diag != "" {
			job.diag("row %d: balance %s", cand.RowIndex, diag)
		} else if cand.BalanceText != "" {
			balance = &b
		}

		if debit.IsZero() && credit.IsZero() {
			job.diag("row %d: no amount, row skipped", cand.RowIndex)
			continue
		}

		// Parenthesis-negative amounts flip sides: a negative debit is a
		// reversal credited back to the account.
		if debit.IsNegative() {
			credit, debit = debit.Neg(), credit
		} else if credit.IsNegative() {
			debit, credit = credit.Neg(), debit
		}

		base := ledger.Transaction{
			TransactionDate: date,
			RawDescription:  cand.Description,
			BankCode:        job.BankCode,
			AccountNumber:   job.AccountNumber,
			Currency:        job.Currency,
			RawRow:          cand.Raw,
		}

		// Both sides populated means the bank printed a combined row; emit
		// two legs rather than summing or guessing a net.
		if !debit.IsZero() && !credit.IsZero() {
			job.diag("row %d: both debit and credit populated, split into two transactions", cand.RowIndex)
			d := base
			d.Debit = debit
			txns = append(txns, p.enrich(job, st, d))

			c := base
			c.Credit = credit
			c.Balance = balance
			txns = append(txns, p.enrich(job, st, c))
			continue
		}

		t := base
		t.Debit = debit
		t.Credit = credit
		t.Balance = balance
		txns = append(txns, p.enrich(job, st, t))
	}

	job.Txns = txns
	job.State = StateNormalized
	job.debug("normalized %d transactions from %d candidates", len(txns), len(job.RowResult.Candidates))
	return nil
}

// enrich applies the bank style: cleaned description, entities, self-transfer
// tagging and the advisory category. Style panics must not kill a document;
// the row keeps its raw description and empty enrichment fields.
func (p *Pipeline) enrich(job *Job, st style.Style, t ledger.Transaction) (out ledger.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			job.diag("style enrichment failed for row, raw description kept")
			p.logger.Error("style enrichment panic",
				slog.String("bank_code", job.BankCode), slog.Any("panic", r))
			t.Description = t.RawDescription
			out = t
		}
	}()

	if t.Credit.IsZero() {
		t.Type = ledger.TypeExpense
	} else {
		t.Type = ledger.TypeIncome
	}

	t.Description = st.CleanDescription(t.RawDescription)
	if t.Description == "" {
		t.Description = t.RawDescription
	}

	entities := st.ExtractEntities(t.RawDescription)
	if job.HolderName != "" {
		var self bool
		entities, self = style.ApplySelfTransfer(entities, job.HolderName)
		t.SelfTransfer = self
	}
	t.Store = entities.Store
	t.Person = entities.Person
	t.VPA = entities.VPA
	t.TransferType = entities.TransferType
	t.BankBranch = entities.Branch
	t.BankRef = entities.BankRef

	t.Category = st.ClassifyCommodity(t.RawDescription)
	if t.Category == categorization.Uncategorized {
		t.Category = ""
	}
	return t
}

func (p *Pipeline) timezoneFor(job *Job) *time.Location {
	tz := job.Snapshot.FieldFor(job.BankCode, bankcfg.FieldTimezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		job.diag("unknown timezone %q in field mapping, using UTC", tz)
		return time.UTC
	}
	return loc
}

// parseDate tries each format in order; first success wins.
func parseDate(text string, formats []string, loc *time.Location) (time.Time, bool) {
	s := trimDate(text)
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func trimDate(s string) string {
	// Some banks append the value date in parentheses; the leading token is
	// the transaction date.
	for i, r := range s {
		if r == '(' || r == '\n' {
			s = s[:i]
			break
		}
	}
	return strings.TrimSpace(s)
}
