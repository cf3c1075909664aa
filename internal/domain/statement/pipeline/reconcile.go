package pipeline

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// balanceTolerance absorbs rounding in printed balances.
var balanceTolerance = decimal.RequireFromString("0.01")

// reconcile computes the running balance over the normalized sequence and
// checks every printed balance against it. Mismatches are warnings, never
// fatal; the caller decides whether to block an import on them.
func (p *Pipeline) reconcile(_ context.Context, job *Job) error {
	// Order by transaction date, original row order breaking ties.
	sort.SliceStable(job.Txns, func(i, j int) bool {
		return job.Txns[i].TransactionDate.Before(job.Txns[j].TransactionDate)
	})

	if len(job.Txns) == 0 {
		job.State = StateReconciled
		return nil
	}

	running, seeded := p.seedBalance(job)
	mismatches := 0
	for i := range job.Txns {
		t := &job.Txns[i]
		if !seeded {
			// No opening balance and no printed balances at all; nothing to
			// reconcile against.
			continue
		}

		running = running.Add(t.Credit).Sub(t.Debit)

		if t.Balance == nil {
			continue
		}
		if t.Balance.Sub(running).Abs().GreaterThan(balanceTolerance) {
			t.BalanceMismatch = true
			mismatches++
			job.diag("row %d (%s): printed balance %s differs from computed %s",
				i, t.TransactionDate.Format("2006-01-02"),
				t.Balance.StringFixed(2), running.StringFixed(2))
			// Re-anchor on the printed balance so one bad row does not
			// cascade a warning onto every row after it.
			running = *t.Balance
		}
	}

	if seeded {
		opening, closing := p.endpoints(job)
		job.OpeningBalance = opening
		job.ClosingBalance = closing
	}

	job.State = StateReconciled
	if mismatches > 0 {
		job.debug("reconciliation found %d balance mismatches", mismatches)
	}
	return nil
}

// seedBalance picks the starting balance: a caller-declared opening balance
// when known, otherwise the first printed balance net of every delta up to
// and including its row. Leading rows whose balance cell was blank or
// malformed still replay onto the anchor without a spurious mismatch.
func (p *Pipeline) seedBalance(job *Job) (decimal.Decimal, bool) {
	if job.OpeningBalance != nil {
		return *job.OpeningBalance, true
	}
	delta := decimal.Zero
	for i := range job.Txns {
		t := &job.Txns[i]
		delta = delta.Add(t.Credit).Sub(t.Debit)
		if t.Balance != nil {
			return t.Balance.Sub(delta), true
		}
	}
	return decimal.Zero, false
}

// endpoints derives the statement's opening and closing balances for the
// response metadata.
func (p *Pipeline) endpoints(job *Job) (*decimal.Decimal, *decimal.Decimal) {
	opening, _ := p.seedBalance(job)

	closing := opening
	for i := range job.Txns {
		t := &job.Txns[i]
		if t.Balance != nil {
			closing = *t.Balance
			continue
		}
		closing = closing.Add(t.Credit).Sub(t.Debit)
	}
	return &opening, &closing
}
