// Package rows locates the header of an extracted statement grid and projects
// the rows that follow into canonical transaction candidates.
package rows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

// ErrHeaderNotFound means no row in the leading window cleared the header
// threshold. Recoverable: the pipeline records zero candidates plus a
// diagnostic instead of aborting.
var ErrHeaderNotFound = errors.New("statement header row not found")

// headerWindow bounds how many leading rows are scanned for the header.
// Statements put account metadata above the table, never more than a few
// dozen lines of it.
const headerWindow = 40

// trailerMarkers end the transaction table when found in a row.
var trailerMarkers = []string{
	"statement summary",
	"closing balance",
}

// blankRunTrailer is the number of consecutive blank rows treated as
// end-of-table.
const blankRunTrailer = 3

// Candidate is one raw transaction row projected into canonical columns.
// All values are still text; normalization types them.
type Candidate struct {
	RowIndex    int
	DateText    string
	Description string
	DebitText   string
	CreditText  string
	BalanceText string
	Raw         []string
}

// Result is the outcome of a row extraction pass.
type Result struct {
	HeaderIndex int
	ColumnIndex map[bankcfg.Column]int
	Candidates  []Candidate
	Diagnostics []string
}

// Extract scans the grid for the header row, builds the canonical-to-physical
// column index and emits every data row until end-of-grid or a trailer
// marker.
func Extract(grid [][]string, cfg bankcfg.ParserConfig) (*Result, error) {
	headerIdx, colIdx := findHeader(grid, cfg)
	if headerIdx < 0 {
		return nil, ErrHeaderNotFound
	}

	res := &Result{HeaderIndex: headerIdx, ColumnIndex: colIdx}

	blanks := 0
	for i := headerIdx + 1; i < len(grid); i++ {
		row := grid[i]
		if isBlankRow(row) {
			blanks++
			if blanks >= blankRunTrailer {
				break
			}
			continue
		}
		blanks = 0

		if hasTrailerMarker(row) {
			break
		}

		cand := project(row, i, colIdx)

		// Continuation rows carry narration overflow with no date and no
		// amounts; fold them into the previous candidate.
		if cand.DateText == "" && cand.DebitText == "" && cand.CreditText == "" {
			if n := len(res.Candidates); n > 0 && cand.Description != "" {
				prev := &res.Candidates[n-1]
				prev.Description = strings.TrimSpace(prev.Description + " " + cand.Description)
			}
			continue
		}
		if cand.DateText == "" && cand.Description == "" {
			continue
		}

		res.Candidates = append(res.Candidates, cand)
	}

	return res, nil
}

// findHeader returns the index of the first row in the leading window where
// at least half the distinct canonical columns are represented and DATE plus
// one amount column are present, together with the column index it implies.
func findHeader(grid [][]string, cfg bankcfg.ParserConfig) (int, map[bankcfg.Column]int) {
	limit := len(grid)
	if limit > headerWindow {
		limit = headerWindow
	}

	for i := 0; i < limit; i++ {
		row := grid[i]
		if len(row) < 2 {
			continue
		}

		colIdx := make(map[bankcfg.Column]int, len(bankcfg.Columns))
		for _, col := range bankcfg.Columns {
			for j, cell := range row {
				if cfg.MatchesSynonym(col, cell) {
					colIdx[col] = j
					break
				}
			}
		}

		if len(colIdx)*2 < len(bankcfg.Columns) {
			continue
		}
		if _, ok := colIdx[bankcfg.ColDate]; !ok {
			continue
		}
		_, hasDebit := colIdx[bankcfg.ColDebit]
		_, hasCredit := colIdx[bankcfg.ColCredit]
		if !hasDebit && !hasCredit {
			continue
		}
		return i, colIdx
	}
	return -1, nil
}

func project(row []string, rowIdx int, colIdx map[bankcfg.Column]int) Candidate {
	cell := func(col bankcfg.Column) string {
		j, ok := colIdx[col]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}
	return Candidate{
		RowIndex:    rowIdx,
		DateText:    cell(bankcfg.ColDate),
		Description: cell(bankcfg.ColDescription),
		DebitText:   cell(bankcfg.ColDebit),
		CreditText:  cell(bankcfg.ColCredit),
		BalanceText: cell(bankcfg.ColBalance),
		Raw:         row,
	}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func hasTrailerMarker(row []string) bool {
	joined := strings.ToLower(strings.Join(row, " "))
	for _, m := range trailerMarkers {
		if strings.Contains(joined, m) {
			return true
		}
	}
	return false
}

// amountCleaner strips everything an amount cell can carry besides the
// number itself.
var amountCleaner = strings.NewReplacer(
	",", "",
	"₹", "",
	"$", "",
	"€", "",
	"£", "",
	"rs.", "",
	"rs", "",
	"inr", "",
	"cr", "",
	"dr", "",
	" ", "",
	" ", "",
)

// ParseAmount turns an amount cell into a decimal. Tolerates thousands
// separators, currency symbols, parenthesis-as-negative and dash blanks.
// Malformed cells degrade to zero; the returned diagnostic is non-empty in
// that case so callers can record it without dropping the row.
func ParseAmount(cell string) (decimal.Decimal, string) {
	s := strings.TrimSpace(cell)
	if s == "" || s == "-" || s == "–" || s == "—" || strings.EqualFold(s, "nil") {
		return decimal.Zero, ""
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = amountCleaner.Replace(strings.ToLower(s))
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ""
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("unparseable amount %q treated as zero", cell)
	}
	if negative {
		d = d.Neg()
	}
	return d, ""
}
