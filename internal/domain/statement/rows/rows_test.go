package rows

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

func hdfcGrid() [][]string {
	return [][]string{
		{"HDFC BANK Ltd."},
		{"Statement of account"},
		{"Date", "Narration", "Chq./Ref.No.", "Value Dt", "Withdrawal Amt.", "Deposit Amt.", "Closing Balance"},
		{"01/04/24", "UPI-SWIGGY-swiggy@icici-UPI", "0000409", "01/04/24", "450.00", "", "12,550.00"},
		{"", "REF 409112233", "", "", "", "", ""},
		{"02/04/24", "NEFT CR-SBIN0001-ACME CORP-SALARY", "N123", "02/04/24", "", "50,000.00", "62,550.00"},
		{"STATEMENT SUMMARY"},
		{"03/04/24", "SHOULD NOT APPEAR", "", "", "1.00", "", "62,549.00"},
	}
}

func TestExtract_HappyPath(t *testing.T) {
	res, err := Extract(hdfcGrid(), bankcfg.Generic())
	require.NoError(t, err)

	assert.Equal(t, 2, res.HeaderIndex)
	assert.Equal(t, 0, res.ColumnIndex[bankcfg.ColDate])
	assert.Equal(t, 1, res.ColumnIndex[bankcfg.ColDescription])
	assert.Equal(t, 4, res.ColumnIndex[bankcfg.ColDebit])
	assert.Equal(t, 5, res.ColumnIndex[bankcfg.ColCredit])
	assert.Equal(t, 6, res.ColumnIndex[bankcfg.ColBalance])

	require.Len(t, res.Candidates, 2, "trailer marker must stop extraction")
	first := res.Candidates[0]
	assert.Equal(t, "01/04/24", first.DateText)
	assert.Equal(t, "UPI-SWIGGY-swiggy@icici-UPI REF 409112233", first.Description,
		"continuation row folds into the previous description")
	assert.Equal(t, "450.00", first.DebitText)
	assert.Equal(t, "12,550.00", first.BalanceText)

	second := res.Candidates[1]
	assert.Equal(t, "50,000.00", second.CreditText)
	assert.Empty(t, second.DebitText)
}

func TestExtract_HeaderNotFound(t *testing.T) {
	grid := [][]string{
		{"Dear customer"},
		{"your reward points expire soon"},
	}
	_, err := Extract(grid, bankcfg.Generic())
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestExtract_HeaderRequiresDateAndAmount(t *testing.T) {
	// Majority of columns present but no amount column: not a header.
	grid := [][]string{
		{"Date", "Description", "Branch", "Reference", "Remarks"},
		{"01/04/24", "something", "MUM", "r1", ""},
	}
	_, err := Extract(grid, bankcfg.Generic())
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestExtract_HeaderOutsideWindow(t *testing.T) {
	grid := make([][]string, 0, headerWindow+3)
	for i := 0; i < headerWindow; i++ {
		grid = append(grid, []string{"preamble", "noise"})
	}
	grid = append(grid,
		[]string{"Date", "Narration", "Debit", "Credit", "Balance"},
		[]string{"01/04/24", "x", "1.00", "", "99.00"},
	)
	_, err := Extract(grid, bankcfg.Generic())
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestExtract_BlankRunEndsTable(t *testing.T) {
	grid := [][]string{
		{"Date", "Narration", "Debit", "Credit", "Balance"},
		{"01/04/24", "A", "1.00", "", "99.00"},
		nil,
		{""},
		nil,
		{"01/05/24", "AFTER GAP", "2.00", "", "97.00"},
	}
	res, err := Extract(grid, bankcfg.Generic())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "A", res.Candidates[0].Description)
}

func TestExtract_SingleBlankRowSurvives(t *testing.T) {
	grid := [][]string{
		{"Date", "Narration", "Debit", "Credit", "Balance"},
		{"01/04/24", "A", "1.00", "", "99.00"},
		nil,
		{"02/04/24", "B", "", "2.00", "101.00"},
	}
	res, err := Extract(grid, bankcfg.Generic())
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
}

func TestExtract_ShortRowDoesNotPanic(t *testing.T) {
	grid := [][]string{
		{"Date", "Narration", "Debit", "Credit", "Balance"},
		{"01/04/24", "TRUNCATED ROW"},
	}
	res, err := Extract(grid, bankcfg.Generic())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Candidates[0].BalanceText)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		wantDiag bool
	}{
		{"plain", "450.00", "450", false},
		{"thousands separators", "1,23,456.78", "123456.78", false},
		{"rupee symbol", "₹2,500.00", "2500", false},
		{"parenthesis negative", "(1,200.50)", "-1200.5", false},
		{"cr suffix", "500.00 Cr", "500", false},
		{"dash blank", "-", "0", false},
		{"em dash blank", "—", "0", false},
		{"empty", "", "0", false},
		{"nil literal", "NIL", "0", false},
		{"garbage", "12AB.CD", "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diag := ParseAmount(tt.in)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
			if tt.wantDiag {
				assert.NotEmpty(t, diag)
			} else {
				assert.Empty(t, diag)
			}
		})
	}
}
