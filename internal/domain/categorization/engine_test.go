package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngine_Classify(t *testing.T) {
	e := NewEngine(BuiltinKeywords())

	tests := []struct {
		name      string
		narration string
		want      string
	}{
		{"food merchant", "UPI-SWIGGY-swiggy@icici-UPI-409112", "Food"},
		{"case insensitive", "upi-ZoMaTo-order-4451", "Food"},
		{"transport", "UBER RIDES BANGALORE", "Transport"},
		{"salary", "NEFT CR SALARY APR ACME CORP", "Salary"},
		{"atm", "ATM WDL 500 MG ROAD", "Cash"},
		{"no match", "CHQ DEP 000123", Uncategorized},
		{"empty", "", Uncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Classify(tt.narration))
		})
	}
}

func TestEngine_PriorityBeatsBuiltin(t *testing.T) {
	keywords := append(BuiltinKeywords(),
		Keyword{Pattern: "swiggy", Category: "Office Meals", Priority: 100})
	e := NewEngine(keywords)

	assert.Equal(t, "Office Meals", e.Classify("UPI-SWIGGY-409112"))
}

func TestEngine_LongestPatternWinsAtEqualPriority(t *testing.T) {
	e := NewEngine([]Keyword{
		{Pattern: "air", Category: "Travel"},
		{Pattern: "airtel", Category: "Utilities"},
	})
	assert.Equal(t, "Utilities", e.Classify("AIRTEL PREPAID RECHARGE"))
}

func TestEngine_RebuildSwapsKeywords(t *testing.T) {
	e := NewEngine([]Keyword{{Pattern: "swiggy", Category: "Food"}})
	assert.Equal(t, "Food", e.Classify("SWIGGY ORDER"))

	e.Build([]Keyword{{Pattern: "swiggy", Category: "Dining"}})
	assert.Equal(t, "Dining", e.Classify("SWIGGY ORDER"))
	assert.Equal(t, 1, e.PatternCount())
}

func TestEngine_Empty(t *testing.T) {
	e := NewEngine(nil)
	assert.Equal(t, Uncategorized, e.Classify("anything"))
	assert.Equal(t, 0, e.PatternCount())
}

func TestEngine_ClassifyBatch(t *testing.T) {
	e := NewEngine(BuiltinKeywords())
	got := e.ClassifyBatch([]string{"SWIGGY ORDER", "UNKNOWN THING"})
	assert.Equal(t, []string{"Food", Uncategorized}, got)
}

func TestGroupSimilarNarrations(t *testing.T) {
	groups := GroupSimilarNarrations([]string{
		"UPI-SWIGGY ORDER 4091",
		"UPI-SWIGGY ORDER 5512",
		"UPI-SWIGGY ORDER 9983",
		"NEFT ACME CORP SALARY",
	}, 3)

	assert.Len(t, groups, 2)
	assert.Len(t, groups[0].Members, 3, "reference numbers must not split the group")
	assert.Equal(t, "UPI-SWIGGY ORDER 4091", groups[0].Representative)
}
