package categorization

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrationIndex_Similar(t *testing.T) {
	idx, err := NewNarrationIndex()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexBatch([]NarrationDocument{
		{ID: "1", Narration: "UPI SWIGGY ORDER BANGALORE", BankCode: "HDFC", Category: "Food"},
		{ID: "2", Narration: "UPI SWIGY ORDER MUMBAI", BankCode: "HDFC"},
		{ID: "3", Narration: "NEFT ACME CORP SALARY", BankCode: "SBIN", Category: "Salary"},
	}))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	hits, err := idx.Similar("swiggy", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Document.ID)
	}
	assert.Contains(t, ids, "1")
	assert.Contains(t, ids, "2", "one-edit fuzziness should catch the typo variant")
	assert.NotContains(t, ids, "3")
}

func TestNarrationIndex_SimilarUncategorized(t *testing.T) {
	idx, err := NewNarrationIndex()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexBatch([]NarrationDocument{
		{ID: "1", Narration: "UPI SWIGGY ORDER", Category: "Food"},
		{ID: "2", Narration: "UPI SWIGGY ORDER LATE NIGHT"},
	}))

	hits, err := idx.SimilarUncategorized("swiggy", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].Document.ID)
	assert.Equal(t, Uncategorized, hits[0].Document.Category)
}

func TestService_NarrationGroups(t *testing.T) {
	idx, err := NewNarrationIndex()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexBatch([]NarrationDocument{
		{ID: "1", Narration: "UPI SWIGGY ORDER 4091"},
		{ID: "2", Narration: "UPI SWIGGY ORDER 5512"},
		{ID: "3", Narration: "UPI SWIGGY ORDER 9944"},
	}))

	svc := NewService(nil, idx, slog.Default())
	groups, err := svc.NarrationGroups("swiggy", 10)
	require.NoError(t, err)
	require.Len(t, groups, 1, "reference numbers must collapse into one merchant group")
	assert.Len(t, groups[0].Members, 3)
}
