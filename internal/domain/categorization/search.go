package categorization

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// NarrationDocument is one indexed statement narration. The index backs the
// admin diagnostic "show me uncategorized narrations similar to this one",
// used while tuning keywords for a newly onboarded bank.
type NarrationDocument struct {
	ID        string `json:"id"`
	Narration string `json:"narration"`
	BankCode  string `json:"bank_code"`
	Category  string `json:"category"`
	UserID    string `json:"user_id"`
}

// NarrationHit is a search result with its relevance score.
type NarrationHit struct {
	Document NarrationDocument
	Score    float64
}

// NarrationIndex is an in-memory Bleve index over imported narrations.
type NarrationIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewNarrationIndex creates an in-memory narration index.
func NewNarrationIndex() (*NarrationIndex, error) {
	index, err := bleve.NewMemOnly(narrationMapping())
	if err != nil {
		return nil, fmt.Errorf("create narration index: %w", err)
	}
	return &NarrationIndex{index: index}, nil
}

func narrationMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("narration", textField)
	doc.AddFieldMappingsAt("bank_code", keywordField)
	doc.AddFieldMappingsAt("category", keywordField)
	doc.AddFieldMappingsAt("user_id", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// IndexBatch adds narrations in one batch.
func (ni *NarrationIndex) IndexBatch(docs []NarrationDocument) error {
	ni.mu.Lock()
	defer ni.mu.Unlock()

	batch := ni.index.NewBatch()
	for _, d := range docs {
		if d.Category == "" {
			d.Category = Uncategorized
		}
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("index narration %s: %w", d.ID, err)
		}
	}
	return ni.index.Batch(batch)
}

// Similar finds narrations resembling the query, typo-tolerant by one edit.
func (ni *NarrationIndex) Similar(query string, limit int) ([]NarrationHit, error) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	q := bleve.NewMatchQuery(query)
	q.SetFuzziness(1)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := ni.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("narration search: %w", err)
	}
	return convertHits(res), nil
}

// SimilarUncategorized is Similar restricted to rows with no category, the
// shape the onboarding diagnostic actually wants.
func (ni *NarrationIndex) SimilarUncategorized(query string, limit int) ([]NarrationHit, error) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(query)
	match.SetFuzziness(1)

	uncat := bleve.NewTermQuery(Uncategorized)
	uncat.SetField("category")

	q := bleve.NewConjunctionQuery(match, uncat)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := ni.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("narration search: %w", err)
	}
	return convertHits(res), nil
}

func convertHits(res *bleve.SearchResult) []NarrationHit {
	hits := make([]NarrationHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc := NarrationDocument{ID: h.ID}
		if s, ok := h.Fields["narration"].(string); ok {
			doc.Narration = s
		}
		if s, ok := h.Fields["bank_code"].(string); ok {
			doc.BankCode = s
		}
		if s, ok := h.Fields["category"].(string); ok {
			doc.Category = s
		}
		if s, ok := h.Fields["user_id"].(string); ok {
			doc.UserID = s
		}
		hits = append(hits, NarrationHit{Document: doc, Score: h.Score})
	}
	return hits
}

// DocumentCount returns the number of indexed narrations.
func (ni *NarrationIndex) DocumentCount() (uint64, error) {
	ni.mu.RLock()
	defer ni.mu.RUnlock()
	return ni.index.DocCount()
}

// Close releases the index.
func (ni *NarrationIndex) Close() error {
	ni.mu.Lock()
	defer ni.mu.Unlock()
	return ni.index.Close()
}
