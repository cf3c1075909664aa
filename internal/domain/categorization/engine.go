// Package categorization assigns coarse spending categories to transaction
// narrations. A keyword engine answers synchronously during normalization;
// a background worker sweeps imported rows that were left uncategorized.
package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Uncategorized is the label returned when no keyword matches a narration.
const Uncategorized = "Uncategorized"

// Keyword maps a narration substring to a category label. Admin-defined
// keywords carry a higher priority than the built-in table.
type Keyword struct {
	Pattern  string
	Category string
	Priority int
}

// Engine matches every keyword against a narration in one pass using
// Aho-Corasick. Matching is case-insensitive; among hits the highest
// priority wins, ties going to the longest pattern (most specific signal).
type Engine struct {
	mu       sync.RWMutex
	matcher  *ahocorasick.Matcher
	patterns []string
	keywords [][]Keyword
}

// NewEngine builds an engine from a keyword list. Call Build to swap in a
// refreshed list later; readers are never blocked by a rebuild in progress.
func NewEngine(keywords []Keyword) *Engine {
	e := &Engine{}
	e.Build(keywords)
	return e
}

// Build reconstructs the matcher. Duplicate patterns are grouped so both an
// admin keyword and a built-in one can share a pattern.
func (e *Engine) Build(keywords []Keyword) {
	patternIdx := make(map[string]int, len(keywords))
	patterns := make([]string, 0, len(keywords))
	grouped := make([][]Keyword, 0, len(keywords))

	for _, kw := range keywords {
		p := strings.ToLower(strings.TrimSpace(kw.Pattern))
		if p == "" {
			continue
		}
		if idx, ok := patternIdx[p]; ok {
			grouped[idx] = append(grouped[idx], kw)
			continue
		}
		patternIdx[p] = len(patterns)
		patterns = append(patterns, p)
		grouped = append(grouped, []Keyword{kw})
	}

	var matcher *ahocorasick.Matcher
	if len(patterns) > 0 {
		matcher = ahocorasick.NewStringMatcher(patterns)
	}

	e.mu.Lock()
	e.matcher = matcher
	e.patterns = patterns
	e.keywords = grouped
	e.mu.Unlock()
}

// Classify returns the category for a narration, or Uncategorized.
func (e *Engine) Classify(narration string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil || narration == "" {
		return Uncategorized
	}
	hits := e.matcher.Match([]byte(strings.ToLower(narration)))
	if len(hits) == 0 {
		return Uncategorized
	}

	var best *Keyword
	bestLen := 0
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.keywords) {
			continue
		}
		plen := len(e.patterns[idx])
		for i := range e.keywords[idx] {
			kw := &e.keywords[idx][i]
			if best == nil || kw.Priority > best.Priority ||
				(kw.Priority == best.Priority && plen > bestLen) {
				best = kw
				bestLen = plen
			}
		}
	}
	if best == nil {
		return Uncategorized
	}
	return best.Category
}

// ClassifyBatch categorizes many narrations under one read lock.
func (e *Engine) ClassifyBatch(narrations []string) []string {
	out := make([]string, len(narrations))
	for i, n := range narrations {
		out[i] = e.Classify(n)
	}
	return out
}

// PatternCount reports how many distinct patterns are loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

// BuiltinKeywords is the default narration keyword table, covering common
// Indian consumer merchants and transaction types. Admin keywords from the
// database are layered on top with higher priority.
func BuiltinKeywords() []Keyword {
	table := map[string][]string{
		"Food": {
			"swiggy", "zomato", "dominos", "mcdonald", "kfc", "pizza hut",
			"restaurant", "cafe", "barbeque nation", "dunkin",
		},
		"Groceries": {
			"bigbasket", "blinkit", "zepto", "dmart", "reliance fresh",
			"grocery", "supermarket", "more retail",
		},
		"Transport": {
			"uber", "olacabs", "ola cabs", "rapido", "irctc", "redbus",
			"fastag", "petrol", "fuel", "hpcl", "bpcl", "indian oil",
		},
		"Shopping": {
			"amazon", "flipkart", "myntra", "ajio", "nykaa", "meesho",
			"croma", "decathlon",
		},
		"Entertainment": {
			"netflix", "hotstar", "spotify", "bookmyshow", "sonyliv",
			"prime video", "pvr", "inox",
		},
		"Utilities": {
			"electricity", "bescom", "tneb", "airtel", "jio", "vodafone",
			"broadband", "dth", "lpg", "gas bill", "water bill",
		},
		"Rent":   {"rent", "nobroker", "nestaway"},
		"Health": {"pharmacy", "apollo", "medplus", "pharmeasy", "hospital", "clinic"},
		"Salary": {"salary", "sal credit", "payroll", "wages"},
		"Investments": {
			"zerodha", "groww", "upstox", "mutual fund", "nps", "ppf",
			"fixed deposit",
		},
		"Insurance": {"lic of india", "insurance premium", "policybazaar"},
		"Fees": {
			"annual fee", "amc charge", "sms charge", "late fee",
			"service charge",
		},
		"Cash": {"atm wdl", "atm withdrawal", "atw-", "cash withdrawal", "cash deposit"},
		"Travel": {
			"makemytrip", "goibibo", "cleartrip", "indigo", "air india",
			"vistara", "oyo", "airbnb",
		},
		"Education": {"tuition", "school fee", "college fee", "udemy", "coursera"},
	}

	var keywords []Keyword
	for category, patterns := range table {
		for _, p := range patterns {
			keywords = append(keywords, Keyword{Pattern: p, Category: category})
		}
	}
	return keywords
}
