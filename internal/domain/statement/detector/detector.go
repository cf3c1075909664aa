// Package detector identifies the issuing bank of an extracted statement by
// scanning its text for registered detection keywords.
package detector

import (
	"strings"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

// Match is the outcome of a detection run, kept for diagnostics.
type Match struct {
	BankCode string
	Keyword  string
}

// Detect scans text against every config's detection keywords, case
// insensitive substring match. Configs are tried in priority order and the
// first matching priority tier wins; within a tier the longest matched
// keyword wins since it is the most specific signal. Returns
// bankcfg.BankUnknown when nothing matches.
func Detect(text string, configs []bankcfg.ParserConfig) string {
	return DetectMatch(text, configs).BankCode
}

// DetectMatch is Detect plus the keyword that fired, for debug logs.
func DetectMatch(text string, configs []bankcfg.ParserConfig) Match {
	haystack := strings.ToLower(text)

	best := Match{BankCode: bankcfg.BankUnknown}
	matchedPriority := 0
	for _, cfg := range configs {
		if best.Keyword != "" && cfg.Priority > matchedPriority {
			break
		}
		for _, kw := range cfg.DetectionKeywords {
			needle := strings.ToLower(strings.TrimSpace(kw))
			if needle == "" || !strings.Contains(haystack, needle) {
				continue
			}
			if len(needle) > len(best.Keyword) {
				best = Match{BankCode: cfg.BankCode, Keyword: needle}
				matchedPriority = cfg.Priority
			}
		}
	}
	return best
}
