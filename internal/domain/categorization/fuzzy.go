package categorization

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// NarrationGroup clusters near-identical narrations under one representative.
// Bank narrations embed per-transaction reference numbers, so "SWIGGY ORDER
// 4091" and "SWIGGY ORDER 5512" are the same merchant for keyword-tuning
// purposes.
type NarrationGroup struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}

// GroupSimilarNarrations buckets narrations by Levenshtein-ranked similarity
// against each group's representative. threshold is the maximum rank
// fuzzysearch reports for a member to join (lower = closer; -1 means no
// match). Groups come back largest first.
func GroupSimilarNarrations(narrations []string, threshold int) []NarrationGroup {
	if threshold <= 0 {
		threshold = 10
	}

	var groups []NarrationGroup
	for _, n := range narrations {
		stripped := stripDigits(n)
		if stripped == "" {
			continue
		}

		placed := false
		for i := range groups {
			rank := fuzzy.RankMatchNormalizedFold(stripDigits(groups[i].Representative), stripped)
			if rank >= 0 && rank <= threshold {
				groups[i].Members = append(groups[i].Members, n)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, NarrationGroup{Representative: n, Members: []string{n}})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Members) > len(groups[j].Members)
	})
	return groups
}

// stripDigits removes digit runs so reference numbers do not defeat the
// similarity ranking.
func stripDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
