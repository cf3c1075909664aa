// Package style holds per-bank narration handling: description cleanup,
// counterparty entity extraction and an advisory commodity classification.
// Each bank formats narrations differently, so the registry maps bank codes
// to Style implementations and falls back to generic heuristics.
package style

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

// Transfer types recognized across banks.
const (
	TransferUPI    = "UPI"
	TransferNEFT   = "NEFT"
	TransferIMPS   = "IMPS"
	TransferRTGS   = "RTGS"
	TransferATM    = "ATM"
	TransferPOS    = "POS"
	TransferCheque = "CHQ"
)

// Entities is the counterparty information extracted from one narration.
// Store and Person are mutually exclusive: a narration names a merchant or a
// human, not both.
type Entities struct {
	Store        string
	Person       string
	VPA          string
	TransferType string
	Branch       string
	BankRef      string
}

// Style is one bank's narration grammar.
type Style interface {
	CleanDescription(desc string) string
	ExtractEntities(desc string) Entities
	ClassifyCommodity(desc string) string
}

// Classifier supplies the commodity label; satisfied by the categorization
// keyword engine.
type Classifier interface {
	Classify(narration string) string
}

// Registry resolves a bank code to its Style. Built once at startup.
type Registry struct {
	styles   map[string]Style
	fallback Style
}

// NewRegistry builds the static bank registry. classifier may be nil, in
// which case commodity classification returns an empty label.
func NewRegistry(classifier Classifier) *Registry {
	base := baseStyle{classifier: classifier}
	return &Registry{
		styles: map[string]Style{
			"HDFC":  hdfcStyle{base},
			"SBIN":  sbinStyle{base},
			"ICICI": iciciStyle{base},
			"AXIS":  axisStyle{base},
			"KOTAK": kotakStyle{base},
		},
		fallback: defaultStyle{base},
	}
}

// Get resolves a bank code, falling back to the base code for qualified
// variants and to the default style for unknown banks.
func (r *Registry) Get(bankCode string) Style {
	code := strings.ToUpper(strings.TrimSpace(bankCode))
	if s, ok := r.styles[code]; ok {
		return s
	}
	if s, ok := r.styles[bankcfg.BaseCode(code)]; ok {
		return s
	}
	return r.fallback
}

// selfTransferRankThreshold is the maximum Levenshtein rank for an extracted
// person name to count as the account holder.
const selfTransferRankThreshold = 3

// IsSelfTransfer reports whether the extracted person name is the account
// holder, tolerating the truncation and reordering banks apply to names.
func IsSelfTransfer(person, holderName string) bool {
	p := normalizeName(person)
	h := normalizeName(holderName)
	if p == "" || h == "" {
		return false
	}
	if p == h || strings.Contains(h, p) || strings.Contains(p, h) {
		return true
	}
	if rank := fuzzy.RankMatchNormalizedFold(p, h); rank >= 0 && rank <= selfTransferRankThreshold {
		return true
	}
	rank := fuzzy.RankMatchNormalizedFold(h, p)
	return rank >= 0 && rank <= selfTransferRankThreshold
}

// ApplySelfTransfer clears the counterparty fields when the person is the
// holder. The transfer type is retained so the transaction still reads as a
// movement between own accounts.
func ApplySelfTransfer(e Entities, holderName string) (Entities, bool) {
	if !IsSelfTransfer(e.Person, holderName) {
		return e, false
	}
	e.Store = ""
	e.Person = ""
	return e, true
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var (
	vpaPattern = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z][a-zA-Z0-9]+`)
	refPattern = regexp.MustCompile(`\b\d{6,}\b`)
	ifscLike   = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
)

// boilerplate tokens stripped before entity extraction; they carry no signal
// and pollute extracted names.
var boilerplate = []string{
	"NO REMARKS",
	"NOREMARKS",
	"NOT AVAILABLE",
	"PAYMENT FROM PHONE",
	"OID",
	"UPI INTENT",
}

// baseStyle carries the shared cleanup and classification machinery every
// bank style embeds.
type baseStyle struct {
	classifier Classifier
}

func (b baseStyle) ClassifyCommodity(desc string) string {
	if b.classifier == nil {
		return ""
	}
	return b.classifier.Classify(desc)
}

func (b baseStyle) clean(desc string) string {
	s := strings.TrimSpace(desc)
	upper := strings.ToUpper(s)
	for _, tok := range boilerplate {
		if idx := strings.Index(upper, tok); idx >= 0 {
			s = s[:idx] + s[idx+len(tok):]
			upper = strings.ToUpper(s)
		}
	}
	s = strings.Trim(s, " -/:*")
	return strings.Join(strings.Fields(s), " ")
}

// transferTypeOf recognizes the transaction channel from its leading tokens.
func transferTypeOf(desc string) string {
	u := strings.ToUpper(desc)
	switch {
	case strings.Contains(u, "UPI"):
		return TransferUPI
	case strings.Contains(u, "NEFT"):
		return TransferNEFT
	case strings.Contains(u, "IMPS"):
		return TransferIMPS
	case strings.Contains(u, "RTGS"):
		return TransferRTGS
	case strings.Contains(u, "ATM") || strings.Contains(u, "ATW"):
		return TransferATM
	case strings.Contains(u, "POS"):
		return TransferPOS
	case strings.Contains(u, "CHQ") || strings.Contains(u, "CHEQUE"):
		return TransferCheque
	}
	return ""
}

// looksLikePerson reports whether a narration token reads as a human name
// rather than a merchant: alphabetic words only, no merchant markers.
func looksLikePerson(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return false
	}
	for _, marker := range []string{"PVT", "LTD", "LIMITED", "LLP", "TECHNOLOGIES", "SOLUTIONS", "STORES", "MART", "SERVICES"} {
		if strings.Contains(strings.ToUpper(n), marker) {
			return false
		}
	}
	for _, f := range strings.Fields(n) {
		for _, r := range f {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

// assignParty routes an extracted display name to Store or Person. p2m forces
// merchant; otherwise the name's shape decides.
func assignParty(e *Entities, name string, p2m bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if !p2m && looksLikePerson(name) {
		e.Person = name
		return
	}
	e.Store = name
}

// defaultStyle handles unknown banks with generic regex heuristics.
type defaultStyle struct {
	baseStyle
}

func (d defaultStyle) CleanDescription(desc string) string {
	s := d.clean(desc)
	// Trailing long digit runs are reference numbers, not narration.
	s = strings.TrimSpace(refPattern.ReplaceAllStringFunc(s, func(m string) string {
		return ""
	}))
	return strings.Join(strings.Fields(s), " ")
}

func (d defaultStyle) ExtractEntities(desc string) Entities {
	e := Entities{TransferType: transferTypeOf(desc)}
	if vpa := vpaPattern.FindString(desc); vpa != "" {
		e.VPA = vpa
	}
	if ref := refPattern.FindString(desc); ref != "" {
		e.BankRef = ref
	}

	// Best-effort party: the longest alphabetic-ish delimited token that is
	// not a channel keyword.
	best := ""
	for _, tok := range strings.FieldsFunc(desc, func(r rune) bool {
		return r == '-' || r == '/' || r == '*' || r == ':'
	}) {
		tok = strings.TrimSpace(tok)
		if tok == "" || vpaPattern.MatchString(tok) || refPattern.MatchString(tok) {
			continue
		}
		if transferTypeOf(tok) != "" && len(strings.Fields(tok)) == 1 {
			continue
		}
		if len(tok) > len(best) {
			best = tok
		}
	}
	// Without a bank grammar the safest split is: UPI narrations with a VPA
	// are merchant payments unless explicitly marked person-to-person.
	p2m := e.VPA != "" && !strings.Contains(strings.ToUpper(desc), "P2A")
	assignParty(&e, best, p2m)
	return e
}
