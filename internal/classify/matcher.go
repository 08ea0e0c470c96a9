// Package classify suggests ledger accounts for free-text transaction
// descriptions using a static pattern table. Pure lookup, no state.
package classify

import (
	"regexp"
	"sort"
	"strings"
)

// MatchKind selects how a pattern is applied to the description.
type MatchKind string

const (
	KindExact      MatchKind = "exact"
	KindContains   MatchKind = "contains"
	KindStartsWith MatchKind = "starts_with"
	KindRegex      MatchKind = "regex"
)

// Pattern maps a description shape to a suggested account code.
type Pattern struct {
	Name        string    `json:"name"`
	Kind        MatchKind `json:"kind"`
	Expr        string    `json:"expr"`
	AccountCode string    `json:"accountCode"`
	Confidence  float64   `json:"confidence"`

	re *regexp.Regexp
}

// Suggestion is the outcome of a match.
type Suggestion struct {
	Pattern     string  `json:"pattern"`
	AccountCode string  `json:"accountCode"`
	Confidence  float64 `json:"confidence"`
}

// patterns is the built-in industry table. Regexes compile at init;
// a bad expression is a programmer error and panics on startup.
var patterns = compile([]Pattern{
	{Name: "payroll", Kind: KindRegex, Expr: `(?i)\b(payroll|salar(y|ies)|wages)\b`, AccountCode: "6000", Confidence: 0.95},
	{Name: "rent", Kind: KindRegex, Expr: `(?i)\b(rent|lease)\b`, AccountCode: "6100", Confidence: 0.9},
	{Name: "utilities", Kind: KindRegex, Expr: `(?i)\b(electric(ity)?|water|gas bill|utility)\b`, AccountCode: "6200", Confidence: 0.85},
	{Name: "software", Kind: KindContains, Expr: "subscription", AccountCode: "6300", Confidence: 0.7},
	{Name: "saas-vendors", Kind: KindRegex, Expr: `(?i)\b(aws|google cloud|azure|github|slack)\b`, AccountCode: "6300", Confidence: 0.8},
	{Name: "bank-fees", Kind: KindStartsWith, Expr: "bank fee", AccountCode: "6400", Confidence: 0.9},
	{Name: "interest-income", Kind: KindContains, Expr: "interest", AccountCode: "4100", Confidence: 0.6},
	{Name: "travel", Kind: KindRegex, Expr: `(?i)\b(airfare|hotel|uber|taxi|mileage)\b`, AccountCode: "6500", Confidence: 0.75},
	{Name: "office-supplies", Kind: KindContains, Expr: "office suppl", AccountCode: "6600", Confidence: 0.8},
	{Name: "insurance", Kind: KindContains, Expr: "insurance", AccountCode: "6700", Confidence: 0.85},
	{Name: "vat-refund", Kind: KindExact, Expr: "vat refund", AccountCode: "2150", Confidence: 1.0},
})

func compile(in []Pattern) []Pattern {
	for i := range in {
		if in[i].Kind == KindRegex {
			in[i].re = regexp.MustCompile(in[i].Expr)
		}
	}
	return in
}

// Patterns returns the table ordered by descending confidence.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Match returns the highest-confidence suggestion for a description,
// or ok=false when nothing applies.
func Match(description string) (Suggestion, bool) {
	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return Suggestion{}, false
	}

	var best *Pattern
	for i := range patterns {
		p := &patterns[i]
		if !p.applies(needle) {
			continue
		}
		if best == nil || p.Confidence > best.Confidence {
			best = p
		}
	}
	if best == nil {
		return Suggestion{}, false
	}
	return Suggestion{Pattern: best.Name, AccountCode: best.AccountCode, Confidence: best.Confidence}, true
}

func (p *Pattern) applies(needle string) bool {
	switch p.Kind {
	case KindExact:
		return needle == p.Expr
	case KindContains:
		return strings.Contains(needle, p.Expr)
	case KindStartsWith:
		return strings.HasPrefix(needle, p.Expr)
	case KindRegex:
		return p.re.MatchString(needle)
	}
	return false
}
