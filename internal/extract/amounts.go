package extract

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// AmountCandidate is a scored monetary value.
type AmountCandidate = entity.ExtractedField[decimal.Decimal]

// AmountMatcher is one priority class of the amount extractor. Matchers
// are tried in order and the first class that yields a candidate wins.
type AmountMatcher interface {
	Name() string
	Match(text string) []AmountCandidate
}

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.NewFromInt(1_000_000)
)

// number accepts 1,234.56 / 1.234,56 / 1234.56 / 12,50 and bare integers.
const number = `(?P<amt>\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)\b`

// regexMatcher turns every match of its patterns into a candidate with a
// fixed confidence, or a per-match confidence when scoreFn is set.
type regexMatcher struct {
	name       string
	confidence float64
	patterns   []*regexp.Regexp
	scoreFn    func(match string) float64
	acceptFn   func(text string, m []string, names []string) bool
}

func (r regexMatcher) Name() string { return r.name }

func (r regexMatcher) Match(text string) []AmountCandidate {
	var out []AmountCandidate
	for _, re := range r.patterns {
		ai := re.SubexpIndex("amt")
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			if ai < 0 || idx[2*ai] < 0 {
				continue
			}
			m := submatches(text, idx)
			if r.acceptFn != nil && !r.acceptFn(text, m, re.SubexpNames()) {
				continue
			}
			if isSubtotal(text, idx[0]) {
				continue
			}
			v, ok := ParseAmount(m[ai])
			if !ok || !inRange(v) {
				continue
			}
			conf := r.confidence
			if r.scoreFn != nil {
				conf = r.scoreFn(m[0])
			}
			out = append(out, AmountCandidate{
				Value:         v,
				Confidence:    conf,
				SourceSnippet: strings.TrimSpace(text[idx[0]:idx[1]]),
				Position:      &entity.Position{Start: idx[0], End: idx[1]},
			})
		}
	}
	return out
}

// totalCodes are the ISO codes allowed between a total keyword and its value, e.g. "Total (EUR): 12,50".
const totalCodes = `(?-i:USD|EUR|GBP|CAD|AUD|NZD|JPY|CNY|INR|CHF|MXN|SGD|HKD|ZAR)`

var (
	keywordTotals = regexMatcher{
		name: "keyword-total",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?P<kw>grand\s+total|total\s+amount|total\s+due|amount\s+due|balance\s+due|total)\b` +
				`(?:\s*\(?` + totalCodes + `\)?)?\s*[:=]?\s*(?:[$€£¥₹]\s?)?` + number),
		},
		// A bare "Total" ranks just under explicit grand totals and amounts due.
		scoreFn: func(match string) float64 {
			kw := strings.ToLower(match)
			if strings.HasPrefix(kw, "total") && !strings.HasPrefix(kw, "total amount") && !strings.HasPrefix(kw, "total due") {
				return 0.97
			}
			return 1.0
		},
	}

	symbolAmounts = regexMatcher{
		name:       "currency-symbol",
		confidence: 0.88,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`[$¥₹]\s?` + number),
		},
	}

	codeAmounts = regexMatcher{
		name:       "currency-code",
		confidence: 0.80,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?P<code>[A-Z]{3})\s?` + number),
			regexp.MustCompile(`\b` + number + `\s?(?P<code>[A-Z]{3})\b`),
		},
		acceptFn: func(_ string, m []string, names []string) bool {
			for i, n := range names {
				if n == "code" {
					return money.GetCurrency(m[i]) != nil
				}
			}
			return false
		},
	}

	euroPoundAmounts = regexMatcher{
		name:       "eur-gbp-symbol",
		confidence: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`[€£]\s?` + number),
			regexp.MustCompile(`\b` + number + `\s?[€£]`),
		},
	}
)

// DefaultAmountMatchers lists the amount priority classes, highest first.
func DefaultAmountMatchers() []AmountMatcher {
	return []AmountMatcher{keywordTotals, symbolAmounts, codeAmounts, euroPoundAmounts}
}

// ExtractAmounts runs the default matchers through ReduceAmounts.
func ExtractAmounts(text string) ([]AmountCandidate, *AmountCandidate) {
	return ReduceAmounts(text, DefaultAmountMatchers())
}

// ReduceAmounts stops at the first matcher class with at least one
// candidate. It returns that class's candidates in order of appearance and
// the best of them.
func ReduceAmounts(text string, matchers []AmountMatcher) ([]AmountCandidate, *AmountCandidate) {
	for _, m := range matchers {
		found := m.Match(text)
		if len(found) == 0 {
			continue
		}
		found = dropOverlapping(found)
		out := make([]AmountCandidate, 0, len(found))
		out = append(out, found...)
		return out, bestOf(out)
	}
	return []AmountCandidate{}, nil
}

// ParseAmount parses a printed amount, inferring which of ',' and '.' is
// the decimal separator.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func inRange(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(minAmount) && v.LessThanOrEqual(maxAmount)
}

// isSubtotal reports whether the match at start sits on a subtotal line,
// e.g. "Subtotal: $100.00" or "Sub Total 100.00".
func isSubtotal(text string, start int) bool {
	lineStart := strings.LastIndexByte(text[:start], '\n') + 1
	prefix := strings.ToLower(text[lineStart:start])
	prefix = strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(prefix)
	return strings.Contains(prefix, "subtotal") || strings.HasSuffix(prefix, "sub")
}
