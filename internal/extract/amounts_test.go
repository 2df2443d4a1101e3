package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

func amountStrings(c []AmountCandidate) []string {
	out := make([]string, 0, len(c))
	for _, a := range c {
		out = append(out, a.Value.StringFixed(2))
	}
	return out
}

func TestExtractAmountsTotalBeatsSubtotal(t *testing.T) {
	all, best := ExtractAmounts("Subtotal: $100.00\nTax: $8.25\nTotal: $108.25")

	require.NotNil(t, best)
	assert.Equal(t, "108.25", best.Value.StringFixed(2))
	assert.GreaterOrEqual(t, best.Confidence, 0.95)
	assert.Equal(t, []string{"108.25"}, amountStrings(all))
}

func TestExtractAmountsPriorityClasses(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		best    string
		all     []string
		minConf float64
		maxConf float64
	}{
		{"spaced sub total ignored", "Sub Total: $100.00\nTotal: $108.25", "108.25", []string{"108.25"}, 0.95, 1.0},
		{"sub-total ignored", "Sub-Total 40.00\nTOTAL 43.20", "43.20", []string{"43.20"}, 0.95, 1.0},
		{"grand total outranks total", "Total: $100.00\nTip: $15.00\nGrand Total: $115.00", "115.00", []string{"100.00", "115.00"}, 1.0, 1.0},
		{"amount due", "Amount Due: 1,234.56", "1234.56", []string{"1234.56"}, 1.0, 1.0},
		{"total with code", "Total (EUR): 12,50", "12.50", []string{"12.50"}, 0.95, 1.0},
		{"symbol amounts", "Coffee $4.50\nMuffin $ 3.25", "4.50", []string{"4.50", "3.25"}, 0.85, 0.9},
		{"subtotal symbol skipped", "Subtotal $9.00\nTip $2.00", "2.00", []string{"2.00"}, 0.85, 0.9},
		{"code suffix", "Paid 99.99 USD", "99.99", []string{"99.99"}, 0.8, 0.8},
		{"code prefix", "Charge USD 500.00", "500.00", []string{"500.00"}, 0.8, 0.8},
		{"unknown code ignored, euro used", "REF 123 paid 12,50 €", "12.50", []string{"12.50"}, 0.85, 0.85},
		{"pound thousands", "Fee £1,234.56", "1234.56", []string{"1234.56"}, 0.85, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all, best := ExtractAmounts(tt.text)
			require.NotNil(t, best)
			assert.Equal(t, tt.best, best.Value.StringFixed(2))
			assert.Equal(t, tt.all, amountStrings(all))
			assert.GreaterOrEqual(t, best.Confidence, tt.minConf)
			assert.LessOrEqual(t, best.Confidence, tt.maxConf)
		})
	}
}

func TestExtractAmountsRange(t *testing.T) {
	all, best := ExtractAmounts("$0.00\n$2,000,000.00")
	assert.Empty(t, all)
	assert.Nil(t, best)
}

func TestExtractAmountsNoMatch(t *testing.T) {
	for _, text := range []string{"", "hello world", "Items: 3"} {
		all, best := ExtractAmounts(text)
		assert.NotNil(t, all)
		assert.Empty(t, all)
		assert.Nil(t, best)
	}
}

type stubMatcher struct {
	name  string
	found []AmountCandidate
}

func (s stubMatcher) Name() string { return s.name }

func (s stubMatcher) Match(string) []AmountCandidate { return s.found }

func pos(start, end int) *entity.Position { return &entity.Position{Start: start, End: end} }

func TestReduceAmountsStopsAtFirstClass(t *testing.T) {
	v, _ := ParseAmount("5.00")
	w, _ := ParseAmount("7.00")
	first := stubMatcher{name: "empty"}
	second := stubMatcher{name: "wins", found: []AmountCandidate{{Value: v, Confidence: 0.5, Position: pos(0, 4)}}}
	third := stubMatcher{name: "never", found: []AmountCandidate{{Value: w, Confidence: 0.99, Position: pos(5, 9)}}}

	all, best := ReduceAmounts("ignored", []AmountMatcher{first, second, third})
	require.NotNil(t, best)
	assert.Equal(t, "5.00", best.Value.StringFixed(2))
	assert.Len(t, all, 1)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1,234.56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{"12,50", "12.50", true},
		{"1.234", "1234.00", true},
		{"1,234", "1234.00", true},
		{"100", "100.00", true},
		{"0.5", "0.50", true},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.StringFixed(2))
			}
		})
	}
}
