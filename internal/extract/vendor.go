package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// VendorCandidate is the accepted merchant name.
type VendorCandidate = entity.ExtractedField[string]

const vendorHeaderLines = 5

var (
	reVendorLabel    = regexp.MustCompile(`(?im)^[ \t]*(?:from|merchant|vendor|store|shop)[ \t]*:[ \t]*(\S.*)$`)
	reCompanyShape   = regexp.MustCompile(`^[A-Z][A-Z &'.\-]{1,38}[A-Z.']$`)
	reThankYou       = regexp.MustCompile(`(?i)thank\s+you\s+for\s+(?:shopping|dining|visiting|choosing)\s+(?:at|with)\s+([A-Za-z0-9&' \-]{2,40})`)
	reCorporateSufx  = regexp.MustCompile(`(?i)^(.{2,60}?\b(?:inc|llc|ltd|corp|corporation|co|gmbh|plc|limited))\b\.?`)
	reStoreNumber    = regexp.MustCompile(`#\s*\d+`)
	reTrailingPunct  = regexp.MustCompile(`[\s,.;:!?*#\-]+$`)
	reLeadingPunct   = regexp.MustCompile(`^[\s,.;:!?*#\-]+`)
	reMultipleSpaces = regexp.MustCompile(`\s{2,}`)
)

// genericWords are document-type and receipt-furniture words that are never a merchant.
var genericWords = []string{
	"RECEIPT", "INVOICE", "STATEMENT", "TAX INVOICE", "SALES RECEIPT", "BILL",
	"TOTAL", "SUBTOTAL", "CASH", "CHANGE", "THANK YOU", "DATE", "ORDER", "STORE",
}

type vendorRule struct {
	confidence float64
	find       func(text string, lines []textLine) []textLine
}

// textLine is a trimmed line with its byte offset into the source text.
type textLine struct {
	text  string
	start int
}

var vendorRules = []vendorRule{
	{confidence: 0.90, find: labelledVendor},
	{confidence: 0.75, find: capsHeaderVendor},
	{confidence: 0.85, find: thankYouVendor},
	{confidence: 0.70, find: corporateSuffixVendor},
}

// ExtractVendor returns the first merchant name accepted by the ordered
// rules, or nil.
func ExtractVendor(text string) *VendorCandidate {
	lines := splitLines(text)
	for _, rule := range vendorRules {
		for _, c := range rule.find(text, lines) {
			name := CleanVendorName(c.text)
			if name == "" || IsGenericWord(name) {
				continue
			}
			return &VendorCandidate{
				Value:         name,
				Confidence:    rule.confidence,
				SourceSnippet: c.text,
				Position:      &entity.Position{Start: c.start, End: c.start + len(c.text)},
			}
		}
	}
	return nil
}

func labelledVendor(text string, _ []textLine) []textLine {
	var out []textLine
	for _, idx := range reVendorLabel.FindAllStringSubmatchIndex(text, -1) {
		val := strings.TrimRight(text[idx[2]:idx[3]], " \t\r")
		out = append(out, textLine{text: val, start: idx[2]})
	}
	return out
}

func capsHeaderVendor(_ string, lines []textLine) []textLine {
	var out []textLine
	for i, l := range lines {
		if i >= vendorHeaderLines {
			break
		}
		n := utf8.RuneCountInString(l.text)
		if n < 3 || n > 40 || !reCompanyShape.MatchString(l.text) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func thankYouVendor(text string, _ []textLine) []textLine {
	var out []textLine
	for _, idx := range reThankYou.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, textLine{text: strings.TrimSpace(text[idx[2]:idx[3]]), start: idx[2]})
	}
	return out
}

func corporateSuffixVendor(_ string, lines []textLine) []textLine {
	var out []textLine
	for i, l := range lines {
		if i >= vendorHeaderLines {
			break
		}
		if m := reCorporateSufx.FindStringSubmatch(l.text); m != nil {
			out = append(out, textLine{text: m[1], start: l.start})
		}
	}
	return out
}

// CleanVendorName strips store/reference numbers and stray punctuation and
// collapses whitespace.
func CleanVendorName(s string) string {
	s = reStoreNumber.ReplaceAllString(s, " ")
	s = reMultipleSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = reTrailingPunct.ReplaceAllString(s, "")
	s = reLeadingPunct.ReplaceAllString(s, "")
	if !strings.ContainsFunc(s, unicode.IsLetter) {
		return ""
	}
	return s
}

// IsGenericWord reports whether name is a generic document word, tolerating
// one OCR substitution in longer words (RECElPT, INV0ICE).
func IsGenericWord(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, w := range genericWords {
		if upper == w {
			return true
		}
		if len(w) >= 5 && len(upper) == len(w) && fuzzy.LevenshteinDistance(upper, w) <= 1 {
			return true
		}
	}
	return false
}

func splitLines(text string) []textLine {
	var out []textLine
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			out = append(out, textLine{text: trimmed, start: offset + lead})
		}
		offset += len(raw)
	}
	return out
}
