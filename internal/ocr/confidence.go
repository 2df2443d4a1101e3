package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b(?:\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4})\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€¥₹]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }

// heuristicConfidence scores recognized text on a 0..100 scale from the
// receipt artifacts it contains. Used when tesseract reports no word
// confidences.
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := 20.0 // base
	if hasDatePattern(txtL) {
		score += 20
	}
	if hasCurrencyPattern(txtL) {
		score += 15
	}
	if hasAmountPattern(txtL) {
		score += 15
	}
	if len(txt) > 120 {
		score += 10
	} // enough content
	return score
}
