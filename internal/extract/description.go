package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

const (
	descMinLineLen = 10
	descMaxLineLen = 100
	descMaxLines   = 3
	descBudget     = 200
	descSeparator  = " | "
	descMinLetters = 3
)

// Describe joins the first few substantive lines of text into a short
// summary, or returns constants.DescriptionSentinel.
func Describe(text string) string {
	var parts []string
	total := 0
	for _, l := range splitLines(text) {
		if len(parts) == descMaxLines {
			break
		}
		n := utf8.RuneCountInString(l.text)
		if n < descMinLineLen || n > descMaxLineLen || countLetters(l.text) < descMinLetters {
			continue
		}
		add := n
		if len(parts) > 0 {
			add += len(descSeparator)
		}
		if total+add > descBudget {
			break
		}
		parts = append(parts, l.text)
		total += add
	}
	if len(parts) == 0 {
		return constants.DescriptionSentinel
	}
	return strings.Join(parts, descSeparator)
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
