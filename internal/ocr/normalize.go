package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^[ \t]*[_\-=│─┃━|]{3,}[ \t]*$`)
	// digit runs where OCR read a zero as the letter O, e.g. "5O.0O" or "2O24"
	reNumericToken = regexp.MustCompile(`\b[\dOo][\dOo.,]*[\dOo]\b`)
)

// Normalize collapses noisy whitespace and fixes common OCR artifacts.
// Conservative: keeps line breaks; collapses >2 newlines into a single blank line.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	// trim trailing spaces on lines
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	// collapse too many blank lines
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	s = reNumericToken.ReplaceAllStringFunc(s, fixZeros)
	return strings.TrimSpace(s)
}

// fixZeros rewrites O/o to 0 in a token that already holds at least one
// real digit. Words made only of O's are left alone.
func fixZeros(tok string) string {
	if !strings.ContainsAny(tok, "0123456789") || !strings.ContainsAny(tok, "Oo") {
		return tok
	}
	return strings.NewReplacer("O", "0", "o", "0").Replace(tok)
}
