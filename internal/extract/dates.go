package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// DateCandidate is a scored date match.
type DateCandidate = entity.ExtractedField[time.Time]

// DateConfig bounds which parsed dates are accepted.
type DateConfig struct {
	MinYear     int           // reject years before this, default 1900
	FutureGrace time.Duration // reject dates later than Now()+FutureGrace
	Now         func() time.Time
}

func (c DateConfig) withDefaults() DateConfig {
	if c.MinYear <= 0 {
		c.MinYear = 1900
	}
	if c.FutureGrace < 0 {
		c.FutureGrace = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

const (
	confNumericDate = 0.85
	confWrittenDate = 0.90
	confCompactDate = 0.88
	dateKeywordBump = 0.10
	maxConfidence   = 0.99

	// twoDigitYearPivot: YY below this is 20YY, otherwise 19YY.
	twoDigitYearPivot = 51
	keywordWindow     = 30
)

const monthAlt = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

type dateFormat struct {
	name  string
	re    *regexp.Regexp
	base  float64
	parse func(m []string) (year int, month time.Month, day int, ok bool)
}

var dateFormats = []dateFormat{
	{
		name: "iso",
		re:   regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),
		base: confNumericDate,
		parse: func(m []string) (int, time.Month, int, bool) {
			return atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), true
		},
	},
	{
		name: "us",
		re:   regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4}|\d{2})\b`),
		base: confNumericDate,
		parse: func(m []string) (int, time.Month, int, bool) {
			return expandYear(m[3]), time.Month(atoi(m[1])), atoi(m[2]), true
		},
	},
	{
		name: "written",
		re:   regexp.MustCompile(`(?i)\b` + monthAlt + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		base: confWrittenDate,
		parse: func(m []string) (int, time.Month, int, bool) {
			mon, ok := monthFromName(m[1])
			return atoi(m[3]), mon, atoi(m[2]), ok
		},
	},
	{
		name: "compact",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?(?:\s+|-)` + monthAlt + `\.?(?:\s+|-),?\s*(\d{4})\b`),
		base: confCompactDate,
		parse: func(m []string) (int, time.Month, int, bool) {
			mon, ok := monthFromName(m[2])
			return atoi(m[3]), mon, atoi(m[1]), ok
		},
	},
	{
		name: "european",
		re:   regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`),
		base: confNumericDate,
		parse: func(m []string) (int, time.Month, int, bool) {
			return atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]), true
		},
	},
}

var dateKeywords = []string{
	"transaction date", "invoice date", "purchase date", "statement date",
	"order date", "due date", "date", "dated", "issued",
}

// ExtractDates returns every valid date in text in order of appearance,
// plus the best one (highest confidence, earliest on ties). best is nil
// when nothing matched.
func ExtractDates(text string, cfg DateConfig) ([]DateCandidate, *DateCandidate) {
	cfg = cfg.withDefaults()
	latest := cfg.Now().Add(cfg.FutureGrace)

	var found []DateCandidate
	for _, f := range dateFormats {
		for _, idx := range f.re.FindAllStringSubmatchIndex(text, -1) {
			m := submatches(text, idx)
			y, mon, d, ok := f.parse(m)
			if !ok {
				continue
			}
			t, ok := validDate(y, mon, d, cfg.MinYear, latest)
			if !ok {
				continue
			}
			conf := f.base
			if nearKeyword(text, idx[0]) {
				conf += dateKeywordBump
			}
			found = append(found, DateCandidate{
				Value:         t,
				Confidence:    round2(math.Min(conf, maxConfidence)),
				SourceSnippet: text[idx[0]:idx[1]],
				Position:      &entity.Position{Start: idx[0], End: idx[1]},
			})
		}
	}

	found = dropOverlapping(found)
	out := make([]DateCandidate, 0, len(found))
	out = append(out, found...)
	return out, bestOf(out)
}

// validDate rejects impossible calendar days and dates outside [minYear, latest].
func validDate(year int, month time.Month, day, minYear int, latest time.Time) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	if year < minYear || t.After(latest) {
		return time.Time{}, false
	}
	return t, true
}

// expandYear windows two-digit years: below the pivot is 20YY, else 19YY.
// Known limitation: the fixed pivot misreads dates as the window ages.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) != 2 {
		return y
	}
	if y < twoDigitYearPivot {
		return 2000 + y
	}
	return 1900 + y
}

func monthFromName(name string) (time.Month, bool) {
	key := strings.ToLower(name)
	if len(key) > 3 {
		key = key[:3]
	}
	m, ok := monthNumbers[key]
	return m, ok
}

func nearKeyword(text string, start int) bool {
	from := start - keywordWindow
	if from < 0 {
		from = 0
	}
	window := strings.ToLower(text[from:start])
	if nl := strings.LastIndexByte(window, '\n'); nl >= 0 {
		window = window[nl+1:]
	}
	for _, kw := range dateKeywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

// dropOverlapping orders candidates by position and keeps the first (and,
// at equal start, most confident) claim on any span of text.
func dropOverlapping[T any](in []entity.ExtractedField[T]) []entity.ExtractedField[T] {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Position.Start != in[j].Position.Start {
			return in[i].Position.Start < in[j].Position.Start
		}
		return in[i].Confidence > in[j].Confidence
	})
	out := in[:0]
	lastEnd := -1
	for _, c := range in {
		if c.Position.Start < lastEnd {
			continue
		}
		out = append(out, c)
		lastEnd = c.Position.End
	}
	return out
}

// bestOf returns the highest-confidence entry, earliest on ties.
func bestOf[T any](in []entity.ExtractedField[T]) *entity.ExtractedField[T] {
	if len(in) == 0 {
		return nil
	}
	best := in[0]
	for _, c := range in[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return &best
}

func submatches(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
