package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a half-open [Start, End) byte range into the source text.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ExtractedField is one scored candidate recovered from document text.
type ExtractedField[T any] struct {
	Value         T         `json:"value"`
	Confidence    float64   `json:"confidence"`
	SourceSnippet string    `json:"source_snippet,omitempty"`
	Position      *Position `json:"position,omitempty"`
}

// ExtractedEntities is the typed outcome of running every field extractor
// over one document's text. Date and Amount are the best entries of
// AllDates and AllAmounts; Vendor is the first accepted match.
type ExtractedEntities struct {
	Date        *ExtractedField[time.Time]        `json:"date"`
	Amount      *ExtractedField[decimal.Decimal]  `json:"amount"`
	Vendor      *ExtractedField[string]           `json:"vendor"`
	Currency    string                            `json:"currency"`
	Description string                            `json:"description"`
	AllDates    []ExtractedField[time.Time]       `json:"all_dates"`
	AllAmounts  []ExtractedField[decimal.Decimal] `json:"all_amounts"`
}
