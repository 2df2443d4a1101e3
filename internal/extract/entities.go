// Package extract recovers dates, amounts, vendor, currency and a short
// description from document text. Every function here is pure and total:
// unmatched input yields empty results, never an error.
package extract

import (
	"time"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

type Config struct {
	MinYear         int
	FutureGrace     time.Duration
	DefaultCurrency string
	Now             func() time.Time
}

type Extractor struct {
	dates           DateConfig
	defaultCurrency string
	amountMatchers  []AmountMatcher
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = constants.DefaultCurrency
	}
	return &Extractor{
		dates: DateConfig{
			MinYear:     cfg.MinYear,
			FutureGrace: cfg.FutureGrace,
			Now:         cfg.Now,
		},
		defaultCurrency: cfg.DefaultCurrency,
		amountMatchers:  DefaultAmountMatchers(),
	}
}

// Extract runs every field extractor over text.
func (x *Extractor) Extract(text string) entity.ExtractedEntities {
	allDates, date := ExtractDates(text, x.dates)
	allAmounts, amount := ReduceAmounts(text, x.amountMatchers)

	return entity.ExtractedEntities{
		Date:        date,
		Amount:      amount,
		Vendor:      ExtractVendor(text),
		Currency:    DetectCurrency(text, x.defaultCurrency),
		Description: Describe(text),
		AllDates:    allDates,
		AllAmounts:  allAmounts,
	}
}
