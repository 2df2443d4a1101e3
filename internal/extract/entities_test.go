package extract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

const walmartReceipt = `WALMART
Save money. Live better.
STORE #4521
DATE: 01/15/2024
GREAT VALUE MILK      3.48
BREAD                 2.50
SUBTOTAL             46.58
TAX                   3.73
TOTAL               $50.31
`

func newTestExtractor() *Extractor {
	return NewExtractor(Config{MinYear: 1900, FutureGrace: 24 * time.Hour, DefaultCurrency: "USD", Now: fixedNow})
}

func TestExtractRetailReceipt(t *testing.T) {
	e := newTestExtractor().Extract(walmartReceipt)

	require.NotNil(t, e.Date)
	assert.Equal(t, "2024-01-15", e.Date.Value.Format("2006-01-02"))
	require.NotNil(t, e.Amount)
	assert.Equal(t, "50.31", e.Amount.Value.StringFixed(2))
	require.NotNil(t, e.Vendor)
	assert.Contains(t, e.Vendor.Value, "WALMART")
	assert.Equal(t, "USD", e.Currency)
	assert.NotEqual(t, constants.DescriptionSentinel, e.Description)
	assert.Len(t, e.AllDates, 1)
	assert.Len(t, e.AllAmounts, 1)
}

func TestExtractEmptyDocument(t *testing.T) {
	for _, text := range []string{"", "   \n\t  \n"} {
		e := newTestExtractor().Extract(text)
		assert.Nil(t, e.Date)
		assert.Nil(t, e.Amount)
		assert.Nil(t, e.Vendor)
		assert.Equal(t, constants.DescriptionSentinel, e.Description)
		assert.Equal(t, "USD", e.Currency)
		assert.Empty(t, e.AllDates)
		assert.Empty(t, e.AllAmounts)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	x := newTestExtractor()
	texts := []string{
		walmartReceipt,
		"Invoice date: March 3, 2024\nFrom: Acme Supplies LLC\nAmount Due: EUR 1.234,56",
		"",
	}
	for _, text := range texts {
		first, err := json.Marshal(x.Extract(text))
		require.NoError(t, err)
		second, err := json.Marshal(x.Extract(text))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second))

		fresh, err := json.Marshal(newTestExtractor().Extract(text))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(fresh))
	}
}

func TestExtractBestIsInAllLists(t *testing.T) {
	e := newTestExtractor().Extract("Date: 2024-03-01\nPrinted 2024-03-02\nTotal: $12.00\nGrand Total: $14.00")

	require.NotNil(t, e.Date)
	require.NotNil(t, e.Amount)
	assert.Contains(t, e.AllDates, *e.Date)
	assert.Contains(t, e.AllAmounts, *e.Amount)
	for _, d := range e.AllDates {
		assert.LessOrEqual(t, d.Confidence, e.Date.Confidence)
	}
	for _, a := range e.AllAmounts {
		assert.LessOrEqual(t, a.Confidence, e.Amount.Confidence)
	}
}
