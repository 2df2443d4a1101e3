package extract

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var reISOCode = regexp.MustCompile(`\b[A-Z]{3}\b`)

// isoLookalikes are ISO 4217 codes that are also common all-caps words on receipts.
var isoLookalikes = map[string]struct{}{
	"ALL": {}, "BAM": {}, "BOB": {}, "CUP": {}, "GEL": {}, "MAD": {},
	"MOP": {}, "PEN": {}, "SOS": {}, "TOP": {}, "TRY": {},
}

// DetectCurrency returns the currency of the earliest currency symbol in
// text, else the first recognised ISO 4217 code, else def.
func DetectCurrency(text, def string) string {
	best, bestAt := "", -1
	for sym, code := range currencySymbols {
		if i := strings.Index(text, sym); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = code, i
		}
	}
	if best != "" {
		return best
	}
	for _, code := range reISOCode.FindAllString(text, -1) {
		if _, skip := isoLookalikes[code]; skip {
			continue
		}
		if money.GetCurrency(code) != nil {
			return code
		}
	}
	if def == "" {
		return "USD"
	}
	return strings.ToUpper(def)
}
