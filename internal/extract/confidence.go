package extract

import (
	"math"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

const (
	// ConfidenceFloor is reported when no date, amount or vendor was found.
	ConfidenceFloor = 0.3
	// OCRDiscount scales confidence down for OCR-sourced text.
	OCRDiscount = 0.9
)

// AggregateConfidence averages the confidences of the fields that were
// found and applies the OCR discount.
func AggregateConfidence(e entity.ExtractedEntities, ocrUsed bool) float64 {
	var sum float64
	var n int
	if e.Date != nil {
		sum += e.Date.Confidence
		n++
	}
	if e.Amount != nil {
		sum += e.Amount.Confidence
		n++
	}
	if e.Vendor != nil {
		sum += e.Vendor.Confidence
		n++
	}
	if n == 0 {
		return ConfidenceFloor
	}
	mean := sum / float64(n)
	if ocrUsed {
		mean *= OCRDiscount
	}
	return math.Round(mean*10000) / 10000
}
