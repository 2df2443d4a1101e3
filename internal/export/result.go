// Package export serializes processed documents: schema-checked JSON for a
// single result and an xlsx workbook for a batch.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

const dateLayout = "2006-01-02"

type fieldJSON[T any] struct {
	Value      T       `json:"value"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet,omitempty"`
}

// ResultJSON is the external shape of a processed document.
type ResultJSON struct {
	ID                string             `json:"id"`
	FileName          string             `json:"file_name,omitempty"`
	Date              *fieldJSON[string] `json:"date"`
	Amount            *fieldJSON[string] `json:"amount"`
	Vendor            *fieldJSON[string] `json:"vendor"`
	Currency          string             `json:"currency"`
	Description       string             `json:"description"`
	Confidence        float64            `json:"confidence"`
	OCRUsed           bool               `json:"ocr_used"`
	AcquisitionMethod string             `json:"acquisition_method"`
	PageCount         int                `json:"page_count"`
	ContentHash       string             `json:"content_hash,omitempty"`
	ProcessingTimeMs  int64              `json:"processing_time_ms"`
	RawText           string             `json:"raw_text,omitempty"`
}

// Options control optional parts of the JSON.
type Options struct {
	IncludeRawText bool
}

// ToResultJSON flattens res. Dates are YYYY-MM-DD and amounts carry
// exactly two decimals.
func ToResultJSON(res *entity.ProcessedDocumentResult, opts Options) ResultJSON {
	e := res.Entities
	out := ResultJSON{
		ID:                res.ID,
		FileName:          res.FileMetadata.FileName,
		Currency:          e.Currency,
		Description:       e.Description,
		Confidence:        res.Confidence,
		OCRUsed:           res.OCRUsed,
		AcquisitionMethod: res.FileMetadata.AcquisitionMethod,
		PageCount:         res.FileMetadata.PageCount,
		ContentHash:       res.FileMetadata.ContentHash,
		ProcessingTimeMs:  res.ProcessingTimeMs,
	}
	if e.Date != nil {
		out.Date = &fieldJSON[string]{Value: e.Date.Value.Format(dateLayout), Confidence: e.Date.Confidence, Snippet: e.Date.SourceSnippet}
	}
	if e.Amount != nil {
		out.Amount = &fieldJSON[string]{Value: e.Amount.Value.StringFixed(2), Confidence: e.Amount.Confidence, Snippet: e.Amount.SourceSnippet}
	}
	if e.Vendor != nil {
		out.Vendor = &fieldJSON[string]{Value: e.Vendor.Value, Confidence: e.Vendor.Confidence, Snippet: e.Vendor.SourceSnippet}
	}
	if opts.IncludeRawText {
		out.RawText = res.RawText
	}
	return out
}

// MarshalResult renders res as indented JSON and checks it against
// ResultSchema before returning it.
func MarshalResult(res *entity.ProcessedDocumentResult, opts Options) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("marshal result: nil result")
	}
	b, err := json.MarshalIndent(ToResultJSON(res, opts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if err := ValidateResultJSON(b); err != nil {
		return nil, err
	}
	return b, nil
}
