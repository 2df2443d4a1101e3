package entity

import (
	"github.com/joseph-ayodele/receipts-extractor/constants"
)

// DocumentInput is everything the pipeline receives for one file.
type DocumentInput struct {
	FileID   string
	FileName string
	MimeType string
	Data     []byte
	Size     int64
}

// ValidationResult is produced once per input by the validation gate.
type ValidationResult struct {
	IsValid   bool               `json:"is_valid"`
	Error     string             `json:"error,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`
	FileKind  constants.FileKind `json:"file_kind,omitempty"`
	MimeType  string             `json:"mime_type,omitempty"`
	SizeBytes uint64             `json:"size_bytes,omitempty"`
}

// FileMetadata describes the input file and how its text was acquired.
type FileMetadata struct {
	FileName            string             `json:"file_name"`
	MimeType            string             `json:"mime_type"`
	FileKind            constants.FileKind `json:"file_kind"`
	SizeBytes           uint64             `json:"size_bytes"`
	ContentHash         string             `json:"content_hash"`
	PageCount           int                `json:"page_count"`
	PDFVersion          string             `json:"pdf_version,omitempty"`
	Encrypted           bool               `json:"encrypted,omitempty"`
	ImageWidth          int                `json:"image_width,omitempty"`
	ImageHeight         int                `json:"image_height,omitempty"`
	AcquisitionMethod   string             `json:"acquisition_method"`
	OCRPages            []int              `json:"ocr_pages,omitempty"`
	OCREngineConfidence float64            `json:"ocr_engine_confidence,omitempty"`
}

// ProcessedDocumentResult is the terminal artifact handed to the caller.
type ProcessedDocumentResult struct {
	ID               string            `json:"id"`
	RawText          string            `json:"raw_text"`
	Entities         ExtractedEntities `json:"entities"`
	FileMetadata     FileMetadata      `json:"file_metadata"`
	Confidence       float64           `json:"confidence"`
	OCRUsed          bool              `json:"ocr_used"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}
