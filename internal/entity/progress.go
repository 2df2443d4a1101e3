package entity

import "github.com/joseph-ayodele/receipts-extractor/constants"

// ProgressError is attached to the progress event emitted when a file fails.
type ProgressError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ProcessingProgress is a transient progress event; it is never stored.
type ProcessingProgress struct {
	FileID      string                    `json:"file_id"`
	Stage       constants.ProcessingStage `json:"stage"`
	Percent     int                       `json:"percent"`
	CurrentPage int                       `json:"current_page,omitempty"`
	TotalPages  int                       `json:"total_pages,omitempty"`
	Error       *ProgressError            `json:"error,omitempty"`
}
