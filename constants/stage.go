package constants

// ProcessingStage is the per-file state of the processing state machine.
type ProcessingStage string

const (
	StageValidating ProcessingStage = "VALIDATING"
	StageExtracting ProcessingStage = "EXTRACTING"
	StageOCR        ProcessingStage = "OCR"
	StageFinalizing ProcessingStage = "FINALIZING"
	StageComplete   ProcessingStage = "COMPLETE"
	StageError      ProcessingStage = "ERROR"
	StageCancelled  ProcessingStage = "CANCELLED"
)

// Terminal reports whether no further transitions are possible from s.
func (s ProcessingStage) Terminal() bool {
	switch s {
	case StageComplete, StageError, StageCancelled:
		return true
	}
	return false
}

// DescriptionSentinel is returned when no usable description line exists.
const DescriptionSentinel = "No description available"

// DefaultCurrency is used when a document carries no currency signal.
const DefaultCurrency = "USD"
