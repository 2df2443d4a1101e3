package pipeline

import (
	"fmt"
	"slices"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

// stageStart is the implicit state before the first transition.
const stageStart constants.ProcessingStage = ""

var transitions = map[constants.ProcessingStage][]constants.ProcessingStage{
	stageStart:                {constants.StageValidating},
	constants.StageValidating: {constants.StageExtracting, constants.StageError, constants.StageCancelled},
	constants.StageExtracting: {constants.StageOCR, constants.StageFinalizing, constants.StageError, constants.StageCancelled},
	constants.StageOCR:        {constants.StageFinalizing, constants.StageError, constants.StageCancelled},
	constants.StageFinalizing: {constants.StageComplete, constants.StageError, constants.StageCancelled},
}

// canTransition reports whether the state machine allows from -> to.
// Terminal stages have no outgoing edges.
func canTransition(from, to constants.ProcessingStage) bool {
	return slices.Contains(transitions[from], to)
}

func invalidTransition(from, to constants.ProcessingStage) error {
	return &common.ProcessingError{
		Kind:    common.KindExtraction,
		Code:    common.CodeInvalidTransition,
		Message: fmt.Sprintf("invalid stage transition %q -> %q", from, to),
	}
}
