package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/extract"
	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
)

// Percent checkpoints per stage. Extraction fills 10..40 page by page and
// OCR fills 40..90 from the engine's progress.
const (
	pctValidating = 0
	pctExtracting = 10
	pctOCR        = 40
	pctOCRSpan    = 50
	pctFinalizing = 95
	pctComplete   = 100
)

// job is the state of one file moving through the state machine.
type job struct {
	p      *Processor
	ctx    context.Context
	in     *entity.DocumentInput
	opts   Options
	emit   func(entity.ProcessingProgress)
	fileID string
	logger *slog.Logger

	stage   constants.ProcessingStage
	percent int

	textDoc   textextract.Document
	rasterDoc textextract.RasterDocument
}

type acquired struct {
	text    string
	ocrUsed bool
}

func (j *job) run() (*entity.ProcessedDocumentResult, error) {
	if err := j.enter(constants.StageValidating, pctValidating); err != nil {
		return nil, err
	}
	vr, err := j.p.gate.Validate(j.in)
	if err != nil {
		return nil, err
	}
	meta := entity.FileMetadata{
		FileName:    j.in.FileName,
		MimeType:    vr.MimeType,
		FileKind:    vr.FileKind,
		SizeBytes:   vr.SizeBytes,
		ContentHash: ContentHash(j.in.Data),
	}

	if err := j.checkpoint(); err != nil {
		return nil, err
	}
	if err := j.enter(constants.StageExtracting, pctExtracting); err != nil {
		return nil, err
	}
	var acq acquired
	if vr.FileKind == constants.FileKindPDF {
		acq, err = j.acquirePDF(&meta)
	} else {
		acq, err = j.acquireImage(&meta)
	}
	if err != nil {
		return nil, err
	}
	j.release()

	if err := j.checkpoint(); err != nil {
		return nil, err
	}
	if err := j.enter(constants.StageFinalizing, pctFinalizing); err != nil {
		return nil, err
	}
	entities := j.p.extractor.Extract(acq.text)
	res := &entity.ProcessedDocumentResult{
		ID:           uuid.NewString(),
		RawText:      acq.text,
		Entities:     entities,
		FileMetadata: meta,
		Confidence:   extract.AggregateConfidence(entities, acq.ocrUsed),
		OCRUsed:      acq.ocrUsed,
	}
	if err := j.enter(constants.StageComplete, pctComplete); err != nil {
		return nil, err
	}
	return res, nil
}

func (j *job) acquirePDF(meta *entity.FileMetadata) (acquired, error) {
	info, err := textextract.InspectPDF(j.in.Data)
	if err != nil {
		return acquired{}, common.NewMalformedError("document could not be parsed as a PDF", err)
	}
	meta.PageCount = info.PageCount
	meta.PDFVersion = info.Version
	meta.Encrypted = info.Encrypted

	doc, err := j.p.engines.Text.Open(j.in.Data)
	if err != nil {
		return acquired{}, common.NewMalformedError("document text layer could not be opened", err)
	}
	j.textDoc = doc

	layer, err := textextract.ExtractText(doc, j.opts.Thresholds, j.checkpoint, func(current, total int) {
		j.progress(pctExtracting+(pctOCR-pctExtracting)*current/total, current, total)
	})
	if err != nil {
		return acquired{}, err
	}
	j.closeText()

	needOCR, reason := textextract.Decide(layer, j.opts.Thresholds, j.opts.ForceOCR)
	j.logger.Info("pipeline.extract.ok",
		"pages", len(layer.Pages),
		"chars", layer.TotalChars,
		"low_text_pages", layer.LowTextPages,
		"ocr", needOCR,
		"reason", reason,
	)
	if !needOCR {
		meta.AcquisitionMethod = constants.MethodPDFText
		return acquired{text: layer.Text()}, nil
	}

	if err := j.checkpoint(); err != nil {
		return acquired{}, err
	}
	if err := j.enter(constants.StageOCR, pctOCR); err != nil {
		return acquired{}, err
	}
	if j.p.engines.Raster == nil || j.p.engines.OCR == nil {
		return acquired{}, common.NewExtractionError(common.CodeOCRFailed, "document needs OCR but no OCR engine is configured", nil)
	}
	rd, err := j.p.engines.Raster.Open(j.ctx, j.in.Data)
	if err != nil {
		return acquired{}, common.NewExtractionError(common.CodeRasterize, "document could not be opened for rendering", err)
	}
	j.rasterDoc = rd

	pages := textextract.OCRPages(len(layer.Pages), j.opts.OCRMaxPages)
	out, err := textextract.RecognizePages(j.ctx, rd, j.p.engines.OCR, pages, j.opts.OCRScale, j.opts.Language, j.checkpoint, j.ocrProgress(len(layer.Pages)))
	if err != nil {
		return acquired{}, err
	}
	j.logger.Info("pipeline.ocr.ok", "pages", out.Pages, "engine_confidence", out.Confidence, "chars", len(out.Text))

	meta.AcquisitionMethod = constants.MethodPDFOCR
	meta.OCRPages = out.Pages
	meta.OCREngineConfidence = out.Confidence
	return acquired{text: out.Text, ocrUsed: true}, nil
}

func (j *job) acquireImage(meta *entity.FileMetadata) (acquired, error) {
	img, format, err := textextract.DecodeImage(j.in.Data)
	if err != nil {
		return acquired{}, common.NewExtractionError(common.CodeImageDecode, "image could not be decoded", err)
	}
	b := img.Bounds()
	meta.PageCount = 1
	meta.ImageWidth = b.Dx()
	meta.ImageHeight = b.Dy()
	j.progress(pctOCR, 1, 1)
	j.logger.Debug("pipeline.image.decoded", "format", format, "width", b.Dx(), "height", b.Dy())

	if err := j.checkpoint(); err != nil {
		return acquired{}, err
	}
	if err := j.enter(constants.StageOCR, pctOCR); err != nil {
		return acquired{}, err
	}
	if j.p.engines.OCR == nil {
		return acquired{}, common.NewExtractionError(common.CodeOCRFailed, "image needs OCR but no OCR engine is configured", nil)
	}
	out, err := textextract.RecognizeImage(j.ctx, j.p.engines.OCR, img, j.opts.Language, j.ocrProgress(1))
	if err != nil {
		return acquired{}, err
	}
	j.logger.Info("pipeline.ocr.ok", "pages", out.Pages, "engine_confidence", out.Confidence, "chars", len(out.Text))

	meta.AcquisitionMethod = constants.MethodImageOCR
	meta.OCRPages = out.Pages
	meta.OCREngineConfidence = out.Confidence
	return acquired{text: out.Text, ocrUsed: true}, nil
}

func (j *job) ocrProgress(totalPages int) textextract.OCRProgress {
	return func(percent, page int) {
		j.progress(pctOCR+pctOCRSpan*percent/100, page, totalPages)
	}
}

// checkpoint returns a cancellation error when the file was cancelled or
// its context is done.
func (j *job) checkpoint() error {
	if j.p.cancelRequested(j.ctx, j.fileID) {
		return common.NewCancelledError(j.fileID)
	}
	return nil
}

// enter moves the state machine to stage and publishes the transition.
func (j *job) enter(stage constants.ProcessingStage, percent int) error {
	if !canTransition(j.stage, stage) {
		return invalidTransition(j.stage, stage)
	}
	j.logger.Debug("pipeline.stage", "from", string(j.stage), "to", string(stage))
	j.stage = stage
	if percent > j.percent {
		j.percent = percent
	}
	j.emit(entity.ProcessingProgress{FileID: j.fileID, Stage: stage, Percent: j.percent})
	return nil
}

// progress publishes an update within the current stage. Percent never
// moves backwards.
func (j *job) progress(percent, current, total int) {
	if percent > j.percent {
		j.percent = percent
	}
	j.emit(entity.ProcessingProgress{
		FileID:      j.fileID,
		Stage:       j.stage,
		Percent:     j.percent,
		CurrentPage: current,
		TotalPages:  total,
	})
}

// fail releases engine handles, publishes the terminal event and returns
// the typed error for the caller.
func (j *job) fail(err error) error {
	j.release()

	pe, ok := common.AsProcessingError(err)
	if !ok {
		code := common.CodeTextExtraction
		if j.stage == constants.StageOCR {
			code = common.CodeOCRFailed
		}
		pe = common.NewExtractionError(code, "processing failed", err)
	}
	// an engine call aborted by cancellation is a cancellation, not a failure
	if pe.Kind == common.KindExtraction && j.p.cancelRequested(j.ctx, j.fileID) {
		pe = common.NewCancelledError(j.fileID)
	}

	if pe.Kind == common.KindCancelled {
		if canTransition(j.stage, constants.StageCancelled) {
			j.stage = constants.StageCancelled
		}
		j.logger.Info("pipeline.cancelled", "percent", j.percent)
		j.emit(entity.ProcessingProgress{FileID: j.fileID, Stage: constants.StageCancelled, Percent: j.percent})
		return pe
	}

	if canTransition(j.stage, constants.StageError) {
		j.logger.Error("pipeline.failed",
			"stage", string(j.stage),
			"code", pe.Code,
			"recoverable", pe.Recoverable,
			"err", err,
		)
		j.stage = constants.StageError
	}
	j.emit(entity.ProcessingProgress{
		FileID:  j.fileID,
		Stage:   constants.StageError,
		Percent: j.percent,
		Error: &entity.ProgressError{
			Code:        pe.Code,
			Message:     pe.Message,
			Recoverable: pe.Recoverable,
		},
	})
	return pe
}

func (j *job) closeText() {
	if j.textDoc == nil {
		return
	}
	if err := j.textDoc.Close(); err != nil {
		j.logger.Warn("pipeline.text.close_failed", "err", err)
	}
	j.textDoc = nil
}

// release closes every open engine handle. Safe to call repeatedly.
func (j *job) release() {
	j.closeText()
	if j.rasterDoc != nil {
		if err := j.rasterDoc.Close(); err != nil {
			j.logger.Warn("pipeline.raster.close_failed", "err", err)
		}
		j.rasterDoc = nil
	}
}

// ContentHash is the hex SHA-256 of data, the key of the result cache.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
