package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/textextract/pdftest"
)

var walmartLines = []string{
	"WALMART",
	"Save money. Live better.",
	"STORE #4521",
	"DATE: 01/15/2024",
	"GREAT VALUE MILK 3.48",
	"BREAD 2.50",
	"SUBTOTAL 46.58",
	"TAX 3.73",
	"TOTAL $50.31",
}

func pdfInput(id string, pages ...[]string) *entity.DocumentInput {
	data := pdftest.Build(pages...)
	return &entity.DocumentInput{FileID: id, FileName: id + ".pdf", MimeType: "application/pdf", Data: data, Size: int64(len(data))}
}

// process runs p.Process and returns everything it published.
func process(t *testing.T, ctx context.Context, p *Processor, in *entity.DocumentInput, opts Options) (*entity.ProcessedDocumentResult, []entity.ProcessingProgress, error) {
	t.Helper()
	ch := make(chan entity.ProcessingProgress, 256)
	res, err := p.Process(ctx, in, opts, ch)
	close(ch)
	var events []entity.ProcessingProgress
	for ev := range ch {
		events = append(events, ev)
	}
	return res, events, err
}

func stages(events []entity.ProcessingProgress) []constants.ProcessingStage {
	var out []constants.ProcessingStage
	for _, ev := range events {
		if len(out) == 0 || out[len(out)-1] != ev.Stage {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func assertMonotonic(t *testing.T, events []entity.ProcessingProgress) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent, "event %d", i)
	}
}

func TestProcessRetailReceipt(t *testing.T) {
	text := &fakeTextEngine{pages: []string{strings.Join(walmartLines, "\n")}}
	ocr := &fakeOCR{}
	p := NewProcessor(DefaultConfig(), Engines{Text: text, Raster: &fakeRasterizer{}, OCR: ocr}, nil)

	res, events, err := process(t, context.Background(), p, pdfInput("walmart", walmartLines), Options{})
	require.NoError(t, err)

	e := res.Entities
	require.NotNil(t, e.Date)
	assert.Equal(t, "2024-01-15", e.Date.Value.Format("2006-01-02"))
	require.NotNil(t, e.Amount)
	assert.Equal(t, "50.31", e.Amount.Value.StringFixed(2))
	require.NotNil(t, e.Vendor)
	assert.Contains(t, e.Vendor.Value, "WALMART")
	assert.Equal(t, "USD", e.Currency)
	assert.False(t, res.OCRUsed)
	assert.Zero(t, ocr.callCount())
	assert.InDelta(t, 0.89, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.ID)

	md := res.FileMetadata
	assert.Equal(t, constants.MethodPDFText, md.AcquisitionMethod)
	assert.Equal(t, constants.FileKindPDF, md.FileKind)
	assert.Equal(t, 1, md.PageCount)
	assert.Equal(t, "1.4", md.PDFVersion)
	assert.Len(t, md.ContentHash, 64)

	assert.Equal(t, []constants.ProcessingStage{
		constants.StageValidating, constants.StageExtracting, constants.StageFinalizing, constants.StageComplete,
	}, stages(events))
	assert.Equal(t, 100, events[len(events)-1].Percent)
	assertMonotonic(t, events)
	for _, ev := range events {
		assert.Equal(t, "walmart", ev.FileID)
	}
	require.Len(t, text.docs, 1)
	assert.True(t, text.docs[0].closed)
}

func TestProcessRealTextLayer(t *testing.T) {
	p := NewProcessor(DefaultConfig(), Engines{}, nil)
	res, _, err := process(t, context.Background(), p, pdfInput("real", walmartLines), Options{})
	require.NoError(t, err)

	assert.Contains(t, res.RawText, "WALMART")
	assert.Contains(t, res.RawText, "$50.31")
	assert.False(t, res.OCRUsed)
	require.NotNil(t, res.Entities.Amount)
	assert.Equal(t, "50.31", res.Entities.Amount.Value.StringFixed(2))
}

func TestProcessScannedPDFUsesOCR(t *testing.T) {
	raster := &fakeRasterizer{}
	ocr := &fakeOCR{text: "WALMART\nDATE: 01/15/2024\nTOTAL $50.31", conf: 87.5}
	text := &fakeTextEngine{pages: []string{"", " "}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text, Raster: raster, OCR: ocr}, nil)

	res, events, err := process(t, context.Background(), p, pdfInput("scan", []string{""}, []string{""}), Options{})
	require.NoError(t, err)

	assert.True(t, res.OCRUsed)
	assert.Equal(t, 1, ocr.callCount(), "only the first page is OCR'd by default")
	assert.Equal(t, "WALMART\nDATE: 01/15/2024\nTOTAL $50.31", res.RawText)
	assert.InDelta(t, 0.801, res.Confidence, 1e-9)

	md := res.FileMetadata
	assert.Equal(t, constants.MethodPDFOCR, md.AcquisitionMethod)
	assert.Equal(t, []int{1}, md.OCRPages)
	assert.Equal(t, 87.5, md.OCREngineConfidence)

	require.Len(t, raster.docs, 1)
	assert.Equal(t, []int{0}, raster.docs[0].rendered)
	assert.Equal(t, []float64{2.0}, raster.docs[0].scales)
	assert.True(t, raster.docs[0].closed)

	assert.Equal(t, []constants.ProcessingStage{
		constants.StageValidating, constants.StageExtracting, constants.StageOCR, constants.StageFinalizing, constants.StageComplete,
	}, stages(events))
	assertMonotonic(t, events)
}

func TestProcessForceOCROnRichText(t *testing.T) {
	ocr := &fakeOCR{text: "TOTAL $1.00", conf: 90}
	text := &fakeTextEngine{pages: []string{strings.Join(walmartLines, "\n")}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text, Raster: &fakeRasterizer{}, OCR: ocr}, nil)

	res, _, err := process(t, context.Background(), p, pdfInput("forced", walmartLines), Options{ForceOCR: true, OCRMaxPages: 3})
	require.NoError(t, err)
	assert.True(t, res.OCRUsed)
	assert.Equal(t, "TOTAL $1.00", res.RawText, "OCR text replaces the text layer")
	assert.Equal(t, 1, ocr.callCount(), "a one-page document is OCR'd once")
}

func TestCancelBeforeOCRNeverInvokesEngine(t *testing.T) {
	raster := &fakeRasterizer{}
	ocr := &fakeOCR{text: "never"}
	text := &fakeTextEngine{pages: []string{"scan"}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text, Raster: raster, OCR: ocr}, nil)
	text.onPage = func(int) { p.Cancel("c1") }

	res, events, err := process(t, context.Background(), p, pdfInput("c1", []string{""}), Options{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, common.IsCancelled(err))
	assert.False(t, common.IsRecoverable(err))

	assert.Zero(t, ocr.callCount())
	assert.Empty(t, raster.docs)
	require.Len(t, text.docs, 1)
	assert.True(t, text.docs[0].closed)

	last := events[len(events)-1]
	assert.Equal(t, constants.StageCancelled, last.Stage)
	assert.Nil(t, last.Error)
	for _, ev := range events {
		assert.NotEqual(t, constants.StageError, ev.Stage)
		assert.NotEqual(t, constants.StageOCR, ev.Stage)
	}
}

func TestCancelBeforeStart(t *testing.T) {
	text := &fakeTextEngine{pages: []string{"x"}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text}, nil)
	p.Cancel("early")

	_, events, err := process(t, context.Background(), p, pdfInput("early", walmartLines), Options{})
	assert.True(t, common.IsCancelled(err))
	assert.Empty(t, text.docs, "cancelled files never open the document")
	assert.Equal(t, []constants.ProcessingStage{constants.StageValidating, constants.StageCancelled}, stages(events))

	// the request is consumed: processing the same file again succeeds
	text.pages = []string{strings.Join(walmartLines, "\n")}
	_, _, err = process(t, context.Background(), p, pdfInput("early", walmartLines), Options{})
	assert.NoError(t, err)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(DefaultConfig(), Engines{Text: &fakeTextEngine{pages: []string{"x"}}}, nil)

	_, events, err := process(t, ctx, p, pdfInput("ctx", walmartLines), Options{})
	assert.True(t, common.IsCancelled(err))
	assert.Equal(t, constants.StageCancelled, events[len(events)-1].Stage)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		in   *entity.DocumentInput
		code string
	}{
		{"nil input", nil, common.CodeEmptyInput},
		{"zero length", &entity.DocumentInput{FileID: "z", FileName: "z.pdf", Data: []byte{}}, common.CodeZeroLength},
		{"too large", &entity.DocumentInput{FileID: "big", FileName: "big.pdf", Data: []byte("%PDF"), Size: constants.MaxFileSizeBytes + 1}, common.CodeFileTooLarge},
		{"unsupported", &entity.DocumentInput{FileID: "t", FileName: "notes.txt", MimeType: "text/plain", Data: []byte("hello")}, common.CodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &fakeTextEngine{}
			p := NewProcessor(DefaultConfig(), Engines{Text: text}, nil)
			_, events, err := process(t, context.Background(), p, tt.in, Options{})

			pe, ok := common.AsProcessingError(err)
			require.True(t, ok)
			assert.Equal(t, common.KindValidation, pe.Kind)
			assert.Equal(t, tt.code, pe.Code)
			assert.False(t, pe.Recoverable)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Empty(t, text.docs)

			last := events[len(events)-1]
			assert.Equal(t, constants.StageError, last.Stage)
			require.NotNil(t, last.Error)
			assert.Equal(t, tt.code, last.Error.Code)
			assert.False(t, last.Error.Recoverable)
		})
	}
}

func TestMalformedPDF(t *testing.T) {
	text := &fakeTextEngine{}
	p := NewProcessor(DefaultConfig(), Engines{Text: text}, nil)
	in := &entity.DocumentInput{FileID: "m", FileName: "m.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4\nnot really")}

	_, events, err := process(t, context.Background(), p, in, Options{})
	pe, ok := common.AsProcessingError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeMalformed, pe.Code)
	assert.False(t, pe.Recoverable)
	assert.Empty(t, text.docs)
	assert.Equal(t, constants.StageError, events[len(events)-1].Stage)
}

func TestImageInputAlwaysOCRs(t *testing.T) {
	ocr := &fakeOCR{text: "Thank you for shopping at Corner Store\nTOTAL $12.00", conf: 70}
	p := NewProcessor(DefaultConfig(), Engines{OCR: ocr}, nil)
	data := pngBytes(40, 30)
	in := &entity.DocumentInput{FileID: "img", FileName: "photo.png", Data: data}

	res, events, err := process(t, context.Background(), p, in, Options{})
	require.NoError(t, err)
	assert.True(t, res.OCRUsed)
	assert.Equal(t, 1, ocr.callCount())

	md := res.FileMetadata
	assert.Equal(t, constants.FileKindImage, md.FileKind)
	assert.Equal(t, "image/png", md.MimeType)
	assert.Equal(t, constants.MethodImageOCR, md.AcquisitionMethod)
	assert.Equal(t, 40, md.ImageWidth)
	assert.Equal(t, 30, md.ImageHeight)
	require.NotNil(t, res.Entities.Vendor)
	assert.Equal(t, "Corner Store", res.Entities.Vendor.Value)
	assert.Contains(t, stages(events), constants.StageOCR)
}

func TestOCRFailureIsRecoverable(t *testing.T) {
	raster := &fakeRasterizer{}
	ocr := &fakeOCR{err: errors.New("tesseract crashed")}
	p := NewProcessor(DefaultConfig(), Engines{Text: &fakeTextEngine{pages: []string{""}}, Raster: raster, OCR: ocr}, nil)

	_, events, err := process(t, context.Background(), p, pdfInput("f", []string{""}), Options{})
	pe, ok := common.AsProcessingError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeOCRFailed, pe.Code)
	assert.True(t, common.IsRecoverable(err))
	assert.False(t, common.IsCancelled(err))

	require.Len(t, raster.docs, 1)
	assert.True(t, raster.docs[0].closed, "raster handle is released on failure")

	last := events[len(events)-1]
	assert.Equal(t, constants.StageError, last.Stage)
	require.NotNil(t, last.Error)
	assert.True(t, last.Error.Recoverable)
}

func TestImageDecodeFailure(t *testing.T) {
	ocr := &fakeOCR{}
	p := NewProcessor(DefaultConfig(), Engines{OCR: ocr}, nil)
	in := &entity.DocumentInput{FileID: "bad", FileName: "bad.jpg", Data: []byte("not a jpeg")}

	_, _, err := process(t, context.Background(), p, in, Options{})
	pe, ok := common.AsProcessingError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeImageDecode, pe.Code)
	assert.Zero(t, ocr.callCount())
}

func TestMissingOCREngine(t *testing.T) {
	p := NewProcessor(DefaultConfig(), Engines{Text: &fakeTextEngine{pages: []string{""}}}, nil)
	_, _, err := process(t, context.Background(), p, pdfInput("n", []string{""}), Options{})
	pe, ok := common.AsProcessingError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeOCRFailed, pe.Code)
	assert.True(t, pe.Recoverable)
}

func TestProcessIsDeterministic(t *testing.T) {
	text := &fakeTextEngine{pages: []string{strings.Join(walmartLines, "\n")}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text}, nil)

	var outputs []string
	for i := 0; i < 2; i++ {
		res, _, err := process(t, context.Background(), p, pdfInput("same", walmartLines), Options{})
		require.NoError(t, err)
		b, err := json.Marshal(struct {
			Entities   entity.ExtractedEntities
			Confidence float64
			Meta       entity.FileMetadata
		}{res.Entities, res.Confidence, res.FileMetadata})
		require.NoError(t, err)
		outputs = append(outputs, string(b))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestStartRun(t *testing.T) {
	text := &fakeTextEngine{pages: []string{strings.Join(walmartLines, "\n")}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text}, nil)

	run := p.Start(context.Background(), pdfInput("async", walmartLines), Options{})
	assert.Equal(t, "async", run.FileID())

	var events []entity.ProcessingProgress
	for ev := range run.Progress() {
		events = append(events, ev)
	}
	res, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, res.Entities.Amount)
	assert.Equal(t, "50.31", res.Entities.Amount.Value.StringFixed(2))

	require.NotEmpty(t, events)
	assert.Equal(t, constants.StageComplete, events[len(events)-1].Stage)
	assert.Equal(t, events, run.Events())
}

func TestStartRunWaitWithoutReadingProgress(t *testing.T) {
	p := NewProcessor(DefaultConfig(), Engines{Text: &fakeTextEngine{pages: []string{strings.Join(walmartLines, "\n")}}}, nil)

	run := p.Start(context.Background(), &entity.DocumentInput{FileName: "anon.pdf", Data: pdftest.Build(walmartLines)}, Options{})
	assert.NotEmpty(t, run.FileID())
	_, err := run.Wait()
	require.NoError(t, err)
	<-run.Done()

	events := run.Events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, run.FileID(), ev.FileID)
	}
}

func TestStartRunCancel(t *testing.T) {
	release := make(chan struct{})
	ocr := &fakeOCR{}
	text := &fakeTextEngine{pages: []string{""}}
	p := NewProcessor(DefaultConfig(), Engines{Text: text, Raster: &fakeRasterizer{}, OCR: ocr}, nil)
	text.onPage = func(int) { <-release }

	run := p.Start(context.Background(), pdfInput("slow", []string{""}), Options{})
	p.Cancel("slow")
	close(release)

	_, err := run.Wait()
	assert.True(t, common.IsCancelled(err))
	assert.Zero(t, ocr.callCount())
	assert.Equal(t, constants.StageCancelled, run.Events()[len(run.Events())-1].Stage)
}
