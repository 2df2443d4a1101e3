// Package pipeline runs one document at a time through validation, text
// acquisition, field extraction and confidence aggregation, publishing
// progress as it goes.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/extract"
	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
	"github.com/joseph-ayodele/receipts-extractor/internal/validation"
)

// Engines are the external collaborators. Raster and OCR may be nil when
// only text-layer PDFs are expected; documents that need OCR then fail
// with a recoverable OCR_FAILED.
type Engines struct {
	Text   textextract.TextEngine
	Raster textextract.Rasterizer
	OCR    textextract.OCREngine
}

// Options are the per-call acquisition settings. Zero fields take the
// processor defaults; ForceOCR is ORed with the default.
type Options struct {
	ForceOCR    bool
	Language    string
	OCRScale    float64
	OCRMaxPages int
	Thresholds  textextract.Thresholds
}

func (o Options) withDefaults(d Options) Options {
	o.ForceOCR = o.ForceOCR || d.ForceOCR
	if o.Language == "" {
		o.Language = d.Language
	}
	if o.OCRScale <= 0 {
		o.OCRScale = d.OCRScale
	}
	if o.OCRMaxPages <= 0 {
		o.OCRMaxPages = d.OCRMaxPages
	}
	if o.Thresholds == (textextract.Thresholds{}) {
		o.Thresholds = d.Thresholds
	}
	return o
}

type Config struct {
	MaxFileSizeBytes int64
	Defaults         Options
	Extract          extract.Config
	ProgressBuffer   int
}

// DefaultConfig matches the defaults of common.LoadConfig.
func DefaultConfig() Config {
	return Config{
		Defaults: Options{
			Language:    "eng",
			OCRScale:    2.0,
			OCRMaxPages: 1,
			Thresholds:  textextract.DefaultThresholds(),
		},
		Extract:        extract.Config{MinYear: 1900, FutureGrace: 24 * time.Hour},
		ProgressBuffer: 32,
	}
}

// ConfigFrom maps the application config onto the processor config.
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		MaxFileSizeBytes: cfg.Pipeline.MaxFileSizeBytes,
		Defaults: Options{
			ForceOCR:    cfg.Pipeline.ForceOCR,
			Language:    cfg.Pipeline.Language,
			OCRScale:    cfg.Pipeline.OCRScale,
			OCRMaxPages: cfg.Pipeline.OCRMaxPages,
			Thresholds: textextract.Thresholds{
				LowTextThreshold:  cfg.Pipeline.LowTextThreshold,
				LowTextPageRatio:  cfg.Pipeline.LowTextPageRatio,
				MinTotalTextChars: cfg.Pipeline.MinTotalTextChars,
			},
		},
		Extract: extract.Config{
			MinYear:         cfg.Extract.MinYear,
			FutureGrace:     cfg.Extract.FutureGrace,
			DefaultCurrency: cfg.Pipeline.DefaultCurrency,
		},
		ProgressBuffer: cfg.Pipeline.ProgressBuffer,
	}
}

// Processor owns one processing slot. Calls to Process and Start are
// serialized; run several processors for parallelism.
type Processor struct {
	cfg       Config
	engines   Engines
	gate      *validation.Gate
	extractor *extract.Extractor
	logger    *slog.Logger

	mu        sync.Mutex
	cancelled sync.Map // fileID -> struct{}
}

func NewProcessor(cfg Config, engines Engines, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	cfg.Defaults = cfg.Defaults.withDefaults(d.Defaults)
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = d.ProgressBuffer
	}
	if engines.Text == nil {
		engines.Text = textextract.NewPDFTextEngine()
	}
	return &Processor{
		cfg:       cfg,
		engines:   engines,
		gate:      validation.NewGate(cfg.MaxFileSizeBytes, logger),
		extractor: extract.NewExtractor(cfg.Extract),
		logger:    logger,
	}
}

// Cancel asks the processor to stop work on fileID at its next checkpoint.
// A stage whose blocking call has started runs to completion first. The
// request is consumed when that file reaches a terminal stage.
func (p *Processor) Cancel(fileID string) {
	p.cancelled.Store(fileID, struct{}{})
}

func (p *Processor) cancelRequested(ctx context.Context, fileID string) bool {
	if _, ok := p.cancelled.Load(fileID); ok {
		return true
	}
	return ctx.Err() != nil
}

// Process runs in on the caller's goroutine. Progress events are sent on
// progress when it is non-nil; the channel is not closed. A send blocks
// until the caller receives it or ctx is done.
func (p *Processor) Process(ctx context.Context, in *entity.DocumentInput, opts Options, progress chan<- entity.ProcessingProgress) (*entity.ProcessedDocumentResult, error) {
	return p.process(ctx, fileIDOf(in), in, opts, chanEmitter(ctx, progress))
}

// Start runs in on a new goroutine and returns immediately. Events are
// queued on the Run and never block processing.
func (p *Processor) Start(ctx context.Context, in *entity.DocumentInput, opts Options) *Run {
	fileID := fileIDOf(in)
	r := newRun(fileID, p.cfg.ProgressBuffer)
	go func() {
		res, err := p.process(ctx, fileID, in, opts, r.push)
		r.finish(res, err)
	}()
	return r
}

// fileIDOf returns the caller's file ID, or a fresh one for anonymous input.
func fileIDOf(in *entity.DocumentInput) string {
	if in != nil && in.FileID != "" {
		return in.FileID
	}
	return uuid.NewString()
}

func (p *Processor) process(ctx context.Context, fileID string, in *entity.DocumentInput, opts Options, emit func(entity.ProcessingProgress)) (*entity.ProcessedDocumentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer p.cancelled.Delete(fileID)

	ctx = common.WithFileID(ctx, fileID)
	j := &job{
		p:      p,
		ctx:    ctx,
		in:     in,
		opts:   opts.withDefaults(p.cfg.Defaults),
		emit:   emit,
		fileID: fileID,
		logger: common.LoggerFromContext(ctx, p.logger).With("file_id", fileID),
	}
	defer j.release()

	res, err := j.run()
	if err != nil {
		return nil, j.fail(err)
	}
	res.ProcessingTimeMs = time.Since(start).Milliseconds()
	j.logger.Info("pipeline.complete",
		"method", res.FileMetadata.AcquisitionMethod,
		"ocr_used", res.OCRUsed,
		"confidence", res.Confidence,
		"duration_ms", res.ProcessingTimeMs,
	)
	return res, nil
}

func chanEmitter(ctx context.Context, ch chan<- entity.ProcessingProgress) func(entity.ProcessingProgress) {
	return func(ev entity.ProcessingProgress) {
		if ch == nil {
			return
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			// still deliver terminal events to a ready receiver
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
