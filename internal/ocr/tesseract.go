package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
)

type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	UpscaleBelowWidth int // images narrower than this are upscaled first; 0 disables
}

// Tesseract is a textextract.OCREngine backed by the tesseract CLI.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

// Recognize writes img to a private temp PNG and runs tesseract once in
// TSV mode. The text is rebuilt from the word rows and normalized; the
// confidence is the mean word confidence. The CLI reports no incremental
// progress, so progress only sees 0 and 100.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, lang string, progress func(int)) (textextract.OCRText, error) {
	if img == nil {
		return textextract.OCRText{}, errors.New("tesseract: nil image")
	}
	if lang == "" {
		lang = "eng"
	}
	if progress == nil {
		progress = func(int) {}
	}
	start := time.Now()
	progress(0)

	tmpDir, err := os.MkdirTemp("", "rx-ocr-*")
	if err != nil {
		return textextract.OCRText{}, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			t.logger.Warn("ocr.tmp.cleanup_failed", "dir", path, "err", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "page.png")
	if err := writePNG(in, upscale(img, t.cfg.UpscaleBelowWidth)); err != nil {
		return textextract.OCRText{}, fmt.Errorf("tesseract: write input: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(in, lang)...)
	if err != nil {
		return textextract.OCRText{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	text, conf, words := parseTSV(string(out))
	text = Normalize(text)
	if words == 0 {
		conf = heuristicConfidence(text)
	}
	progress(100)

	t.logger.Debug("ocr.tesseract.ok",
		"lang", lang,
		"words", words,
		"chars", len(text),
		"confidence", conf,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return textextract.OCRText{Text: text, Confidence: conf}, nil
}

// args builds: tesseract <in> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
func (t *Tesseract) args(in, lang string) []string {
	args := []string{in, "stdout", "-l", lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

// TSV columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
)

const (
	tsvConf      = 10
	tsvText      = 11
	tsvColumns   = 12
	tsvLevelWord = "5"
)

// parseTSV rebuilds the page text from tesseract's word rows. Words on the
// same line are joined by a space, lines by a newline and blocks by a blank
// line. It returns the mean confidence of words that report one.
func parseTSV(tsv string) (text string, meanConf float64, words int) {
	var b strings.Builder
	var lastBlock, lastLine string
	var sum float64
	for _, ln := range strings.Split(tsv, "\n") {
		ln = strings.TrimRight(ln, "\r")
		cols := strings.Split(ln, "\t")
		if len(cols) < tsvColumns || cols[tsvLevel] != tsvLevelWord {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}
		block := cols[tsvPage] + "/" + cols[tsvBlock]
		line := block + "/" + cols[tsvPar] + "/" + cols[tsvLine]
		switch {
		case b.Len() == 0:
		case block != lastBlock:
			b.WriteString("\n\n")
		case line != lastLine:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(word)
		lastBlock, lastLine = block, line

		if c, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && c >= 0 {
			sum += c
			words++
		}
	}
	if words == 0 {
		return b.String(), 0, 0
	}
	return b.String(), sum / float64(words), words
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
