package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
)

// pointsPerInch is the PDF user-space resolution; scale 1.0 renders at 72 DPI.
const pointsPerInch = 72

// Pdftoppm is a textextract.Rasterizer backed by poppler's pdftoppm.
type Pdftoppm struct {
	binary string
	runner Runner
	logger *slog.Logger
}

func NewPdftoppm(binary string, runner Runner, logger *slog.Logger) *Pdftoppm {
	if logger == nil {
		logger = slog.Default()
	}
	if binary == "" {
		binary = "pdftoppm"
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Pdftoppm{binary: binary, runner: runner, logger: logger}
}

// Open copies data into a private temp dir for pdftoppm to read. The dir is
// removed by Close.
func (p *Pdftoppm) Open(_ context.Context, data []byte) (textextract.RasterDocument, error) {
	if len(data) == 0 {
		return nil, errors.New("pdftoppm: empty document")
	}
	tmpDir, err := os.MkdirTemp("", "rx-pp-*")
	if err != nil {
		return nil, err
	}
	in := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("pdftoppm: write input: %w", err)
	}
	return &rasterDocument{p: p, dir: tmpDir, in: in}, nil
}

type rasterDocument struct {
	p   *Pdftoppm
	dir string
	in  string
}

// DPIForScale converts a render scale to pdftoppm's -r value.
func DPIForScale(scale float64) int {
	if scale <= 0 {
		scale = 1
	}
	return int(math.Round(pointsPerInch * scale))
}

// Render rasterizes one zero-based page to an in-memory image.
func (d *rasterDocument) Render(ctx context.Context, page int, scale float64) (image.Image, error) {
	if d.dir == "" {
		return nil, errors.New("pdftoppm: document closed")
	}
	if page < 0 {
		return nil, fmt.Errorf("pdftoppm: page %d out of range", page)
	}
	n := strconv.Itoa(page + 1)
	prefix := filepath.Join(d.dir, "page-"+n)
	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <prefix>
	_, errb, err := d.p.runner.Run(ctx, d.p.binary,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(DPIForScale(scale)),
		"-png", "-singlefile",
		d.in, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	out := prefix + ".png"
	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d: %w", page+1, err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(out)
	}()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: decode page %d: %w", page+1, err)
	}
	return img, nil
}

func (d *rasterDocument) Close() error {
	if d.dir == "" {
		return nil
	}
	dir := d.dir
	d.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		d.p.logger.Warn("ocr.tmp.cleanup_failed", "dir", dir, "err", err)
		return err
	}
	return nil
}
