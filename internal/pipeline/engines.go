package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
)

// EnginesFrom wires the on-device engines: the ledongthuc text layer,
// pdftoppm for rasterization and tesseract for OCR. The binaries are only
// invoked when a document needs OCR.
func EnginesFrom(cfg common.OCRConfig, logger *slog.Logger) Engines {
	if logger == nil {
		logger = slog.Default()
	}
	runner := ocr.NewExecRunner(logger)
	return Engines{
		Text:   textextract.NewPDFTextEngine(),
		Raster: ocr.NewPdftoppm(cfg.Pdftoppm, runner, logger),
		OCR: ocr.NewTesseract(ocr.TesseractConfig{
			Binary:            cfg.Tesseract,
			TessdataDir:       cfg.TessdataDir,
			PSM:               cfg.PSM,
			OEM:               cfg.OEM,
			UpscaleBelowWidth: cfg.UpscaleBelowWidth,
		}, runner, logger),
	}
}
