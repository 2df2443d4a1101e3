package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file     = pflag.String("file", "", "receipt or invoice to process (required)")
		mime     = pflag.String("mime", "", "override the MIME type implied by the file extension")
		progress = pflag.Bool("progress", false, "stream progress events to stderr as JSON lines")
		rawText  = pflag.Bool("raw-text", false, "include the acquired text in the output")
	)
	pflag.Bool("force-ocr", false, "OCR even when the PDF has a usable text layer")
	pflag.String("lang", "", "tesseract language, e.g. eng or eng+deu")
	pflag.Int("ocr-pages", 0, "maximum number of PDF pages to OCR")
	pflag.String("currency", "", "currency used when the document shows none")
	pflag.String("log-level", "", "debug, info, warn or error")
	pflag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(pflag.CommandLine)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lf, err := ingest.ReadFile(*file)
	if err != nil {
		logger.Error("read file", "path", *file, "err", err)
		os.Exit(1)
	}
	if *mime != "" {
		lf.Input.MimeType = constants.NormalizeMime(*mime)
	}

	proc := pipeline.NewProcessor(pipeline.ConfigFrom(cfg), pipeline.EnginesFrom(cfg.OCR, logger), logger)
	run := proc.Start(ctx, lf.Input, pipeline.Options{})

	if *progress {
		enc := json.NewEncoder(os.Stderr)
		for ev := range run.Progress() {
			_ = enc.Encode(ev)
		}
	}

	res, err := run.Wait()
	if err != nil {
		if common.IsCancelled(err) {
			logger.Warn("processing cancelled", "file_id", run.FileID())
			os.Exit(130)
		}
		logger.Error("processing failed", "file_id", run.FileID(), "recoverable", common.IsRecoverable(err), "err", err)
		os.Exit(1)
	}

	out, err := export.MarshalResult(res, export.Options{IncludeRawText: *rawText})
	if err != nil {
		logger.Error("marshal result", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
