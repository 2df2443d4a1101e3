package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/receipts-extractor/internal/async"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

func main() {
	var (
		dirs        = pflag.StringSlice("dir", nil, "directory to watch (repeatable, required)")
		initialScan = pflag.Bool("initial-scan", true, "process files already present at startup")
		queueSize   = pflag.Int("queue-size", 256, "pending files before Enqueue blocks")
	)
	pflag.Int("workers", 0, "number of files processed in parallel")
	pflag.Duration("timeout", 0, "per-file processing timeout")
	pflag.String("cache", "", "sqlite result cache path")
	pflag.Bool("force-ocr", false, "OCR even when the PDF has a usable text layer")
	pflag.String("lang", "", "tesseract language, e.g. eng or eng+deu")
	pflag.String("currency", "", "currency used when the document shows none")
	pflag.String("log-level", "", "debug, info, warn or error")
	pflag.Parse()

	if len(*dirs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one --dir is required")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{Path: cfg.Cache.Path}, logger)
	if err != nil {
		logger.Error("failed to open cache", "path", cfg.Cache.Path, "err", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, 3*time.Second); err != nil {
		logger.Error("cache health failed", "err", err)
		os.Exit(1)
	}
	results := repo.NewResultRepository(db, logger)

	pcfg := pipeline.ConfigFrom(cfg)
	engines := pipeline.EnginesFrom(cfg.OCR, logger)
	queue := async.NewProcessorQueue(
		func() *pipeline.Processor { return pipeline.NewProcessor(pcfg, engines, logger) },
		results,
		logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(*queueSize),
		async.WithProcessTimeout(cfg.Batch.Timeout),
	)

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       *dirs,
		InitialScan: *initialScan,
		SkipHidden:  cfg.Batch.SkipHidden,
		Debounce:    cfg.Batch.Debounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "err", err)
		os.Exit(1)
	}
	logger.Info("receiptsd.started", "dirs", *dirs, "workers", cfg.Batch.Workers, "cache", cfg.Cache.Path)

loop:
	for {
		select {
		case path, ok := <-events:
			if !ok {
				break loop
			}
			if err := queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()}); err != nil {
				logger.Warn("enqueue failed", "path", path, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "err", err)
		case <-ctx.Done():
			break loop
		}
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Batch.Timeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("receiptsd.stopped")
}
