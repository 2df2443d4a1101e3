package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipts-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type batchStats struct {
	mu        sync.Mutex
	processed int
	cached    int
	failures  int
	rows      []export.Row
}

func (s *batchStats) add(path string, res *entity.ProcessedDocumentResult, cached bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.failures++
		return
	case cached:
		s.cached++
	default:
		s.processed++
	}
	s.rows = append(s.rows, export.Row{Path: path, Result: res})
}

func main() {
	var (
		dir     = pflag.String("dir", "", "directory to process receipts from (required)")
		fromStr = pflag.String("from", "", "from date YYYY-MM-DD")
		toStr   = pflag.String("to", "", "to date YYYY-MM-DD")
		refresh = pflag.Bool("refresh", false, "reprocess files that already have a cached result")
	)
	pflag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
	pflag.Int("workers", 0, "number of files processed in parallel")
	pflag.Duration("timeout", 0, "per-file processing timeout")
	pflag.String("cache", "", "sqlite result cache path")
	pflag.Bool("use-cache", true, "read and write the result cache")
	pflag.Bool("force-ocr", false, "OCR even when the PDF has a usable text layer")
	pflag.String("lang", "", "tesseract language, e.g. eng or eng+deu")
	pflag.String("currency", "", "currency used when the document shows none")
	pflag.String("log-level", "", "debug, info, warn or error")
	pflag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	from, err := parseDate(*fromStr, "--from")
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	to, err := parseDate(*toStr, "--to")
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := common.LoadConfig(pflag.CommandLine)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	out := cfg.Batch.OutputPath
	if out == "" {
		out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "receipts.xlsx")
	}

	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, walk, err := ingest.WalkDirectory(*dir, cfg.Batch.SkipHidden, logger)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "err", err)
		os.Exit(1)
	}

	var cache repo.ResultRepository
	if cfg.Cache.Enabled {
		db, err := repo.Open(ctx, repo.Config{Path: cfg.Cache.Path}, logger)
		if err != nil {
			logger.Error("failed to open cache", "path", cfg.Cache.Path, "err", err)
			os.Exit(1)
		}
		defer repo.Close(db, logger)
		cache = repo.NewResultRepository(db, logger)
	}

	pcfg := pipeline.ConfigFrom(cfg)
	engines := pipeline.EnginesFrom(cfg.OCR, logger)
	stats := &batchStats{}

	jobs := make(chan string)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < cfg.Batch.Workers; i++ {
		proc := pipeline.NewProcessor(pcfg, engines, logger)
		g.Go(func() error {
			for path := range jobs {
				res, cached, err := processOne(gctx, proc, cache, path, cfg.Batch.Timeout, *refresh, logger)
				stats.add(path, res, cached, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("batch interrupted", "err", err)
		os.Exit(1)
	}

	sort.Slice(stats.rows, func(i, j int) bool { return stats.rows[i].Path < stats.rows[j].Path })

	svc := export.NewService(logger)
	rows := svc.FilterByDate(stats.rows, from, to)
	xlsxBytes, err := svc.BuildXLSX(rows)
	if err != nil {
		logger.Error("failed to export receipts", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "path", out, "err", err)
		os.Exit(1)
	}

	logger.Info("batch.complete",
		"scanned", walk.Scanned,
		"matched", walk.Matched,
		"processed", stats.processed,
		"cached", stats.cached,
		"failures", stats.failures,
		"exported", len(rows),
		"output_file", out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d\n", len(paths))
	fmt.Printf("- Files processed: %d\n", stats.processed)
	fmt.Printf("- From cache: %d\n", stats.cached)
	fmt.Printf("- Failures: %d\n", stats.failures)
	fmt.Printf("- Output: %s\n", out)
}

// processOne returns the cached result when the content was already
// processed, otherwise runs the pipeline and records the outcome.
func processOne(ctx context.Context, proc *pipeline.Processor, cache repo.ResultRepository, path string, timeout time.Duration, refresh bool, logger *slog.Logger) (*entity.ProcessedDocumentResult, bool, error) {
	lf, err := ingest.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", "path", path, "err", err)
		return nil, false, err
	}

	if cache != nil && lf.HashHex != "" && !refresh {
		if hit, err := cache.Get(ctx, lf.HashHex); err == nil && hit.Result != nil {
			logger.Debug("batch.cache.hit", "path", path, "content_hash", lf.HashHex)
			return hit.Result, true, nil
		}
	}
	if cache != nil && lf.HashHex != "" {
		if err := cache.MarkRunning(ctx, lf.HashHex, lf.Input.FileName); err != nil {
			logger.Warn("failed to mark running", "path", path, "err", err)
		}
	}

	pctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := proc.Process(pctx, lf.Input, pipeline.Options{}, nil)

	if cache != nil && lf.HashHex != "" {
		var werr error
		if err != nil {
			werr = cache.PutFailure(ctx, lf.HashHex, lf.Input.FileName, err)
		} else {
			werr = cache.Put(ctx, lf.HashHex, lf.Input.FileName, res)
		}
		if werr != nil {
			logger.Warn("failed to cache result", "path", path, "err", werr)
		}
	}
	if err != nil {
		logger.Error("failed to process file", "path", path, "recoverable", common.IsRecoverable(err), "err", err)
		return nil, false, err
	}
	return res, false, nil
}

func parseDate(s, flag string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date format, use YYYY-MM-DD: %w", flag, err)
	}
	return &t, nil
}
