package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/goods-receipt/internal/app"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/export"
	"github.com/joseph-ayodele/goods-receipt/internal/pipeline"
	"github.com/joseph-ayodele/goods-receipt/internal/seed"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "use the in-memory store instead of Postgres")
		dir      = flag.String("dir", "", "directory to process documents from (required)")
		out      = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		demo     = flag.Bool("demo", false, "load the demo supplier, purchase order and mappings first")
		workers  = flag.Int("workers", 0, "parallel documents (default WORKERS)")
		clearOCR = flag.Bool("clear-ocr", false, "drop earlier extraction exceptions before reconciling")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "reconciliation.xlsx")
	}

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, true)
	slog.SetDefault(logger)
	if err := cfg.Validate(!*inmem); err != nil {
		logger.Error("batch.config.invalid", "error", err)
		os.Exit(2)
	}
	if *workers <= 0 {
		*workers = cfg.Pipeline.Workers
	}
	cfg.Pipeline.InboxDir = *dir

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Options{InMemory: *inmem, Migrate: true}, logger)
	if err != nil {
		logger.Error("batch.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *demo {
		rep, err := seed.NewSeeder(a.Store, logger).Demo(ctx)
		if err != nil {
			logger.Error("batch.demo.failed", "error", err)
			os.Exit(1)
		}
		logger.Info("batch.demo.loaded", "suppliers", rep.Suppliers.String(), "po_lines", rep.POLines.String(), "mappings", rep.Mappings.String())
	}

	results, stats, err := a.Ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("batch.ingest.failed", "error", err)
		os.Exit(1)
	}
	var ids []uuid.UUID
	for _, r := range results {
		if r.Err == "" {
			ids = append(ids, r.DocumentID)
		}
	}
	logger.Info("batch.ingest.done",
		"documents", len(ids),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	var processed, failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := a.Processor.Process(gctx, id, pipeline.Options{ClearOCR: *clearOCR}); err != nil {
				logger.Error("batch.process.failed", "document_id", id, "error", err)
				failures.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if err := export.NewService(a.Store, logger).WriteReport(ctx, *out); err != nil {
		logger.Error("batch.export.failed", "error", err)
		os.Exit(1)
	}
	dash, err := a.Store.Dashboard(ctx)
	if err != nil {
		logger.Error("batch.dashboard.failed", "error", err)
		os.Exit(1)
	}
	logger.Info("batch.done",
		"processed", processed.Load(),
		"failures", failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents: %d (matched %d, exceptions %d, error %d)\n", dash.Documents, dash.Matched, dash.Exceptions, dash.Errors)
	fmt.Printf("- Suppliers: %d\n", dash.Suppliers)
	fmt.Printf("- Processed this run: %d\n", processed.Load())
	fmt.Printf("- Failures: %d\n", failures.Load())
	fmt.Printf("- Output: %s\n", *out)
	if failures.Load() > 0 {
		os.Exit(3)
	}
}
