package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/goods-receipt/internal/app"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
)

// runocr runs the extraction cascade and the parsers on one file, without
// touching the database, and prints the parsed payload.
func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, true)
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file.pdf|file.png>")
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{InMemory: true}, logger)
	if err != nil {
		logger.Error("runocr.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	start := time.Now()
	parsed := a.Processor.Extract.Run(ctx, path)
	a.Processor.Parse.Run(path, parsed)
	parsed.Finalize()

	logger.Info("runocr.done",
		"strategy", parsed.Diagnostics.Strategy,
		"chars", parsed.Diagnostics.TextLength,
		"category", parsed.Category,
		"parser", parsed.Diagnostics.Parser,
		"lines", len(parsed.Products),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(parsed); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	if parsed.Diagnostics.ExtractionError != "" {
		os.Exit(3)
	}
}
