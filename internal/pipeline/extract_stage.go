package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/ocr"
)

// Extractor is the text extraction cascade.
type Extractor interface {
	Extract(ctx context.Context, path string) (ocr.Outcome, error)
}

// ExtractStage turns a stored file into raw text and extraction diagnostics.
type ExtractStage struct {
	Extractor Extractor
	Logger    *slog.Logger
}

func NewExtractStage(extractor Extractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractor: extractor, Logger: logger}
}

// Run never fails: an unreadable file yields an empty document whose
// diagnostics carry the reason.
func (s *ExtractStage) Run(ctx context.Context, path string) *document.ParsedDocument {
	parsed := &document.ParsedDocument{Category: document.CategoryUnknown}

	out, err := s.Extractor.Extract(ctx, path)
	if err != nil {
		s.Logger.Warn("pipeline.extract.failed", "path", path, "error", err)
		parsed.Diagnostics.ExtractionError = err.Error()
		return parsed
	}

	parsed.RawText = out.Text
	parsed.Barcodes = out.Barcodes
	parsed.Diagnostics.Strategy = out.Strategy
	parsed.Diagnostics.Attempts = out.Attempts
	parsed.Diagnostics.LowQuality = out.LowQuality
	if out.Empty() {
		parsed.Diagnostics.ExtractionError = out.FailureReason()
	}
	s.Logger.Info("pipeline.extract.ok",
		"path", path,
		"strategy", out.Strategy,
		"chars", len([]rune(out.Text)),
		"confidence", out.Confidence,
		"barcodes", len(out.Barcodes),
	)
	return parsed
}
