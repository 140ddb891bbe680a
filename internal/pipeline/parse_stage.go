package pipeline

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/classify"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/ocr"
	"github.com/joseph-ayodele/goods-receipt/internal/parsers"
)

// ParseConfig holds thresholds for the parse stage.
type ParseConfig struct {
	MinTextLen int // below this the text is not parsed at all
	MaxPages   int // pages scanned for native PDF rows
}

// ParseStage classifies extracted text and turns it into header fields and
// product lines.
type ParseStage struct {
	Cfg        ParseConfig
	Classifier *classify.Classifier
	Registry   *parsers.Registry
	Generic    *parsers.Generic
	Logger     *slog.Logger
}

func NewParseStage(cfg ParseConfig, classifier *classify.Classifier, registry *parsers.Registry, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = ocr.DefaultMinTextLen
	}
	if classifier == nil {
		classifier = classify.Default
	}
	if registry == nil {
		registry = parsers.Default(logger)
	}
	return &ParseStage{Cfg: cfg, Classifier: classifier, Registry: registry, Generic: parsers.NewGeneric(), Logger: logger}
}

// Run fills parsed in place from its raw text. path is only used to read
// native table rows from born-digital PDFs.
func (s *ParseStage) Run(path string, parsed *document.ParsedDocument) {
	text := parsed.RawText
	if n := len([]rune(strings.TrimSpace(text))); n < s.Cfg.MinTextLen {
		s.Logger.Warn("pipeline.parse.skipped", "path", path, "chars", n, "min", s.Cfg.MinTextLen)
		parsed.Products = []document.ProductLine{}
		parsed.Diagnostics.Parser = "none"
		return
	}

	parsed.Category = s.Classifier.Classify(text)
	parsed.Header = parsers.ExtractFields(text, s.Generic)

	var rows [][]string
	if constants.MapExtToFormat(filepath.Ext(path)) == constants.PDF {
		r, err := ocr.ReadPDFRows(path, s.Cfg.MaxPages)
		if err != nil {
			s.Logger.Debug("pipeline.parse.rows_unavailable", "path", path, "error", err)
		}
		rows = r
	}

	res := s.Registry.Parse(parsers.Input{Text: text, Category: parsed.Category, Rows: rows})
	parsed.Products = res.Products
	parsed.Diagnostics.Parser = res.Parser
	parsed.Diagnostics.Warnings = append(parsed.Diagnostics.Warnings, res.Warnings...)
	parsed.Diagnostics.InvalidLines = document.CountInvalid(res.Products)
	parsed.Diagnostics.Confidence = parsers.Confidence(parsed.Category, parsed.Header, len(res.Products))

	s.Logger.Info("pipeline.parse.ok",
		"path", path,
		"category", parsed.Category,
		"parser", res.Parser,
		"stage", res.Stage,
		"lines", len(res.Products),
		"invalid", parsed.Diagnostics.InvalidLines,
		"confidence", parsed.Diagnostics.Confidence,
	)
}
