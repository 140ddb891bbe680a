package ocr

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/llm"
)

var tessLangHints = map[string]string{"por": "pt", "spa": "es", "fra": "fr", "eng": "en"}

// NewFromConfig assembles the cascade from configuration. Strategies whose
// credentials are missing are left out. transcriber may be nil.
func NewFromConfig(cfg *common.Config, runner Runner, transcriber *Lazy[llm.Transcriber], logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	renderer := PdftoppmRenderer{Runner: runner, Bin: cfg.OCR.Pdftoppm, DPI: cfg.OCR.DPI, MaxPages: cfg.OCR.MaxPages}
	var barcodes BarcodeScanner
	if cfg.OCR.Zbarimg != "" {
		barcodes = ZbarScanner{Runner: runner, Bin: cfg.OCR.Zbarimg}
	}
	hints := languageHints(cfg.OCR.Langs)

	var vision Strategy
	if transcriber != nil {
		vision = NewVision(transcriber, hints, DefaultVisionPages, logger)
	}

	var strategies []Strategy
	if cfg.OCR.Primary == "vision" && vision != nil {
		strategies = []Strategy{vision}
	} else {
		if cfg.OCR.Primary == "vision" {
			logger.Warn("ocr.config.vision_unavailable", "fallback", "cascade")
		}
		strategies = append(strategies, Embedded{Runner: runner, Pdftotext: cfg.OCR.Pdftotext, MinTextLen: cfg.OCR.MinTextLen})
		if cfg.Vision.APIKey != "" {
			strategies = append(strategies, NewRemote(RemoteConfig{
				APIKey:    cfg.Vision.APIKey,
				Endpoint:  cfg.Vision.Endpoint,
				RPS:       cfg.Vision.RPS,
				Timeout:   cfg.Vision.Timeout,
				Languages: hints,
			}, logger))
		}
		base := Tesseract{Runner: runner, Bin: cfg.OCR.Tesseract, Langs: cfg.OCR.Langs, TessdataDir: cfg.OCR.TessdataDir}
		strategies = append(strategies, NewLocalOCR(TesseractEngines(base), DefaultConfidenceThreshold, logger))
		if vision != nil {
			strategies = append(strategies, vision)
		}
	}

	c := NewCascade(CascadeConfig{MinTextLen: cfg.OCR.MinTextLen, StrategyTimeout: cfg.OCR.StrategyTimeout}, strategies, renderer, barcodes, logger)
	logger.Info("ocr.cascade.ready", "strategies", strings.Join(c.Strategies(), ","), "min_text_len", c.MinTextLen())
	return c
}

// languageHints maps tesseract language codes (por+spa+fra) to ISO hints.
func languageHints(langs string) []string {
	var out []string
	for _, l := range strings.Split(langs, "+") {
		if h, ok := tessLangHints[strings.TrimSpace(l)]; ok {
			out = append(out, h)
		}
	}
	return out
}
