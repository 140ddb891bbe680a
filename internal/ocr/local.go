package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultConfidenceThreshold is the blended confidence below which a local
// engine's output is handed to the next engine.
const DefaultConfidenceThreshold = 0.6

const probeTimeout = 10 * time.Second

// Recognizer turns one page image into text plus an engine confidence in 0..1.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, float64, error)
}

// Engine is one rung of the local OCR ladder.
type Engine struct {
	Name       string
	Recognizer *Lazy[Recognizer]
	Preprocess bool
}

// LocalOCR runs engines in order per page. An engine's output is kept when it
// is non-empty and confident enough; the last engine is always accepted.
type LocalOCR struct {
	engines   []Engine
	threshold float64
	logger    *slog.Logger
}

func NewLocalOCR(engines []Engine, threshold float64, logger *slog.Logger) *LocalOCR {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &LocalOCR{engines: engines, threshold: threshold, logger: logger}
}

// TesseractEngines is the default ladder: A on the raw page with automatic
// segmentation, B on a preprocessed page as a uniform block, and a final sparse
// text pass.
func TesseractEngines(base Tesseract) []Engine {
	mk := func(psm, oem int) *Lazy[Recognizer] {
		t := base
		t.PSM, t.OEM = psm, oem
		return NewLazy(func() (Recognizer, error) {
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			if err := t.Probe(ctx); err != nil {
				return nil, err
			}
			return t, nil
		})
	}
	return []Engine{
		{Name: "tesseract-a", Recognizer: mk(3, 1)},
		{Name: "tesseract-b", Recognizer: mk(6, 0), Preprocess: true},
		{Name: "tesseract-final", Recognizer: mk(11, 0), Preprocess: true},
	}
}

func (*LocalOCR) Name() string { return "local" }

func (l *LocalOCR) Extract(ctx context.Context, src *Source) Result {
	if len(l.engines) == 0 {
		return Failuref("no local engines configured")
	}
	pages, err := src.Pages(ctx)
	if err != nil {
		return Failure(fmt.Errorf("render pages: %w", err))
	}
	dir, err := src.WorkDir()
	if err != nil {
		return Failure(err)
	}

	var texts []string
	var confSum float64
	var low bool
	var errs []error
	for _, page := range pages {
		if ctx.Err() != nil {
			return Failure(ctx.Err())
		}
		text, conf, accepted, perr := l.page(ctx, page, dir)
		if perr != nil {
			errs = append(errs, perr)
		}
		if text == "" {
			continue
		}
		texts = append(texts, text)
		confSum += conf
		if !accepted {
			low = true
		}
	}
	if len(texts) == 0 {
		if len(errs) > 0 {
			return Failure(errors.Join(errs...))
		}
		return Result{LowQuality: true}
	}
	res := Success(strings.Join(texts, "\n\n"), confSum/float64(len(texts)))
	res.LowQuality = low
	return res
}

// page walks the ladder for one image. accepted is false when only a
// low-confidence result was obtained.
func (l *LocalOCR) page(ctx context.Context, page, dir string) (string, float64, bool, error) {
	var bestText string
	var bestConf float64
	var errs []error
	prepped := ""
	last := len(l.engines) - 1

	for i, eng := range l.engines {
		rec, err := eng.Recognizer.Get()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", eng.Name, err))
			continue
		}
		input := page
		if eng.Preprocess {
			if prepped == "" {
				p, perr := Preprocess(page, dir)
				if perr != nil {
					l.logger.Warn("ocr.preprocess.failed", "page", page, "error", perr)
					prepped = page
				} else {
					prepped = p
				}
			}
			input = prepped
		}
		text, engineConf, err := rec.Recognize(ctx, input)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", eng.Name, err))
			continue
		}
		conf := blendConfidence(engineConf, text)
		l.logger.Debug("ocr.engine.done", "engine", eng.Name, "page", page, "chars", meaningfulLen(text), "confidence", conf)

		if meaningfulLen(text) > 0 && conf >= l.threshold {
			return text, conf, true, nil
		}
		if i == last && meaningfulLen(text) >= meaningfulLen(bestText) {
			return text, conf, false, nil
		}
		if meaningfulLen(text) > meaningfulLen(bestText) {
			bestText, bestConf = text, conf
		}
	}
	return bestText, bestConf, false, errors.Join(errs...)
}
