package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

var tracer = otel.Tracer("github.com/joseph-ayodele/goods-receipt/internal/ocr")

// DefaultMinTextLen is the shortest output treated as real content.
const DefaultMinTextLen = 50

// Strategy is one way of getting text out of a document.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src *Source) Result
}

// Result is the explicit outcome of one strategy: text, or a reason it failed.
type Result struct {
	Text       string
	Confidence float64
	LowQuality bool
	Err        error
}

// Success builds a successful result.
func Success(text string, confidence float64) Result {
	return Result{Text: text, Confidence: confidence}
}

// Failure builds a failed result carrying the reason.
func Failure(reason error) Result {
	return Result{Err: reason}
}

// Failuref builds a failed result from a formatted reason.
func Failuref(format string, args ...any) Result {
	return Result{Err: fmt.Errorf(format, args...)}
}

// Outcome is what the cascade hands to the pipeline.
type Outcome struct {
	Text       string
	Strategy   string
	Confidence float64
	LowQuality bool
	Barcodes   []string
	Attempts   []document.Attempt
}

// Empty reports that no strategy produced any text at all.
func (o Outcome) Empty() bool { return meaningfulLen(o.Text) == 0 }

// FailureReason summarizes why no strategy succeeded.
func (o Outcome) FailureReason() string {
	var errs []error
	for _, a := range o.Attempts {
		if !a.OK && a.Reason != "" {
			errs = append(errs, fmt.Errorf("%s: %s", a.Strategy, a.Reason))
		}
	}
	if len(errs) == 0 {
		return "no strategy produced text"
	}
	return errors.Join(errs...).Error()
}

// CascadeConfig tunes the driver.
type CascadeConfig struct {
	MinTextLen      int
	StrategyTimeout time.Duration
}

// Cascade tries strategies in order and stops at the first one producing at
// least MinTextLen meaningful characters.
type Cascade struct {
	cfg        CascadeConfig
	strategies []Strategy
	renderer   Renderer
	barcodes   BarcodeScanner
	logger     *slog.Logger
}

// NewCascade wires the driver. renderer and barcodes may be nil.
func NewCascade(cfg CascadeConfig, strategies []Strategy, renderer Renderer, barcodes BarcodeScanner, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 45 * time.Second
	}
	return &Cascade{cfg: cfg, strategies: strategies, renderer: renderer, barcodes: barcodes, logger: logger}
}

// MinTextLen is the short-circuit threshold in use.
func (c *Cascade) MinTextLen() int { return c.cfg.MinTextLen }

// Strategies lists the registered strategy names in priority order.
func (c *Cascade) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract runs the cascade on the file at path. The returned error covers only
// an unreadable or unsupported file; strategy failures are reported in the
// Outcome. When nothing reaches the threshold the longest partial text is kept.
func (c *Cascade) Extract(ctx context.Context, path string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "ocr.cascade")
	defer span.End()

	src, err := NewSource(path, c.renderer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "source")
		return Outcome{}, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			c.logger.Warn("ocr.cleanup.failed", "path", path, "error", cerr)
		}
	}()

	var out Outcome
	var best Result
	var bestName string
	for _, s := range c.strategies {
		res, elapsed := c.run(ctx, s, src)
		n := meaningfulLen(res.Text)
		ok := res.Err == nil && n >= c.cfg.MinTextLen

		att := document.Attempt{Strategy: s.Name(), OK: ok, Chars: n, Millis: elapsed.Milliseconds()}
		switch {
		case res.Err != nil:
			att.Reason = res.Err.Error()
		case !ok:
			att.Reason = fmt.Sprintf("text below threshold (%d < %d)", n, c.cfg.MinTextLen)
		}
		out.Attempts = append(out.Attempts, att)
		observeAttempt(s.Name(), ok, res.Err != nil, elapsed)

		if ok {
			c.logger.Info("ocr.strategy.ok", "path", path, "strategy", s.Name(), "chars", n, "elapsed_ms", elapsed.Milliseconds())
			best, bestName = res, s.Name()
			break
		}
		c.logger.Info("ocr.strategy.fallthrough", "path", path, "strategy", s.Name(), "chars", n, "reason", att.Reason)
		if res.Err == nil && n > meaningfulLen(best.Text) {
			best, bestName = res, s.Name()
		}
		if ctx.Err() != nil {
			break
		}
	}

	out.Text = Normalize(best.Text)
	out.Confidence = best.Confidence
	out.LowQuality = best.LowQuality
	if meaningfulLen(out.Text) >= c.cfg.MinTextLen {
		out.Strategy = bestName
	} else if bestName != "" {
		out.Strategy = bestName
		out.LowQuality = true
	}

	if c.barcodes != nil && src.CanRender() {
		out.Barcodes = c.scanBarcodes(ctx, src)
	}

	span.SetAttributes(
		attribute.String("ocr.strategy", out.Strategy),
		attribute.Int("ocr.chars", meaningfulLen(out.Text)),
		attribute.Int("ocr.barcodes", len(out.Barcodes)),
	)
	if out.Empty() {
		span.SetStatus(codes.Error, "no text")
	}
	return out, nil
}

func (c *Cascade) run(ctx context.Context, s Strategy, src *Source) (res Result, elapsed time.Duration) {
	ctx, span := tracer.Start(ctx, "ocr.strategy."+s.Name())
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Failuref("strategy panicked: %v", r)
		}
		elapsed = time.Since(start)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	res = s.Extract(sctx, src)
	if res.Err == nil && sctx.Err() != nil {
		res = Failure(fmt.Errorf("timed out after %s: %w", c.cfg.StrategyTimeout, sctx.Err()))
	}
	return res, elapsed
}

func (c *Cascade) scanBarcodes(ctx context.Context, src *Source) []string {
	sctx, cancel := context.WithTimeout(ctx, c.cfg.StrategyTimeout)
	defer cancel()
	pages, err := src.Pages(sctx)
	if err != nil {
		c.logger.Debug("ocr.barcodes.skipped", "path", src.Path, "error", err)
		return nil
	}
	seen := map[string]struct{}{}
	var all []string
	for _, p := range pages {
		found, err := c.barcodes.Scan(sctx, p)
		if err != nil {
			c.logger.Debug("ocr.barcodes.page_failed", "page", p, "error", err)
			continue
		}
		for _, code := range found {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			all = append(all, code)
		}
	}
	return all
}
