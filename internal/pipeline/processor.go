// Package pipeline runs one document through extraction, classification,
// parsing and reconciliation.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Options control one processing request.
type Options struct {
	// ClearOCR drops earlier extraction exceptions before reconciling.
	ClearOCR bool
	// ReuseText reconciles the stored payload instead of extracting again.
	ReuseText bool
}

// Processor coordinates extraction, parsing and the reconciliation transaction.
type Processor struct {
	Store   repository.Store
	Extract *ExtractStage
	Parse   *ParseStage
	Engine  *reconcile.Engine
	Locker  Locker
	Timeout time.Duration
	Logger  *slog.Logger

	tracer trace.Tracer
}

func NewProcessor(store repository.Store, extract *ExtractStage, parse *ParseStage, engine *reconcile.Engine, locker Locker, timeout time.Duration, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &Processor{
		Store:   store,
		Extract: extract,
		Parse:   parse,
		Engine:  engine,
		Locker:  locker,
		Timeout: timeout,
		Logger:  logger,
		tracer:  otel.Tracer("goods-receipt/pipeline"),
	}
}

// Process (re)processes a registered document. Derived state is replaced in
// one transaction; a failure leaves the previous state untouched.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID, opts Options) (*reconcile.Outcome, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	ctx = common.WithDocumentID(ctx, documentID.String())
	logger := common.LoggerFrom(ctx, p.Logger)
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(attribute.String("document_id", documentID.String())))
	defer span.End()

	start := time.Now()
	out, err := p.process(ctx, logger, documentID, opts)
	processSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		documentsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "process")
		logger.Error("pipeline.process.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	status := string(out.Result.Status)
	documentsTotal.WithLabelValues(status).Inc()
	span.SetAttributes(attribute.String("status", status))
	logger.Info("pipeline.process.ok",
		"status", status,
		"ok", out.Result.Summary.OKLines,
		"issues", out.Result.Summary.IssueLines,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) process(ctx context.Context, logger *slog.Logger, documentID uuid.UUID, opts Options) (*reconcile.Outcome, error) {
	release, err := p.Locker.Acquire(ctx, documentID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := p.Store.Repos().Documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline.process.start", "path", doc.FilePath, "doc_type", doc.DocType, "reuse_text", opts.ReuseText)

	var parsed *document.ParsedDocument
	if opts.ReuseText && len(doc.ParsedPayload) > 0 {
		parsed, err = document.Unmarshal(doc.ParsedPayload)
		if err != nil {
			return nil, common.NewAppError("DECODE_ERROR", "stored payload", err)
		}
	} else {
		parsed = p.Extract.Run(ctx, doc.FilePath)
		p.Parse.Run(doc.FilePath, parsed)
	}
	return p.Engine.Reconcile(ctx, p.Store, doc.ID, parsed, reconcile.Options{ClearOCR: opts.ClearOCR})
}
