// Package reconcile matches received quantities against purchase orders and
// classifies each document as matched, exceptions or error.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/exceptions"
	"github.com/joseph-ayodele/goods-receipt/internal/mapping"
	"github.com/joseph-ayodele/goods-receipt/internal/purchase"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// DefaultMinTextLen is the shortest extracted text treated as readable.
const DefaultMinTextLen = 50

// Options tune one pass.
type Options struct {
	// ClearOCR drops document-level exceptions before the pass.
	ClearOCR bool
}

// Outcome is what one pass produced.
type Outcome struct {
	Result *entity.MatchResult
	Lines  []entity.ReceiptLine
	POID   *uuid.UUID
}

type Engine struct {
	minTextLen int
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewEngine(minTextLen int, logger *slog.Logger) *Engine {
	if minTextLen <= 0 {
		minTextLen = DefaultMinTextLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{minTextLen: minTextLen, logger: logger, tracer: otel.Tracer("goods-receipt/reconcile")}
}

// Reconcile runs one pass for the document in its own transaction: either all
// derived state commits or none of it does.
func (e *Engine) Reconcile(ctx context.Context, store repository.Store, documentID uuid.UUID, parsed *document.ParsedDocument, opts Options) (*Outcome, error) {
	var out *Outcome
	err := store.InTx(ctx, func(repos repository.Repos) error {
		doc, err := repos.Documents.Get(ctx, documentID)
		if err != nil {
			return err
		}
		out, err = e.Run(ctx, repos, doc, parsed, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// target is where one receipt line lands.
type target struct {
	po     *entity.PurchaseOrder
	sku    string
	lineID uuid.UUID
	issue  string
}

// Run performs a pass with repos that share one transaction.
func (e *Engine) Run(ctx context.Context, repos repository.Repos, doc *entity.InboundDocument, parsed *document.ParsedDocument, opts Options) (*Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("document_id", doc.ID.String()),
		attribute.String("doc_type", string(doc.DocType)),
	))
	defer span.End()
	logger := e.logger.With("document_id", doc.ID)

	ledger := exceptions.NewLedger(repos.Exceptions, logger)
	resolver := mapping.NewResolver(repos.Mappings, logger)

	if opts.ClearOCR {
		if _, err := ledger.ClearOCR(ctx, doc.ID); err != nil {
			return nil, err
		}
	}
	if _, err := ledger.ClearMatching(ctx, doc.ID); err != nil {
		return nil, err
	}

	if issues := Validate(parsed, e.minTextLen); len(issues) > 0 {
		if _, err := ledger.RecordOCR(ctx, doc.ID, strings.Join(issues, "; ")); err != nil {
			return nil, err
		}
		logger.Warn("reconcile.document.unreadable", "issues", issues)
	}

	payload, err := parsed.Marshal()
	if err != nil {
		return nil, common.NewAppError("ENCODE_ERROR", "parsed payload", err)
	}
	cert, err := Certify(doc.ID, parsed)
	if err != nil {
		return nil, common.NewAppError("ENCODE_ERROR", "certification", err)
	}

	lines := receiptLines(parsed.Products)
	summary := entity.MatchSummary{
		TotalLines: len(parsed.Products),
		LinesRead:  len(lines),
		Strategy:   parsed.Diagnostics.Strategy,
	}
	if parsed.Totals.DeclaredLines > summary.TotalLines {
		summary.TotalLines = parsed.Totals.DeclaredLines
	}

	var poID *uuid.UUID
	if doc.DocType.IsOrder() {
		poID, err = e.materialize(ctx, repos, resolver, doc, parsed, lines, &summary)
	} else {
		poID, err = e.match(ctx, repos, resolver, ledger, doc, parsed, lines, &summary)
	}
	if err != nil {
		return nil, err
	}

	if err := repos.Receipts.ReplaceLines(ctx, doc.ID, lines); err != nil {
		return nil, err
	}
	if err := repos.Documents.SavePayload(ctx, doc.ID, payload, poID); err != nil {
		return nil, err
	}

	hasOCR, err := ledger.HasOCR(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	res := &entity.MatchResult{
		DocumentID:  doc.ID,
		Status:      Status(hasOCR, summary.IssueLines),
		Summary:     summary,
		CertifiedID: cert,
	}
	if err := repos.Results.Save(ctx, res); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("status", string(res.Status)), attribute.Int("issue_lines", summary.IssueLines))
	logger.Info("reconcile.done", "status", res.Status, "ok", summary.OKLines, "issues", summary.IssueLines, "lines", summary.LinesRead)
	return &Outcome{Result: res, Lines: lines, POID: poID}, nil
}

// Status classifies a pass. Unreadable documents are never matched.
func Status(hasOCR bool, issueLines int) constants.MatchStatus {
	switch {
	case hasOCR:
		return constants.StatusError
	case issueLines > 0:
		return constants.StatusExceptions
	default:
		return constants.StatusMatched
	}
}

func receiptLines(products []document.ProductLine) []entity.ReceiptLine {
	out := make([]entity.ReceiptLine, 0, len(products))
	for _, p := range products {
		if !p.Valid() || p.Reference() == "" {
			continue
		}
		out = append(out, entity.ReceiptLine{
			Position:     len(out) + 1,
			SupplierCode: p.Reference(),
			ArticleCode:  p.Code,
			Description:  p.Description,
			Unit:         p.Unit,
			QtyReceived:  decimal.NewFromFloat(p.Quantity),
			OrderRef:     p.OrderToken(),
		})
	}
	return out
}

func (e *Engine) materialize(ctx context.Context, repos repository.Repos, resolver *mapping.Resolver, doc *entity.InboundDocument,
	parsed *document.ParsedDocument, lines []entity.ReceiptLine, summary *entity.MatchSummary) (*uuid.UUID, error) {
	// order confirmations carry no receipts, but a document that changed type
	// may still hold contributions from an earlier pass
	locked, err := e.reverse(ctx, repos, doc.ID, nil)
	if err != nil {
		return nil, err
	}
	if err := writeReceived(ctx, repos, locked, locked.reversed); err != nil {
		return nil, err
	}
	res, err := purchase.NewMaterializer(repos.PurchaseOrders, repos.Receipts, resolver, e.logger).Materialize(ctx, doc, parsed)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if r, ok, err := resolver.Lookup(ctx, doc.SupplierID, lines[i].SupplierCode); err != nil {
			return nil, err
		} else if ok {
			lines[i].MaybeInternalSKU = r.InternalSKU
		} else {
			lines[i].MaybeInternalSKU = lines[i].SupplierCode
		}
	}
	summary.OKLines = res.LinesCreated + res.LinesUpdated
	summary.POLinesCreated = res.LinesCreated
	summary.POLinesUpdated = res.LinesUpdated
	linesTotal.WithLabelValues(outcomeOrdered).Add(float64(summary.OKLines))

	if po := res.First(); po != nil {
		id := po.ID
		return &id, nil
	}
	return doc.POID, nil
}

func (e *Engine) match(ctx context.Context, repos repository.Repos, resolver *mapping.Resolver, ledger *exceptions.Ledger,
	doc *entity.InboundDocument, parsed *document.ParsedDocument, lines []entity.ReceiptLine, summary *entity.MatchSummary) (*uuid.UUID, error) {
	// a document first read as an order confirmation keeps no ordered quantity
	if _, err := purchase.NewMaterializer(repos.PurchaseOrders, repos.Receipts, resolver, e.logger).Reverse(ctx, doc.ID); err != nil {
		return nil, err
	}
	docPO, err := e.documentPO(ctx, repos, doc, parsed)
	if err != nil {
		return nil, err
	}

	// Resolve every line before taking any row lock.
	targets := make([]target, len(lines))
	poLineIDs := map[uuid.UUID]map[string]uuid.UUID{}
	byNumber := map[string]*entity.PurchaseOrder{}
	for i := range lines {
		l := &lines[i]
		po, err := e.linePO(ctx, repos, l.OrderRef, docPO, byNumber)
		if err != nil {
			return nil, err
		}
		if po == nil {
			targets[i].issue = constants.IssuePONotFound
			continue
		}
		targets[i].po = po

		res, err := resolver.Resolve(ctx, doc.SupplierID, l.SupplierCode, l.QtyReceived)
		if err != nil {
			return nil, err
		}
		l.MaybeInternalSKU = res.InternalSKU
		targets[i].sku = res.InternalSKU

		ids, ok := poLineIDs[po.ID]
		if !ok {
			pls, err := repos.PurchaseOrders.ListLines(ctx, po.ID)
			if err != nil {
				return nil, err
			}
			ids = make(map[string]uuid.UUID, len(pls))
			for _, pl := range pls {
				ids[pl.InternalSKU] = pl.ID
			}
			poLineIDs[po.ID] = ids
		}
		id, ok := ids[res.InternalSKU]
		if !ok {
			targets[i].issue = constants.IssueNotInPO
			continue
		}
		targets[i].lineID = id
	}

	var wanted []uuid.UUID
	for _, t := range targets {
		if t.lineID != uuid.Nil {
			wanted = append(wanted, t.lineID)
		}
	}
	locked, err := e.reverse(ctx, repos, doc.ID, wanted)
	if err != nil {
		return nil, err
	}

	dirty := map[uuid.UUID]bool{}
	for id := range locked.reversed {
		dirty[id] = true
	}
	for i, t := range targets {
		l := lines[i]
		if t.issue == "" {
			pl, ok := locked.lines[t.lineID]
			if !ok {
				return nil, common.NewAppError("LOCK_ERROR", fmt.Sprintf("po line %s vanished", t.lineID), common.ErrDatabase)
			}
			newTotal := pl.Received.Add(l.QtyReceived)
			if newTotal.GreaterThan(pl.Ordered) {
				remaining := decimal.Max(pl.Remaining(), decimal.Zero)
				if _, err := ledger.Record(ctx, doc.ID, exceptions.Issue{
					Ref: l.SupplierCode, Text: constants.IssueQuantityExceeded, SuggestedSKU: t.sku, SuggestedQty: &remaining,
				}); err != nil {
					return nil, err
				}
				e.fail(summary, l.Position, outcomeExceeded)
				e.logger.Warn("reconcile.line.exceeded", "document_id", doc.ID, "sku", t.sku,
					"ordered", pl.Ordered.String(), "received", pl.Received.String(), "qty", l.QtyReceived.String())
				continue
			}
			pl.Received = newTotal
			dirty[pl.ID] = true
			if err := repos.Receipts.AddContribution(ctx, entity.Contribution{
				DocumentID: doc.ID, POLineID: pl.ID, Kind: entity.ContributionReceived, Qty: l.QtyReceived,
			}); err != nil {
				return nil, err
			}
			summary.OKLines++
			linesTotal.WithLabelValues(outcomeOK).Inc()
			continue
		}

		is := exceptions.Issue{Ref: l.SupplierCode, Text: t.issue, SuggestedSKU: t.sku}
		if _, err := ledger.Record(ctx, doc.ID, is); err != nil {
			return nil, err
		}
		outcome := outcomeNotInPO
		if t.issue == constants.IssuePONotFound {
			outcome = outcomePONotFound
		}
		e.fail(summary, l.Position, outcome)
	}

	if err := writeReceived(ctx, repos, locked, dirty); err != nil {
		return nil, err
	}
	summary.POLinesUpdated = len(dirty)

	if docPO != nil {
		id := docPO.ID
		return &id, nil
	}
	for _, t := range targets {
		if t.po != nil {
			id := t.po.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (e *Engine) fail(summary *entity.MatchSummary, position int, outcome string) {
	summary.IssueLines++
	if summary.FirstFailingLine == nil {
		p := position
		summary.FirstFailingLine = &p
	}
	linesTotal.WithLabelValues(outcome).Inc()
}

// writeReceived stores the running total of every touched line once.
func writeReceived(ctx context.Context, repos repository.Repos, locked *lockedLines, dirty map[uuid.UUID]bool) error {
	ids := make([]uuid.UUID, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	for _, id := range ids {
		if err := repos.PurchaseOrders.SetReceived(ctx, id, locked.lines[id].Received); err != nil {
			return err
		}
	}
	return nil
}

type lockedLines struct {
	lines    map[uuid.UUID]*entity.POLine
	reversed map[uuid.UUID]bool
}

// reverse locks this document's earlier contribution lines together with the
// wanted ones, in ascending id order, and takes the earlier contributions back
// out of the in-memory received totals. The ledger entries are deleted; the
// caller writes the totals.
func (e *Engine) reverse(ctx context.Context, repos repository.Repos, documentID uuid.UUID, wanted []uuid.UUID) (*lockedLines, error) {
	prior, err := repos.Receipts.Contributions(ctx, documentID, entity.ContributionReceived)
	if err != nil {
		return nil, err
	}
	ids := slices.Clone(wanted)
	for _, c := range prior {
		ids = append(ids, c.POLineID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	out := &lockedLines{lines: map[uuid.UUID]*entity.POLine{}, reversed: map[uuid.UUID]bool{}}
	if len(ids) == 0 {
		return out, nil
	}
	pls, err := repos.PurchaseOrders.LockLinesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, pl := range pls {
		out.lines[pl.ID] = pl
	}
	for _, c := range prior {
		pl, ok := out.lines[c.POLineID]
		if !ok {
			continue
		}
		pl.Received = pl.Received.Sub(c.Qty)
		if pl.Received.IsNegative() {
			e.logger.Warn("reconcile.reverse.negative", "document_id", documentID, "po_line_id", pl.ID, "received", pl.Received.String())
			pl.Received = decimal.Zero
		}
		out.reversed[pl.ID] = true
	}
	if len(prior) > 0 {
		if err := repos.Receipts.DeleteContributions(ctx, documentID, entity.ContributionReceived); err != nil {
			return nil, err
		}
		e.logger.Debug("reconcile.reverse.done", "document_id", documentID, "lines", len(out.reversed))
	}
	return out, nil
}

// documentPO is the document's linked order, else the order named in its header.
func (e *Engine) documentPO(ctx context.Context, repos repository.Repos, doc *entity.InboundDocument, parsed *document.ParsedDocument) (*entity.PurchaseOrder, error) {
	if doc.POID != nil {
		po, err := repos.PurchaseOrders.GetByID(ctx, *doc.POID)
		if err == nil {
			return po, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}
	if n := strings.TrimSpace(parsed.Header.OrderNumber); n != "" {
		return getPO(ctx, repos, n)
	}
	return nil, nil
}

// linePO prefers the order named on the line when it resolves.
func (e *Engine) linePO(ctx context.Context, repos repository.Repos, token string, docPO *entity.PurchaseOrder, cache map[string]*entity.PurchaseOrder) (*entity.PurchaseOrder, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return docPO, nil
	}
	po, seen := cache[token]
	if !seen {
		var err error
		if po, err = getPO(ctx, repos, token); err != nil {
			return nil, err
		}
		cache[token] = po
	}
	if po != nil {
		return po, nil
	}
	return docPO, nil
}

func getPO(ctx context.Context, repos repository.Repos, number string) (*entity.PurchaseOrder, error) {
	po, err := repos.PurchaseOrders.GetByNumber(ctx, number)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	return po, err
}
