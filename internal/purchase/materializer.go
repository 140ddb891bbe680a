// Package purchase turns order-confirmation documents into purchase orders.
package purchase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/mapping"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Result counts what a pass created or touched. A line counts as created when
// it had nothing ordered before this document added to it, so a rerun of the
// same document reports the same counts.
type Result struct {
	Orders       []*entity.PurchaseOrder
	LinesCreated int
	LinesUpdated int
	Skipped      int
}

// First is the order the document gets linked to, or nil.
func (r Result) First() *entity.PurchaseOrder {
	if len(r.Orders) == 0 {
		return nil
	}
	return r.Orders[0]
}

type Materializer struct {
	orders   repository.PurchaseOrderRepository
	receipts repository.ReceiptRepository
	resolver *mapping.Resolver
	logger   *slog.Logger
}

func NewMaterializer(orders repository.PurchaseOrderRepository, receipts repository.ReceiptRepository,
	resolver *mapping.Resolver, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{orders: orders, receipts: receipts, resolver: resolver, logger: logger}
}

// Materialize groups the product lines by effective order number, finds or
// creates each purchase order and adds the line quantities to its ordered
// quantities. Whatever the document ordered on an earlier pass is taken back
// first. Lines without a reference or with a non-positive quantity are
// skipped.
func (m *Materializer) Materialize(ctx context.Context, doc *entity.InboundDocument, parsed *document.ParsedDocument) (Result, error) {
	var res Result
	if _, err := m.Reverse(ctx, doc.ID); err != nil {
		return res, err
	}
	orderOf := OrderNumberFunc(doc, parsed)

	byOrder := map[string]*entity.PurchaseOrder{}
	for _, p := range parsed.Products {
		ref := p.Reference()
		qty := decimal.NewFromFloat(p.Quantity)
		if ref == "" || !qty.IsPositive() {
			res.Skipped++
			continue
		}

		number := orderOf(p)
		po, ok := byOrder[number]
		if !ok {
			var err error
			po, err = m.ensureOrder(ctx, number, doc)
			if err != nil {
				return res, err
			}
			byOrder[number] = po
			res.Orders = append(res.Orders, po)
		}

		sku := ref
		if m.resolver != nil {
			r, found, err := m.resolver.Lookup(ctx, doc.SupplierID, ref)
			if err != nil {
				return res, err
			}
			if found {
				sku = r.InternalSKU
			}
		}

		lineID, created, err := m.addLine(ctx, po, sku, p, qty)
		if err != nil {
			return res, err
		}
		c := entity.Contribution{DocumentID: doc.ID, POLineID: lineID, Kind: entity.ContributionOrdered, Qty: qty}
		if err := m.receipts.AddContribution(ctx, c); err != nil {
			return res, err
		}
		if created {
			res.LinesCreated++
		} else {
			res.LinesUpdated++
		}
	}

	m.logger.Info("purchase.materialized",
		"document_id", doc.ID, "orders", len(res.Orders),
		"lines_created", res.LinesCreated, "lines_updated", res.LinesUpdated, "skipped", res.Skipped)
	return res, nil
}

func (m *Materializer) ensureOrder(ctx context.Context, number string, doc *entity.InboundDocument) (*entity.PurchaseOrder, error) {
	po, err := m.orders.GetByNumber(ctx, number)
	if err == nil {
		return po, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	po = &entity.PurchaseOrder{Number: number, SupplierID: doc.SupplierID}
	if err := m.orders.Create(ctx, po); err != nil {
		return nil, err
	}
	m.logger.Info("purchase.order_created", "number", number, "document_id", doc.ID)
	return po, nil
}

// Reverse subtracts the document's ordered contributions from their lines and
// clears them from the ledger. It returns the number of lines touched.
func (m *Materializer) Reverse(ctx context.Context, documentID uuid.UUID) (int, error) {
	prior, err := m.receipts.Contributions(ctx, documentID, entity.ContributionOrdered)
	if err != nil || len(prior) == 0 {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(prior))
	for _, c := range prior {
		ids = append(ids, c.POLineID)
	}
	pls, err := m.orders.LockLinesByID(ctx, ids)
	if err != nil {
		return 0, err
	}
	byID := make(map[uuid.UUID]*entity.POLine, len(pls))
	for _, pl := range pls {
		byID[pl.ID] = pl
	}
	for _, c := range prior {
		pl, ok := byID[c.POLineID]
		if !ok {
			continue
		}
		ordered := pl.Ordered.Sub(c.Qty)
		if ordered.IsNegative() {
			m.logger.Warn("purchase.reverse.negative", "document_id", documentID, "po_line_id", pl.ID, "ordered", ordered.String())
			ordered = decimal.Zero
		}
		if err := m.orders.SetOrdered(ctx, pl.ID, ordered); err != nil {
			return 0, err
		}
	}
	if err := m.receipts.DeleteContributions(ctx, documentID, entity.ContributionOrdered); err != nil {
		return 0, err
	}
	m.logger.Debug("purchase.reverse.done", "document_id", documentID, "lines", len(byID))
	return len(byID), nil
}

func (m *Materializer) addLine(ctx context.Context, po *entity.PurchaseOrder, sku string, p document.ProductLine, qty decimal.Decimal) (uuid.UUID, bool, error) {
	line, err := m.orders.LockLine(ctx, po.ID, sku)
	switch {
	case err == nil:
		return line.ID, line.Ordered.IsZero(), m.orders.SetOrdered(ctx, line.ID, line.Ordered.Add(qty))
	case !errors.Is(err, common.ErrNotFound):
		return uuid.Nil, false, err
	}
	line = &entity.POLine{
		POID:        po.ID,
		InternalSKU: sku,
		Description: p.Description,
		Unit:        p.Unit,
		Ordered:     qty,
	}
	if err := m.orders.CreateLine(ctx, line); err != nil {
		return uuid.Nil, false, err
	}
	return line.ID, true, nil
}

// OrderNumberFunc returns the effective order number for each product line.
// A document naming several distinct orders on its lines uses the per-line
// token; otherwise every line shares the header order number, the document
// number, the single line token, or a number synthesized from the document.
func OrderNumberFunc(doc *entity.InboundDocument, parsed *document.ParsedDocument) func(document.ProductLine) string {
	tokens := map[string]struct{}{}
	single := ""
	for _, p := range parsed.Products {
		if t := strings.TrimSpace(p.OrderToken()); t != "" {
			tokens[t] = struct{}{}
			single = t
		}
	}

	shared := firstNonEmpty(parsed.Header.OrderNumber, parsed.Header.DocumentNumber, single)
	if shared == "" {
		shared = SynthesizeNumber(doc)
	}
	if len(tokens) <= 1 {
		return func(document.ProductLine) string { return shared }
	}
	return func(p document.ProductLine) string {
		if t := strings.TrimSpace(p.OrderToken()); t != "" {
			return t
		}
		return shared
	}
}

// SynthesizeNumber names an order for a document that carries none.
func SynthesizeNumber(doc *entity.InboundDocument) string {
	if n := strings.TrimSpace(doc.Number); n != "" {
		return "PO-" + n
	}
	return "PO-AUTO-" + strings.ToUpper(doc.ID.String()[:8])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
