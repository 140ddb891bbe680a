// Package export renders the reconciliation state as an XLSX workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Sheet names, in workbook order.
const (
	SheetDocuments  = "Documents"
	SheetLines      = "Lines"
	SheetExceptions = "Exceptions"
	SheetPOLines    = "PO Lines"
)

// Service produces XLSX bytes for the reconciliation report.
type Service struct {
	store  repository.Store
	logger *slog.Logger
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ReportXLSX returns the workbook with one row per document, extracted line,
// exception and PO line.
func (s *Service) ReportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	repos := s.store.Repos()

	suppliers, err := repos.Suppliers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	supplierCode := make(map[uuid.UUID]string, len(suppliers))
	for _, sp := range suppliers {
		supplierCode[sp.ID] = sp.Code
	}
	docs, err := repos.Documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	orders, err := repos.PurchaseOrders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, name := range []string{SheetDocuments, SheetLines, SheetExceptions, SheetPOLines} {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	docSheet := newSheet(f, SheetDocuments, "Number", "Supplier", "Type", "Status", "OK", "Issues", "Total", "Value", "Parser", "Certified ID", "File")
	lineSheet := newSheet(f, SheetLines, "Document", "Position", "Code", "Mini Code", "Description", "Quantity", "Unit", "Unit Price", "Line Total", "Order")
	excSheet := newSheet(f, SheetExceptions, "Document", "Line", "Issue", "Suggested SKU", "Suggested Qty", "Resolved", "Created")
	poSheet := newSheet(f, SheetPOLines, "PO", "Supplier", "SKU", "Description", "Unit", "Ordered", "Received", "Remaining", "Tolerance", "Complete")

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, summary, certified := constants.StatusPending, entity.MatchSummary{}, ""
		res, err := repos.Results.Get(ctx, d.ID)
		switch {
		case err == nil:
			status, summary, certified = res.Status, res.Summary, res.CertifiedID
		case !errors.Is(err, common.ErrNotFound):
			return nil, fmt.Errorf("query result %s: %w", d.ID, err)
		}

		parsed, err := document.Unmarshal(d.ParsedPayload)
		if err != nil {
			s.logger.Warn("export.payload.invalid", "document_id", d.ID, "error", err)
			parsed = &document.ParsedDocument{}
		}
		currency := currencyOf(parsed.Header.Currency)

		docSheet.row(d.Number, supplierCode[d.SupplierID], string(d.DocType), string(status),
			summary.OKLines, summary.IssueLines, summary.TotalLines,
			DocumentValue(parsed.Products, currency).Display(), parsed.Diagnostics.Parser, certified, d.FilePath)

		for i, p := range parsed.Products {
			lineSheet.row(d.Number, i+1, p.Code, p.MiniCode(), truncate(p.Description, 140), p.Quantity, p.Unit,
				displayPtr(p.UnitPrice, currency), displayPtr(p.LineTotal, currency), p.OrderToken())
		}

		excs, err := repos.Exceptions.List(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("query exceptions %s: %w", d.ID, err)
		}
		for _, e := range excs {
			qty := ""
			if e.SuggestedQty != nil {
				qty = e.SuggestedQty.String()
			}
			excSheet.row(d.Number, e.LineRef, e.Issue, e.SuggestedInternalSKU, qty, e.Resolved, e.CreatedAt.UTC().Format(time.RFC3339))
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].Number < orders[j].Number })
	poRows := 0
	for _, po := range orders {
		lines, err := repos.PurchaseOrders.ListLines(ctx, po.ID)
		if err != nil {
			return nil, fmt.Errorf("query po lines %s: %w", po.Number, err)
		}
		for _, l := range lines {
			poSheet.row(po.Number, supplierCode[po.SupplierID], l.InternalSKU, l.Description, l.Unit,
				l.Ordered.InexactFloat64(), l.Received.InexactFloat64(), l.Remaining().InexactFloat64(),
				l.Tolerance.InexactFloat64(), l.Complete())
			poRows++
		}
	}

	_ = f.SetColWidth(SheetDocuments, "A", "A", 18)
	_ = f.SetColWidth(SheetDocuments, "H", "H", 14)
	_ = f.SetColWidth(SheetDocuments, "J", "J", 66) // sha256 hex
	_ = f.SetColWidth(SheetDocuments, "K", "K", 60)
	_ = f.SetColWidth(SheetLines, "E", "E", 48)
	_ = f.SetColWidth(SheetExceptions, "C", "C", 24)
	_ = f.SetColWidth(SheetPOLines, "C", "D", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"po_lines", poRows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteReport writes the workbook to path.
func (s *Service) WriteReport(ctx context.Context, path string) error {
	b, err := s.ReportXLSX(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

type sheet struct {
	f    *excelize.File
	name string
	next int
}

func newSheet(f *excelize.File, name string, headers ...string) *sheet {
	s := &sheet{f: f, name: name, next: 1}
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	s.row(vals...)
	return s
}

func (s *sheet) row(vals ...any) {
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, s.next)
		_ = s.f.SetCellValue(s.name, cell, v)
	}
	s.next++
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
