package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

func ptr(f float64) *float64 { return &f }

func TestReportXLSX(t *testing.T) {
	ctx := t.Context()
	store := repository.NewMemoryStore()
	repos := store.Repos()
	sp, _, err := repository.EnsureSupplier(ctx, repos.Suppliers, "F001", "Espumas do Norte")
	require.NoError(t, err)

	po := &entity.PurchaseOrder{Number: "PO-2025-0001", SupplierID: sp.ID}
	require.NoError(t, repos.PurchaseOrders.Create(ctx, po))
	require.NoError(t, repos.PurchaseOrders.CreateLine(ctx, &entity.POLine{
		POID: po.ID, InternalSKU: "A-1", Description: "Bloco", Unit: "UN",
		Ordered: decimal.NewFromInt(10), Tolerance: decimal.RequireFromString("0.5"),
	}))

	newDoc := func(number string) *entity.InboundDocument {
		d := &entity.InboundDocument{SupplierID: sp.ID, DocType: constants.DocTypeDelivery, Number: number, FilePath: number + ".pdf"}
		require.NoError(t, repos.Documents.Create(ctx, d))
		return d
	}
	matched, failing := newDoc("GR-1"), newDoc("GR-2")
	newDoc("GR-3")

	engine := reconcile.NewEngine(0, nil)
	text := "GUIA DE REMESSA GR 1/245 Espumas do Norte Lda 12/03/2025 Encomenda PO-2025-0001"
	_, err = engine.Reconcile(ctx, store, matched.ID, &document.ParsedDocument{
		Header:   document.Header{OrderNumber: "PO-2025-0001"},
		Products: []document.ProductLine{{Code: "A-1", Description: "Bloco", Quantity: 4, Unit: "UN", UnitPrice: ptr(2.5)}},
		RawText:  text,
	}, reconcile.Options{})
	require.NoError(t, err)
	_, err = engine.Reconcile(ctx, store, failing.ID, &document.ParsedDocument{
		Header:   document.Header{OrderNumber: "PO-2025-0001"},
		Products: []document.ProductLine{{Code: "Z-9", Description: "Outro", Quantity: 1, Unit: "UN"}},
		RawText:  text,
	}, reconcile.Options{})
	require.NoError(t, err)

	b, err := NewService(store, nil).ReportXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	assert.Equal(t, []string{SheetDocuments, SheetLines, SheetExceptions, SheetPOLines}, f.GetSheetList())

	docs, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, []string{"GR-1", "F001", "GR", "matched"}, docs[1][:4])
	assert.Equal(t, "exceptions", docs[2][3])
	assert.Equal(t, "pending", docs[3][3])

	lines, err := f.GetRows(SheetLines)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "A-1", lines[1][2])

	excs, err := f.GetRows(SheetExceptions)
	require.NoError(t, err)
	require.Len(t, excs, 2)
	assert.Equal(t, "GR-2", excs[1][0])
	assert.Equal(t, constants.IssueNotInPO, excs[1][2])

	poLines, err := f.GetRows(SheetPOLines)
	require.NoError(t, err)
	require.Len(t, poLines, 2)
	assert.Equal(t, []string{"PO-2025-0001", "F001", "A-1", "Bloco", "UN", "10", "4", "6", "0.5"}, poLines[1][:9])
}

func TestDocumentValue(t *testing.T) {
	lines := []document.ProductLine{
		{Quantity: 3, UnitPrice: ptr(1.1)},
		{Quantity: 2, UnitPrice: ptr(100), LineTotal: ptr(190)},
		{Quantity: 5},
	}
	v := DocumentValue(lines, "EUR")
	assert.Equal(t, int64(19330), v.Amount())
	assert.Equal(t, "EUR", v.Currency().Code)
}

func TestCurrencyOf(t *testing.T) {
	tests := map[string]string{"": "EUR", "€": "EUR", "usd": "USD", "£": "GBP", "XXX-bad": "EUR"}
	for in, want := range tests {
		assert.Equal(t, want, currencyOf(in), in)
	}
}
