package seed

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

func TestDemo(t *testing.T) {
	ctx := t.Context()
	store := repository.NewMemoryStore()
	s := NewSeeder(store, nil)

	rep, err := s.Demo(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{New: 1}, rep.Suppliers)
	assert.Equal(t, Counters{New: 2}, rep.POLines)
	assert.Equal(t, Counters{New: 2}, rep.Mappings)

	repos := store.Repos()
	po, err := repos.PurchaseOrders.GetByNumber(ctx, DemoPO)
	require.NoError(t, err)
	line, err := repos.PurchaseOrders.LockLine(ctx, po.ID, "INT-BL-D23-150")
	require.NoError(t, err)
	assert.True(t, line.Ordered.Equal(decimal.NewFromInt(20)))
	assert.True(t, line.Tolerance.Equal(decimal.RequireFromString("0.5")))

	sp, err := repos.Suppliers.GetByCode(ctx, "F001")
	require.NoError(t, err)
	m, err := repos.Mappings.Get(ctx, sp.ID, "Bl D23 E150")
	require.NoError(t, err)
	assert.Equal(t, "INT-BL-D23-150", m.InternalSKU)
	assert.InDelta(t, 0.98, m.Confidence, 1e-9)

	rep, err = s.Demo(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{Skipped: 1}, rep.Suppliers)
	assert.Equal(t, Counters{Skipped: 2}, rep.POLines)
	assert.Equal(t, Counters{Updated: 2}, rep.Mappings)
}

func TestPOLines_UpsertAndSkip(t *testing.T) {
	ctx := t.Context()
	store := repository.NewMemoryStore()
	s := NewSeeder(store, nil)

	csv := `po_number,supplier_code,internal_sku,description,unit,qty_ordered,tolerance
PO-9,F009,SKU-1,Placa,UN,"1.250,5",
PO-9,F009,SKU-2,Placa,UN,abc,
,F009,SKU-3,Placa,UN,3,
`
	c, err := s.POLines(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, Counters{New: 1, Skipped: 2}, c)

	c, err = s.POLines(ctx, strings.NewReader(`po_number,supplier_code,internal_sku,description,unit,qty_ordered,tolerance
PO-9,F009,SKU-1,Placa,UN,1300,
`))
	require.NoError(t, err)
	assert.Equal(t, Counters{Updated: 1}, c)

	po, err := store.Repos().PurchaseOrders.GetByNumber(ctx, "PO-9")
	require.NoError(t, err)
	line, err := store.Repos().PurchaseOrders.LockLine(ctx, po.ID, "SKU-1")
	require.NoError(t, err)
	assert.True(t, line.Ordered.Equal(decimal.NewFromInt(1300)))
}

func TestPOLines_MissingSupplierRollsBack(t *testing.T) {
	ctx := t.Context()
	store := repository.NewMemoryStore()
	s := NewSeeder(store, nil)

	_, err := s.POLines(ctx, strings.NewReader(`po_number,supplier_code,internal_sku,description,unit,qty_ordered,tolerance
PO-1,F001,SKU-1,,,1,
PO-2,,SKU-1,,,1,
`))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = store.Repos().PurchaseOrders.GetByNumber(ctx, "PO-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMappings_UnknownSupplierAndConfidence(t *testing.T) {
	ctx := t.Context()
	store := repository.NewMemoryStore()
	s := NewSeeder(store, nil)
	_, err := s.SupplierRows(ctx, []SupplierRow{{Code: "F001", Name: "Espumas"}})
	require.NoError(t, err)

	c, err := s.MappingRows(ctx, []MappingRow{
		{SupplierCode: "F001", Code: "X1", SKU: "INT-1"},
		{SupplierCode: "F404", Code: "X2", SKU: "INT-2"},
		{SupplierCode: "F001", Code: "X3", SKU: "INT-3", Confidence: "1.7"},
		{SupplierCode: "F001", Code: "", SKU: "INT-4"},
	})
	require.NoError(t, err)
	assert.Equal(t, Counters{New: 1, Skipped: 3}, c)
}

func TestSuppliers_InvalidCSV(t *testing.T) {
	s := NewSeeder(repository.NewMemoryStore(), nil)
	_, err := s.Suppliers(t.Context(), strings.NewReader(""))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
