package purchase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/mapping"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

func newFixture(t *testing.T) (*repository.MemoryStore, *Materializer, *entity.InboundDocument) {
	t.Helper()
	store := repository.NewMemoryStore()
	repos := store.Repos()
	supplier, _, err := repository.EnsureSupplier(t.Context(), repos.Suppliers, "F001", "Espumas do Norte")
	require.NoError(t, err)
	doc := &entity.InboundDocument{SupplierID: supplier.ID, DocType: constants.DocTypeOrder, Number: "NE-31", FilePath: "ne.pdf"}
	require.NoError(t, repos.Documents.Create(t.Context(), doc))
	m := NewMaterializer(repos.PurchaseOrders, repos.Receipts, mapping.NewResolver(repos.Mappings, nil), nil)
	return store, m, doc
}

func lines(t *testing.T, store *repository.MemoryStore, number string) map[string]*entity.POLine {
	t.Helper()
	repos := store.Repos()
	po, err := repos.PurchaseOrders.GetByNumber(t.Context(), number)
	require.NoError(t, err)
	ls, err := repos.PurchaseOrders.ListLines(t.Context(), po.ID)
	require.NoError(t, err)
	out := map[string]*entity.POLine{}
	for _, l := range ls {
		out[l.InternalSKU] = l
	}
	return out
}

func TestMaterialize_SingleOrder(t *testing.T) {
	store, m, doc := newFixture(t)
	_, err := store.Repos().Mappings.Create(t.Context(), &entity.CodeMapping{
		SupplierID: doc.SupplierID, SupplierCode: "PT-001", InternalSKU: "INT-COLCHAO-150", Confidence: 0.9,
	})
	require.NoError(t, err)

	parsed := &document.ParsedDocument{
		Header: document.Header{OrderNumber: "PO-2025-0001"},
		Products: []document.ProductLine{
			{Code: "PT-001", Description: "Colchão Visco 150x190", Quantity: 2, Unit: "UN"},
			{Code: "PT-002", Description: "Almofada", Quantity: 4, Unit: "UN"},
			{Code: "PT-001", Description: "Colchão Visco 150x190", Quantity: 1, Unit: "UN"},
			{Code: "PT-003", Description: "Zero", Quantity: 0},
			{Description: "", Quantity: 5},
		},
	}
	res, err := m.Materialize(t.Context(), doc, parsed)
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "PO-2025-0001", res.First().Number)
	assert.Equal(t, 2, res.LinesCreated)
	assert.Equal(t, 1, res.LinesUpdated)
	assert.Equal(t, 2, res.Skipped)

	got := lines(t, store, "PO-2025-0001")
	require.Len(t, got, 2)
	assert.True(t, got["INT-COLCHAO-150"].Ordered.Equal(decimal.NewFromInt(3)))
	assert.True(t, got["PT-002"].Ordered.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "UN", got["PT-002"].Unit)
}

func TestMaterialize_RerunIsIdempotent(t *testing.T) {
	store, m, doc := newFixture(t)
	parsed := &document.ParsedDocument{
		Header:   document.Header{DocumentNumber: "NE 2025/31"},
		Products: []document.ProductLine{{Code: "A-1", Description: "Bloco", Quantity: 10}},
	}
	first, err := m.Materialize(t.Context(), doc, parsed)
	require.NoError(t, err)
	second, err := m.Materialize(t.Context(), doc, parsed)
	require.NoError(t, err)
	assert.Equal(t, first.LinesCreated, second.LinesCreated)
	assert.Equal(t, first.LinesUpdated, second.LinesUpdated)
	assert.Equal(t, 1, second.LinesCreated)

	got := lines(t, store, "NE 2025/31")
	assert.True(t, got["A-1"].Ordered.Equal(decimal.NewFromInt(10)))

	contribs, err := store.Repos().Receipts.Contributions(t.Context(), doc.ID, entity.ContributionOrdered)
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.Equal(t, got["A-1"].ID, contribs[0].POLineID)
	assert.True(t, contribs[0].Qty.Equal(decimal.NewFromInt(10)))
}

func TestMaterialize_AccumulatesAcrossDocuments(t *testing.T) {
	store, m, doc := newFixture(t)
	other := &entity.InboundDocument{SupplierID: doc.SupplierID, DocType: constants.DocTypeOrder, Number: "NE-32", FilePath: "ne32.pdf"}
	require.NoError(t, store.Repos().Documents.Create(t.Context(), other))
	parsed := &document.ParsedDocument{
		Header:   document.Header{OrderNumber: "PO-2025-0001"},
		Products: []document.ProductLine{{Code: "A-1", Description: "Bloco", Quantity: 10}},
	}

	_, err := m.Materialize(t.Context(), doc, parsed)
	require.NoError(t, err)
	res, err := m.Materialize(t.Context(), other, parsed)
	require.NoError(t, err)
	assert.Equal(t, 0, res.LinesCreated)
	assert.Equal(t, 1, res.LinesUpdated)
	assert.True(t, lines(t, store, "PO-2025-0001")["A-1"].Ordered.Equal(decimal.NewFromInt(20)))

	n, err := m.Reverse(t.Context(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, lines(t, store, "PO-2025-0001")["A-1"].Ordered.Equal(decimal.NewFromInt(10)))
}

func TestMaterialize_MultipleOrders(t *testing.T) {
	store, m, doc := newFixture(t)
	parsed := &document.ParsedDocument{
		Header: document.Header{DocumentNumber: "FT 2025/118"},
		Products: []document.ProductLine{
			{Code: "2300150", Description: "BLOCO D23", Quantity: 20, OrderNumber: "4500012"},
			{Code: "2300151", Description: "BLOCO D30", Quantity: 5, OrderNumber: "4500013"},
			{Code: "2300152", Description: "BLOCO D35", Quantity: 1},
		},
	}
	res, err := m.Materialize(t.Context(), doc, parsed)
	require.NoError(t, err)
	require.Len(t, res.Orders, 3)
	assert.Equal(t, "4500012", res.First().Number)

	assert.Contains(t, lines(t, store, "4500012"), "2300150")
	assert.Contains(t, lines(t, store, "4500013"), "2300151")
	assert.Contains(t, lines(t, store, "FT 2025/118"), "2300152")
}

func TestOrderNumberFunc(t *testing.T) {
	doc := &entity.InboundDocument{ID: uuid.MustParse("0a1b2c3d-0000-0000-0000-000000000000")}
	line := document.ProductLine{Code: "X-1", Quantity: 1, OrderRef: "PO-9"}

	tests := []struct {
		name   string
		header document.Header
		number string
		want   string
	}{
		{"header order number", document.Header{OrderNumber: "PO-1", DocumentNumber: "GR 1/2"}, "", "PO-1"},
		{"document number", document.Header{DocumentNumber: "GR 1/2"}, "", "GR 1/2"},
		{"single line token", document.Header{}, "", "PO-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := &document.ParsedDocument{Header: tt.header, Products: []document.ProductLine{line}}
			assert.Equal(t, tt.want, OrderNumberFunc(doc, parsed)(line))
		})
	}

	bare := document.ProductLine{Code: "X-1", Quantity: 1}
	parsed := &document.ParsedDocument{Products: []document.ProductLine{bare}}
	assert.Equal(t, "PO-AUTO-0A1B2C3D", OrderNumberFunc(doc, parsed)(bare))
	doc.Number = "NE-7"
	assert.Equal(t, "PO-NE-7", OrderNumberFunc(doc, parsed)(bare))
}
