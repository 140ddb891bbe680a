package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLine_Valid(t *testing.T) {
	tests := []struct {
		name string
		line ProductLine
		want bool
	}{
		{"code and qty", ProductLine{Code: "BLC-D25", Quantity: 2}, true},
		{"description only", ProductLine{Description: "COLCHAO VISCO", Quantity: 1}, true},
		{"zero qty", ProductLine{Code: "BLC-D25", Quantity: 0}, false},
		{"negative qty", ProductLine{Code: "BLC-D25", Quantity: -1}, false},
		{"nothing usable", ProductLine{Quantity: 3}, false},
		{"description too short", ProductLine{Description: "ab", Quantity: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.line.Valid())
		})
	}
	assert.Equal(t, 2, CountInvalid([]ProductLine{{Quantity: 1}, {Code: "X1", Quantity: 0}, {Code: "X2", Quantity: 1}}))
}

func TestParsedDocument_MarshalKeepsKeys(t *testing.T) {
	d := &ParsedDocument{RawText: "abc"}
	b, err := d.Marshal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"category", "header", "products", "totals", "barcodes", "diagnostics"} {
		assert.Contains(t, m, k)
	}
	header := m["header"].(map[string]any)
	for _, k := range []string{"document_number", "order_number", "supplier_name", "date"} {
		assert.Contains(t, header, k)
	}
	assert.Equal(t, []any{}, m["products"])
	assert.Equal(t, "EUR", header["currency"])
	assert.Equal(t, 3, d.Diagnostics.TextLength)
}

func TestMiniCode(t *testing.T) {
	p := ProductLine{Code: "BLC-D25-200x300x150", Density: "D25", Dimensions: &Dimensions{Length: 300, Width: 200, Thickness: 150}}
	assert.Equal(t, "D25-200x300x150", p.MiniCode())
	assert.Equal(t, "X1", ProductLine{Code: "X1"}.MiniCode())
}

func TestDedupe(t *testing.T) {
	in := []ProductLine{{Code: "A", Quantity: 1}, {Code: "A", Quantity: 1}, {Code: "A", Quantity: 2}}
	assert.Len(t, Dedupe(in), 2)
}
