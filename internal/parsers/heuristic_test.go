package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimplePriced(t *testing.T) {
	got := ParseSimplePriced("COLCHAO VISCO 150X190 2 UN 199.00€ 398.00€")
	require.Len(t, got, 1)

	p := got[0]
	assert.Empty(t, p.Code)
	assert.Equal(t, "COLCHAO VISCO 150X190", p.Description)
	assert.Equal(t, 2.0, p.Quantity)
	assert.Equal(t, "UN", p.Unit)
	require.NotNil(t, p.Dimensions)
	assert.Equal(t, "150x190", p.Reference())
	require.NotNil(t, p.LineTotal)
	assert.InDelta(t, 398.0, *p.LineTotal, 1e-9)
}

func TestParseASCIIBlock(t *testing.T) {
	text := `+---------+----------------------+---+----+
| 10023-A | MOLA ENSACADA 90X190 | 6 | UN |
| SHORT   | no code here         | 1 | UN |
+---------+----------------------+---+----+`

	got := ParseASCIIBlock(text)
	require.Len(t, got, 1)
	assert.Equal(t, "10023-A", got[0].Code)
	assert.Equal(t, "MOLA ENSACADA 90X190", got[0].Description)
	assert.Equal(t, 6.0, got[0].Quantity)
	assert.Equal(t, "UN", got[0].Unit)
}

func TestKeepRejectsBoilerplate(t *testing.T) {
	lines := ParseSimplePriced("Rua das Flores 10 2 UN 1.00 2.00")
	assert.Empty(t, lines)
}
