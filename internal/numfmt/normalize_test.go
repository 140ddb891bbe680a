package numfmt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,880", 1880},
		{"125,000", 125000},
		{"34,00", 34},
		{"2,5", 2.5},
		{"12", 12},
		{"12.75", 12.75},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1.234.567", 1234567},
		{"1,234,567", 1234567},
		{"1,234,567.89", 1234567.89},
		{" 3 ,5 ", 3.5},
		{"199.00€", 199},
		{"-4,25", -4.25},
		{"7,", 7},
		{"1,2345", 1.2345},
		{"", 0},
		{"abc", 0},
		{"1,2a", 0},
		{"12.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, Parse(tt.in), 1e-9)
		})
	}
}

func TestParseDecimal_Malformed(t *testing.T) {
	d, ok := ParseDecimal("--1")
	assert.False(t, ok)
	assert.True(t, d.IsZero())
}

// European formatting of any value with at most two fractional digits
// must come back unchanged.
func TestParse_EuropeanRoundTrip(t *testing.T) {
	f := gofakeit.New(42)
	for i := 0; i < 500; i++ {
		cents := int64(f.IntRange(0, 99_999_999))
		v := decimal.New(cents, -2)

		plain := formatEU(v, false)
		grouped := formatEU(v, true)

		got, ok := ParseDecimal(plain)
		require.True(t, ok, plain)
		assert.True(t, v.Equal(got), "%s -> %s, want %s", plain, got, v)

		got, ok = ParseDecimal(grouped)
		require.True(t, ok, grouped)
		assert.True(t, v.Equal(got), "%s -> %s, want %s", grouped, got, v)
	}
}

func TestParse_ThousandsCommaRoundTrip(t *testing.T) {
	f := gofakeit.New(7)
	for i := 0; i < 500; i++ {
		n := f.IntRange(0, 999_999)
		s := fmt.Sprintf("%d,%03d", n/1000, n%1000)
		assert.Equal(t, float64(n), Parse(s), s)
	}
}

// formatEU renders v with a comma decimal separator and, optionally, dot grouping.
func formatEU(v decimal.Decimal, group bool) string {
	s := v.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	if group && len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	return intPart + "," + frac
}
