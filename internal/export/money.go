package export

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// currencyOf maps the extracted currency (code or symbol) to an ISO code, EUR by default.
func currencyOf(s string) string {
	switch c := strings.ToUpper(strings.TrimSpace(s)); c {
	case "€", "":
		return money.EUR
	case "£":
		return money.GBP
	case "$":
		return money.USD
	default:
		if money.GetCurrency(c) == nil {
			return money.EUR
		}
		return c
	}
}

// Amount converts a float price to minor units of currency.
func Amount(v float64, currency string) *money.Money {
	cur := money.GetCurrency(currency)
	if cur == nil {
		cur = money.GetCurrency(money.EUR)
	}
	cents := decimal.NewFromFloat(v).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, cur.Code)
}

// DocumentValue sums line totals, falling back to unit price times quantity.
// Lines with neither contribute nothing.
func DocumentValue(lines []document.ProductLine, currency string) *money.Money {
	total := money.New(0, currency)
	for _, p := range lines {
		var v *money.Money
		switch {
		case p.LineTotal != nil:
			v = Amount(*p.LineTotal, currency)
		case p.UnitPrice != nil:
			v = Amount(decimal.NewFromFloat(*p.UnitPrice).Mul(decimal.NewFromFloat(p.Quantity)).InexactFloat64(), currency)
		default:
			continue
		}
		if sum, err := total.Add(v); err == nil {
			total = sum
		}
	}
	return total
}

func displayPtr(v *float64, currency string) string {
	if v == nil {
		return ""
	}
	return Amount(*v, currency).Display()
}
