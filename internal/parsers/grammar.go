package parsers

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// reOrderContext finds an order/PO reference on a context line, e.g.
// "V/ Encomenda: PO-2025-0001", "Pedido nº 7781", "Commande n° CMD-7781".
var reOrderContext = regexp.MustCompile(`(?i)\b(?:encomenda|pedido|commande|order|purchase order|po)\b\s*(?:n(?:\.\s*[º°o]?|[º°o])\.?|nr\.?|no\.?)?\s*[:\-]?\s*([A-Z]{0,4}[\s\-]?\d[\w/\-.]*)`)

// orderContext returns the order token announced by ln, or "".
func orderContext(ln string) string {
	m := reOrderContext.FindStringSubmatch(ln)
	if m == nil {
		return ""
	}
	return NormalizeOrderToken(m[1])
}

// NormalizeOrderToken upper-cases a token, collapses spaces and trims trailing punctuation.
func NormalizeOrderToken(tok string) string {
	tok = strings.ToUpper(cleanText(tok))
	return strings.TrimRight(tok, ".,;:-/")
}

type orderField int

const (
	orderAsRef orderField = iota
	orderAsNumber
)

// lineGrammar is a dialect made of product-line patterns plus order context lines.
// Patterns use the named groups code, desc, qty, unit, price and total.
type lineGrammar struct {
	patterns []*regexp.Regexp
	codeOK   func(string) bool
	order    orderField
}

func (g lineGrammar) parse(text string) []document.ProductLine {
	var out []document.ProductLine
	current := ""
	for _, ln := range lines(text) {
		if p, ok := g.match(ln); ok {
			switch g.order {
			case orderAsNumber:
				p.OrderNumber = current
			default:
				p.OrderRef = current
			}
			out = keep(out, p)
			continue
		}
		if tok := orderContext(ln); tok != "" {
			current = tok
		}
	}
	return out
}

func (g lineGrammar) match(ln string) (document.ProductLine, bool) {
	for _, re := range g.patterns {
		m := re.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		get := func(name string) string {
			if i := re.SubexpIndex(name); i >= 0 {
				return strings.TrimSpace(m[i])
			}
			return ""
		}
		code := get("code")
		if code != "" && g.codeOK != nil && !g.codeOK(code) {
			continue
		}
		p, ok := newLine(code, get("desc"), get("qty"), get("unit"))
		if !ok {
			continue
		}
		setPrices(&p, get("price"), get("total"))
		return p, true
	}
	return document.ProductLine{}, false
}
