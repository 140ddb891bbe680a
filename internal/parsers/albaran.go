package parsers

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/numfmt"
)

// Single-line albarán rows: Código | Descripción | Cantidad | Ud, or the
// reverse Cantidad | Descripción | Código used by some scanners.
var albaranES = lineGrammar{
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `(?:\s+` + unitGroup + `)?` + priceGroup + totalGroup + `\s*$`),
	},
	codeOK: func(code string) bool { return looksLikeCode(code) && !reAllDigit.MatchString(code) },
	order:  orderAsRef,
}

var (
	reBufQty  = regexp.MustCompile(`^(?P<qty>\d+(?:[.,]\d+)?)\s*(?:(?P<unit>(?i:` + unitPattern + `))\.?)?$`)
	reBufCode = regexp.MustCompile(`^(?i:ref(?:erencia)?\.?|c[óo]d(?:igo)?\.?|art(?:[íi]culo)?\.?)?\s*:?\s*([A-Z0-9][A-Z0-9\-./]{2,})$`)

	// header words that never start a product description
	albaranHeaderWords = buildWordRegex([]string{
		"albarán", "albaran", "pedido", "fecha", "cliente", "proveedor", "factura", "nº", "n.º", "num", "número",
		"cantidad", "descripción", "descripcion", "código", "codigo", "referencia", "importe", "precio", "dto", "portes",
		"firma", "recibí", "recibi", "conforme", "observaciones", "agencia", "bultos", "peso",
	})
)

// ParseAlbaranES reads Spanish delivery notes. Rows on one physical line are
// parsed directly. When OCR splits a row into separate quantity, description
// and code lines (any order, within three consecutive lines), they are
// buffered and rebuilt.
func ParseAlbaranES(text string) []document.ProductLine {
	if out := albaranES.parse(text); len(out) > 0 {
		return out
	}
	return parseBufferedRows(text)
}

type rowBuffer struct {
	qty, unit, desc, code string
	seen                  int
}

func (b *rowBuffer) complete() bool { return b.qty != "" && b.desc != "" && b.code != "" }

func parseBufferedRows(text string) []document.ProductLine {
	var out []document.ProductLine
	var buf rowBuffer
	current := ""

	flush := func() {
		if buf.complete() {
			if p, ok := buildBuffered(buf); ok {
				p.OrderRef = current
				out = keep(out, p)
			}
		}
		buf = rowBuffer{}
	}

	for _, ln := range lines(text) {
		if tok := orderContext(ln); tok != "" && !reBufQty.MatchString(ln) {
			flush()
			current = tok
			continue
		}
		kind := classifyBufferedLine(ln)
		if kind == "" {
			flush()
			continue
		}
		if buf.has(kind) || buf.seen >= 3 {
			flush()
		}
		buf.set(kind, ln)
		if buf.complete() {
			flush()
		}
	}
	flush()
	return out
}

func (b *rowBuffer) has(kind string) bool {
	switch kind {
	case "qty":
		return b.qty != ""
	case "code":
		return b.code != ""
	default:
		return b.desc != ""
	}
}

func (b *rowBuffer) set(kind, ln string) {
	b.seen++
	switch kind {
	case "qty":
		m := reBufQty.FindStringSubmatch(ln)
		b.qty, b.unit = m[1], m[2]
	case "code":
		b.code = reBufCode.FindStringSubmatch(ln)[1]
	default:
		b.desc = ln
	}
}

// classifyBufferedLine returns qty, code, desc or "" for lines that cannot be
// part of a product row.
func classifyBufferedLine(ln string) string {
	if reBufQty.MatchString(ln) {
		return "qty"
	}
	if m := reBufCode.FindStringSubmatch(ln); m != nil {
		code := m[1]
		// pure numbers are document or postal numbers
		if looksLikeCode(code) && !reAllDigit.MatchString(code) && !hasBoilerplate(code) {
			return "code"
		}
	}
	if isDescriptionLine(ln) {
		return "desc"
	}
	return ""
}

func isDescriptionLine(ln string) bool {
	if strings.Contains(ln, ":") || len([]rune(ln)) > 80 {
		return false
	}
	letters := 0
	for _, r := range ln {
		if reHasAlpha.MatchString(string(r)) {
			letters++
		}
	}
	if letters < document.MinDescriptionLen || letters*2 < len([]rune(ln)) {
		return false
	}
	return !hasBoilerplate(ln) && !albaranHeaderWords.MatchString(ln)
}

func buildBuffered(b rowBuffer) (document.ProductLine, bool) {
	q, ok := numfmt.ParseDecimal(b.qty)
	if !ok || !q.IsPositive() || q.InexactFloat64() > MaxBufferedQty {
		return document.ProductLine{}, false
	}
	return newLine(b.code, b.desc, b.qty, b.unit)
}
