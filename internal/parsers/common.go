package parsers

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/numfmt"
)

// MaxBufferedQty is the largest quantity accepted from a reconstructed
// multi-line record; bigger values are postal codes or phone numbers.
const MaxBufferedQty = 9999

// unitPattern is the alternation of accepted unit tokens, longest first.
const unitPattern = `(?:UNIDADES|UNIDADE|UNIDAD|UNITÉS|UNITES|UNITÉ|UNITE|PIÈCES|PIECES|PIÈCE|PIECE|UNID|UNDS|UND|UDS|UD|UN|UNI|U|PCS|PCE|PC|PÇ|PÇS|PZA|PZ|KG|M2|M3|ML|MT|M|CX|LT|L|ROL|ROLO|PAR|SET|JGO|FD)`

var (
	reQtyToken = regexp.MustCompile(`^\d+(?:[.,\s]\d{3})*(?:[.,]\d+)?$`)
	reDims     = regexp.MustCompile(`(?i)\b(\d{2,4}(?:[.,]\d)?)\s*[x×*]\s*(\d{2,4}(?:[.,]\d)?)(?:\s*[x×*]\s*(\d{1,4}(?:[.,]\d)?))?\b`)
	reDensity  = regexp.MustCompile(`(?i)\bD\s?(\d{2})\b`)
	reUnitOnly = regexp.MustCompile(`(?i)^` + unitPattern + `\.?$`)
	reHasDigit = regexp.MustCompile(`\d`)
	reHasAlpha = regexp.MustCompile(`\pL`)
	reAllDigit = regexp.MustCompile(`^[\d\s./\-]+$`)
)

// boilerplateWords are address and company words that leak into product grammars.
var boilerplateWords = []string{
	"rua", "r.", "avenida", "av.", "travessa", "estrada", "calle", "c/", "avda", "rue", "boulevard", "chemin",
	"lda", "unipessoal", "s.a", "sa", "s.l", "sl", "sarl", "sas", "gmbh",
	"tel", "telf", "tlf", "fax", "email", "e-mail", "telefone", "teléfono", "téléphone",
	"nif", "nipc", "cif", "siret", "tva", "iban", "swift", "bic",
	"capital social", "código postal", "codigo postal", "cód. postal", "apartado", "cp",
	"portugal", "españa", "espana", "france",
	"página", "pagina", "page", "total", "subtotal", "iva", "base imponible", "transporte",
}

var reBoilerplate = buildWordRegex(boilerplateWords)

func buildWordRegex(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\pL\d])(?:` + strings.Join(quoted, "|") + `)(?:[^\pL\d]|$)`)
}

// isUnit reports whether tok is an accepted unit token.
func isUnit(tok string) bool {
	return reUnitOnly.MatchString(strings.TrimSpace(tok))
}

// normUnit upper-cases and strips a trailing dot.
func normUnit(u string) string {
	return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(u)), ".")
}

func isQtyToken(tok string) bool {
	return reQtyToken.MatchString(strings.TrimSpace(tok))
}

// hasBoilerplate reports whether s carries address or company vocabulary.
func hasBoilerplate(s string) bool {
	if strings.Contains(s, "@") || strings.Contains(strings.ToLower(s), "www.") || strings.Contains(strings.ToLower(s), "http") {
		return true
	}
	return reBoilerplate.MatchString(s)
}

// looksLikeCode is a loose check on a supplier article code: at least one
// digit or a dash-separated token, no lower-case words.
func looksLikeCode(tok string) bool {
	tok = strings.TrimSpace(tok)
	if len(tok) < 3 || len(tok) > 40 {
		return false
	}
	if !reHasDigit.MatchString(tok) && !strings.ContainsAny(tok, "-./") {
		return false
	}
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
	}
	return true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// newLine builds a ProductLine and fills dimensions and density from the
// description. ok is false when the quantity does not parse.
func newLine(code, desc, qty, unit string) (document.ProductLine, bool) {
	q, valid := numfmt.ParseDecimal(qty)
	if !valid {
		return document.ProductLine{}, false
	}
	p := document.ProductLine{
		Code:        cleanText(code),
		Description: cleanText(desc),
		Quantity:    q.InexactFloat64(),
		Unit:        normUnit(unit),
	}
	enrich(&p)
	return p, true
}

func enrich(p *document.ProductLine) {
	src := p.Description + " " + p.Code
	if m := reDims.FindStringSubmatch(src); m != nil {
		d := &document.Dimensions{Width: numfmt.Parse(m[1]), Length: numfmt.Parse(m[2])}
		if m[3] != "" {
			d.Thickness = numfmt.Parse(m[3])
		}
		if d.Width > 0 && d.Length > 0 {
			p.Dimensions = d
		}
	}
	if m := reDensity.FindStringSubmatch(src); m != nil {
		p.Density = "D" + m[1]
	}
}

func setPrices(p *document.ProductLine, price, total string) {
	if price != "" {
		if v, ok := numfmt.ParseDecimal(price); ok {
			f := v.InexactFloat64()
			p.UnitPrice = &f
		}
	}
	if total != "" {
		if v, ok := numfmt.ParseDecimal(total); ok {
			f := v.InexactFloat64()
			p.LineTotal = &f
		}
	}
}

// lines splits text into trimmed physical lines, dropping empties.
func lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// keep appends p when it passes validation and the parser's own guards.
func keep(out []document.ProductLine, p document.ProductLine) []document.ProductLine {
	if !p.Valid() {
		return out
	}
	if p.Code != "" && hasBoilerplate(p.Code) {
		return out
	}
	if p.Code == "" && hasBoilerplate(p.Description) {
		return out
	}
	return append(out, p)
}
