package parsers

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// FuzzyThreshold is the minimum similarity (0-100) for a header key to count as a synonym.
const FuzzyThreshold = 70

// Header keys recognised by the fuzzy key/value pass.
const (
	FieldSupplier    = "supplier"
	FieldTaxID       = "tax_id"
	FieldIBAN        = "iban"
	FieldDocNumber   = "document_number"
	FieldDate        = "date"
	FieldOrderNumber = "order_number"
)

var defaultSynonyms = map[string][]string{
	FieldSupplier:    {"fornecedor", "proveedor", "fournisseur", "supplier", "vendor", "emitente", "expedidor"},
	FieldTaxID:       {"nif", "nipc", "cif", "contribuinte", "siret", "tva", "vat", "tax id", "nº contribuinte"},
	FieldIBAN:        {"iban", "nib", "conta bancaria", "cuenta bancaria", "rib", "bank account"},
	FieldDocNumber:   {"documento", "numero documento", "nº documento", "document number", "guia", "albaran", "bon de livraison", "factura", "fatura"},
	FieldDate:        {"data", "fecha", "date", "data documento", "data de emissao", "fecha de emision"},
	FieldOrderNumber: {"encomenda", "v encomenda", "pedido", "su pedido", "commande", "order", "purchase order", "nota de encomenda"},
}

// Column roles for native table rows.
var columnKeywords = map[string][]string{
	"code":  {"ref", "ref.", "referência", "referencia", "référence", "código", "codigo", "cod", "cód", "artigo", "article", "sku"},
	"desc":  {"descrição", "descricao", "designação", "designacao", "descripción", "descripcion", "désignation", "designation", "description", "produto", "producto", "produit", "concepto"},
	"qty":   {"qtd", "qtd.", "quant", "quantidade", "cantidad", "cant", "cant.", "qté", "qte", "quantité", "quantite", "qty", "quantity", "uds"},
	"unit":  {"un", "un.", "unid", "unid.", "unidade", "ud", "ud.", "unidad", "unité", "unite", "unit", "uom"},
	"price": {"preço", "preco", "precio", "prix", "price", "p.unit", "pvp"},
}

// Line templates used as the last resort.
var (
	reTplCodeDescQtyPrice = regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `\s+(?P<price>\d[\d.,]*)\s*€?$`)
	reTplPipe             = regexp.MustCompile(`^\|?\s*(?P<code>[^|]+?)\s*\|\s*(?P<desc>[^|]+?)\s*\|\s*` + qtyGroup + `\s*(?:\|\s*(?P<unit>[^|]*?)\s*)?\|?$`)
	reTplQtyDescCode      = regexp.MustCompile(`^` + qtyGroup + `\s+(?:` + unitGroup + `\s+)?(?P<desc>.+?)\s+` + codeGroup + `$`)
)

// Generic is the fallback parser: fuzzy header keys, native table rows and
// three line templates.
type Generic struct {
	synonyms  map[string][]string
	threshold int
	templates lineGrammar
}

func NewGeneric() *Generic {
	return &Generic{
		synonyms:  defaultSynonyms,
		threshold: FuzzyThreshold,
		templates: lineGrammar{
			patterns: []*regexp.Regexp{reTplCodeDescQtyPrice, reTplPipe, reTplQtyDescCode},
			codeOK:   func(code string) bool { return !hasBoilerplate(code) },
		},
	}
}

// Fields runs the fuzzy key/value pass over "key: value" lines. The first
// value found for each field wins.
func (g *Generic) Fields(text string) map[string]string {
	out := map[string]string{}
	for _, ln := range lines(text) {
		key, value, ok := strings.Cut(ln, ":")
		if !ok {
			continue
		}
		key = normalizeKey(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || len(key) > 40 {
			continue
		}
		field, score := g.bestField(key)
		if score < g.threshold {
			continue
		}
		if _, seen := out[field]; !seen {
			out[field] = value
		}
	}
	return out
}

func (g *Generic) bestField(key string) (string, int) {
	best, bestScore := "", 0
	for field, syns := range g.synonyms {
		for _, s := range syns {
			if sc := fuzzyScore(key, s); sc > bestScore || (sc == bestScore && field < best) {
				best, bestScore = field, sc
			}
		}
	}
	return best, bestScore
}

var reKeyNoise = regexp.MustCompile(`[^\pL\d ]+`)

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = reKeyNoise.ReplaceAllString(k, " ")
	return cleanText(k)
}

// fuzzyScore is a 0-100 similarity combining containment, edit distance and
// subsequence rank.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}
	if strings.Contains(s1, s2) && len(s2) >= 3 {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) && len(s1) >= 3 {
		return 75 + (25 * len(s1) / len(s2))
	}

	r1, r2 := []rune(s1), []rune(s2)
	maxLen := len(r1)
	if len(r2) > maxLen {
		maxLen = len(r2)
	}
	distance := fuzzy.LevenshteinDistance(s1, s2)
	levScore := 100 * (maxLen - distance) / maxLen

	rankScore := 0
	if rank := fuzzy.RankMatchFold(s2, s1); rank >= 0 && rank < len(s1) {
		rankScore = 60 - (rank * 40 / len(s1))
	}
	if levScore > rankScore {
		return levScore
	}
	return rankScore
}

// Products tries native table rows first, then the line templates.
func (g *Generic) Products(text string, rows [][]string) ([]document.ProductLine, string) {
	if out := tableProducts(rows); len(out) > 0 {
		return out, "generic_table"
	}
	if out := g.templates.parse(text); len(out) > 0 {
		return out, "generic_template"
	}
	return nil, ""
}

// tableProducts finds a header row whose cells name a quantity column and a
// code or description column, and reads the rows below it until a totals row.
func tableProducts(rows [][]string) []document.ProductLine {
	var out []document.ProductLine
	var roles map[string]int
	for _, row := range rows {
		if r := detectRoles(row); r != nil {
			roles = r
			continue
		}
		if roles == nil {
			continue
		}
		if isTotalsRow(row) {
			roles = nil
			continue
		}
		cell := func(role string) string {
			if i, ok := roles[role]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		qty := cell("qty")
		if !isQtyToken(qty) {
			continue
		}
		p, ok := newLine(cell("code"), cell("desc"), qty, cell("unit"))
		if !ok {
			continue
		}
		setPrices(&p, cell("price"), "")
		out = keep(out, p)
	}
	return out
}

func detectRoles(row []string) map[string]int {
	roles := map[string]int{}
	for i, c := range row {
		c = strings.ToLower(strings.TrimSpace(c))
		for role, kws := range columnKeywords {
			if _, taken := roles[role]; taken {
				continue
			}
			for _, kw := range kws {
				if c == kw {
					roles[role] = i
					break
				}
			}
		}
	}
	_, hasQty := roles["qty"]
	_, hasCode := roles["code"]
	_, hasDesc := roles["desc"]
	if !hasQty || (!hasCode && !hasDesc) {
		return nil
	}
	return roles
}

func isTotalsRow(row []string) bool {
	for _, c := range row {
		l := strings.ToLower(c)
		if strings.HasPrefix(l, "total") || strings.HasPrefix(l, "subtotal") {
			return true
		}
	}
	return false
}
