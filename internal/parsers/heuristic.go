package parsers

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

// "DESC QTY UNIT PRICE TOTAL", e.g. "COLCHAO VISCO 150X190 2 UN 199.00€ 398.00€".
var reSimplePriced = regexp.MustCompile(`^(?P<desc>\S.*?)\s+` + qtyGroup + `\s+(?P<unit>(?i:` + unitPattern + `))\.?\s+(?P<price>\d[\d.,]*)\s*€?\s+(?P<total>\d[\d.,]*)\s*€?$`)

// ParseSimplePriced reads lines shaped description, quantity, unit, unit price
// and line total. The code is left empty; dimensions found in the description
// make up the line reference.
func ParseSimplePriced(text string) []document.ProductLine {
	var out []document.ProductLine
	for _, ln := range lines(text) {
		m := reSimplePriced.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		p, ok := newLine("", m[reSimplePriced.SubexpIndex("desc")], m[reSimplePriced.SubexpIndex("qty")], m[reSimplePriced.SubexpIndex("unit")])
		if !ok {
			continue
		}
		setPrices(&p, m[reSimplePriced.SubexpIndex("price")], m[reSimplePriced.SubexpIndex("total")])
		out = keep(out, p)
	}
	return out
}

var (
	reBlockCode = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-./]{4,}$`)
	reUnitWord  = regexp.MustCompile(`^[A-Za-zÇç]{1,4}\.?$`)
)

// ParseASCIIBlock reads monospace tables: a leading article code, the last
// number on the line as quantity, an optional trailing 1-4 letter unit, and
// the text between as description.
func ParseASCIIBlock(text string) []document.ProductLine {
	var out []document.ProductLine
	for _, ln := range lines(text) {
		fields := strings.Fields(strings.ReplaceAll(ln, "|", " "))
		if len(fields) < 3 {
			continue
		}
		code := fields[0]
		if !reBlockCode.MatchString(code) || !reHasDigit.MatchString(code) {
			continue
		}
		rest := fields[1:]

		unit := ""
		if last := rest[len(rest)-1]; reUnitWord.MatchString(last) && isUnit(last) {
			unit = last
			rest = rest[:len(rest)-1]
		}
		qi := -1
		for i := len(rest) - 1; i >= 0; i-- {
			if isQtyToken(rest[i]) {
				qi = i
				break
			}
		}
		if qi <= 0 {
			continue
		}
		desc := strings.Join(rest[:qi], " ")
		if unit == "" && qi+1 < len(rest) && isUnit(rest[qi+1]) {
			unit = rest[qi+1]
		}
		p, ok := newLine(code, desc, rest[qi], unit)
		if !ok {
			continue
		}
		out = keep(out, p)
	}
	return out
}
