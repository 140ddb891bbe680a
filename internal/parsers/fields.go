package parsers

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

var (
	reDocNo    = regexp.MustCompile(`(?i)\b(?:GR|GT|NE|N|FT|FAT|FA|IN|INV|DN|BL|ALB)\s*[\- ]?\d{1,4}/\d{1,7}\b|\b[A-Z]{1,4}\d?/\d{6,}\b`)
	reDocNoAlt = regexp.MustCompile(`(?i)\b(?:albar[aá]n|guia(?: de remessa)?|bon de livraison|fatura|factura|facture|nota de encomenda)\b\s*(?:n(?:\.\s*[º°o]?|[º°o])\.?|nr\.?|no\.?)?\s*[:\-]?\s*([A-Z]{0,4}[\s\-]?\d[\w/\-]*)`)
	reDate     = regexp.MustCompile(`\b(\d{2})[/\-.](\d{2})[/\-.](\d{4})\b`)
	reISODate  = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	reNIF      = regexp.MustCompile(`(?i)\b(?:PT\s*)?(\d{9})\b`)
	reCurrency = regexp.MustCompile(`(?i)\b(EUR|USD|GBP)\b|(€|£|\$)`)
	reIBAN     = regexp.MustCompile(`\b([A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){4,7}(?:\s?[A-Z0-9]{1,4})?)\b`)
)

// ExtractFields reads the document-level header. Fuzzy "key: value" matches
// fill what the fixed patterns miss.
func ExtractFields(text string, g *Generic) document.Header {
	var h document.Header
	if m := reDocNo.FindString(text); m != "" {
		h.DocumentNumber = NormalizeOrderToken(m)
	} else if m := reDocNoAlt.FindStringSubmatch(text); m != nil {
		h.DocumentNumber = NormalizeOrderToken(m[1])
	}
	h.Date = isoDate(text)

	nifs := reNIF.FindAllStringSubmatch(text, -1)
	if len(nifs) > 0 {
		h.SupplierTaxID = nifs[0][1]
	}
	if len(nifs) > 1 {
		h.CustomerTaxID = nifs[1][1]
	}
	h.Currency = currency(text)
	if m := reIBAN.FindStringSubmatch(text); m != nil {
		h.IBAN = strings.ReplaceAll(m[1], " ", "")
	}
	for _, ln := range lines(text) {
		if tok := orderContext(ln); tok != "" {
			h.OrderNumber = tok
			break
		}
	}

	if g != nil {
		kv := g.Fields(text)
		if h.SupplierName == "" {
			h.SupplierName = kv[FieldSupplier]
		}
		if h.DocumentNumber == "" && kv[FieldDocNumber] != "" {
			h.DocumentNumber = NormalizeOrderToken(kv[FieldDocNumber])
		}
		if h.OrderNumber == "" && kv[FieldOrderNumber] != "" {
			h.OrderNumber = NormalizeOrderToken(kv[FieldOrderNumber])
		}
		if h.Date == "" {
			h.Date = isoDate(kv[FieldDate])
		}
		if h.SupplierTaxID == "" {
			if m := reNIF.FindStringSubmatch(kv[FieldTaxID]); m != nil {
				h.SupplierTaxID = m[1]
			}
		}
		if h.IBAN == "" {
			h.IBAN = strings.ReplaceAll(kv[FieldIBAN], " ", "")
		}
	}
	if h.SupplierName == "" {
		h.SupplierName = firstNameLine(text)
	}
	return h
}

func isoDate(text string) string {
	if m := reDate.FindStringSubmatch(text); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	if m := reISODate.FindStringSubmatch(text); m != nil {
		return m[0]
	}
	return ""
}

func currency(text string) string {
	m := reCurrency.FindStringSubmatch(text)
	if m == nil {
		return "EUR"
	}
	if m[1] != "" {
		return strings.ToUpper(m[1])
	}
	switch m[2] {
	case "£":
		return "GBP"
	case "$":
		return "USD"
	}
	return "EUR"
}

// firstNameLine is the first line that reads like a name: mostly letters, no
// document words.
func firstNameLine(text string) string {
	for i, ln := range lines(text) {
		if i >= 5 {
			break
		}
		if reHasDigit.MatchString(ln) || strings.Contains(ln, ":") {
			continue
		}
		if reDocNoAlt.MatchString(ln) || len([]rune(ln)) < 3 || len([]rune(ln)) > 80 {
			continue
		}
		return cleanText(ln)
	}
	return ""
}

// Confidence scores a parse: 0.35 base, +0.15 for a known category, +0.15
// for a date, +0.25 when lines were found.
func Confidence(category string, h document.Header, lines int) float64 {
	c := 0.35
	if category != "" && category != document.CategoryUnknown {
		c += 0.15
	}
	if h.Date != "" {
		c += 0.15
	}
	if lines > 0 {
		c += 0.25
	}
	if c > 1 {
		c = 1
	}
	return c
}
