package parsers

import (
	"regexp"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
)

const (
	qtyGroup   = `(?P<qty>\d+(?:[.,]\d+)?)`
	unitGroup  = `(?P<unit>(?i:` + unitPattern + `))\.?`
	priceGroup = `(?:\s+(?P<price>\d[\d.,]*)\s*€?)?`
	totalGroup = `(?:\s+(?P<total>\d[\d.,]*)\s*€?)?`
	codeGroup  = `(?P<code>[A-Z0-9][A-Z0-9\-./]{2,})`
)

// PT order confirmation (nota de encomenda): Ref | Designação | Qtd | Un | Preço | Total.
// Some layouts swap Un and Qtd.
var orderConfirmationPT = lineGrammar{
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `\s+` + unitGroup + priceGroup + totalGroup + `\s*$`),
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + unitGroup + `\s+` + qtyGroup + priceGroup + totalGroup + `\s*$`),
	},
	codeOK: looksLikeCode,
	order:  orderAsRef,
}

func ParseOrderConfirmationPT(text string) []document.ProductLine {
	return orderConfirmationPT.parse(text)
}

// PT delivery note (guia de remessa): Artigo | Descrição | Un | Qtd. Article
// codes may contain single spaces ("Bl D23 E150") when columns are separated
// by two or more spaces.
var deliveryNotePT = lineGrammar{
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`^(?P<code>\S+(?: \S+){0,3}?)\s{2,}(?P<desc>\S.*?)\s{2,}` + unitGroup + `\s+` + qtyGroup + `\s*$`),
		regexp.MustCompile(`^(?P<code>\S+(?: \S+){0,3}?)\s{2,}` + unitGroup + `\s+` + qtyGroup + `\s*$`),
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + unitGroup + `\s+` + qtyGroup + `\s*$`),
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `\s+` + unitGroup + `\s*$`),
	},
	codeOK: func(code string) bool { return reHasDigit.MatchString(code) && !reAllDigit.MatchString(code) || looksLikeCode(code) },
	order:  orderAsRef,
}

func ParseDeliveryNotePT(text string) []document.ProductLine {
	return deliveryNotePT.parse(text)
}

// FR bon de livraison: Réf. | Désignation | Qté | Unité, unit and prices optional.
var bonLivraisonFR = lineGrammar{
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `(?:\s+` + unitGroup + `)?` + priceGroup + totalGroup + `\s*$`),
	},
	codeOK: looksLikeCode,
	order:  orderAsRef,
}

func ParseBonLivraisonFR(text string) []document.ProductLine {
	return bonLivraisonFR.parse(text)
}

// Vendor invoice covering several orders: each "Encomenda N.º ..." line opens
// a block whose product lines carry that order number. Article codes are
// often purely numeric.
var multiOrderInvoice = lineGrammar{
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`^` + codeGroup + `\s+(?P<desc>.+?)\s+` + qtyGroup + `\s+` + unitGroup + priceGroup + `(?:\s+\d+(?:[.,]\d+)?\s*%)?` + totalGroup + `\s*$`),
	},
	codeOK: func(code string) bool { return reHasDigit.MatchString(code) },
	order:  orderAsNumber,
}

func ParseMultiOrderInvoice(text string) []document.ProductLine {
	return multiOrderInvoice.parse(text)
}
