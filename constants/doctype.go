package constants

import "strings"

// DocType is the stored document type code.
type DocType string

const (
	// DocTypeDelivery is a delivery note (guia de remessa, albarán, bon de livraison).
	DocTypeDelivery DocType = "GR"
	// DocTypeOrder is an order confirmation (nota de encomenda).
	DocTypeOrder DocType = "FT"
)

// IsOrder reports whether documents of this type materialize purchase orders.
func (d DocType) IsOrder() bool { return d == DocTypeOrder }

// ParseDocType maps loose prefixes and labels to a DocType.
func ParseDocType(s string) (DocType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GR", "GUIA", "DN", "DELIVERY", "ALB":
		return DocTypeDelivery, true
	case "FT", "NE", "ORDER", "ENC", "PO":
		return DocTypeOrder, true
	default:
		return "", false
	}
}
