// Package document defines the normalized records produced by the parsers and
// stored as a document's parsed payload.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Category names produced by the classifier. Each names the dialect whose
// parser is tried first.
const (
	CategoryUnknown      = "unknown"
	CategoryMultiOrder   = "multi_order_invoice" // vendor invoice covering several orders
	CategoryOrderConfirm = "pt_order_confirmation"
	CategoryDeliveryPT   = "pt_delivery_note"
	CategoryDeliveryES   = "es_albaran"
	CategoryDeliveryFR   = "fr_bon_livraison"
)

// Dimensions are the optional physical measures found in a product token (mm).
type Dimensions struct {
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Thickness float64 `json:"thickness,omitempty"`
}

func (d Dimensions) String() string {
	parts := []string{trimFloat(d.Width), trimFloat(d.Length)}
	if d.Thickness > 0 {
		parts = append(parts, trimFloat(d.Thickness))
	}
	return strings.Join(parts, "x")
}

// ProductLine is one normalized line item.
type ProductLine struct {
	Code        string      `json:"code" validate:"required_without=Description,max=120"`
	Description string      `json:"description" validate:"required_without=Code,max=255"`
	Quantity    float64     `json:"quantity" validate:"gt=0"`
	Unit        string      `json:"unit" validate:"max=20"`
	UnitPrice   *float64    `json:"unit_price,omitempty"`
	LineTotal   *float64    `json:"line_total,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
	Density     string      `json:"density,omitempty"`
	OrderRef    string      `json:"order_ref,omitempty"`
	OrderNumber string      `json:"order_number,omitempty"`
}

// MiniCode is the short reference combining density and dimensions, or the code.
func (p ProductLine) MiniCode() string {
	if p.Dimensions == nil {
		return p.Code
	}
	if p.Density != "" {
		return p.Density + "-" + p.Dimensions.String()
	}
	return p.Dimensions.String()
}

// Reference is the supplier-side key used for code mapping: the article code,
// else the mini code, else the upper-cased description.
func (p ProductLine) Reference() string {
	if c := strings.TrimSpace(p.Code); c != "" {
		return c
	}
	if p.Dimensions != nil {
		return p.MiniCode()
	}
	return strings.ToUpper(strings.Join(strings.Fields(p.Description), " "))
}

// OrderToken is the per-line purchase order token, if any.
func (p ProductLine) OrderToken() string {
	if p.OrderNumber != "" {
		return p.OrderNumber
	}
	return p.OrderRef
}

// Header holds document-level fields. Keys are always present in the payload.
type Header struct {
	DocumentNumber string `json:"document_number"`
	OrderNumber    string `json:"order_number"`
	SupplierName   string `json:"supplier_name"`
	Date           string `json:"date"`
	SupplierTaxID  string `json:"supplier_tax_id"`
	CustomerTaxID  string `json:"customer_tax_id"`
	Currency       string `json:"currency"`
	IBAN           string `json:"iban,omitempty"`
}

// Totals summarize the product list.
type Totals struct {
	Lines         int     `json:"lines"`
	Quantity      float64 `json:"quantity"`
	DeclaredLines int     `json:"declared_lines,omitempty"`
}

// Attempt records one cascade strategy outcome.
type Attempt struct {
	Strategy string `json:"strategy"`
	OK       bool   `json:"ok"`
	Chars    int    `json:"chars"`
	Reason   string `json:"reason,omitempty"`
	Millis   int64  `json:"elapsed_ms"`
}

// Diagnostics carries flags consumed by validation and triage.
type Diagnostics struct {
	Strategy        string    `json:"strategy"`
	Attempts        []Attempt `json:"attempts"`
	TextLength      int       `json:"text_length"`
	LowQuality      bool      `json:"low_quality"`
	ExtractionError string    `json:"extraction_error,omitempty"`
	Parser          string    `json:"parser"`
	Confidence      float64   `json:"confidence"`
	InvalidLines    int       `json:"invalid_lines"`
	Warnings        []string  `json:"warnings"`
}

// ParsedDocument is the full normalized extraction result of one file.
type ParsedDocument struct {
	Category    string        `json:"category"`
	Header      Header        `json:"header"`
	Products    []ProductLine `json:"products"`
	Totals      Totals        `json:"totals"`
	Barcodes    []string      `json:"barcodes"`
	Diagnostics Diagnostics   `json:"diagnostics"`
	RawText     string        `json:"raw_text"`
}

// Finalize fills derived totals and replaces nil slices so every key serializes.
func (d *ParsedDocument) Finalize() {
	if d.Category == "" {
		d.Category = CategoryUnknown
	}
	if d.Products == nil {
		d.Products = []ProductLine{}
	}
	if d.Barcodes == nil {
		d.Barcodes = []string{}
	}
	if d.Diagnostics.Attempts == nil {
		d.Diagnostics.Attempts = []Attempt{}
	}
	if d.Diagnostics.Warnings == nil {
		d.Diagnostics.Warnings = []string{}
	}
	if d.Header.Currency == "" {
		d.Header.Currency = "EUR"
	}
	d.Totals.Lines = len(d.Products)
	d.Totals.Quantity = 0
	for _, p := range d.Products {
		d.Totals.Quantity += p.Quantity
	}
	d.Diagnostics.TextLength = len([]rune(d.RawText))
}

// Marshal finalizes and encodes the payload.
func (d *ParsedDocument) Marshal() ([]byte, error) {
	d.Finalize()
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a stored payload. An empty payload yields an empty document.
func Unmarshal(raw []byte) (*ParsedDocument, error) {
	d := &ParsedDocument{}
	if len(raw) == 0 {
		d.Finalize()
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return d, nil
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
