package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// InboundDocument is one uploaded file and its processing state.
type InboundDocument struct {
	ID            uuid.UUID         `json:"id"`
	SupplierID    uuid.UUID         `json:"supplier_id"`
	DocType       constants.DocType `json:"doc_type"`
	Number        string            `json:"number"`
	FilePath      string            `json:"file_path"`
	ContentHash   []byte            `json:"content_hash,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
	ParsedPayload json.RawMessage   `json:"parsed_payload,omitempty"`
	POID          *uuid.UUID        `json:"po_id,omitempty"`
}

// ReceiptLine is one extracted product line of a document. The set is rebuilt on every pass.
type ReceiptLine struct {
	ID               uuid.UUID       `json:"id"`
	DocumentID       uuid.UUID       `json:"document_id"`
	Position         int             `json:"position"`
	SupplierCode     string          `json:"supplier_code"`
	ArticleCode      string          `json:"article_code"`
	MaybeInternalSKU string          `json:"maybe_internal_sku"`
	Description      string          `json:"description"`
	Unit             string          `json:"unit"`
	QtyReceived      decimal.Decimal `json:"qty_received"`
	OrderRef         string          `json:"order_ref,omitempty"`
}

// Contribution kinds. A receipt adds to a line's received quantity, an order
// confirmation to its ordered quantity.
const (
	ContributionReceived = "received"
	ContributionOrdered  = "ordered"
)

// Contribution is the quantity one document added to one PO line.
type Contribution struct {
	DocumentID uuid.UUID       `json:"document_id"`
	POLineID   uuid.UUID       `json:"po_line_id"`
	Kind       string          `json:"kind"`
	Qty        decimal.Decimal `json:"qty"`
}
