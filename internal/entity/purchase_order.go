package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is a commitment to receive quantities of internal SKUs from one supplier.
type PurchaseOrder struct {
	ID         uuid.UUID `json:"id"`
	Number     string    `json:"number"`
	SupplierID uuid.UUID `json:"supplier_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// POLine is one ordered SKU within a purchase order. Received is a running accumulator.
type POLine struct {
	ID          uuid.UUID       `json:"id"`
	POID        uuid.UUID       `json:"po_id"`
	InternalSKU string          `json:"internal_sku"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Ordered     decimal.Decimal `json:"qty_ordered"`
	Received    decimal.Decimal `json:"qty_received"`
	Tolerance   decimal.Decimal `json:"tolerance"`
}

// Remaining is ordered minus received.
func (l *POLine) Remaining() decimal.Decimal {
	return l.Ordered.Sub(l.Received)
}

// Complete reports whether nothing remains to be received.
func (l *POLine) Complete() bool {
	return !l.Remaining().IsPositive()
}

// CodeMapping associates a supplier-side code with an internal SKU.
type CodeMapping struct {
	ID           uuid.UUID       `json:"id"`
	SupplierID   uuid.UUID       `json:"supplier_id"`
	SupplierCode string          `json:"supplier_code"`
	InternalSKU  string          `json:"internal_sku"`
	QtyOrdered   decimal.Decimal `json:"qty_ordered"`
	Confidence   float64         `json:"confidence"`
}
