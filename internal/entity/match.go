package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// MatchSummary holds the counters of a reconciliation pass.
type MatchSummary struct {
	OKLines          int    `json:"ok_lines"`
	IssueLines       int    `json:"issue_lines"`
	TotalLines       int    `json:"total_lines"`
	LinesRead        int    `json:"lines_read"`
	FirstFailingLine *int   `json:"first_failing_line,omitempty"`
	POLinesCreated   int    `json:"po_lines_created,omitempty"`
	POLinesUpdated   int    `json:"po_lines_updated,omitempty"`
	Strategy         string `json:"strategy,omitempty"`
}

// MatchResult is the outcome of the last reconciliation pass of a document.
type MatchResult struct {
	DocumentID  uuid.UUID             `json:"document_id"`
	Status      constants.MatchStatus `json:"status"`
	Summary     MatchSummary          `json:"summary"`
	CertifiedID string                `json:"certified_id"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ExceptionTask is one flagged problem awaiting human triage.
type ExceptionTask struct {
	ID                   uuid.UUID        `json:"id"`
	DocumentID           uuid.UUID        `json:"document_id"`
	LineRef              string           `json:"line_ref"`
	Issue                string           `json:"issue"`
	SuggestedInternalSKU string           `json:"suggested_internal_sku,omitempty"`
	SuggestedQty         *decimal.Decimal `json:"suggested_qty,omitempty"`
	Resolved             bool             `json:"resolved"`
	CreatedAt            time.Time        `json:"created_at"`
}

// IsOCR reports whether the exception is document-level extraction trouble.
func (e *ExceptionTask) IsOCR() bool {
	return e.LineRef == constants.OCRRef
}

// Dashboard aggregates counters shown by the CLIs.
type Dashboard struct {
	Documents  int `json:"documents"`
	Matched    int `json:"matched"`
	Exceptions int `json:"exceptions"`
	Errors     int `json:"errors"`
	Suppliers  int `json:"suppliers"`
}
