package constants

// MatchStatus is the document-level outcome of a reconciliation pass.
type MatchStatus string

// Stable values (stored as-is in match_results.status).
const (
	StatusPending    MatchStatus = "pending"
	StatusMatched    MatchStatus = "matched"
	StatusExceptions MatchStatus = "exceptions"
	StatusError      MatchStatus = "error"
)

// OCRRef is the line_ref of document-level extraction exceptions.
const OCRRef = "OCR"

// Issue texts recorded by the reconciliation engine.
const (
	IssuePONotFound       = "PO not found"
	IssueNotInPO          = "product not in PO"
	IssueQuantityExceeded = "quantity exceeded"
)
