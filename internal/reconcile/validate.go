package reconcile

import (
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/exceptions"
)

// Validate returns the document-level problems of a parse, most severe first.
// Any of them classifies the document as unreadable.
func Validate(parsed *document.ParsedDocument, minTextLen int) []string {
	var issues []string
	textLen := len([]rune(strings.TrimSpace(parsed.RawText)))
	switch {
	case textLen == 0:
		msg := exceptions.IssueNoText
		if parsed.Diagnostics.ExtractionError != "" {
			msg += ": " + parsed.Diagnostics.ExtractionError
		}
		issues = append(issues, msg)
	case textLen < minTextLen:
		issues = append(issues, exceptions.IssueIllegible)
	}
	if len(parsed.Products) == 0 {
		issues = append(issues, exceptions.IssueNoProducts)
	}
	if parsed.Diagnostics.LowQuality {
		issues = append(issues, exceptions.IssueLowQuality)
	}
	if n := len(parsed.Products); n > 0 && document.CountInvalid(parsed.Products)*2 > n {
		issues = append(issues, exceptions.IssueMalformed)
	}
	return issues
}
