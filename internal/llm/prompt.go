package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt instructs the model to transcribe rather than interpret.
func BuildSystemPrompt(req TranscribeRequest) string {
	langs := "Portuguese, Spanish or French"
	if len(req.Languages) > 0 {
		langs = strings.Join(req.Languages, ", ")
	}
	parts := []string{
		"You transcribe scanned purchase documents (delivery notes, order confirmations, invoices) written in " + langs + ".",
		"Return ONLY JSON that matches the JSON Schema provided.",
		"'text' is the full visible text of the page, line by line, preserving reading order and line breaks.",
		"'lines' lists product rows only: supplier article code, description, quantity exactly as printed (keep the original separators), unit, and any per-line order reference.",
		"Do not convert numbers, translate, or invent values. Skip addresses, totals, bank details and footers in 'lines'.",
		"'document_type' is delivery, order, invoice or unknown.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func BuildUserPrompt(req TranscribeRequest) string {
	if req.Pages > 1 {
		return fmt.Sprintf("Page %d of %d. Transcribe this page.", req.Page, req.Pages)
	}
	return "Transcribe this document page."
}
