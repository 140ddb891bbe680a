package llm

import "context"

// TranscribedLine is a product row read by the model, quantities kept as printed.
type TranscribedLine struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit,omitempty"`
	OrderRef    string `json:"order_ref,omitempty"`
}

// Transcription is the structured shape we want back from a vision model.
type Transcription struct {
	Text         string            `json:"text"`
	DocumentType string            `json:"document_type,omitempty"` // delivery | order | invoice | unknown
	Lines        []TranscribedLine `json:"lines,omitempty"`
}

type TranscribeRequest struct {
	ImagePath string
	Languages []string
	Page      int
	Pages     int
}

// Transcriber reads a rendered page image.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, []byte /*rawJSON*/, error)
}
