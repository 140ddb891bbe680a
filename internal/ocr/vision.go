package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/llm"
)

// DefaultVisionPages caps how many pages are sent to the model.
const DefaultVisionPages = 3

// Vision transcribes rendered pages with a vision-capable LLM.
type Vision struct {
	transcriber *Lazy[llm.Transcriber]
	languages   []string
	maxPages    int
	logger      *slog.Logger
}

func NewVision(transcriber *Lazy[llm.Transcriber], languages []string, maxPages int, logger *slog.Logger) *Vision {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = DefaultVisionPages
	}
	return &Vision{transcriber: transcriber, languages: languages, maxPages: maxPages, logger: logger}
}

func (*Vision) Name() string { return "vision" }

func (v *Vision) Extract(ctx context.Context, src *Source) Result {
	t, err := v.transcriber.Get()
	if err != nil {
		return Failure(fmt.Errorf("vision model unavailable: %w", err))
	}
	pages, err := src.Pages(ctx)
	if err != nil {
		return Failure(fmt.Errorf("render pages: %w", err))
	}
	if len(pages) > v.maxPages {
		pages = pages[:v.maxPages]
	}

	var parts []string
	for i, page := range pages {
		tr, _, err := t.Transcribe(ctx, llm.TranscribeRequest{
			ImagePath: page,
			Languages: v.languages,
			Page:      i + 1,
			Pages:     len(pages),
		})
		if err != nil {
			if len(parts) == 0 {
				return Failure(err)
			}
			v.logger.Warn("ocr.vision.page_failed", "page", i+1, "error", err)
			break
		}
		parts = append(parts, transcriptionText(tr))
	}
	text := strings.Join(parts, "\n\n")
	return Success(text, heuristicConfidence(text))
}

// transcriptionText prefers the verbatim page text and falls back to the
// structured rows, rendered one per line so the line parsers can read them.
func transcriptionText(tr llm.Transcription) string {
	if meaningfulLen(tr.Text) > 0 {
		return tr.Text
	}
	var b strings.Builder
	for _, l := range tr.Lines {
		fields := []string{l.Code, l.Description, l.Quantity, l.Unit}
		var kept []string
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				kept = append(kept, f)
			}
		}
		b.WriteString(strings.Join(kept, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
