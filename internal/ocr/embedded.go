package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Embedded reads the text layer of born-digital PDFs: pdftotext -layout when
// the binary is configured, the pure-Go reader otherwise or when it comes up short.
type Embedded struct {
	Runner     Runner
	Pdftotext  string
	MinTextLen int
}

func (Embedded) Name() string { return "embedded" }

func (e Embedded) Extract(ctx context.Context, src *Source) Result {
	if !src.IsPDF() {
		return Failuref("not a pdf")
	}
	threshold := e.MinTextLen
	if threshold <= 0 {
		threshold = DefaultMinTextLen
	}

	var text string
	var firstErr error
	if e.Runner != nil && e.Pdftotext != "" {
		// pdftotext -layout -enc UTF-8 -eol unix <path> -
		out, errb, err := e.Runner.Run(ctx, e.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", src.Path, "-")
		if err != nil {
			firstErr = fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 256))
		} else {
			text = string(out)
		}
	}
	if meaningfulLen(text) >= threshold {
		return Success(text, heuristicConfidence(text))
	}
	if ctx.Err() != nil {
		return Failure(ctx.Err())
	}

	plain, err := readPlainText(src.Path)
	if err != nil {
		if firstErr != nil {
			return Failure(fmt.Errorf("%w; pdf reader: %v", firstErr, err))
		}
		return Failure(err)
	}
	if meaningfulLen(plain) > meaningfulLen(text) {
		text = plain
	}
	return Success(text, heuristicConfidence(text))
}

// readPlainText extracts the text layer with ledongthuc/pdf. The reader panics
// on some malformed streams, so those are turned into errors.
func readPlainText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panicked: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("plain text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, rd); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return b.String(), nil
}
