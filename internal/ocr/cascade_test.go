package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascade_ShortCircuitsOnFirstSufficientText(t *testing.T) {
	first := textStrategy("embedded", longText)
	rest := []*fakeStrategy{textStrategy("remote", longText), textStrategy("local", longText), textStrategy("vision", longText)}

	c := NewCascade(CascadeConfig{}, []Strategy{first, rest[0], rest[1], rest[2]}, nil, nil, nil)
	out, err := c.Extract(t.Context(), tempFile(t, "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.calls)
	for _, s := range rest {
		assert.Zero(t, s.calls, s.name)
	}
	assert.Equal(t, "embedded", out.Strategy)
	assert.False(t, out.LowQuality)
	require.Len(t, out.Attempts, 1)
	assert.True(t, out.Attempts[0].OK)
}

func TestCascade_FallsThroughFailuresAndShortText(t *testing.T) {
	embedded := textStrategy("embedded", "too short")
	remote := &fakeStrategy{name: "remote", fn: func(context.Context) Result { return Failuref("quota exceeded") }}
	local := textStrategy("local", longText)
	vision := textStrategy("vision", longText)

	c := NewCascade(CascadeConfig{MinTextLen: 50}, []Strategy{embedded, remote, local, vision}, nil, nil, nil)
	out, err := c.Extract(t.Context(), tempFile(t, "doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "local", out.Strategy)
	assert.Zero(t, vision.calls)
	require.Len(t, out.Attempts, 3)
	assert.Contains(t, out.Attempts[0].Reason, "below threshold")
	assert.Equal(t, "quota exceeded", out.Attempts[1].Reason)
	assert.True(t, out.Attempts[2].OK)
}

func TestCascade_KeepsLongestPartialAsLowQuality(t *testing.T) {
	a := textStrategy("embedded", "abc")
	b := textStrategy("local", "GUIA 2025/118 twenty chars")
	c := NewCascade(CascadeConfig{MinTextLen: 50}, []Strategy{a, b}, nil, nil, nil)

	out, err := c.Extract(t.Context(), tempFile(t, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "GUIA 2025/118 twenty chars", out.Text)
	assert.Equal(t, "local", out.Strategy)
	assert.True(t, out.LowQuality)
	assert.False(t, out.Empty())
}

func TestCascade_AllEmpty(t *testing.T) {
	a := &fakeStrategy{name: "embedded", fn: func(context.Context) Result { return Failure(errors.New("not a pdf")) }}
	b := textStrategy("local", "")
	c := NewCascade(CascadeConfig{}, []Strategy{a, b}, nil, nil, nil)

	out, err := c.Extract(t.Context(), tempFile(t, "scan.png"))
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.Contains(t, out.FailureReason(), "embedded: not a pdf")
}

func TestCascade_StrategyTimeoutFallsThrough(t *testing.T) {
	slow := &fakeStrategy{name: "remote", fn: func(ctx context.Context) Result {
		<-ctx.Done()
		return Success("late text that should never count as a result at all", 1)
	}}
	local := textStrategy("local", longText)
	c := NewCascade(CascadeConfig{StrategyTimeout: 20 * time.Millisecond}, []Strategy{slow, local}, nil, nil, nil)

	out, err := c.Extract(t.Context(), tempFile(t, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "local", out.Strategy)
	assert.Contains(t, out.Attempts[0].Reason, "timed out")
}

func TestCascade_RecoversPanickingStrategy(t *testing.T) {
	bad := &fakeStrategy{name: "embedded", fn: func(context.Context) Result { panic("boom") }}
	c := NewCascade(CascadeConfig{}, []Strategy{bad, textStrategy("local", longText)}, nil, nil, nil)

	out, err := c.Extract(t.Context(), tempFile(t, "doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "local", out.Strategy)
	assert.Contains(t, out.Attempts[0].Reason, "panicked")
}

type fakeScanner struct{ codes map[string][]string }

func (f fakeScanner) Scan(_ context.Context, p string) ([]string, error) { return f.codes[p], nil }

func TestCascade_BarcodesMergedRegardlessOfStrategy(t *testing.T) {
	img := tempFile(t, "scan.png")
	scanner := fakeScanner{codes: map[string][]string{img: {"PO-2025-0001", "PO-2025-0001", "QR:ATCUD"}}}
	c := NewCascade(CascadeConfig{}, []Strategy{textStrategy("local", longText)}, nil, scanner, nil)

	out, err := c.Extract(t.Context(), img)
	require.NoError(t, err)
	assert.Equal(t, []string{"PO-2025-0001", "QR:ATCUD"}, out.Barcodes)
}

func TestCascade_UnsupportedFile(t *testing.T) {
	c := NewCascade(CascadeConfig{}, nil, nil, nil, nil)
	_, err := c.Extract(t.Context(), tempFile(t, "notes.docx"))
	assert.Error(t, err)
}
