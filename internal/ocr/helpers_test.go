package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	return f.fn(name, args)
}

type fakeStrategy struct {
	name  string
	calls int
	fn    func(ctx context.Context) Result
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(ctx context.Context, _ *Source) Result {
	f.calls++
	return f.fn(ctx)
}

func textStrategy(name, text string) *fakeStrategy {
	return &fakeStrategy{name: name, fn: func(context.Context) Result { return Success(text, 0.9) }}
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("stub"), 0o600))
	return p
}

const longText = "GUIA DE REMESSA N. GR 2025/118\nData 12/03/2025\nBl D23 E150  20 UN\nBl D23 E100  10 UN\n"
