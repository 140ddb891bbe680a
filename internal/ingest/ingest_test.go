package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseName(t *testing.T) {
	root := filepath.FromSlash("/inbox")
	tests := []struct {
		path string
		want Meta
	}{
		{"/inbox/F001/GR_1_245.pdf", Meta{SupplierCode: "F001", DocType: constants.DocTypeDelivery, Number: "GR_1_245"}},
		{"/inbox/f002/NE2025-31.png", Meta{SupplierCode: "F002", DocType: constants.DocTypeOrder, Number: "NE2025-31"}},
		{"/inbox/Espumas do Norte/FT-77.pdf", Meta{SupplierName: "Espumas do Norte", DocType: constants.DocTypeOrder, Number: "FT-77"}},
		{"/inbox/scan 12.jpg", Meta{SupplierCode: "AUTO", DocType: constants.DocTypeDelivery, Number: "scan 12"}},
		{"/inbox/2025/F001/ALB-9.tif", Meta{SupplierCode: "F001", DocType: constants.DocTypeDelivery, Number: "ALB-9"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := ParseName(root, filepath.FromSlash(tt.path), "AUTO", constants.DocTypeDelivery)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSIngestor_IngestPath(t *testing.T) {
	root := t.TempDir()
	store := repository.NewMemoryStore()
	ing := NewFSIngestor(store, root, "", "", nil)

	path := filepath.Join(root, "F001", "GR_1_245.pdf")
	write(t, path, "%PDF-1.4 fake")

	first, err := ing.IngestPath(t.Context(), path)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, "F001", first.SupplierCode)
	assert.Len(t, first.HashHex, 64)

	doc, err := store.Repos().Documents.Get(t.Context(), first.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocTypeDelivery, doc.DocType)
	assert.Equal(t, "GR_1_245", doc.Number)
	assert.Equal(t, path, doc.FilePath)
	assert.Len(t, doc.ContentHash, 32)

	again, err := ing.IngestPath(t.Context(), path)
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.DocumentID, again.DocumentID)

	suppliers, err := store.Repos().Suppliers.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, suppliers, 1)
}

func TestFSIngestor_RejectsUnsupported(t *testing.T) {
	root := t.TempDir()
	ing := NewFSIngestor(repository.NewMemoryStore(), root, "", "", nil)
	path := filepath.Join(root, "notes.docx")
	write(t, path, "x")

	_, err := ing.IngestPath(t.Context(), path)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFSIngestor_IngestDirectory(t *testing.T) {
	root := t.TempDir()
	store := repository.NewMemoryStore()
	ing := NewFSIngestor(store, root, "AUTO", constants.DocTypeDelivery, nil)

	write(t, filepath.Join(root, "F001", "GR_1.pdf"), "a")
	write(t, filepath.Join(root, "F001", "NE_2.png"), "b")
	write(t, filepath.Join(root, "loose.jpg"), "c")
	write(t, filepath.Join(root, "readme.txt"), "d")
	write(t, filepath.Join(root, ".trash", "GR_9.pdf"), "e")

	results, stats, err := ing.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Zero(t, stats.Failed)

	_, stats, err = ing.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stats.Deduplicated)

	d, err := store.Dashboard(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, d.Documents)
	assert.Equal(t, 2, d.Suppliers)
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.pdf"), "x")

	events, _, err := StartWatcher(t.Context(), WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(3 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.pdf"), next())

	write(t, filepath.Join(root, "ignored.txt"), "x")
	newFile := filepath.Join(root, "GR_2.pdf")
	write(t, newFile, "y")
	assert.Equal(t, newFile, next())
}
