package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/pipeline"
)

func TestNew_InMemory(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.LLM.APIKey = ""
	cfg.Vision.APIKey = ""
	cfg.Redis.Addr = ""
	cfg.Pipeline.InboxDir = t.TempDir()

	a, err := New(t.Context(), cfg, Options{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotContains(t, a.Cascade.Strategies(), "vision")
	assert.IsType(t, &pipeline.KeyedMutex{}, a.Processor.Locker)

	path := filepath.Join(cfg.Pipeline.InboxDir, "F001", "GR_7.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	res, err := a.Ingestor.IngestPath(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, "F001", res.SupplierCode)
}
