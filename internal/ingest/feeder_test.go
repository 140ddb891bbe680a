package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/async"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func (q *recordingQueue) ids() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uuid.UUID, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.DocumentID
	}
	return out
}

func TestFeeder_HandleQueuesOnlyUnprocessed(t *testing.T) {
	root := t.TempDir()
	store := repository.NewMemoryStore()
	q := &recordingQueue{}
	f := NewFeeder(NewFSIngestor(store, root, "", "", nil), q, store.Repos().Results, root, nil)

	path := filepath.Join(root, "F001", "GR_1.pdf")
	write(t, path, "x")

	queued, err := f.Handle(t.Context(), path, "watcher")
	require.NoError(t, err)
	assert.True(t, queued)

	// registered but never reconciled: queued again
	queued, err = f.Handle(t.Context(), path, "watcher")
	require.NoError(t, err)
	assert.True(t, queued)

	id := q.ids()[0]
	require.NoError(t, store.Repos().Results.Save(t.Context(), &entity.MatchResult{DocumentID: id, Status: constants.StatusMatched}))
	queued, err = f.Handle(t.Context(), path, "watcher")
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Len(t, q.ids(), 2)
}

func TestFeeder_Rescan(t *testing.T) {
	root := t.TempDir()
	store := repository.NewMemoryStore()
	q := &recordingQueue{}
	f := NewFeeder(NewFSIngestor(store, root, "", "", nil), q, store.Repos().Results, root, nil)

	write(t, filepath.Join(root, "F001", "GR_1.pdf"), "a")
	write(t, filepath.Join(root, "F002", "FT_2.pdf"), "b")
	write(t, filepath.Join(root, "F002", "notes.txt"), "c")

	n, err := f.Rescan(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFeeder_ScheduleRescanRejectsBadSpec(t *testing.T) {
	store := repository.NewMemoryStore()
	f := NewFeeder(NewFSIngestor(store, t.TempDir(), "", "", nil), &recordingQueue{}, store.Repos().Results, "", nil)
	_, err := f.ScheduleRescan(t.Context(), "not a schedule")
	assert.Error(t, err)
}
