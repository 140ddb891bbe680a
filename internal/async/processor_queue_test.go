package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/pipeline"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	opts  []pipeline.Options
	gate  chan struct{}
	fail  bool
}

func (f *fakeProcessor) Process(_ context.Context, id uuid.UUID, opts pipeline.Options) (*reconcile.Outcome, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[uuid.UUID]int{}
	}
	f.calls[id]++
	f.opts = append(f.opts, opts)
	if f.fail {
		return nil, errors.New("boom")
	}
	return &reconcile.Outcome{Result: &entity.MatchResult{DocumentID: id, Status: constants.StatusMatched}}, nil
}

func (f *fakeProcessor) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func TestProcessorQueue_ProcessesAndDrains(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(8))

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: id, ClearOCR: true, Source: "cli"}))
	}
	q.Shutdown(t.Context())

	for _, id := range ids {
		assert.Equal(t, 1, proc.count(id))
	}
	for _, o := range proc.opts {
		assert.True(t, o.ClearOCR)
	}
	assert.ErrorIs(t, q.Enqueue(t.Context(), Job{DocumentID: uuid.New()}), ErrClosed)
}

func TestProcessorQueue_DeduplicatesPending(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(8))

	busy, id := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: busy}))
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: id}))
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: id}))
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: id, Force: true}))

	close(proc.gate)
	q.Shutdown(t.Context())
	assert.Equal(t, 2, proc.count(id))
}

func TestProcessorQueue_BackpressureHonoursContext(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(proc.gate)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: uuid.New()}))
	// the worker may or may not have taken the first job yet; fill until blocked
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	var err error
	for range 3 {
		if err = q.Enqueue(ctx, Job{DocumentID: uuid.New()}); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessorQueue_FailuresDoNotStopWorkers(t *testing.T) {
	proc := &fakeProcessor{fail: true}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	a, b := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: a}))
	require.NoError(t, q.Enqueue(t.Context(), Job{DocumentID: b}))
	q.Shutdown(t.Context())
	assert.Equal(t, 1, proc.count(a))
	assert.Equal(t, 1, proc.count(b))
}
