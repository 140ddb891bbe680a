package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joseph-ayodele/goods-receipt/internal/async"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Feeder registers inbox files and queues the ones that need processing.
type Feeder struct {
	Ingestor Ingestor
	Queue    async.Queue
	Results  repository.ResultRepository
	Root     string
	Logger   *slog.Logger
}

func NewFeeder(ingestor Ingestor, queue async.Queue, results repository.ResultRepository, root string, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{Ingestor: ingestor, Queue: queue, Results: results, Root: root, Logger: logger}
}

// Handle registers path and enqueues it when it is new or was never
// reconciled. It reports whether a job was queued.
func (f *Feeder) Handle(ctx context.Context, path, source string) (bool, error) {
	res, err := f.Ingestor.IngestPath(ctx, path)
	if err != nil {
		return false, err
	}
	return f.enqueue(ctx, res, source)
}

func (f *Feeder) enqueue(ctx context.Context, res IngestionResult, source string) (bool, error) {
	if res.Deduplicated {
		_, err := f.Results.Get(ctx, res.DocumentID)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return false, err
		}
	}
	err := f.Queue.Enqueue(ctx, async.Job{DocumentID: res.DocumentID, SubmittedAt: time.Now(), Source: source})
	if err != nil {
		return false, err
	}
	f.Logger.Debug("ingest.feeder.queued", "document_id", res.DocumentID, "source", source)
	return true, nil
}

// Rescan walks the inbox and queues whatever the watcher missed.
func (f *Feeder) Rescan(ctx context.Context) (int, error) {
	results, _, err := f.Ingestor.IngestDirectory(ctx, f.Root, true)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		ok, err := f.enqueue(ctx, r, "rescan")
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	f.Logger.Info("ingest.rescan.done", "root", f.Root, "files", len(results), "queued", queued)
	return queued, nil
}

// Run feeds watcher events until events closes or ctx ends.
func (f *Feeder) Run(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-events:
			if !ok {
				return
			}
			if _, err := f.Handle(ctx, p, "watcher"); err != nil {
				f.Logger.Error("ingest.feeder.failed", "path", p, "error", err)
			}
		}
	}
}

// ScheduleRescan runs Rescan on a cron spec ("@every 10m", "*/5 * * * *").
// The returned stop waits for a running rescan to finish.
func (f *Feeder) ScheduleRescan(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := f.Rescan(ctx); err != nil && ctx.Err() == nil {
			f.Logger.Error("ingest.rescan.failed", "error", err)
		}
	}); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid rescan schedule "+spec, err)
	}
	c.Start()
	f.Logger.Info("ingest.rescan.scheduled", "spec", spec)
	return func() { <-c.Stop().Done() }, nil
}
