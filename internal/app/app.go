// Package app wires the store, extraction cascade and pipeline shared by the
// daemon and the CLIs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/ingest"
	"github.com/joseph-ayodele/goods-receipt/internal/llm"
	"github.com/joseph-ayodele/goods-receipt/internal/llm/openai"
	"github.com/joseph-ayodele/goods-receipt/internal/ocr"
	"github.com/joseph-ayodele/goods-receipt/internal/pipeline"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Options select the storage backend.
type Options struct {
	InMemory bool // skip Postgres entirely
	Migrate  bool // apply migrations after connecting
}

// App is the assembled service graph.
type App struct {
	Config    *common.Config
	Store     repository.Store
	Cascade   *ocr.Cascade
	Processor *pipeline.Processor
	Ingestor  *ingest.FSIngestor
	Logger    *slog.Logger

	closers []func()
}

// New connects the store and builds the pipeline. Close releases everything.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStore(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Cascade = ocr.NewFromConfig(cfg, nil, transcriber(cfg, logger), logger)
	extract := pipeline.NewExtractStage(a.Cascade, logger)
	parse := pipeline.NewParseStage(pipeline.ParseConfig{MinTextLen: cfg.OCR.MinTextLen, MaxPages: cfg.OCR.MaxPages}, nil, nil, logger)
	engine := reconcile.NewEngine(cfg.OCR.MinTextLen, logger)
	a.Processor = pipeline.NewProcessor(a.Store, extract, parse, engine, locker, cfg.Pipeline.ProcessTimeout, logger)

	docType, ok := constants.ParseDocType(cfg.Pipeline.DefaultDocType)
	if !ok {
		docType = constants.DocTypeDelivery
	}
	a.Ingestor = ingest.NewFSIngestor(a.Store, cfg.Pipeline.InboxDir, cfg.Pipeline.DefaultSupplier, docType, logger)
	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	if opts.InMemory {
		a.Logger.Info("app.store.memory")
		a.Store = repository.NewMemoryStore()
		return nil
	}
	pool, err := repository.Open(ctx, a.Config.Database, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	if err := repository.HealthCheck(ctx, pool, 5*time.Second, a.Logger); err != nil {
		return err
	}
	if opts.Migrate {
		if err := repository.Migrate(ctx, pool, a.Logger); err != nil {
			return err
		}
	}
	a.Store = repository.NewPostgresStore(pool, a.Logger)
	return nil
}

// locker is a Redis lock when REDIS_ADDR is set, an in-process one otherwise.
func (a *App) locker(ctx context.Context) (pipeline.Locker, error) {
	rc := a.Config.Redis
	if rc.Addr == "" {
		return pipeline.NewKeyedMutex(), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			a.Logger.Warn("app.redis.close_failed", "error", err)
		}
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, common.NewAppError("REDIS_UNAVAILABLE", fmt.Sprintf("redis %s", rc.Addr), err)
	}
	a.Logger.Info("app.lock.redis", "addr", rc.Addr, "ttl", rc.LockTTL)
	return pipeline.NewRedisLocker(rdb, rc.LockTTL), nil
}

// transcriber is nil without an API key, so the vision strategy is left out.
func transcriber(cfg *common.Config, logger *slog.Logger) *ocr.Lazy[llm.Transcriber] {
	if cfg.LLM.APIKey == "" {
		return nil
	}
	return ocr.NewLazy(func() (llm.Transcriber, error) {
		return openai.NewClient(openai.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			Timeout:         cfg.LLM.Timeout,
			LenientOptional: true,
		}, logger), nil
	})
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger builds the process logger: JSON for batch runs, otherwise text
// without time and level attributes.
func NewLogger(level slog.Level, json bool) *slog.Logger {
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
