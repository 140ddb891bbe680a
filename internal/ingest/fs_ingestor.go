package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// FSIngestor registers files from the local inbox.
type FSIngestor struct {
	Store           repository.Store
	Root            string
	DefaultSupplier string
	DefaultDocType  constants.DocType
	Logger          *slog.Logger
}

func NewFSIngestor(store repository.Store, root, defaultSupplier string, defaultType constants.DocType, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultSupplier == "" {
		defaultSupplier = "AUTO"
	}
	if defaultType == "" {
		defaultType = constants.DocTypeDelivery
	}
	return &FSIngestor{Store: store, Root: root, DefaultSupplier: defaultSupplier, DefaultDocType: defaultType, Logger: logger}
}

// IngestPath registers one file. Registration is idempotent on
// (supplier, doc type, number); a repeat returns the existing document.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported or missing extension %q", ext), common.ErrInvalidInput)
	}

	sum, err := hashFile(abs)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs
	out.HashHex = hex.EncodeToString(sum)

	root := i.Root
	if root != "" {
		if r, err := filepath.Abs(root); err == nil {
			root = r
		}
	}
	meta := ParseName(root, abs, i.DefaultSupplier, i.DefaultDocType)
	out.DocType, out.Number = meta.DocType, meta.Number

	err = i.Store.InTx(ctx, func(r repository.Repos) error {
		supplier, created, err := repository.EnsureSupplier(ctx, r.Suppliers, meta.SupplierCode, meta.SupplierName)
		if err != nil {
			return err
		}
		if created {
			i.Logger.Info("ingest.supplier.created", "code", supplier.Code, "name", supplier.Name)
		}
		out.SupplierCode = supplier.Code

		existing, err := r.Documents.FindByKey(ctx, supplier.ID, meta.DocType, meta.Number)
		if err == nil {
			out.DocumentID = existing.ID
			out.Deduplicated = true
			return nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		doc := &entity.InboundDocument{
			SupplierID:  supplier.ID,
			DocType:     meta.DocType,
			Number:      meta.Number,
			FilePath:    abs,
			ContentHash: sum,
		}
		if err := r.Documents.Create(ctx, doc); err != nil {
			return err
		}
		out.DocumentID = doc.ID
		return nil
	})
	if err != nil {
		i.Logger.Error("ingest.path.failed", "path", abs, "error", err)
		return out, err
	}
	i.Logger.Info("ingest.path.ok",
		"path", abs,
		"document_id", out.DocumentID,
		"supplier", out.SupplierCode,
		"doc_type", out.DocType,
		"number", out.Number,
		"dedup", out.Deduplicated,
	)
	return out, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	return h.Sum(nil), nil
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError("INVALID_ROOT", "root path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.Logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"dedup", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
