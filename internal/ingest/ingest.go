// Package ingest registers inbox files as inbound documents.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	DocumentID   uuid.UUID
	SupplierCode string
	DocType      constants.DocType
	Number       string
	Deduplicated bool // the (supplier, type, number) key was already registered
	HashHex      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the daemon and batch CLI depend on.
type Ingestor interface {
	// IngestPath registers a single file.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory registers all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
