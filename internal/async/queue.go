package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job asks for one document to be (re)processed.
type Job struct {
	DocumentID  uuid.UUID
	Force       bool // enqueue even if the document is already pending
	ClearOCR    bool
	SubmittedAt time.Time
	Source      string // watcher | rescan | cli
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
