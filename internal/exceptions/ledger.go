// Package exceptions records document and line problems for human triage.
package exceptions

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// Issue texts for document-level extraction trouble.
const (
	IssueNoText     = "no text could be extracted"
	IssueIllegible  = "illegible document"
	IssueNoProducts = "no products extracted"
	IssueLowQuality = "low-quality extraction"
	IssueMalformed  = "malformed products"
)

// Issue is one problem to record.
type Issue struct {
	Ref          string
	Text         string
	SuggestedSKU string
	SuggestedQty *decimal.Decimal
}

type Ledger struct {
	repo   repository.ExceptionRepository
	logger *slog.Logger
}

func NewLedger(repo repository.ExceptionRepository, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{repo: repo, logger: logger}
}

// Record appends an exception.
func (l *Ledger) Record(ctx context.Context, documentID uuid.UUID, is Issue) (*entity.ExceptionTask, error) {
	e := &entity.ExceptionTask{
		DocumentID:           documentID,
		LineRef:              is.Ref,
		Issue:                is.Text,
		SuggestedInternalSKU: is.SuggestedSKU,
		SuggestedQty:         is.SuggestedQty,
	}
	if err := l.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	l.logger.Debug("exceptions.recorded", "document_id", documentID, "ref", is.Ref, "issue", is.Text)
	return e, nil
}

// RecordOCR adds a document-level exception unless an open one exists.
func (l *Ledger) RecordOCR(ctx context.Context, documentID uuid.UUID, text string) (bool, error) {
	n, err := l.repo.CountOpenOCR(ctx, documentID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := l.Record(ctx, documentID, Issue{Ref: constants.OCRRef, Text: text}); err != nil {
		return false, err
	}
	l.logger.Info("exceptions.ocr_recorded", "document_id", documentID, "issue", text)
	return true, nil
}

// HasOCR reports whether the document carries an open document-level exception.
func (l *Ledger) HasOCR(ctx context.Context, documentID uuid.UUID) (bool, error) {
	n, err := l.repo.CountOpenOCR(ctx, documentID)
	return n > 0, err
}

// ClearMatching deletes the matching-class exceptions; OCR-class ones stay.
func (l *Ledger) ClearMatching(ctx context.Context, documentID uuid.UUID) (int64, error) {
	return l.repo.DeleteByClass(ctx, documentID, false)
}

// ClearOCR deletes the document-level exceptions.
func (l *Ledger) ClearOCR(ctx context.Context, documentID uuid.UUID) (int64, error) {
	n, err := l.repo.DeleteByClass(ctx, documentID, true)
	if err == nil && n > 0 {
		l.logger.Info("exceptions.ocr_cleared", "document_id", documentID, "count", n)
	}
	return n, err
}

func (l *Ledger) List(ctx context.Context, documentID uuid.UUID) ([]*entity.ExceptionTask, error) {
	return l.repo.List(ctx, documentID)
}

func (l *Ledger) Open(ctx context.Context) ([]*entity.ExceptionTask, error) {
	return l.repo.ListOpen(ctx)
}

func (l *Ledger) Resolve(ctx context.Context, id uuid.UUID) error {
	return l.repo.Resolve(ctx, id)
}
