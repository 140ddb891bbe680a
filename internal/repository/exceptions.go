package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

const exceptionColumns = `id, document_id, line_ref, issue, suggested_internal_sku, suggested_qty, resolved, created_at`

type exceptionRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewExceptionRepository(db DBTX, logger *slog.Logger) ExceptionRepository {
	return &exceptionRepository{db: db, logger: logger}
}

func scanException(row interface{ Scan(...any) error }) (*entity.ExceptionTask, error) {
	e := &entity.ExceptionTask{}
	var qty decimal.NullDecimal
	if err := row.Scan(&e.ID, &e.DocumentID, &e.LineRef, &e.Issue, &e.SuggestedInternalSKU, &qty, &e.Resolved, &e.CreatedAt); err != nil {
		return nil, err
	}
	if qty.Valid {
		e.SuggestedQty = &qty.Decimal
	}
	return e, nil
}

func (r *exceptionRepository) Create(ctx context.Context, e *entity.ExceptionTask) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var qty decimal.NullDecimal
	if e.SuggestedQty != nil {
		qty = decimal.NewNullDecimal(*e.SuggestedQty)
	}
	err := r.db.QueryRow(ctx, `
INSERT INTO exception_tasks (id, document_id, line_ref, issue, suggested_internal_sku, suggested_qty, resolved)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		e.ID, e.DocumentID, e.LineRef, e.Issue, e.SuggestedInternalSKU, qty, e.Resolved).Scan(&e.CreatedAt)
	if err != nil {
		r.logger.Error("repo.exception.create_failed", "document_id", e.DocumentID, "error", err)
		return common.DatabaseError("create exception", err)
	}
	return nil
}

func (r *exceptionRepository) List(ctx context.Context, documentID uuid.UUID) ([]*entity.ExceptionTask, error) {
	return r.list(ctx, `SELECT `+exceptionColumns+` FROM exception_tasks WHERE document_id = $1 ORDER BY created_at, id`, documentID)
}

func (r *exceptionRepository) ListOpen(ctx context.Context) ([]*entity.ExceptionTask, error) {
	return r.list(ctx, `SELECT `+exceptionColumns+` FROM exception_tasks WHERE NOT resolved ORDER BY created_at, id`)
}

func (r *exceptionRepository) list(ctx context.Context, sql string, args ...any) ([]*entity.ExceptionTask, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, readErr("list exceptions", err)
	}
	defer rows.Close()
	var out []*entity.ExceptionTask
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, readErr("scan exception", err)
		}
		out = append(out, e)
	}
	return out, readErrOrNil("list exceptions", rows.Err())
}

func (r *exceptionRepository) DeleteByClass(ctx context.Context, documentID uuid.UUID, ocr bool) (int64, error) {
	sql := `DELETE FROM exception_tasks WHERE document_id = $1 AND line_ref <> $2`
	if ocr {
		sql = `DELETE FROM exception_tasks WHERE document_id = $1 AND line_ref = $2`
	}
	tag, err := r.db.Exec(ctx, sql, documentID, constants.OCRRef)
	if err != nil {
		return 0, common.DatabaseError("delete exceptions", err)
	}
	return tag.RowsAffected(), nil
}

func (r *exceptionRepository) CountOpenOCR(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM exception_tasks WHERE document_id = $1 AND line_ref = $2 AND NOT resolved`,
		documentID, constants.OCRRef).Scan(&n)
	if err != nil {
		return 0, readErr("count ocr exceptions", err)
	}
	return n, nil
}

func (r *exceptionRepository) Resolve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE exception_tasks SET resolved = true WHERE id = $1`, id)
	if err != nil {
		return common.DatabaseError("resolve exception", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "resolve exception", common.ErrNotFound)
	}
	return nil
}
