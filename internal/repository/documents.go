package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

const documentColumns = `id, supplier_id, doc_type, number, file_path, content_hash, received_at, parsed_payload, po_id`

type documentRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewDocumentRepository(db DBTX, logger *slog.Logger) DocumentRepository {
	return &documentRepository{db: db, logger: logger}
}

func scanDocument(row interface{ Scan(...any) error }) (*entity.InboundDocument, error) {
	d := &entity.InboundDocument{}
	var payload []byte
	if err := row.Scan(&d.ID, &d.SupplierID, &d.DocType, &d.Number, &d.FilePath, &d.ContentHash, &d.ReceivedAt, &payload, &d.POID); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		d.ParsedPayload = json.RawMessage(payload)
	}
	return d, nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*entity.InboundDocument, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM inbound_documents WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get document", err)
	}
	return d, nil
}

func (r *documentRepository) FindByKey(ctx context.Context, supplierID uuid.UUID, docType constants.DocType, number string) (*entity.InboundDocument, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM inbound_documents WHERE supplier_id = $1 AND doc_type = $2 AND number = $3`,
		supplierID, string(docType), number))
	if err != nil {
		return nil, readErr("find document", err)
	}
	return d, nil
}

func (r *documentRepository) Create(ctx context.Context, d *entity.InboundDocument) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
INSERT INTO inbound_documents (id, supplier_id, doc_type, number, file_path, content_hash)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING received_at`,
		d.ID, d.SupplierID, string(d.DocType), d.Number, d.FilePath, d.ContentHash).Scan(&d.ReceivedAt)
	if err != nil {
		r.logger.Error("repo.document.create_failed", "number", d.Number, "error", err)
		return common.DatabaseError("create document", err)
	}
	return nil
}

func (r *documentRepository) SavePayload(ctx context.Context, id uuid.UUID, payload []byte, poID *uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE inbound_documents SET parsed_payload = $2, po_id = $3 WHERE id = $1`, id, payload, poID)
	if err != nil {
		return common.DatabaseError("save payload", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "save payload", common.ErrNotFound)
	}
	return nil
}

func (r *documentRepository) List(ctx context.Context) ([]*entity.InboundDocument, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM inbound_documents ORDER BY received_at, number`)
	if err != nil {
		return nil, readErr("list documents", err)
	}
	defer rows.Close()
	var out []*entity.InboundDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, readErr("scan document", err)
		}
		out = append(out, d)
	}
	return out, readErrOrNil("list documents", rows.Err())
}

const receiptLineColumns = `id, document_id, position, supplier_code, article_code, maybe_internal_sku, description, unit, qty_received, order_ref`

type receiptRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewReceiptRepository(db DBTX, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{db: db, logger: logger}
}

func (r *receiptRepository) ReplaceLines(ctx context.Context, documentID uuid.UUID, lines []entity.ReceiptLine) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM receipt_lines WHERE document_id = $1`, documentID); err != nil {
		return common.DatabaseError("delete receipt lines", err)
	}
	if len(lines) == 0 {
		return nil
	}
	rows := make([][]any, len(lines))
	for i := range lines {
		l := &lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.DocumentID = documentID
		rows[i] = []any{l.ID, l.DocumentID, l.Position, l.SupplierCode, l.ArticleCode, l.MaybeInternalSKU, l.Description, l.Unit, l.QtyReceived, l.OrderRef}
	}
	if db, ok := r.db.(interface {
		CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error)
	}); ok {
		_, err := db.CopyFrom(ctx, pgx.Identifier{"receipt_lines"},
			[]string{"id", "document_id", "position", "supplier_code", "article_code", "maybe_internal_sku", "description", "unit", "qty_received", "order_ref"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return common.DatabaseError("copy receipt lines", err)
		}
		return nil
	}
	for _, row := range rows {
		if _, err := r.db.Exec(ctx, `INSERT INTO receipt_lines (`+receiptLineColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, row...); err != nil {
			return common.DatabaseError("insert receipt line", err)
		}
	}
	return nil
}

func (r *receiptRepository) ListLines(ctx context.Context, documentID uuid.UUID) ([]entity.ReceiptLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+receiptLineColumns+` FROM receipt_lines WHERE document_id = $1 ORDER BY position`, documentID)
	if err != nil {
		return nil, readErr("list receipt lines", err)
	}
	defer rows.Close()
	var out []entity.ReceiptLine
	for rows.Next() {
		var l entity.ReceiptLine
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Position, &l.SupplierCode, &l.ArticleCode, &l.MaybeInternalSKU,
			&l.Description, &l.Unit, &l.QtyReceived, &l.OrderRef); err != nil {
			return nil, readErr("scan receipt line", err)
		}
		out = append(out, l)
	}
	return out, readErrOrNil("list receipt lines", rows.Err())
}

func (r *receiptRepository) Contributions(ctx context.Context, documentID uuid.UUID, kind string) ([]entity.Contribution, error) {
	rows, err := r.db.Query(ctx, `
SELECT document_id, po_line_id, kind, qty FROM receipt_contributions
WHERE document_id = $1 AND kind = $2 ORDER BY po_line_id`, documentID, kind)
	if err != nil {
		return nil, readErr("list contributions", err)
	}
	defer rows.Close()
	var out []entity.Contribution
	for rows.Next() {
		var c entity.Contribution
		if err := rows.Scan(&c.DocumentID, &c.POLineID, &c.Kind, &c.Qty); err != nil {
			return nil, readErr("scan contribution", err)
		}
		out = append(out, c)
	}
	return out, readErrOrNil("list contributions", rows.Err())
}

func (r *receiptRepository) AddContribution(ctx context.Context, c entity.Contribution) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO receipt_contributions (document_id, po_line_id, kind, qty) VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id, po_line_id, kind) DO UPDATE SET qty = receipt_contributions.qty + EXCLUDED.qty`,
		c.DocumentID, c.POLineID, c.Kind, c.Qty)
	if err != nil {
		return common.DatabaseError("add contribution", err)
	}
	return nil
}

func (r *receiptRepository) DeleteContributions(ctx context.Context, documentID uuid.UUID, kind string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM receipt_contributions WHERE document_id = $1 AND kind = $2`, documentID, kind); err != nil {
		return common.DatabaseError("delete contributions", err)
	}
	return nil
}

type resultRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewResultRepository(db DBTX, logger *slog.Logger) ResultRepository {
	return &resultRepository{db: db, logger: logger}
}

func (r *resultRepository) Save(ctx context.Context, res *entity.MatchResult) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return common.NewAppError("ENCODE_ERROR", "match summary", err)
	}
	err = r.db.QueryRow(ctx, `
INSERT INTO match_results (document_id, status, summary, certified_id, updated_at) VALUES ($1, $2, $3, $4, now())
ON CONFLICT (document_id) DO UPDATE
   SET status = EXCLUDED.status, summary = EXCLUDED.summary, certified_id = EXCLUDED.certified_id, updated_at = now()
RETURNING updated_at`,
		res.DocumentID, string(res.Status), summary, res.CertifiedID).Scan(&res.UpdatedAt)
	if err != nil {
		return common.DatabaseError("save match result", err)
	}
	return nil
}

func (r *resultRepository) Get(ctx context.Context, documentID uuid.UUID) (*entity.MatchResult, error) {
	res := &entity.MatchResult{}
	var summary []byte
	err := r.db.QueryRow(ctx,
		`SELECT document_id, status, summary, certified_id, updated_at FROM match_results WHERE document_id = $1`, documentID).
		Scan(&res.DocumentID, &res.Status, &summary, &res.CertifiedID, &res.UpdatedAt)
	if err != nil {
		return nil, readErr("get match result", err)
	}
	if err := json.Unmarshal(summary, &res.Summary); err != nil {
		return nil, common.NewAppError("DECODE_ERROR", "match summary", err)
	}
	return res, nil
}
