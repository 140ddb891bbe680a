package repository

import (
	"bytes"
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

const (
	poColumns     = `id, number, supplier_id, created_at`
	poLineColumns = `id, po_id, internal_sku, description, unit, qty_ordered, qty_received, tolerance`
)

type purchaseOrderRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPurchaseOrderRepository(db DBTX, logger *slog.Logger) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db, logger: logger}
}

func scanPO(row interface{ Scan(...any) error }) (*entity.PurchaseOrder, error) {
	po := &entity.PurchaseOrder{}
	if err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.CreatedAt); err != nil {
		return nil, err
	}
	return po, nil
}

func scanPOLine(row interface{ Scan(...any) error }) (*entity.POLine, error) {
	l := &entity.POLine{}
	if err := row.Scan(&l.ID, &l.POID, &l.InternalSKU, &l.Description, &l.Unit, &l.Ordered, &l.Received, &l.Tolerance); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *purchaseOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	po, err := scanPO(r.db.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get purchase order", err)
	}
	return po, nil
}

func (r *purchaseOrderRepository) GetByNumber(ctx context.Context, number string) (*entity.PurchaseOrder, error) {
	po, err := scanPO(r.db.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE number = $1`, number))
	if err != nil {
		return nil, readErr("get purchase order by number", err)
	}
	return po, nil
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO purchase_orders (id, number, supplier_id) VALUES ($1, $2, $3) RETURNING created_at`,
		po.ID, po.Number, po.SupplierID).Scan(&po.CreatedAt)
	if err != nil {
		r.logger.Error("repo.po.create_failed", "number", po.Number, "error", err)
		return common.DatabaseError("create purchase order", err)
	}
	return nil
}

func (r *purchaseOrderRepository) List(ctx context.Context) ([]*entity.PurchaseOrder, error) {
	rows, err := r.db.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders ORDER BY number`)
	if err != nil {
		return nil, readErr("list purchase orders", err)
	}
	defer rows.Close()
	var out []*entity.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, readErr("scan purchase order", err)
		}
		out = append(out, po)
	}
	return out, readErrOrNil("list purchase orders", rows.Err())
}

func (r *purchaseOrderRepository) LockLine(ctx context.Context, poID uuid.UUID, sku string) (*entity.POLine, error) {
	l, err := scanPOLine(r.db.QueryRow(ctx,
		`SELECT `+poLineColumns+` FROM po_lines WHERE po_id = $1 AND internal_sku = $2 FOR UPDATE`, poID, sku))
	if err != nil {
		return nil, readErr("lock po line", err)
	}
	return l, nil
}

func (r *purchaseOrderRepository) LockLinesByID(ctx context.Context, ids []uuid.UUID) ([]*entity.POLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	rows, err := r.db.Query(ctx,
		`SELECT `+poLineColumns+` FROM po_lines WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, readErr("lock po lines", err)
	}
	defer rows.Close()
	var out []*entity.POLine
	for rows.Next() {
		l, err := scanPOLine(rows)
		if err != nil {
			return nil, readErr("scan po line", err)
		}
		out = append(out, l)
	}
	return out, readErrOrNil("lock po lines", rows.Err())
}

func (r *purchaseOrderRepository) CreateLine(ctx context.Context, l *entity.POLine) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO po_lines (`+poLineColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.POID, l.InternalSKU, l.Description, l.Unit, l.Ordered, l.Received, l.Tolerance)
	if err != nil {
		r.logger.Error("repo.po_line.create_failed", "po_id", l.POID, "sku", l.InternalSKU, "error", err)
		return common.DatabaseError("create po line", err)
	}
	return nil
}

func (r *purchaseOrderRepository) SetOrdered(ctx context.Context, lineID uuid.UUID, ordered decimal.Decimal) error {
	return r.setQty(ctx, `UPDATE po_lines SET qty_ordered = $2 WHERE id = $1`, lineID, ordered)
}

func (r *purchaseOrderRepository) SetReceived(ctx context.Context, lineID uuid.UUID, received decimal.Decimal) error {
	return r.setQty(ctx, `UPDATE po_lines SET qty_received = $2 WHERE id = $1`, lineID, received)
}

func (r *purchaseOrderRepository) setQty(ctx context.Context, sql string, lineID uuid.UUID, v decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, sql, lineID, v)
	if err != nil {
		return common.DatabaseError("update po line", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "update po line", common.ErrNotFound)
	}
	return nil
}

func (r *purchaseOrderRepository) ListLines(ctx context.Context, poID uuid.UUID) ([]*entity.POLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+poLineColumns+` FROM po_lines WHERE po_id = $1 ORDER BY internal_sku`, poID)
	if err != nil {
		return nil, readErr("list po lines", err)
	}
	defer rows.Close()
	var out []*entity.POLine
	for rows.Next() {
		l, err := scanPOLine(rows)
		if err != nil {
			return nil, readErr("scan po line", err)
		}
		out = append(out, l)
	}
	return out, readErrOrNil("list po lines", rows.Err())
}

func readErrOrNil(op string, err error) error {
	if err == nil {
		return nil
	}
	return readErr(op, err)
}
