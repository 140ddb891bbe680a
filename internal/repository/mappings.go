package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

const mappingColumns = `id, supplier_id, supplier_code, internal_sku, qty_ordered, confidence`

type mappingRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewMappingRepository(db DBTX, logger *slog.Logger) MappingRepository {
	return &mappingRepository{db: db, logger: logger}
}

func scanMapping(row interface{ Scan(...any) error }) (*entity.CodeMapping, error) {
	m := &entity.CodeMapping{}
	if err := row.Scan(&m.ID, &m.SupplierID, &m.SupplierCode, &m.InternalSKU, &m.QtyOrdered, &m.Confidence); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *mappingRepository) Get(ctx context.Context, supplierID uuid.UUID, supplierCode string) (*entity.CodeMapping, error) {
	m, err := scanMapping(r.db.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM code_mappings WHERE supplier_id = $1 AND supplier_code = $2`, supplierID, supplierCode))
	if err != nil {
		return nil, readErr("get code mapping", err)
	}
	return m, nil
}

func (r *mappingRepository) Create(ctx context.Context, m *entity.CodeMapping) (bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
INSERT INTO code_mappings (`+mappingColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (supplier_id, supplier_code) DO NOTHING
RETURNING id`,
		m.ID, m.SupplierID, m.SupplierCode, m.InternalSKU, m.QtyOrdered, m.Confidence).Scan(&m.ID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("repo.mapping.create_failed", "supplier_code", m.SupplierCode, "error", err)
		return false, common.DatabaseError("create code mapping", err)
	}
	stored, err := r.Get(ctx, m.SupplierID, m.SupplierCode)
	if err != nil {
		return false, err
	}
	r.logger.Debug("repo.mapping.exists", "supplier_code", m.SupplierCode, "id", stored.ID)
	*m = *stored
	return false, nil
}

func (r *mappingRepository) Upsert(ctx context.Context, m *entity.CodeMapping) (bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	var inserted bool
	err := r.db.QueryRow(ctx, `
INSERT INTO code_mappings (`+mappingColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (supplier_id, supplier_code) DO UPDATE
   SET internal_sku = EXCLUDED.internal_sku, qty_ordered = EXCLUDED.qty_ordered, confidence = EXCLUDED.confidence
RETURNING id, (xmax = 0)`,
		m.ID, m.SupplierID, m.SupplierCode, m.InternalSKU, m.QtyOrdered, m.Confidence).Scan(&m.ID, &inserted)
	if err != nil {
		return false, common.DatabaseError("upsert code mapping", err)
	}
	return inserted, nil
}

func (r *mappingRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*entity.CodeMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM code_mappings WHERE supplier_id = $1 ORDER BY supplier_code`, supplierID)
	if err != nil {
		return nil, readErr("list code mappings", err)
	}
	defer rows.Close()
	var out []*entity.CodeMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, readErr("scan code mapping", err)
		}
		out = append(out, m)
	}
	return out, readErrOrNil("list code mappings", rows.Err())
}
