package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

const supplierColumns = `id, code, name, email, created_at`

type supplierRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewSupplierRepository(db DBTX, logger *slog.Logger) SupplierRepository {
	return &supplierRepository{db: db, logger: logger}
}

func scanSupplier(row interface{ Scan(...any) error }) (*entity.Supplier, error) {
	s := &entity.Supplier{}
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Email, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *supplierRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if err != nil {
		return nil, readErr("get supplier", err)
	}
	return s, nil
}

func (r *supplierRepository) GetByCode(ctx context.Context, code string) (*entity.Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE code = $1`, code))
	if err != nil {
		return nil, readErr("get supplier by code", err)
	}
	return s, nil
}

func (r *supplierRepository) GetByName(ctx context.Context, name string) (*entity.Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE lower(name) = lower($1) ORDER BY created_at LIMIT 1`, name))
	if err != nil {
		return nil, readErr("get supplier by name", err)
	}
	return s, nil
}

func (r *supplierRepository) Create(ctx context.Context, s *entity.Supplier) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO suppliers (id, code, name, email) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		s.ID, s.Code, s.Name, s.Email).Scan(&s.CreatedAt)
	if err != nil {
		r.logger.Error("repo.supplier.create_failed", "code", s.Code, "error", err)
		return common.DatabaseError("create supplier", err)
	}
	return nil
}

func (r *supplierRepository) List(ctx context.Context) ([]*entity.Supplier, error) {
	rows, err := r.db.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY code`)
	if err != nil {
		return nil, readErr("list suppliers", err)
	}
	defer rows.Close()

	var out []*entity.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, readErr("scan supplier", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("list suppliers", err)
	}
	return out, nil
}
