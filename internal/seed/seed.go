// Package seed loads suppliers, purchase orders and code mappings from CSV,
// and the demo dataset.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/numfmt"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// SupplierRow is one line of suppliers.csv.
type SupplierRow struct {
	Code string `csv:"code" validate:"omitempty,max=16,code"`
	Name string `csv:"name" validate:"max=255"`
}

// POLineRow is one line of po_lines.csv. The PO is created on first sight.
type POLineRow struct {
	PONumber     string `csv:"po_number" validate:"required,max=64,code"`
	SupplierCode string `csv:"supplier_code" validate:"omitempty,max=16,code"`
	SKU          string `csv:"internal_sku" validate:"required,max=64,code"`
	Description  string `csv:"description" validate:"max=255"`
	Unit         string `csv:"unit" validate:"max=20"`
	Ordered      string `csv:"qty_ordered"`
	Tolerance    string `csv:"tolerance"`
}

// MappingRow is one line of mappings.csv.
type MappingRow struct {
	SupplierCode string `csv:"supplier" validate:"required,code"`
	Code         string `csv:"supplier_code" validate:"required,max=120"`
	SKU          string `csv:"internal_sku" validate:"required,max=64,code"`
	Qty          string `csv:"qty_ordered"`
	Confidence   string `csv:"confidence"`
}

// Counters report what an import did.
type Counters struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (c Counters) String() string {
	return fmt.Sprintf("new=%d updated=%d skipped=%d", c.New, c.Updated, c.Skipped)
}

// Seeder writes seed rows in one transaction per file.
type Seeder struct {
	store  repository.Store
	logger *slog.Logger
}

func NewSeeder(store repository.Store, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, logger: logger}
}

func decode[T any](r io.Reader) ([]T, error) {
	var rows []T
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, common.NewAppError("INVALID_CSV", "cannot parse csv", errors.Join(common.ErrInvalidInput, err))
	}
	return rows, nil
}

// Suppliers creates missing suppliers. Existing codes are skipped.
func (s *Seeder) Suppliers(ctx context.Context, r io.Reader) (Counters, error) {
	rows, err := decode[SupplierRow](r)
	if err != nil {
		return Counters{}, err
	}
	return s.SupplierRows(ctx, rows)
}

func (s *Seeder) SupplierRows(ctx context.Context, rows []SupplierRow) (Counters, error) {
	var c Counters
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		c = Counters{}
		for _, row := range rows {
			if strings.TrimSpace(row.Code) == "" && strings.TrimSpace(row.Name) == "" {
				c.Skipped++
				continue
			}
			if !s.valid("supplier", row) {
				c.Skipped++
				continue
			}
			_, created, err := repository.EnsureSupplier(ctx, repos.Suppliers, row.Code, row.Name)
			if err != nil {
				return err
			}
			if created {
				c.New++
			} else {
				c.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return Counters{}, err
	}
	s.logger.Info("seed.suppliers.done", "new", c.New, "updated", c.Updated, "skipped", c.Skipped)
	return c, nil
}

// POLines creates purchase orders on demand and upserts their lines: a
// changed ordered quantity is updated, an identical one is skipped.
func (s *Seeder) POLines(ctx context.Context, r io.Reader) (Counters, error) {
	rows, err := decode[POLineRow](r)
	if err != nil {
		return Counters{}, err
	}
	return s.POLineRows(ctx, rows)
}

func (s *Seeder) POLineRows(ctx context.Context, rows []POLineRow) (Counters, error) {
	var c Counters
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		c = Counters{}
		for i, row := range rows {
			if !s.valid("po_line", row) {
				c.Skipped++
				continue
			}
			number, sku := strings.TrimSpace(row.PONumber), strings.TrimSpace(row.SKU)
			ordered, ok := numfmt.ParseDecimal(row.Ordered)
			if !ok || ordered.IsNegative() {
				s.logger.Warn("seed.po_line.skipped", "row", i+2, "po", number, "sku", sku)
				c.Skipped++
				continue
			}
			tolerance := decimal.Zero
			if strings.TrimSpace(row.Tolerance) != "" {
				if tolerance, ok = numfmt.ParseDecimal(row.Tolerance); !ok {
					s.logger.Warn("seed.po_line.skipped", "row", i+2, "po", number, "sku", sku, "reason", "tolerance")
					c.Skipped++
					continue
				}
			}

			po, err := s.ensureOrder(ctx, repos, number, row.SupplierCode)
			if err != nil {
				return err
			}
			line, err := repos.PurchaseOrders.LockLine(ctx, po.ID, sku)
			switch {
			case err == nil:
				if line.Ordered.Equal(ordered) {
					c.Skipped++
					continue
				}
				if err := repos.PurchaseOrders.SetOrdered(ctx, line.ID, ordered); err != nil {
					return err
				}
				c.Updated++
			case errors.Is(err, common.ErrNotFound):
				if err := repos.PurchaseOrders.CreateLine(ctx, &entity.POLine{
					POID:        po.ID,
					InternalSKU: sku,
					Description: strings.TrimSpace(row.Description),
					Unit:        strings.TrimSpace(row.Unit),
					Ordered:     ordered,
					Tolerance:   tolerance,
				}); err != nil {
					return err
				}
				c.New++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Counters{}, err
	}
	s.logger.Info("seed.po_lines.done", "new", c.New, "updated", c.Updated, "skipped", c.Skipped)
	return c, nil
}

func (s *Seeder) ensureOrder(ctx context.Context, repos repository.Repos, number, supplierCode string) (*entity.PurchaseOrder, error) {
	po, err := repos.PurchaseOrders.GetByNumber(ctx, number)
	if err == nil {
		return po, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if strings.TrimSpace(supplierCode) == "" {
		return nil, common.NewAppError("INVALID_SEED", fmt.Sprintf("po %s: supplier_code required to create it", number), common.ErrInvalidInput)
	}
	sp, _, err := repository.EnsureSupplier(ctx, repos.Suppliers, supplierCode, "")
	if err != nil {
		return nil, err
	}
	po = &entity.PurchaseOrder{Number: number, SupplierID: sp.ID}
	if err := repos.PurchaseOrders.Create(ctx, po); err != nil {
		return nil, err
	}
	s.logger.Info("seed.po.created", "po", number, "supplier", sp.Code)
	return po, nil
}

// Mappings upserts code mappings. Rows naming an unknown supplier are skipped.
func (s *Seeder) Mappings(ctx context.Context, r io.Reader) (Counters, error) {
	rows, err := decode[MappingRow](r)
	if err != nil {
		return Counters{}, err
	}
	return s.MappingRows(ctx, rows)
}

func (s *Seeder) MappingRows(ctx context.Context, rows []MappingRow) (Counters, error) {
	var c Counters
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		c = Counters{}
		for i, row := range rows {
			if !s.valid("mapping", row) {
				c.Skipped++
				continue
			}
			code, sku := strings.TrimSpace(row.Code), strings.TrimSpace(row.SKU)
			sp, err := repos.Suppliers.GetByCode(ctx, strings.TrimSpace(row.SupplierCode))
			if errors.Is(err, common.ErrNotFound) {
				s.logger.Warn("seed.mapping.unknown_supplier", "row", i+2, "supplier", row.SupplierCode)
				c.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			m := &entity.CodeMapping{SupplierID: sp.ID, SupplierCode: code, InternalSKU: sku, Confidence: 1}
			if strings.TrimSpace(row.Qty) != "" {
				m.QtyOrdered, _ = numfmt.ParseDecimal(row.Qty)
			}
			if strings.TrimSpace(row.Confidence) != "" {
				conf, err := strconv.ParseFloat(strings.TrimSpace(row.Confidence), 64)
				if err != nil || conf < 0 || conf > 1 {
					s.logger.Warn("seed.mapping.bad_confidence", "row", i+2, "value", row.Confidence)
					c.Skipped++
					continue
				}
				m.Confidence = conf
			}
			created, err := repos.Mappings.Upsert(ctx, m)
			if err != nil {
				return err
			}
			if created {
				c.New++
			} else {
				c.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return Counters{}, err
	}
	s.logger.Info("seed.mappings.done", "new", c.New, "updated", c.Updated, "skipped", c.Skipped)
	return c, nil
}

func (s *Seeder) valid(kind string, row any) bool {
	if err := common.ValidateStruct(row); err != nil {
		s.logger.Warn("seed.row.invalid", "kind", kind, "error", err)
		return false
	}
	return true
}
