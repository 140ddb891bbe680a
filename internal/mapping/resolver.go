// Package mapping resolves supplier article codes to internal SKUs.
package mapping

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

// AutoConfidence is the confidence of mappings created on first sight of a code.
const AutoConfidence = 0.5

// Resolution is the outcome of a lookup.
type Resolution struct {
	InternalSKU string
	Confidence  float64
	Created     bool
}

type Resolver struct {
	repo   repository.MappingRepository
	logger *slog.Logger
}

func NewResolver(repo repository.MappingRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Lookup is an exact match on (supplier, code). It never writes.
func (r *Resolver) Lookup(ctx context.Context, supplierID uuid.UUID, code string) (Resolution, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resolution{}, false, nil
	}
	m, err := r.repo.Get(ctx, supplierID, code)
	if errors.Is(err, common.ErrNotFound) {
		return Resolution{}, false, nil
	}
	if err != nil {
		return Resolution{}, false, err
	}
	return Resolution{InternalSKU: m.InternalSKU, Confidence: m.Confidence}, true, nil
}

// Resolve looks code up and, when absent, records an identity mapping with the
// observed quantity as its ordered quantity and AutoConfidence.
func (r *Resolver) Resolve(ctx context.Context, supplierID uuid.UUID, code string, observed decimal.Decimal) (Resolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resolution{}, common.NewAppError("INVALID_CODE", "empty supplier code", common.ErrInvalidInput)
	}
	res, ok, err := r.Lookup(ctx, supplierID, code)
	if err != nil || ok {
		return res, err
	}

	m := &entity.CodeMapping{
		SupplierID:   supplierID,
		SupplierCode: code,
		InternalSKU:  code,
		QtyOrdered:   observed,
		Confidence:   AutoConfidence,
	}
	created, err := r.repo.Create(ctx, m)
	if err != nil {
		return Resolution{}, err
	}
	if !created {
		// another document recorded the code since the lookup
		return Resolution{InternalSKU: m.InternalSKU, Confidence: m.Confidence}, nil
	}
	r.logger.Info("mapping.auto_created", "supplier_id", supplierID, "supplier_code", code, "qty", observed.String())
	return Resolution{InternalSKU: code, Confidence: AutoConfidence, Created: true}, nil
}
