package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

// EnsureSupplier finds a supplier by code, then by name, and creates it when
// neither matches. An empty code is derived from the name.
func EnsureSupplier(ctx context.Context, repo SupplierRepository, code, name string) (*entity.Supplier, bool, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" && name == "" {
		return nil, false, common.NewAppError("INVALID_SUPPLIER", "supplier code or name required", common.ErrInvalidInput)
	}
	if code != "" {
		s, err := repo.GetByCode(ctx, code)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, err
		}
	}
	if name != "" {
		s, err := repo.GetByName(ctx, name)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, err
		}
	}
	if code == "" {
		code = entity.SupplierCodeFromName(name)
	}
	if name == "" {
		name = code
	}
	s := &entity.Supplier{Code: code, Name: name}
	if err := repo.Create(ctx, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}
