// Package repository is the storage layer: a Postgres store built on pgx and
// an in-memory store with the same contract, used by tests and --inmem runs.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

// Lookups that find nothing return common.ErrNotFound.

type SupplierRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Supplier, error)
	GetByCode(ctx context.Context, code string) (*entity.Supplier, error)
	// GetByName matches case-insensitively.
	GetByName(ctx context.Context, name string) (*entity.Supplier, error)
	Create(ctx context.Context, s *entity.Supplier) error
	List(ctx context.Context) ([]*entity.Supplier, error)
}

type PurchaseOrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PurchaseOrder, error)
	GetByNumber(ctx context.Context, number string) (*entity.PurchaseOrder, error)
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	List(ctx context.Context) ([]*entity.PurchaseOrder, error)

	// LockLine reads a PO line and holds a row lock until the transaction ends.
	LockLine(ctx context.Context, poID uuid.UUID, sku string) (*entity.POLine, error)
	// LockLinesByID locks the given lines in ascending id order.
	LockLinesByID(ctx context.Context, ids []uuid.UUID) ([]*entity.POLine, error)
	CreateLine(ctx context.Context, l *entity.POLine) error
	SetOrdered(ctx context.Context, lineID uuid.UUID, ordered decimal.Decimal) error
	SetReceived(ctx context.Context, lineID uuid.UUID, received decimal.Decimal) error
	ListLines(ctx context.Context, poID uuid.UUID) ([]*entity.POLine, error)
}

type MappingRepository interface {
	Get(ctx context.Context, supplierID uuid.UUID, supplierCode string) (*entity.CodeMapping, error)
	// Create inserts the pair unless it already exists, in which case m is
	// filled from the stored row and created is false.
	Create(ctx context.Context, m *entity.CodeMapping) (created bool, err error)
	// Upsert replaces sku, quantity and confidence of an existing pair.
	Upsert(ctx context.Context, m *entity.CodeMapping) (created bool, err error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*entity.CodeMapping, error)
}

type DocumentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.InboundDocument, error)
	FindByKey(ctx context.Context, supplierID uuid.UUID, docType constants.DocType, number string) (*entity.InboundDocument, error)
	Create(ctx context.Context, d *entity.InboundDocument) error
	// SavePayload overwrites the parsed payload and the PO link.
	SavePayload(ctx context.Context, id uuid.UUID, payload []byte, poID *uuid.UUID) error
	List(ctx context.Context) ([]*entity.InboundDocument, error)
}

// ReceiptRepository holds the derived receipt lines and the contribution
// ledger of each document.
type ReceiptRepository interface {
	ReplaceLines(ctx context.Context, documentID uuid.UUID, lines []entity.ReceiptLine) error
	ListLines(ctx context.Context, documentID uuid.UUID) ([]entity.ReceiptLine, error)

	Contributions(ctx context.Context, documentID uuid.UUID, kind string) ([]entity.Contribution, error)
	// AddContribution accumulates qty on the (document, line, kind) entry.
	AddContribution(ctx context.Context, c entity.Contribution) error
	DeleteContributions(ctx context.Context, documentID uuid.UUID, kind string) error
}

type ResultRepository interface {
	Save(ctx context.Context, r *entity.MatchResult) error
	Get(ctx context.Context, documentID uuid.UUID) (*entity.MatchResult, error)
}

type ExceptionRepository interface {
	Create(ctx context.Context, e *entity.ExceptionTask) error
	List(ctx context.Context, documentID uuid.UUID) ([]*entity.ExceptionTask, error)
	ListOpen(ctx context.Context) ([]*entity.ExceptionTask, error)
	// DeleteByClass removes the document's OCR-class (ocr=true) or matching-class exceptions.
	DeleteByClass(ctx context.Context, documentID uuid.UUID, ocr bool) (int64, error)
	CountOpenOCR(ctx context.Context, documentID uuid.UUID) (int, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

// Repos is a set of repositories sharing one connection or transaction.
type Repos struct {
	Suppliers      SupplierRepository
	PurchaseOrders PurchaseOrderRepository
	Mappings       MappingRepository
	Documents      DocumentRepository
	Receipts       ReceiptRepository
	Results        ResultRepository
	Exceptions     ExceptionRepository
}

// Store hands out repositories and runs atomic units of work.
type Store interface {
	Repos() Repos
	// InTx runs fn in one transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(Repos) error) error
	Dashboard(ctx context.Context) (entity.Dashboard, error)
	Close()
}
