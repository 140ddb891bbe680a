package repository

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestPurchaseOrders_GetByNumber(t *testing.T) {
	mock := newMock(t)
	repo := NewPurchaseOrderRepository(mock, slog.Default())
	id, supplier := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, number, supplier_id, created_at FROM purchase_orders WHERE number = $1`)).
		WithArgs("PO-2025-0001").
		WillReturnRows(pgxmock.NewRows([]string{"id", "number", "supplier_id", "created_at"}).
			AddRow(id, "PO-2025-0001", supplier, now))
	mock.ExpectQuery(`FROM purchase_orders WHERE number`).
		WithArgs("PO-404").
		WillReturnError(pgx.ErrNoRows)

	po, err := repo.GetByNumber(t.Context(), "PO-2025-0001")
	require.NoError(t, err)
	assert.Equal(t, id, po.ID)
	assert.Equal(t, supplier, po.SupplierID)

	_, err = repo.GetByNumber(t.Context(), "PO-404")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPurchaseOrders_LockLinesByIDSortsAndLocks(t *testing.T) {
	mock := newMock(t)
	repo := NewPurchaseOrderRepository(mock, slog.Default())
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM po_lines WHERE id = ANY($1) ORDER BY id FOR UPDATE`)).
		WithArgs([]uuid.UUID{a, b}).
		WillReturnError(errors.New("deadlock detected"))

	_, err := repo.LockLinesByID(t.Context(), []uuid.UUID{b, a})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDatabase)

	lines, err := repo.LockLinesByID(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPurchaseOrders_SetReceived(t *testing.T) {
	mock := newMock(t)
	repo := NewPurchaseOrderRepository(mock, slog.Default())
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE po_lines SET qty_received = $2 WHERE id = $1`)).
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE po_lines SET qty_received`).
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetReceived(t.Context(), id, decimal.NewFromInt(8)))
	assert.ErrorIs(t, repo.SetReceived(t.Context(), id, decimal.NewFromInt(8)), common.ErrNotFound)
}

func TestPurchaseOrders_WriteFailuresAreStorageErrors(t *testing.T) {
	mock := newMock(t)
	repo := NewPurchaseOrderRepository(mock, slog.Default())

	mock.ExpectQuery(`INSERT INTO purchase_orders`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO po_lines`).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	err := repo.Create(t.Context(), &entity.PurchaseOrder{Number: "PO-2025-0001", SupplierID: uuid.New()})
	require.ErrorIs(t, err, common.ErrDatabase)
	assert.NotErrorIs(t, err, common.ErrNotFound)

	err = repo.CreateLine(t.Context(), &entity.POLine{POID: uuid.New(), InternalSKU: "A-1"})
	require.ErrorIs(t, err, common.ErrDatabase)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestMappings_Upsert(t *testing.T) {
	mock := newMock(t)
	repo := NewMappingRepository(mock, slog.Default())
	existing := uuid.New()
	m := &entity.CodeMapping{SupplierID: uuid.New(), SupplierCode: "PT-001", InternalSKU: "INT-1", QtyOrdered: decimal.NewFromInt(3), Confidence: 1}

	mock.ExpectQuery(`ON CONFLICT \(supplier_id, supplier_code\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), m.SupplierID, "PT-001", "INT-1", pgxmock.AnyArg(), 1.0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "inserted"}).AddRow(existing, false))

	created, err := repo.Upsert(t.Context(), m)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, m.ID)
}

func TestMappings_Create(t *testing.T) {
	supplierID := uuid.New()

	t.Run("inserted", func(t *testing.T) {
		mock := newMock(t)
		repo := NewMappingRepository(mock, slog.Default())
		m := &entity.CodeMapping{SupplierID: supplierID, SupplierCode: "NEW-42", InternalSKU: "NEW-42", QtyOrdered: decimal.NewFromInt(7), Confidence: 0.5}

		mock.ExpectQuery(`ON CONFLICT \(supplier_id, supplier_code\) DO NOTHING`).
			WithArgs(pgxmock.AnyArg(), supplierID, "NEW-42", "NEW-42", pgxmock.AnyArg(), 0.5).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))

		created, err := repo.Create(t.Context(), m)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("already stored", func(t *testing.T) {
		mock := newMock(t)
		repo := NewMappingRepository(mock, slog.Default())
		stored := uuid.New()
		m := &entity.CodeMapping{SupplierID: supplierID, SupplierCode: "NEW-42", InternalSKU: "NEW-42", QtyOrdered: decimal.NewFromInt(9), Confidence: 0.5}

		mock.ExpectQuery(`ON CONFLICT \(supplier_id, supplier_code\) DO NOTHING`).
			WithArgs(pgxmock.AnyArg(), supplierID, "NEW-42", "NEW-42", pgxmock.AnyArg(), 0.5).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`FROM code_mappings WHERE supplier_id = \$1 AND supplier_code = \$2`).
			WithArgs(supplierID, "NEW-42").
			WillReturnRows(pgxmock.NewRows([]string{"id", "supplier_id", "supplier_code", "internal_sku", "qty_ordered", "confidence"}).
				AddRow(stored, supplierID, "NEW-42", "NEW-42", decimal.NewFromInt(7), 0.5))

		created, err := repo.Create(t.Context(), m)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, stored, m.ID)
		assert.True(t, m.QtyOrdered.Equal(decimal.NewFromInt(7)))
	})

	t.Run("storage failure", func(t *testing.T) {
		mock := newMock(t)
		repo := NewMappingRepository(mock, slog.Default())
		mock.ExpectQuery(`INSERT INTO code_mappings`).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(t.Context(), &entity.CodeMapping{SupplierID: supplierID, SupplierCode: "NEW-42"})
		require.ErrorIs(t, err, common.ErrDatabase)
	})
}

func TestReceipts_Contributions(t *testing.T) {
	mock := newMock(t)
	repo := NewReceiptRepository(mock, slog.Default())
	doc, line := uuid.New(), uuid.New()

	mock.ExpectExec(`ON CONFLICT \(document_id, po_line_id, kind\) DO UPDATE SET qty = receipt_contributions.qty \+ EXCLUDED.qty`).
		WithArgs(doc, line, entity.ContributionOrdered, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`WHERE document_id = \$1 AND kind = \$2 ORDER BY po_line_id`).
		WithArgs(doc, entity.ContributionOrdered).
		WillReturnRows(pgxmock.NewRows([]string{"document_id", "po_line_id", "kind", "qty"}).
			AddRow(doc, line, entity.ContributionOrdered, decimal.NewFromInt(2)))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM receipt_contributions WHERE document_id = $1 AND kind = $2`)).
		WithArgs(doc, entity.ContributionOrdered).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	c := entity.Contribution{DocumentID: doc, POLineID: line, Kind: entity.ContributionOrdered, Qty: decimal.NewFromInt(2)}
	require.NoError(t, repo.AddContribution(t.Context(), c))
	got, err := repo.Contributions(t.Context(), doc, entity.ContributionOrdered)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.ContributionOrdered, got[0].Kind)
	assert.True(t, got[0].Qty.Equal(decimal.NewFromInt(2)))
	require.NoError(t, repo.DeleteContributions(t.Context(), doc, entity.ContributionOrdered))
}

func TestExceptions_Classes(t *testing.T) {
	mock := newMock(t)
	repo := NewExceptionRepository(mock, slog.Default())
	doc := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM exception_tasks WHERE document_id = $1 AND line_ref <> $2`)).
		WithArgs(doc, constants.OCRRef).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM exception_tasks WHERE document_id = $1 AND line_ref = $2`)).
		WithArgs(doc, constants.OCRRef).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM exception_tasks`).
		WithArgs(doc, constants.OCRRef).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.DeleteByClass(t.Context(), doc, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = repo.DeleteByClass(t.Context(), doc, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	open, err := repo.CountOpenOCR(t.Context(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestPostgresStore_InTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		mock := newMock(t)
		store := NewPostgresStore(mock, nil)
		doc := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM receipt_contributions`).
			WithArgs(doc, entity.ContributionReceived).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectCommit()

		err := store.InTx(t.Context(), func(r Repos) error {
			return r.Receipts.DeleteContributions(t.Context(), doc, entity.ContributionReceived)
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock := newMock(t)
		store := NewPostgresStore(mock, nil)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.InTx(t.Context(), func(Repos) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("begin fails", func(t *testing.T) {
		mock := newMock(t)
		store := NewPostgresStore(mock, nil)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := store.InTx(t.Context(), func(Repos) error { return nil })
		assert.ErrorIs(t, err, common.ErrDatabase)
	})
}

func TestPostgresStore_Dashboard(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresStore(mock, nil)
	mock.ExpectQuery(`SELECT\s+\(SELECT count\(\*\) FROM inbound_documents\)`).
		WillReturnRows(pgxmock.NewRows([]string{"documents", "matched", "exceptions", "errors", "suppliers"}).AddRow(7, 4, 2, 1, 3))

	d, err := store.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.Dashboard{Documents: 7, Matched: 4, Exceptions: 2, Errors: 1, Suppliers: 3}, d)
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	require.NoError(t, HealthCheck(t.Context(), mock, time.Second, slog.Default()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.ErrorIs(t, HealthCheck(t.Context(), mock, time.Second, slog.Default()), common.ErrDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}
