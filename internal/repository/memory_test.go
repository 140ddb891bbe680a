package repository

import (
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

func TestMemoryStore_InTxRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()
	name := gofakeit.Company()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(r Repos) error {
		_, _, err := EnsureSupplier(ctx, r.Suppliers, "", name)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := store.Repos().Suppliers.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.InTx(ctx, func(r Repos) error {
		_, _, err := EnsureSupplier(ctx, r.Suppliers, "", name)
		return err
	}))
	list, err = store.Repos().Suppliers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryStore_Constraints(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()
	repos := store.Repos()

	s, created, err := EnsureSupplier(ctx, repos.Suppliers, "F001", "Espumas do Norte")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := EnsureSupplier(ctx, repos.Suppliers, "", "ESPUMAS DO NORTE")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)

	doc := &entity.InboundDocument{SupplierID: s.ID, DocType: constants.DocTypeDelivery, Number: "GR 1/245"}
	require.NoError(t, repos.Documents.Create(ctx, doc))
	dup := &entity.InboundDocument{SupplierID: s.ID, DocType: constants.DocTypeDelivery, Number: "GR 1/245"}
	assert.ErrorIs(t, repos.Documents.Create(ctx, dup), common.ErrInvalidInput)
	found, err := repos.Documents.FindByKey(ctx, s.ID, constants.DocTypeDelivery, "GR 1/245")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	po := &entity.PurchaseOrder{Number: "PO-1", SupplierID: s.ID}
	require.NoError(t, repos.PurchaseOrders.Create(ctx, po))
	line := &entity.POLine{POID: po.ID, InternalSKU: "A-1", Ordered: decimal.NewFromInt(10)}
	require.NoError(t, repos.PurchaseOrders.CreateLine(ctx, line))
	assert.ErrorIs(t, repos.PurchaseOrders.CreateLine(ctx, &entity.POLine{POID: po.ID, InternalSKU: "A-1"}), common.ErrInvalidInput)
	assert.ErrorIs(t, repos.PurchaseOrders.SetReceived(ctx, line.ID, decimal.NewFromInt(-1)), common.ErrInvalidInput)

	m := &entity.CodeMapping{SupplierID: s.ID, SupplierCode: "PT-1", InternalSKU: "A-1", Confidence: 0.5}
	created, err = repos.Mappings.Upsert(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)
	m2 := &entity.CodeMapping{SupplierID: s.ID, SupplierCode: "PT-1", InternalSKU: "A-2", Confidence: 1}
	created, err = repos.Mappings.Upsert(ctx, m2)
	require.NoError(t, err)
	assert.False(t, created)
	got, err := repos.Mappings.Get(ctx, s.ID, "PT-1")
	require.NoError(t, err)
	assert.Equal(t, "A-2", got.InternalSKU)
}

func TestMemoryStore_ExceptionsAndDashboard(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()
	repos := store.Repos()
	s, _, err := EnsureSupplier(ctx, repos.Suppliers, "F001", "Espumas do Norte")
	require.NoError(t, err)
	doc := &entity.InboundDocument{SupplierID: s.ID, DocType: constants.DocTypeDelivery, Number: "GR 1/1"}
	require.NoError(t, repos.Documents.Create(ctx, doc))

	for _, ref := range []string{constants.OCRRef, "A-1", "B-2"} {
		require.NoError(t, repos.Exceptions.Create(ctx, &entity.ExceptionTask{DocumentID: doc.ID, LineRef: ref, Issue: "x"}))
	}
	n, err := repos.Exceptions.DeleteByClass(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	open, err := repos.Exceptions.CountOpenOCR(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	require.NoError(t, repos.Results.Save(ctx, &entity.MatchResult{DocumentID: doc.ID, Status: constants.StatusError}))
	d, err := store.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Documents)
	assert.Equal(t, 1, d.Errors)
	assert.Equal(t, 1, d.Suppliers)
}
