package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/document"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
	"github.com/joseph-ayodele/goods-receipt/internal/ocr"
	"github.com/joseph-ayodele/goods-receipt/internal/reconcile"
	"github.com/joseph-ayodele/goods-receipt/internal/repository"
)

const deliveryNote = `GUIA DE REMESSA GR 1/245
V/ Encomenda: PO-2025-0001
Artigo        Descrição                 Un    Qtd
Bl D23 E150   Bloco D23 espessura 150   UN    20,00`

type fakeExtractor struct {
	out   ocr.Outcome
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string) (ocr.Outcome, error) {
	f.calls++
	return f.out, f.err
}

func text(s string) ocr.Outcome {
	return ocr.Outcome{
		Text:     s,
		Strategy: "embedded",
		Attempts: []document.Attempt{{Strategy: "embedded", OK: len(s) >= 50, Chars: len(s)}},
	}
}

type fixture struct {
	store *repository.MemoryStore
	ext   *fakeExtractor
	proc  *Processor
	doc   *entity.InboundDocument
	line  *entity.POLine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	store := repository.NewMemoryStore()
	repos := store.Repos()

	s, _, err := repository.EnsureSupplier(ctx, repos.Suppliers, "F001", "Espumas do Norte")
	require.NoError(t, err)
	po := &entity.PurchaseOrder{Number: "PO-2025-0001", SupplierID: s.ID}
	require.NoError(t, repos.PurchaseOrders.Create(ctx, po))
	line := &entity.POLine{POID: po.ID, InternalSKU: "INT-BL-D23-150", Ordered: decimal.NewFromInt(20), Tolerance: decimal.RequireFromString("0.5")}
	require.NoError(t, repos.PurchaseOrders.CreateLine(ctx, line))
	_, err = repos.Mappings.Create(ctx, &entity.CodeMapping{
		SupplierID: s.ID, SupplierCode: "Bl D23 E150", InternalSKU: "INT-BL-D23-150", QtyOrdered: decimal.NewFromInt(20), Confidence: 0.98,
	})
	require.NoError(t, err)
	doc := &entity.InboundDocument{SupplierID: s.ID, DocType: constants.DocTypeDelivery, Number: "GR 1/245", FilePath: "inbox/F001/GR_1_245.png"}
	require.NoError(t, repos.Documents.Create(ctx, doc))

	ext := &fakeExtractor{out: text(deliveryNote)}
	proc := NewProcessor(store,
		NewExtractStage(ext, nil),
		NewParseStage(ParseConfig{}, nil, nil, nil),
		reconcile.NewEngine(0, nil),
		nil, time.Minute, nil)
	return &fixture{store: store, ext: ext, proc: proc, doc: doc, line: line}
}

func (f *fixture) received(t *testing.T) decimal.Decimal {
	t.Helper()
	l, err := f.store.Repos().PurchaseOrders.LockLine(t.Context(), f.line.POID, f.line.InternalSKU)
	require.NoError(t, err)
	return l.Received
}

func TestProcess_DeliveryNoteMatches(t *testing.T) {
	f := newFixture(t)

	out, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusMatched, out.Result.Status)
	assert.Equal(t, 1, out.Result.Summary.OKLines)
	assert.Equal(t, "embedded", out.Result.Summary.Strategy)
	require.Len(t, out.Lines, 1)
	assert.Equal(t, "INT-BL-D23-150", out.Lines[0].MaybeInternalSKU)
	assert.True(t, f.received(t).Equal(decimal.NewFromInt(20)))

	stored, err := f.store.Repos().Documents.Get(t.Context(), f.doc.ID)
	require.NoError(t, err)
	payload, err := document.Unmarshal(stored.ParsedPayload)
	require.NoError(t, err)
	assert.Equal(t, document.CategoryDeliveryPT, payload.Category)
	assert.Equal(t, "pt_delivery_note", payload.Diagnostics.Parser)
	assert.Greater(t, payload.Diagnostics.Confidence, 0.5)

	again, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, out.Result.Summary, again.Result.Summary)
	assert.Equal(t, out.Result.CertifiedID, again.Result.CertifiedID)
	assert.True(t, f.received(t).Equal(decimal.NewFromInt(20)))
}

func TestProcess_ReuseStoredText(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, f.ext.calls)

	out, err := f.proc.Process(t.Context(), f.doc.ID, Options{ReuseText: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.ext.calls)
	assert.Equal(t, constants.StatusMatched, out.Result.Status)
}

func TestProcess_IllegibleText(t *testing.T) {
	f := newFixture(t)
	f.ext.out = text(strings.Repeat("a", 30))

	out, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, out.Result.Status)
	assert.Empty(t, out.Lines)

	ex, err := f.store.Repos().Exceptions.List(t.Context(), f.doc.ID)
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.Equal(t, constants.OCRRef, ex[0].LineRef)
	assert.True(t, f.received(t).IsZero())
}

func TestProcess_UnreadableFile(t *testing.T) {
	f := newFixture(t)
	f.ext.err = errors.New("unsupported file format: .docx")

	out, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, out.Result.Status)

	ex, err := f.store.Repos().Exceptions.List(t.Context(), f.doc.ID)
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.Contains(t, ex[0].Issue, "unsupported file format")
}

func TestProcess_ClearOCRAfterRescan(t *testing.T) {
	f := newFixture(t)
	f.ext.out = text("")
	_, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)

	f.ext.out = text(deliveryNote)
	out, err := f.proc.Process(t.Context(), f.doc.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, out.Result.Status, "extraction exception survives a plain reprocess")

	out, err = f.proc.Process(t.Context(), f.doc.ID, Options{ClearOCR: true})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusMatched, out.Result.Status)
	assert.True(t, f.received(t).Equal(decimal.NewFromInt(20)))
}

func TestProcess_UnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Process(t.Context(), f.line.ID, Options{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	release, err := k.Acquire(t.Context(), "doc-1")
	require.NoError(t, err)

	other, err := k.Acquire(t.Context(), "doc-2")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Acquire(ctx, "doc-1")
	assert.ErrorIs(t, err, common.ErrLocked)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := k.Acquire(t.Context(), "doc-1")
		if assert.NoError(t, err) {
			r()
		}
	}()
	release()
	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}
