package repository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/goods-receipt/constants"
	"github.com/joseph-ayodele/goods-receipt/internal/common"
	"github.com/joseph-ayodele/goods-receipt/internal/entity"
)

// MemoryStore keeps everything in process. Transactions are serialized by one
// mutex and rolled back by restoring a snapshot.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

type contributionKey struct {
	lineID uuid.UUID
	kind   string
}

type memData struct {
	suppliers     map[uuid.UUID]entity.Supplier
	orders        map[uuid.UUID]entity.PurchaseOrder
	poLines       map[uuid.UUID]entity.POLine
	mappings      map[uuid.UUID]entity.CodeMapping
	documents     map[uuid.UUID]entity.InboundDocument
	receiptLines  map[uuid.UUID][]entity.ReceiptLine
	contributions map[uuid.UUID]map[contributionKey]decimal.Decimal
	results       map[uuid.UUID]entity.MatchResult
	exceptions    []entity.ExceptionTask
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			suppliers:     map[uuid.UUID]entity.Supplier{},
			orders:        map[uuid.UUID]entity.PurchaseOrder{},
			poLines:       map[uuid.UUID]entity.POLine{},
			mappings:      map[uuid.UUID]entity.CodeMapping{},
			documents:     map[uuid.UUID]entity.InboundDocument{},
			receiptLines:  map[uuid.UUID][]entity.ReceiptLine{},
			contributions: map[uuid.UUID]map[contributionKey]decimal.Decimal{},
			results:       map[uuid.UUID]entity.MatchResult{},
		},
		now: time.Now,
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		suppliers:     maps.Clone(d.suppliers),
		orders:        maps.Clone(d.orders),
		poLines:       maps.Clone(d.poLines),
		mappings:      maps.Clone(d.mappings),
		documents:     maps.Clone(d.documents),
		receiptLines:  make(map[uuid.UUID][]entity.ReceiptLine, len(d.receiptLines)),
		contributions: make(map[uuid.UUID]map[contributionKey]decimal.Decimal, len(d.contributions)),
		results:       maps.Clone(d.results),
		exceptions:    slices.Clone(d.exceptions),
	}
	for k, v := range d.receiptLines {
		c.receiptLines[k] = slices.Clone(v)
	}
	for k, v := range d.contributions {
		c.contributions[k] = maps.Clone(v)
	}
	return c
}

func (s *MemoryStore) Repos() Repos { return s.view(false) }

func (s *MemoryStore) view(inTx bool) Repos {
	v := &memView{s: s, inTx: inTx}
	return Repos{
		Suppliers:      memSuppliers{v},
		PurchaseOrders: memOrders{v},
		Mappings:       memMappings{v},
		Documents:      memDocuments{v},
		Receipts:       memReceipts{v},
		Results:        memResults{v},
		Exceptions:     memExceptions{v},
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(Repos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()
	if err := fn(s.view(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Dashboard(context.Context) (entity.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := entity.Dashboard{Documents: len(s.data.documents), Suppliers: len(s.data.suppliers)}
	for _, r := range s.data.results {
		switch r.Status {
		case constants.StatusMatched:
			d.Matched++
		case constants.StatusExceptions:
			d.Exceptions++
		case constants.StatusError:
			d.Errors++
		}
	}
	return d, nil
}

func (s *MemoryStore) Close() {}

type memView struct {
	s    *MemoryStore
	inTx bool
}

// lock takes the store mutex unless the caller already holds it through InTx.
func (v *memView) lock() (*memData, func()) {
	if v.inTx {
		return v.s.data, func() {}
	}
	v.s.mu.Lock()
	return v.s.data, v.s.mu.Unlock
}

func errNotFound(op string) error { return common.NewAppError("NOT_FOUND", op, common.ErrNotFound) }

func errConflict(op string) error { return common.NewAppError("CONFLICT", op, common.ErrInvalidInput) }

type memSuppliers struct{ v *memView }

func (r memSuppliers) find(pred func(entity.Supplier) bool, op string) (*entity.Supplier, error) {
	d, unlock := r.v.lock()
	defer unlock()
	var found []entity.Supplier
	for _, s := range d.suppliers {
		if pred(s) {
			found = append(found, s)
		}
	}
	if len(found) == 0 {
		return nil, errNotFound(op)
	}
	slices.SortFunc(found, func(a, b entity.Supplier) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return &found[0], nil
}

func (r memSuppliers) GetByID(_ context.Context, id uuid.UUID) (*entity.Supplier, error) {
	return r.find(func(s entity.Supplier) bool { return s.ID == id }, "get supplier")
}

func (r memSuppliers) GetByCode(_ context.Context, code string) (*entity.Supplier, error) {
	return r.find(func(s entity.Supplier) bool { return s.Code == code }, "get supplier by code")
}

func (r memSuppliers) GetByName(_ context.Context, name string) (*entity.Supplier, error) {
	return r.find(func(s entity.Supplier) bool { return strings.EqualFold(s.Name, name) }, "get supplier by name")
}

func (r memSuppliers) Create(_ context.Context, s *entity.Supplier) error {
	d, unlock := r.v.lock()
	defer unlock()
	for _, e := range d.suppliers {
		if e.Code == s.Code {
			return errConflict("create supplier")
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = r.v.s.now()
	d.suppliers[s.ID] = *s
	return nil
}

func (r memSuppliers) List(context.Context) ([]*entity.Supplier, error) {
	d, unlock := r.v.lock()
	defer unlock()
	out := make([]*entity.Supplier, 0, len(d.suppliers))
	for _, s := range d.suppliers {
		out = append(out, &s)
	}
	slices.SortFunc(out, func(a, b *entity.Supplier) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

type memOrders struct{ v *memView }

func (r memOrders) GetByID(_ context.Context, id uuid.UUID) (*entity.PurchaseOrder, error) {
	d, unlock := r.v.lock()
	defer unlock()
	po, ok := d.orders[id]
	if !ok {
		return nil, errNotFound("get purchase order")
	}
	return &po, nil
}

func (r memOrders) GetByNumber(_ context.Context, number string) (*entity.PurchaseOrder, error) {
	d, unlock := r.v.lock()
	defer unlock()
	for _, po := range d.orders {
		if po.Number == number {
			return &po, nil
		}
	}
	return nil, errNotFound("get purchase order by number")
}

func (r memOrders) Create(_ context.Context, po *entity.PurchaseOrder) error {
	d, unlock := r.v.lock()
	defer unlock()
	for _, e := range d.orders {
		if e.Number == po.Number {
			return errConflict("create purchase order")
		}
	}
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	po.CreatedAt = r.v.s.now()
	d.orders[po.ID] = *po
	return nil
}

func (r memOrders) List(context.Context) ([]*entity.PurchaseOrder, error) {
	d, unlock := r.v.lock()
	defer unlock()
	out := make([]*entity.PurchaseOrder, 0, len(d.orders))
	for _, po := range d.orders {
		out = append(out, &po)
	}
	slices.SortFunc(out, func(a, b *entity.PurchaseOrder) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

func (r memOrders) LockLine(_ context.Context, poID uuid.UUID, sku string) (*entity.POLine, error) {
	d, unlock := r.v.lock()
	defer unlock()
	for _, l := range d.poLines {
		if l.POID == poID && l.InternalSKU == sku {
			return &l, nil
		}
	}
	return nil, errNotFound("lock po line")
}

func (r memOrders) LockLinesByID(_ context.Context, ids []uuid.UUID) ([]*entity.POLine, error) {
	d, unlock := r.v.lock()
	defer unlock()
	var out []*entity.POLine
	for _, id := range ids {
		if l, ok := d.poLines[id]; ok {
			out = append(out, &l)
		}
	}
	slices.SortFunc(out, func(a, b *entity.POLine) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}

func (r memOrders) CreateLine(_ context.Context, l *entity.POLine) error {
	d, unlock := r.v.lock()
	defer unlock()
	if _, ok := d.orders[l.POID]; !ok {
		return errNotFound("create po line: purchase order")
	}
	for _, e := range d.poLines {
		if e.POID == l.POID && e.InternalSKU == l.InternalSKU {
			return errConflict("create po line")
		}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	d.poLines[l.ID] = *l
	return nil
}

func (r memOrders) update(lineID uuid.UUID, fn func(*entity.POLine)) error {
	d, unlock := r.v.lock()
	defer unlock()
	l, ok := d.poLines[lineID]
	if !ok {
		return errNotFound("update po line")
	}
	fn(&l)
	d.poLines[lineID] = l
	return nil
}

func (r memOrders) SetOrdered(_ context.Context, lineID uuid.UUID, ordered decimal.Decimal) error {
	return r.update(lineID, func(l *entity.POLine) { l.Ordered = ordered })
}

func (r memOrders) SetReceived(_ context.Context, lineID uuid.UUID, received decimal.Decimal) error {
	if received.IsNegative() {
		return common.NewAppError("CONSTRAINT", "qty_received must not be negative", common.ErrInvalidInput)
	}
	return r.update(lineID, func(l *entity.POLine) { l.Received = received })
}

func (r memOrders) ListLines(_ context.Context, poID uuid.UUID) ([]*entity.POLine, error) {
	d, unlock := r.v.lock()
	defer unlock()
	var out []*entity.POLine
	for _, l := range d.poLines {
		if l.POID == poID {
			out = append(out, &l)
		}
	}
	slices.SortFunc(out, func(a, b *entity.POLine) int { return cmp.Compare(a.InternalSKU, b.InternalSKU) })
	return out, nil
}

type memMappings struct{ v *memView }

func (d *memData) mapping(supplierID uuid.UUID, code string) (entity.CodeMapping, bool) {
	for _, m := range d.mappings {
		if m.SupplierID == supplierID && m.SupplierCode == code {
			return m, true
		}
	}
	return entity.CodeMapping{}, false
}

func (r memMappings) Get(_ context.Context, supplierID uuid.UUID, code string) (*entity.CodeMapping, error) {
	d, unlock := r.v.lock()
	defer unlock()
	m, ok := d.mapping(supplierID, code)
	if !ok {
		return nil, errNotFound("get code mapping")
	}
	return &m, nil
}

func (r memMappings) Create(_ context.Context, m *entity.CodeMapping) (bool, error) {
	d, unlock := r.v.lock()
	defer unlock()
	if existing, ok := d.mapping(m.SupplierID, m.SupplierCode); ok {
		*m = existing
		return false, nil
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	d.mappings[m.ID] = *m
	return true, nil
}

func (r memMappings) Upsert(_ context.Context, m *entity.CodeMapping) (bool, error) {
	d, unlock := r.v.lock()
	defer unlock()
	existing, ok := d.mapping(m.SupplierID, m.SupplierCode)
	switch {
	case ok:
		m.ID = existing.ID
	case m.ID == uuid.Nil:
		m.ID = uuid.New()
	}
	d.mappings[m.ID] = *m
	return !ok, nil
}

func (r memMappings) ListBySupplier(_ context.Context, supplierID uuid.UUID) ([]*entity.CodeMapping, error) {
	d, unlock := r.v.lock()
	defer unlock()
	var out []*entity.CodeMapping
	for _, m := range d.mappings {
		if m.SupplierID == supplierID {
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *entity.CodeMapping) int { return cmp.Compare(a.SupplierCode, b.SupplierCode) })
	return out, nil
}

type memDocuments struct{ v *memView }

func (r memDocuments) Get(_ context.Context, id uuid.UUID) (*entity.InboundDocument, error) {
	d, unlock := r.v.lock()
	defer unlock()
	doc, ok := d.documents[id]
	if !ok {
		return nil, errNotFound("get document")
	}
	return &doc, nil
}

func (d *memData) document(supplierID uuid.UUID, docType constants.DocType, number string) (entity.InboundDocument, bool) {
	for _, doc := range d.documents {
		if doc.SupplierID == supplierID && doc.DocType == docType && doc.Number == number {
			return doc, true
		}
	}
	return entity.InboundDocument{}, false
}

func (r memDocuments) FindByKey(_ context.Context, supplierID uuid.UUID, docType constants.DocType, number string) (*entity.InboundDocument, error) {
	d, unlock := r.v.lock()
	defer unlock()
	doc, ok := d.document(supplierID, docType, number)
	if !ok {
		return nil, errNotFound("find document")
	}
	return &doc, nil
}

func (r memDocuments) Create(_ context.Context, doc *entity.InboundDocument) error {
	d, unlock := r.v.lock()
	defer unlock()
	if _, ok := d.document(doc.SupplierID, doc.DocType, doc.Number); ok {
		return errConflict("create document")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.ReceivedAt = r.v.s.now()
	d.documents[doc.ID] = *doc
	return nil
}

func (r memDocuments) SavePayload(_ context.Context, id uuid.UUID, payload []byte, poID *uuid.UUID) error {
	d, unlock := r.v.lock()
	defer unlock()
	doc, ok := d.documents[id]
	if !ok {
		return errNotFound("save payload")
	}
	doc.ParsedPayload = slices.Clone(payload)
	doc.POID = nil
	if poID != nil {
		v := *poID
		doc.POID = &v
	}
	d.documents[doc.ID] = doc
	return nil
}

func (r memDocuments) List(context.Context) ([]*entity.InboundDocument, error) {
	d, unlock := r.v.lock()
	defer unlock()
	out := make([]*entity.InboundDocument, 0, len(d.documents))
	for _, doc := range d.documents {
		out = append(out, &doc)
	}
	slices.SortFunc(out, func(a, b *entity.InboundDocument) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	return out, nil
}

type memReceipts struct{ v *memView }

func (r memReceipts) ReplaceLines(_ context.Context, documentID uuid.UUID, lines []entity.ReceiptLine) error {
	d, unlock := r.v.lock()
	defer unlock()
	out := make([]entity.ReceiptLine, len(lines))
	for i, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.DocumentID = documentID
		lines[i] = l
		out[i] = l
	}
	d.receiptLines[documentID] = out
	return nil
}

func (r memReceipts) ListLines(_ context.Context, documentID uuid.UUID) ([]entity.ReceiptLine, error) {
	d, unlock := r.v.lock()
	defer unlock()
	return slices.Clone(d.receiptLines[documentID]), nil
}

func (r memReceipts) Contributions(_ context.Context, documentID uuid.UUID, kind string) ([]entity.Contribution, error) {
	d, unlock := r.v.lock()
	defer unlock()
	var out []entity.Contribution
	for k, qty := range d.contributions[documentID] {
		if k.kind == kind {
			out = append(out, entity.Contribution{DocumentID: documentID, POLineID: k.lineID, Kind: kind, Qty: qty})
		}
	}
	slices.SortFunc(out, func(a, b entity.Contribution) int { return strings.Compare(a.POLineID.String(), b.POLineID.String()) })
	return out, nil
}

func (r memReceipts) AddContribution(_ context.Context, c entity.Contribution) error {
	d, unlock := r.v.lock()
	defer unlock()
	if d.contributions[c.DocumentID] == nil {
		d.contributions[c.DocumentID] = map[contributionKey]decimal.Decimal{}
	}
	k := contributionKey{lineID: c.POLineID, kind: c.Kind}
	d.contributions[c.DocumentID][k] = d.contributions[c.DocumentID][k].Add(c.Qty)
	return nil
}

func (r memReceipts) DeleteContributions(_ context.Context, documentID uuid.UUID, kind string) error {
	d, unlock := r.v.lock()
	defer unlock()
	maps.DeleteFunc(d.contributions[documentID], func(k contributionKey, _ decimal.Decimal) bool { return k.kind == kind })
	return nil
}

type memResults struct{ v *memView }

func (r memResults) Save(_ context.Context, res *entity.MatchResult) error {
	d, unlock := r.v.lock()
	defer unlock()
	res.UpdatedAt = r.v.s.now()
	d.results[res.DocumentID] = *res
	return nil
}

func (r memResults) Get(_ context.Context, documentID uuid.UUID) (*entity.MatchResult, error) {
	d, unlock := r.v.lock()
	defer unlock()
	res, ok := d.results[documentID]
	if !ok {
		return nil, errNotFound("get match result")
	}
	return &res, nil
}

type memExceptions struct{ v *memView }

func (r memExceptions) Create(_ context.Context, e *entity.ExceptionTask) error {
	d, unlock := r.v.lock()
	defer unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.v.s.now()
	d.exceptions = append(d.exceptions, *e)
	return nil
}

func (r memExceptions) filter(pred func(entity.ExceptionTask) bool) []*entity.ExceptionTask {
	d, unlock := r.v.lock()
	defer unlock()
	var out []*entity.ExceptionTask
	for _, e := range d.exceptions {
		if pred(e) {
			out = append(out, &e)
		}
	}
	return out
}

func (r memExceptions) List(_ context.Context, documentID uuid.UUID) ([]*entity.ExceptionTask, error) {
	return r.filter(func(e entity.ExceptionTask) bool { return e.DocumentID == documentID }), nil
}

func (r memExceptions) ListOpen(context.Context) ([]*entity.ExceptionTask, error) {
	return r.filter(func(e entity.ExceptionTask) bool { return !e.Resolved }), nil
}

func (r memExceptions) DeleteByClass(_ context.Context, documentID uuid.UUID, ocr bool) (int64, error) {
	d, unlock := r.v.lock()
	defer unlock()
	before := len(d.exceptions)
	d.exceptions = slices.DeleteFunc(d.exceptions, func(e entity.ExceptionTask) bool {
		return e.DocumentID == documentID && e.IsOCR() == ocr
	})
	return int64(before - len(d.exceptions)), nil
}

func (r memExceptions) CountOpenOCR(_ context.Context, documentID uuid.UUID) (int, error) {
	n := len(r.filter(func(e entity.ExceptionTask) bool {
		return e.DocumentID == documentID && e.IsOCR() && !e.Resolved
	}))
	return n, nil
}

func (r memExceptions) Resolve(_ context.Context, id uuid.UUID) error {
	d, unlock := r.v.lock()
	defer unlock()
	for i := range d.exceptions {
		if d.exceptions[i].ID == id {
			d.exceptions[i].Resolved = true
			return nil
		}
	}
	return errNotFound("resolve exception")
}
