package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Aman-CERP/nycingest/internal/record"
	"github.com/Aman-CERP/nycingest/internal/store"
	"github.com/Aman-CERP/nycingest/internal/ui"
)

// fakeSource serves rows from memory and records every call.
type fakeSource struct {
	rows     []record.Record
	countErr error
	count    *int // overrides len(rows) when set
	pageErr  map[int]error // keyed by offset

	mu      sync.Mutex
	counts  int
	offsets []int
	limits  []int
}

func newFakeSource(n int) *fakeSource {
	rows := make([]record.Record, n)
	for i := range rows {
		rows[i] = record.New(
			record.Field{Name: "summons_number", Value: fmt.Sprintf("%d", 1000+i)},
			record.Field{Name: "fine_amount", Value: "65"},
			record.Field{Name: "issue_date", Value: "01/15/2024"},
		)
	}
	return &fakeSource{rows: rows}
}

func (f *fakeSource) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.count != nil {
		return *f.count, nil
	}
	return len(f.rows), nil
}

func (f *fakeSource) Page(ctx context.Context, limit, offset int) (record.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	f.limits = append(f.limits, limit)
	if err := f.pageErr[offset]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := record.Page{}
	for i := offset; i < offset+limit && i < len(f.rows); i++ {
		page = append(page, f.rows[i])
	}
	return page, nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts + len(f.offsets)
}

// fakeEngine is an in-memory store.Engine that can fail on demand.
type fakeEngine struct {
	mu        sync.Mutex
	indexes   map[string]*fakeIndex
	ensureErr error
	ensures   int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{indexes: make(map[string]*fakeIndex)}
}

func (e *fakeEngine) EnsureIndex(name string) (store.DocumentIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensures++
	if e.ensureErr != nil {
		return nil, e.ensureErr
	}
	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}
	idx := &fakeIndex{name: name, docs: make(map[string]record.Record)}
	e.indexes[name] = idx
	return idx, nil
}

func (e *fakeEngine) Exists(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.indexes[name]
	return ok
}

func (e *fakeEngine) Path(string) string     { return "" }
func (e *fakeEngine) Backend() store.Backend { return "fake" }
func (e *fakeEngine) Close() error           { return nil }

type fakeIndex struct {
	mu       sync.Mutex
	name     string
	docs     map[string]record.Record
	order    []string
	writeErr error
}

func (x *fakeIndex) Name() string { return x.name }

func (x *fakeIndex) Upsert(ctx context.Context, id string, doc record.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.writeErr != nil {
		return x.writeErr
	}
	x.docs[id] = doc
	x.order = append(x.order, id)
	return nil
}

func (x *fakeIndex) Get(ctx context.Context, id string) (map[string]any, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	doc, ok := x.docs[id]
	if !ok {
		return nil, false, nil
	}
	return doc.Map(), true, nil
}

func (x *fakeIndex) Count(ctx context.Context) (uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return uint64(len(x.docs)), nil
}

func (x *fakeIndex) Search(ctx context.Context, query string, limit int) ([]store.Hit, error) {
	return nil, nil
}

// recordingRenderer keeps every event it receives.
type recordingRenderer struct {
	ui.NopRenderer
	mu     sync.Mutex
	events []ui.ProgressEvent
	errors []ui.ErrorEvent
}

func (r *recordingRenderer) UpdateProgress(event ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRenderer) AddError(event ui.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, event)
}
