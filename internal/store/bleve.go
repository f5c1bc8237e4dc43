package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
)

// sourcePrefix namespaces the stored document bodies in bleve's internal store.
const sourcePrefix = "src:"

// BleveEngine keeps one Bleve index per name under a data directory.
type BleveEngine struct {
	mu      sync.Mutex
	dir     string
	indexes map[string]*BleveIndex
}

// NewBleveEngine creates an engine rooted at dir. An empty dir keeps
// indexes in memory for the life of the engine.
func NewBleveEngine(dir string) *BleveEngine {
	return &BleveEngine{dir: dir, indexes: make(map[string]*BleveIndex)}
}

// Backend implements Engine.
func (e *BleveEngine) Backend() Backend { return BackendBleve }

// Path implements Engine.
func (e *BleveEngine) Path(name string) string {
	if e.dir == "" {
		return ""
	}
	return filepath.Join(e.dir, name+".bleve")
}

// Exists implements Engine.
func (e *BleveEngine) Exists(name string) bool {
	e.mu.Lock()
	_, open := e.indexes[name]
	e.mu.Unlock()
	if open {
		return true
	}
	if e.dir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(e.Path(name), "index_meta.json"))
	return err == nil
}

// EnsureIndex implements Engine.
func (e *BleveEngine) EnsureIndex(name string) (DocumentIndex, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, ingesterr.ConfigError(err.Error(), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}

	var (
		bi      bleve.Index
		err     error
		created bool
	)
	if e.dir == "" {
		bi, err = bleve.NewMemOnly(bleve.NewIndexMapping())
		created = true
	} else {
		if err := os.MkdirAll(e.dir, 0755); err != nil {
			return nil, ingesterr.New(ingesterr.ErrCodeIndexOpen,
				fmt.Sprintf("failed to create data directory %s", e.dir), err)
		}
		path := e.Path(name)
		bi, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			bi, err = bleve.New(path, bleve.NewIndexMapping())
			created = true
		}
	}
	if err != nil {
		return nil, ingesterr.New(ingesterr.ErrCodeIndexOpen,
			fmt.Sprintf("failed to open index %s", name), err).
			WithDetail("path", e.Path(name)).
			WithSuggestion("Check permissions on the data directory, or remove a corrupted index and re-run with --push-index")
	}

	if created {
		slog.Info("index_created",
			slog.String("index", name),
			slog.String("backend", string(BackendBleve)),
			slog.String("path", e.Path(name)))
	} else {
		slog.Debug("index_opened",
			slog.String("index", name),
			slog.String("path", e.Path(name)))
	}

	idx := &BleveIndex{name: name, index: bi}
	e.indexes[name] = idx
	return idx, nil
}

// Close implements Engine.
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, idx := range e.indexes {
		if err := idx.close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
		delete(e.indexes, name)
	}
	return errors.Join(errs...)
}

// BleveIndex is a DocumentIndex backed by a Bleve index. The formatted
// record is indexed through Bleve's dynamic mapping and its JSON body is
// kept in the internal store so Get and Search can return it.
type BleveIndex struct {
	mu     sync.RWMutex
	name   string
	index  bleve.Index
	closed bool
}

// Name implements DocumentIndex.
func (b *BleveIndex) Name() string { return b.name }

// Upsert implements DocumentIndex.
func (b *BleveIndex) Upsert(ctx context.Context, id string, doc record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "failed to encode document", err).
			WithDetail("id", id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "index is closed", nil)
	}

	batch := b.index.NewBatch()
	if err := batch.Index(id, bleveDocument(doc)); err != nil {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "failed to index document", err).
			WithDetail("id", id)
	}
	batch.SetInternal([]byte(sourcePrefix+id), body)
	if err := b.index.Batch(batch); err != nil {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "failed to write document", err).
			WithDetail("id", id)
	}
	return nil
}

// Get implements DocumentIndex.
func (b *BleveIndex) Get(ctx context.Context, id string) (map[string]any, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, false, fmt.Errorf("index is closed")
	}
	return b.source(id)
}

// Count implements DocumentIndex.
func (b *BleveIndex) Count(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return b.index.DocCount()
}

// Search implements DocumentIndex. The query uses Bleve's query string
// syntax (`field:value`, `+required`, `-excluded`).
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		fields, _, err := b.source(h.ID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Fields: fields})
	}
	return hits, nil
}

func (b *BleveIndex) source(id string) (map[string]any, bool, error) {
	raw, err := b.index.GetInternal([]byte(sourcePrefix + id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	if raw == nil {
		return nil, false, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("document %s is corrupt: %w", id, err)
	}
	return fields, true, nil
}

func (b *BleveIndex) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// bleveDocument converts a formatted record into the value Bleve's dynamic
// mapping indexes: amounts stay numbers and dates become datetimes.
func bleveDocument(doc record.Record) map[string]any {
	out := make(map[string]any, doc.Len())
	for _, f := range doc.Fields() {
		switch v := f.Value.(type) {
		case nil:
			continue
		case record.Date:
			out[f.Name] = v.Time()
		case json.RawMessage:
			var decoded any
			if err := json.Unmarshal(v, &decoded); err == nil {
				out[f.Name] = decoded
			}
		default:
			out[f.Name] = v
		}
	}
	return out
}

var (
	_ Engine        = (*BleveEngine)(nil)
	_ DocumentIndex = (*BleveIndex)(nil)
)
