package ingest

import (
	"context"
	"fmt"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
	"github.com/Aman-CERP/nycingest/internal/store"
)

// IDField is the record field used as the search document id.
const IDField = "summons_number"

// DefaultIndexName is the index records are pushed into.
const DefaultIndexName = "nycproject"

// Indexer formats records and upserts them into one search index.
type Indexer struct {
	index store.DocumentIndex
}

// EnsureIndex opens the named index on engine, creating it when absent,
// and returns an Indexer writing to it. Any failure other than the index
// not existing yet is returned.
func EnsureIndex(engine store.Engine, name string) (*Indexer, error) {
	if engine == nil {
		return nil, ingesterr.InternalError("search engine is required", nil)
	}
	idx, err := engine.EnsureIndex(name)
	if err != nil {
		return nil, err
	}
	return &Indexer{index: idx}, nil
}

// Name returns the index name.
func (x *Indexer) Name() string {
	return x.index.Name()
}

// Upsert formats rec and writes it under its summons number, replacing any
// previous document with that id.
func (x *Indexer) Upsert(ctx context.Context, rec record.Record) error {
	id, err := documentID(rec)
	if err != nil {
		return err
	}

	doc, err := record.Format(rec)
	if err != nil {
		return err
	}

	return x.index.Upsert(ctx, id, doc)
}

// documentID extracts the summons number. Values of any kind are accepted
// as long as their text form is non-empty.
func documentID(rec record.Record) (string, error) {
	v, ok := rec.Get(IDField)
	if !ok || v == nil {
		return "", missingID("field is absent")
	}

	var id string
	switch x := v.(type) {
	case string:
		id = x
	default:
		id = fmt.Sprint(x)
	}
	if id == "" {
		return "", missingID("field is empty")
	}
	return id, nil
}

func missingID(reason string) error {
	return ingesterr.DataError(ingesterr.ErrCodeMissingField, "missing required field").
		WithDetail("field", IDField).
		WithDetail("reason", reason)
}
