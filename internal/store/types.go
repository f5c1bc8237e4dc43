// Package store provides the search engine that formatted records are pushed
// into: named document indexes with upsert-by-id and keyword search.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/nycingest/internal/record"
)

// Hit is one search result.
type Hit struct {
	// ID is the document id.
	ID string `json:"id"`

	// Score is the backend relevance score; higher is better.
	Score float64 `json:"score"`

	// Fields holds the stored document body.
	Fields map[string]any `json:"fields,omitempty"`
}

// DocumentIndex is a named collection of documents keyed by id.
type DocumentIndex interface {
	// Name returns the index name.
	Name() string

	// Upsert writes doc under id, replacing any document with the same id.
	Upsert(ctx context.Context, id string, doc record.Record) error

	// Get returns the stored body of document id.
	Get(ctx context.Context, id string) (map[string]any, bool, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (uint64, error)

	// Search runs a keyword query and returns at most limit hits.
	// An empty query returns no hits.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Engine owns the named indexes of one data directory.
type Engine interface {
	// EnsureIndex opens the named index, creating it when it does not exist.
	// Calling it again with the same name returns the same index and never
	// alters stored documents. Failures other than "does not exist" are
	// returned.
	EnsureIndex(name string) (DocumentIndex, error)

	// Exists reports whether the named index is present.
	Exists(name string) bool

	// Path returns where the named index lives ("" for in-memory engines).
	Path(name string) string

	// Backend returns the backend identifier.
	Backend() Backend

	// Close releases every index the engine opened.
	Close() error
}

// ValidateIndexName rejects names that cannot be used as a file name.
func ValidateIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("index name is empty")
	}
	if strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("index name %q must not contain path separators", name)
	}
	return nil
}

// searchText flattens a record into the text a keyword index sees.
func searchText(doc record.Record) string {
	parts := make([]string, 0, doc.Len())
	for _, v := range doc.Values() {
		if s := record.Text(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
