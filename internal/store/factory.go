package store

import "fmt"

// Backend selects the search engine implementation.
type Backend string

const (
	// BackendBleve stores each index as a Bleve directory (default).
	BackendBleve Backend = "bleve"

	// BackendSQLite stores each index as a SQLite database with an FTS5 table.
	BackendSQLite Backend = "sqlite"
)

// NewEngine creates an engine for backend rooted at dataDir.
// An empty dataDir keeps every index in memory.
func NewEngine(backend string, dataDir string) (Engine, error) {
	switch Backend(backend) {
	case BackendBleve, "":
		return NewBleveEngine(dataDir), nil
	case BackendSQLite:
		return NewSQLiteEngine(dataDir), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s (valid options: bleve, sqlite)", backend)
	}
}
