package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
)

// SQLiteEngine keeps one SQLite database per index name. Documents live in
// a plain table and an FTS5 table mirrors their text for keyword search.
type SQLiteEngine struct {
	mu      sync.Mutex
	dir     string
	indexes map[string]*SQLiteIndex
}

// NewSQLiteEngine creates an engine rooted at dir. An empty dir uses
// in-memory databases.
func NewSQLiteEngine(dir string) *SQLiteEngine {
	return &SQLiteEngine{dir: dir, indexes: make(map[string]*SQLiteIndex)}
}

// Backend implements Engine.
func (e *SQLiteEngine) Backend() Backend { return BackendSQLite }

// Path implements Engine.
func (e *SQLiteEngine) Path(name string) string {
	if e.dir == "" {
		return ""
	}
	return filepath.Join(e.dir, name+".db")
}

// Exists implements Engine.
func (e *SQLiteEngine) Exists(name string) bool {
	e.mu.Lock()
	_, open := e.indexes[name]
	e.mu.Unlock()
	if open {
		return true
	}
	if e.dir == "" {
		return false
	}
	_, err := os.Stat(e.Path(name))
	return err == nil
}

// EnsureIndex implements Engine.
func (e *SQLiteEngine) EnsureIndex(name string) (DocumentIndex, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, ingesterr.ConfigError(err.Error(), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if idx, ok := e.indexes[name]; ok {
		return idx, nil
	}

	dsn := ":memory:"
	existed := false
	if e.dir != "" {
		if err := os.MkdirAll(e.dir, 0755); err != nil {
			return nil, ingesterr.New(ingesterr.ErrCodeIndexOpen,
				fmt.Sprintf("failed to create data directory %s", e.dir), err)
		}
		dsn = e.Path(name)
		_, statErr := os.Stat(dsn)
		existed = statErr == nil
	}

	idx, err := openSQLiteIndex(name, dsn)
	if err != nil {
		return nil, ingesterr.New(ingesterr.ErrCodeIndexOpen,
			fmt.Sprintf("failed to open index %s", name), err).
			WithDetail("path", e.Path(name)).
			WithSuggestion("Check permissions on the data directory, or remove a corrupted index and re-run with --push-index")
	}

	if existed {
		slog.Debug("index_opened",
			slog.String("index", name),
			slog.String("path", dsn))
	} else {
		slog.Info("index_created",
			slog.String("index", name),
			slog.String("backend", string(BackendSQLite)),
			slog.String("path", e.Path(name)))
	}

	e.indexes[name] = idx
	return idx, nil
}

// Close implements Engine.
func (e *SQLiteEngine) Close() error {
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

// SQLiteIndex is a DocumentIndex stored in one SQLite database.
type SQLiteIndex struct {
	mu     sync.Mutex
	name   string
	db     *sql.DB
	closed bool
}

func openSQLiteIndex(name, dsn string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; an in-memory database also lives only on its one connection.
	db.SetMaxOpenConns(1)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteIndex{name: name, db: db}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- id is stored but not searchable
	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name implements DocumentIndex.
func (s *SQLiteIndex) Name() string { return s.name }

// Upsert implements DocumentIndex.
func (s *SQLiteIndex) Upsert(ctx context.Context, id string, doc record.Record) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "failed to encode document", err).
			WithDetail("id", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "index is closed", nil)
	}

	if err := s.upsert(ctx, id, string(body), searchText(doc)); err != nil {
		return ingesterr.New(ingesterr.ErrCodeIndexWrite, "failed to write document", err).
			WithDetail("id", id)
	}
	return nil
}

func (s *SQLiteIndex) upsert(ctx context.Context, id, body, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents(id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, indexed_at = CURRENT_TIMESTAMP`,
		id, body); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// FTS5 virtual tables don't support REPLACE, so delete first
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear search text: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_fts(id, content) VALUES (?, ?)`, id, content); err != nil {
		return fmt.Errorf("failed to write search text: %w", err)
	}

	return tx.Commit()
}

// Get implements DocumentIndex.
func (s *SQLiteIndex) Get(ctx context.Context, id string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, fmt.Errorf("index is closed")
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read document %s: %w", id, err)
	}

	fields, err := decodeBody(body)
	if err != nil {
		return nil, false, fmt.Errorf("document %s is corrupt: %w", id, err)
	}
	return fields, true, nil
}

// Count implements DocumentIndex.
func (s *SQLiteIndex) Count(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Search implements DocumentIndex. Every query term must match (FTS5 AND);
// results are ordered by BM25.
func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	// bm25() returns negative scores; lower is better
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, bm25(documents_fts) AS score, d.body
		FROM documents_fts f
		JOIN documents d ON d.id = f.id
		WHERE documents_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			id    string
			score float64
			body  string
		)
		if err := rows.Scan(&id, &score, &body); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		fields, err := decodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("document %s is corrupt: %w", id, err)
		}
		hits = append(hits, Hit{ID: id, Score: -score, Fields: fields})
	}
	return hits, rows.Err()
}

func (s *SQLiteIndex) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ftsQuery quotes each whitespace-separated term so user input cannot be
// parsed as FTS5 operators.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func decodeBody(body string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

var (
	_ Engine        = (*SQLiteEngine)(nil)
	_ DocumentIndex = (*SQLiteIndex)(nil)
)
