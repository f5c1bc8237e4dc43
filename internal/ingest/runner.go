// Package ingest runs the fetch loop: count the dataset, page through it in
// offset order and optionally push every record into the search index.
package ingest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"time"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
	"github.com/Aman-CERP/nycingest/internal/store"
	"github.com/Aman-CERP/nycingest/internal/ui"
)

// Source is the remote dataset pages are read from.
type Source interface {
	// Count returns the number of rows in the dataset.
	Count(ctx context.Context) (int, error)

	// Page returns up to limit rows starting at offset.
	Page(ctx context.Context, limit, offset int) (record.Page, error)
}

// ResultSet holds the fetched pages in fetch order, as returned by the
// source (before formatting).
type ResultSet []record.Page

// Records returns the total number of records across pages.
func (rs ResultSet) Records() int {
	n := 0
	for _, p := range rs {
		n += len(p)
	}
	return n
}

// RunnerConfig configures a fetch run.
type RunnerConfig struct {
	// PageSize is the number of rows requested per page. Must be > 0.
	PageSize int

	// NumPages is the number of pages to fetch. 0 derives it from the row
	// count.
	NumPages int

	// PushIndex routes every fetched record through the formatter into the
	// search index.
	PushIndex bool

	// IndexName is the search index to push into (defaults to nycproject).
	IndexName string
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Source of pages (required).
	Source Source

	// Engine hosting the search index (required when pushing).
	Engine store.Engine

	// Renderer for progress display (optional).
	Renderer ui.Renderer
}

// Runner executes fetch runs with progress reporting.
type Runner struct {
	source   Source
	engine   store.Engine
	renderer ui.Renderer
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	return &Runner{
		source:   deps.Source,
		engine:   deps.Engine,
		renderer: renderer,
	}, nil
}

// DefaultPageCount derives the page count from a row count: rows/pageSize+1.
// When rows is a multiple of pageSize the last page is empty.
func DefaultPageCount(rows, pageSize int) int {
	return rows/pageSize + 1
}

// Offsets yields the zero-based page index and request offset for numPages
// pages of pageSize rows.
func Offsets(pageSize, numPages int) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := 0; i < numPages; i++ {
			if !yield(i, i*pageSize) {
				return
			}
		}
	}
}

// Validate checks the run parameters before any network call.
func (c RunnerConfig) Validate() error {
	if c.PageSize <= 0 {
		return ingesterr.New(ingesterr.ErrCodeInvalidPageSize, "invalid page size", nil).
			WithDetail("page_size", fmt.Sprint(c.PageSize)).
			WithSuggestion("Pass --page-size with a value greater than 0")
	}
	if c.NumPages < 0 {
		return ingesterr.New(ingesterr.ErrCodeInvalidPageCount, "invalid page count", nil).
			WithDetail("num_pages", fmt.Sprint(c.NumPages)).
			WithSuggestion("Pass --num-pages with a value greater than 0, or omit it")
	}
	// The last offset, (NumPages-1)*PageSize, must fit in an int.
	if c.NumPages > 1 && c.PageSize > math.MaxInt/(c.NumPages-1) {
		return ingesterr.New(ingesterr.ErrCodeInvalidPageCount, "page range overflows the request offset", nil).
			WithDetail("page_size", fmt.Sprint(c.PageSize)).
			WithDetail("num_pages", fmt.Sprint(c.NumPages)).
			WithSuggestion("Lower --page-size or --num-pages")
	}
	return nil
}

// Run counts the dataset, fetches pages sequentially at increasing offsets
// and returns them in order. With PushIndex set, each record of a page is
// formatted and upserted before the next page is requested. Any error
// aborts the run and no partial result is returned.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (ResultSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.PushIndex && r.engine == nil {
		return nil, ingesterr.InternalError("search engine is required when pushing to the index", nil)
	}

	start := time.Now()

	// Stage 1: count
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCounting, Message: "counting rows"})
	rows, err := r.source.Count(ctx)
	if err != nil {
		return nil, err
	}
	if rows < 0 {
		return nil, ingesterr.New(ingesterr.ErrCodeBadResponse, "row count is negative", nil).
			WithDetail("rows", fmt.Sprint(rows))
	}

	numPages := cfg.NumPages
	if numPages == 0 {
		numPages = DefaultPageCount(rows, cfg.PageSize)
	}

	slog.Info("fetch_started",
		slog.Int("rows", rows),
		slog.Int("page_size", cfg.PageSize),
		slog.Int("num_pages", numPages),
		slog.Bool("push_index", cfg.PushIndex))

	// Stage 2: index
	var indexer *Indexer
	if cfg.PushIndex {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StagePreparing, Message: "ensuring index " + cfg.IndexName})
		indexer, err = EnsureIndex(r.engine, cfg.IndexName)
		if err != nil {
			return nil, err
		}
	}

	// Stage 3: pages
	results := ResultSet{}
	fetched, indexed := 0, 0
	for i, offset := range Offsets(cfg.PageSize, numPages) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := r.source.Page(ctx, cfg.PageSize, offset)
		if err != nil {
			r.renderer.AddError(ui.ErrorEvent{Page: i + 1, Err: err})
			return nil, err
		}
		results = append(results, page)
		fetched += len(page)

		if indexer != nil {
			for _, rec := range page {
				if err := indexer.Upsert(ctx, rec); err != nil {
					r.renderer.AddError(ui.ErrorEvent{Page: i + 1, Err: err})
					return nil, err
				}
				indexed++
			}
		}

		slog.Debug("page_fetched",
			slog.Int("page", i+1),
			slog.Int("offset", offset),
			slog.Int("records", len(page)))

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageFetching,
			Current: i + 1,
			Total:   numPages,
			Records: fetched,
			Message: fmt.Sprintf("offset %d, %d records", offset, len(page)),
		})
	}

	slog.Info("fetch_complete",
		slog.Int("pages", len(results)),
		slog.Int("records", fetched),
		slog.Int("indexed", indexed),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}
