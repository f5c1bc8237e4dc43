package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/output"
	"github.com/Aman-CERP/nycingest/internal/record"
	"github.com/Aman-CERP/nycingest/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	format  string // "text", "json"
	index   string
	backend string
	dataDir string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the local index",
		Long: `Search records pushed with 'nycingest fetch --push-index'.

The bleve backend accepts query-string syntax (plate:ABC123, +state:NY);
the sqlite backend matches every term with FTS5.`,
		Example: `  nycingest search ABC123
  nycingest search "NO PARKING" --limit 5
  nycingest search plate:ABC123 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, root, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index name (default from config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: bleve, sqlite (default from config)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Index data directory (default from config)")

	return cmd
}

// searchResponse is the JSON output of search.
type searchResponse struct {
	Query   string      `json:"query"`
	Index   string      `json:"index"`
	Total   int         `json:"total"`
	Results []store.Hit `json:"results"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return ingesterr.ConfigError(fmt.Sprintf("invalid format: %s (use: text, json)", opts.format), nil)
	}

	cfg, err := root.config()
	if err != nil {
		return err
	}
	applyIndexFlags(cmd, cfg, opts.index, opts.backend, opts.dataDir)

	engine, err := store.NewEngine(cfg.Index.Backend, cfg.Index.DataDir)
	if err != nil {
		return ingesterr.ConfigError(err.Error(), err)
	}
	defer func() { _ = engine.Close() }()

	if !engine.Exists(cfg.Index.Name) {
		return ingesterr.New(ingesterr.ErrCodeIndexOpen, "index "+cfg.Index.Name+" not found", nil).
			WithDetail("path", engine.Path(cfg.Index.Name)).
			WithSuggestion("Run 'nycingest fetch --push-index' first")
	}
	idx, err := engine.EnsureIndex(cfg.Index.Name)
	if err != nil {
		return err
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	hits, err := idx.Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", len(hits)))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(searchResponse{
			Query:   query,
			Index:   cfg.Index.Name,
			Total:   len(hits),
			Results: hits,
		})
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Statusf("🔍", "No results for %q", query)
		return nil
	}
	out.Statusf("🔍", "%d results for %q in %s", len(hits), query, cfg.Index.Name)
	out.Newline()
	for i, hit := range hits {
		out.Statusf("", "%d. %s  (score %.3f)", i+1, hit.ID, hit.Score)
		for _, line := range hitLines(hit.Fields) {
			out.Status("", "   "+line)
		}
	}
	return nil
}

// hitLines renders the stored fields as sorted "key: value" lines.
func hitLines(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := record.Text(fields[k]); v != "" {
			lines = append(lines, k+": "+v)
		}
	}
	return lines
}
