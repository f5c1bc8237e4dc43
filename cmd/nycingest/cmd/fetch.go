package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/nycingest/internal/config"
	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/ingest"
	"github.com/Aman-CERP/nycingest/internal/lock"
	"github.com/Aman-CERP/nycingest/internal/output"
	"github.com/Aman-CERP/nycingest/internal/soda"
	"github.com/Aman-CERP/nycingest/internal/store"
	"github.com/Aman-CERP/nycingest/internal/ui"
	"github.com/Aman-CERP/nycingest/pkg/version"
)

// fetchOptions holds CLI flags for fetch.
type fetchOptions struct {
	pageSize     int
	numPages     int
	output       string
	outputFormat string
	pushIndex    bool
	index        string
	backend      string
	dataDir      string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch dataset pages and write them to a file",
		Long: `Fetch pages of the dataset in offset order and write the fetched rows to
--output. The number of pages is derived from the dataset's row count unless
--num-pages is given.

With --push-index every record is formatted (amounts as numbers, MM/DD/YYYY
dates as dates) and upserted into the local search index, keyed by
summons_number, before the next page is requested.

Underscore spellings (--page_size, --num_pages) and --push_elastic are
accepted as aliases. --push_elastic is a switch like --push-index: pass it
bare or as --push_elastic=true. A separate value (--push_elastic True) is
read as a positional argument and rejected.`,
		Example: `  # Fetch 3 pages of 1000 rows
  APP_KEY=... nycingest fetch --page-size 1000 --num-pages 3 --output results.txt

  # Fetch everything and index it
  APP_KEY=... nycingest fetch --page-size 5000 --output all.txt --push-index

  # JSON lines instead of one value per line
  nycingest fetch --page-size 100 --num-pages 1 --output sample.jsonl --output-format records`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Rows per request (default from config fetch.page_size)")
	cmd.Flags().IntVar(&opts.numPages, "num-pages", 0, "Pages to fetch (default: row count / page size + 1)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (required)")
	cmd.Flags().StringVar(&opts.outputFormat, "output-format", "", "Output format: values, records (default from config)")
	cmd.Flags().BoolVar(&opts.pushIndex, "push-index", false, "Upsert formatted records into the search index")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index name (default from config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: bleve, sqlite (default from config)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Index data directory (default from config)")

	return cmd
}

func runFetch(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts fetchOptions) error {
	cfg, err := root.config()
	if err != nil {
		return err
	}
	applyIndexFlags(cmd, cfg, opts.index, opts.backend, opts.dataDir)

	pageSize := opts.pageSize
	if !cmd.Flags().Changed("page-size") {
		pageSize = cfg.Fetch.PageSize
	}
	runCfg := ingest.RunnerConfig{
		PageSize:  pageSize,
		NumPages:  opts.numPages,
		PushIndex: opts.pushIndex,
		IndexName: cfg.Index.Name,
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}

	format := cfg.Fetch.OutputFormat
	if opts.outputFormat != "" {
		format = opts.outputFormat
	}
	outFormat, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	if opts.output == "" {
		return ingesterr.ConfigError("output path is required", nil).
			WithSuggestion("Pass --output <file>")
	}

	if cfg.Source.AppKey == "" {
		return ingesterr.New(ingesterr.ErrCodeMissingCredential, "missing credential: APP_KEY is not set", nil).
			WithSuggestion("Export APP_KEY with your Socrata application token")
	}

	source := &countingSource{Source: soda.NewClient(soda.Config{
		Domain:    cfg.Source.Domain,
		Dataset:   cfg.Source.Dataset,
		AppKey:    cfg.Source.AppKey,
		Timeout:   cfg.Timeout(),
		BaseURL:   cfg.Source.Endpoint,
		UserAgent: version.UserAgent(),
	})}

	deps := ingest.RunnerDependencies{Source: source}
	if opts.pushIndex {
		fileLock, err := lock.Acquire(ctx, cfg.Index.DataDir, cfg.LockWait())
		if err != nil {
			return err
		}
		defer func() { _ = fileLock.Unlock() }()

		engine, err := store.NewEngine(cfg.Index.Backend, cfg.Index.DataDir)
		if err != nil {
			return ingesterr.ConfigError(err.Error(), err)
		}
		defer func() { _ = engine.Close() }()
		deps.Engine = engine
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
		ui.WithForcePlain(root.noTUI),
		ui.WithInterrupt(cancel),
		ui.WithNoColor(root.colorDisabled()),
		ui.WithTitle(cfg.Source.Dataset),
	))
	deps.Renderer = renderer

	runner, err := ingest.NewRunner(deps)
	if err != nil {
		return ingesterr.InternalError("failed to create runner", err)
	}

	if err := renderer.Start(ctx); err != nil {
		return ingesterr.InternalError("failed to start progress display", err)
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	results, err := runner.Run(ctx, runCfg)
	if err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageWriting, Message: opts.output})
	lines, err := output.WriteFile(opts.output, results, outFormat)
	if err != nil {
		return err
	}
	slog.Info("output_written",
		slog.String("path", opts.output),
		slog.String("format", string(outFormat)),
		slog.Int("lines", lines))

	stats := ui.CompletionStats{
		Rows:     source.rows,
		Pages:    len(results),
		Records:  results.Records(),
		Output:   opts.output,
		Duration: time.Since(start),
	}
	// Any index error aborts the run, so every record was indexed.
	if opts.pushIndex {
		stats.Indexed = stats.Records
	}
	renderer.Complete(stats)

	return nil
}

// applyIndexFlags overlays the index flags shared by fetch, search and status.
func applyIndexFlags(cmd *cobra.Command, cfg *config.Config, index, backend, dataDir string) {
	if cmd.Flags().Changed("index") {
		cfg.Index.Name = index
	}
	if cmd.Flags().Changed("backend") {
		cfg.Index.Backend = backend
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Index.DataDir = dataDir
	}
}

// countingSource remembers the row count reported by the wrapped source.
type countingSource struct {
	ingest.Source
	rows int
}

func (s *countingSource) Count(ctx context.Context) (int, error) {
	n, err := s.Source.Count(ctx)
	s.rows = n
	return n, err
}
