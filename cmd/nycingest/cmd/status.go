package cmd

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/store"
	"github.com/Aman-CERP/nycingest/internal/ui"
)

// statusOptions holds CLI flags for status.
type statusOptions struct {
	jsonOutput bool
	index      string
	backend    string
	dataDir    string
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show local index status",
		Long: `Display information about the local search index:
  - Index name, backend and on-disk path
  - Number of indexed documents
  - Storage size
  - The dataset it is filled from`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index name (default from config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: bleve, sqlite (default from config)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Index data directory (default from config)")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts statusOptions) error {
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

	info := ui.StatusInfo{
		IndexName: cfg.Index.Name,
		Backend:   string(engine.Backend()),
		Path:      engine.Path(cfg.Index.Name),
		Exists:    engine.Exists(cfg.Index.Name),
		Domain:    cfg.Source.Domain,
		Dataset:   cfg.Source.Dataset,
	}

	if info.Exists {
		idx, err := engine.EnsureIndex(cfg.Index.Name)
		if err != nil {
			return err
		}
		if info.Documents, err = idx.Count(ctx); err != nil {
			return ingesterr.New(ingesterr.ErrCodeIndexOpen, "failed to count documents", err).
				WithDetail("path", info.Path)
		}
		if info.Path != "" {
			info.SizeBytes = storageSize(info.Path)
		}
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), root.colorDisabled())
	if opts.jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// storageSize sums the files at path and its siblings sharing the prefix
// (SQLite -wal and -shm files).
func storageSize(path string) int64 {
	matches, _ := filepath.Glob(path + "*")
	var total int64
	for _, m := range matches {
		_ = filepath.WalkDir(m, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
			return nil
		})
	}
	return total
}
