// Package cmd provides the CLI commands for nycingest.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Aman-CERP/nycingest/internal/config"
	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/logging"
	"github.com/Aman-CERP/nycingest/internal/profiling"
	"github.com/Aman-CERP/nycingest/internal/ui"
	"github.com/Aman-CERP/nycingest/pkg/version"
)

// rootOptions holds the persistent flags and per-invocation state shared by
// subcommands.
type rootOptions struct {
	debug   bool
	noTUI   bool
	noColor bool
	profile profiling.Options

	cfg      *config.Config
	cfgErr   error
	cleanup  func()
	profiler *profiling.Session
}

// NewRootCmd creates the root command for the nycingest CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nycingest",
		Short: "Fetch NYC open-data parking summons and index them locally",
		Long: `nycingest pages through the NYC "Open Parking and Camera Violations"
dataset on the Socrata Open Data API, writes the fetched rows to a file and
optionally pushes every formatted record into a local search index.

The application token is read from the APP_KEY environment variable.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("nycingest version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.nycingest/logs/")
	cmd.PersistentFlags().BoolVar(&opts.noTUI, "no-tui", false, "Plain text progress output")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = opts.setup
	cmd.PersistentPostRunE = opts.teardown

	cmd.AddCommand(newFetchCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newVersionCmd())

	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	return cmd
}

// normalizeFlagName accepts underscore spellings (--page_size) and the
// legacy --push_elastic name.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.ReplaceAll(name, "_", "-")
	if name == "push-elastic" {
		name = "push-index"
	}
	return pflag.NormalizedName(name)
}

// setup loads configuration and installs the default logger. A config error
// is kept and reported by the commands that need the config, so `config
// path` and `version` keep working with a broken config file.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	o.cfg, o.cfgErr = config.Load(cwd)

	logCfg := logging.DefaultConfig()
	logCfg.Stderr = cmd.ErrOrStderr()
	if o.cfg != nil {
		logCfg.Level = o.cfg.Logging.Level
	}
	if o.debug {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.cleanup = cleanup
	slog.SetDefault(logger)

	if o.debug {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version),
			slog.String("command", cmd.CommandPath()))
	}

	if o.profile.Enabled() {
		if o.profiler, err = profiling.Start(o.profile); err != nil {
			return err
		}
	}
	return nil
}

func (o *rootOptions) teardown(_ *cobra.Command, _ []string) error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
	}
	if o.cleanup != nil {
		o.cleanup()
		o.cleanup = nil
	}
	return err
}

// config returns the loaded configuration or the error that prevented
// loading it.
func (o *rootOptions) config() (*config.Config, error) {
	if o.cfgErr != nil {
		return nil, ingesterr.ConfigError(o.cfgErr.Error(), o.cfgErr).
			WithSuggestion("Check " + config.GetUserConfigPath() + " and " + config.ProjectFileName)
	}
	if o.cfg == nil {
		return config.NewConfig(), nil
	}
	return o.cfg, nil
}

// colorDisabled reports whether styled output is off.
func (o *rootOptions) colorDisabled() bool {
	return o.noColor || ui.DetectNoColor()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
