package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/nycingest/configs"
	"github.com/Aman-CERP/nycingest/internal/config"
	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the nycingest configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/nycingest/config.yaml)
  3. Project config (.nycingest.yaml)
  4. Environment variables (APP_KEY, NYCINGEST_*)
  5. Command-line flags`,
		Example: `  # Create user config from template
  nycingest config init

  # Show effective configuration (merged from all sources)
  nycingest config show

  # Print user config file path
  nycingest config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from a template at
~/.config/nycingest/config.yaml (or $XDG_CONFIG_HOME/nycingest/config.yaml).

With --force an existing file is backed up and replaced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and overwrite an existing configuration")

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources. The application
token is masked.`,
		Example: `  nycingest config show
  nycingest config show --json
  nycingest config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, root, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to back it up and replace it")
			return nil
		}

		backupPath, err := config.BackupFile(configPath)
		if err != nil {
			return ingesterr.ConfigError("failed to back up config", err)
		}
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return ingesterr.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.ConfigTemplate), 0600); err != nil {
		return ingesterr.ConfigError("failed to write config file", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Export APP_KEY with your Socrata application token")
	out.Status("", "  2. Edit the file to change dataset or index settings")
	out.Status("", "  3. Run 'nycingest config show' to verify")

	return nil
}

func runConfigShow(cmd *cobra.Command, root *rootOptions, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var (
		cfg        *config.Config
		sourceDesc string
	)

	switch source {
	case "merged":
		merged, err := root.config()
		if err != nil {
			return err
		}
		cfg = merged
		sourceDesc = "merged (defaults + user + project + env)"

	case "user", "project":
		path := config.GetUserConfigPath()
		if source == "project" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, config.ProjectFileName)
		}
		if _, err := os.Stat(path); err != nil {
			out.Warningf("No %s configuration file found", source)
			out.Statusf("📁", "Expected at: %s", path)
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return ingesterr.ConfigError("failed to read "+source+" config", err)
		}
		cfg = config.NewConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return ingesterr.ConfigError("failed to parse "+source+" config", err)
		}
		sourceDesc = fmt.Sprintf("%s (%s)", source, path)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (built-in)"

	default:
		return ingesterr.ConfigError(fmt.Sprintf("invalid source: %s (use: merged, user, project, defaults)", source), nil)
	}

	cfg = cfg.Redacted()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	out.Statusf("📋", "Configuration source: %s", sourceDesc)
	out.Newline()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
