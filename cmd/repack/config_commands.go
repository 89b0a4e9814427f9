package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"repack/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the repack configuration",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter config file",
		Annotations: map[string]string{"configOptional": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(targetPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("prepare config directory: %w", err)
			}
			if !overwrite {
				switch _, err := os.Stat(target); {
				case err == nil:
					return fmt.Errorf("config file already exists at %s; pass --overwrite to replace it", target)
				case !os.IsNotExist(err):
					return fmt.Errorf("inspect config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set api.account and api.password (or export REPACK_API_ACCOUNT and REPACK_API_PASSWORD) before enabling uploads.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the sample file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing config file")
	return cmd
}

// resolveInitTarget expands the requested destination, defaulting to the
// standard config location when none is given.
func resolveInitTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	expanded, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return expanded, nil
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "[paths]")
			fmt.Fprintf(out, "  Output directory:   %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "  Temp directory:     %s\n", cfg.Paths.TempDir)
			fmt.Fprintf(out, "  Log directory:      %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "  Tools directory:    %s\n", cfg.Paths.ToolsDir)

			fmt.Fprintln(out, "[archive]")
			fmt.Fprintf(out, "  Format:             %s\n", cfg.Archive.Format)
			fmt.Fprintf(out, "  Level:              %d\n", cfg.Archive.Level)
			fmt.Fprintf(out, "  Solid:              %s\n", boolWord(cfg.Archive.Solid))
			fmt.Fprintf(out, "  Password:           %s\n", secretStatus(cfg.Archive.Password))

			fmt.Fprintln(out, "[images]")
			fmt.Fprintf(out, "  Enabled:            %s\n", boolWord(cfg.Images.Enabled))
			fmt.Fprintf(out, "  Format:             %s\n", cfg.Images.Format)
			fmt.Fprintf(out, "  Quality:            %d\n", cfg.Images.Quality)
			fmt.Fprintf(out, "  Max size:           %dx%d\n", cfg.Images.MaxWidth, cfg.Images.MaxHeight)
			fmt.Fprintf(out, "  Keep compressed:    %s\n", boolWord(cfg.Images.KeepCompressed))

			fmt.Fprintln(out, "[api]")
			fmt.Fprintf(out, "  Upload enabled:     %s\n", boolWord(cfg.API.EnableUpload))
			fmt.Fprintf(out, "  Publish enabled:    %s\n", boolWord(cfg.API.EnablePublish))
			fmt.Fprintf(out, "  Skip login:         %s\n", boolWord(cfg.API.SkipLogin))
			fmt.Fprintf(out, "  Account:            %s\n", secretStatus(cfg.API.Account))
			fmt.Fprintf(out, "  Password:           %s\n", secretStatus(cfg.API.Password))
			fmt.Fprintf(out, "  Batch size:         %d\n", cfg.API.BatchSize)
			fmt.Fprintf(out, "  Category:           %d\n", cfg.API.CategoryID)

			fmt.Fprintln(out, "[cleanup]")
			fmt.Fprintf(out, "  Delete sources:     %s\n", boolWord(cfg.Cleanup.DeleteSourceFiles))

			fmt.Fprintln(out, "[watch]")
			fmt.Fprintf(out, "  Directory:          %s\n", cfg.Watch.Dir)
			fmt.Fprintf(out, "  Poll interval:      %ds\n", cfg.Watch.PollInterval)
			fmt.Fprintf(out, "  Settle timeout:     %ds\n", cfg.Watch.SettleTimeout)

			fmt.Fprintln(out, "[notifications]")
			fmt.Fprintf(out, "  Ntfy topic:         %s\n", secretStatus(cfg.Notifications.NtfyTopic))

			fmt.Fprintln(out, "[logging]")
			fmt.Fprintf(out, "  Format:             %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "  Level:              %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "  Retention days:     %d\n", cfg.Logging.RetentionDays)

			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"configOptional": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
