package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"repack/internal/preflight"
	"repack/internal/queue"
	"repack/internal/staging"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Tools", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, tool := range preflight.CheckTools(cfg) {
				var kind statusKind
				switch {
				case tool.Available:
					kind = statusOK
				case tool.Optional:
					kind = statusWarn
				default:
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(tool.Name, kind, tool.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Staging", colorize) {
				fmt.Fprintln(stdout, line)
			}
			dirs, err := staging.ListStaging(cfg.Paths.TempDir)
			switch {
			case err != nil:
				fmt.Fprintln(stdout, renderStatusLine("Staging", statusWarn, err.Error(), colorize))
			case len(dirs) == 0:
				fmt.Fprintln(stdout, "No staging directories")
			default:
				rows := make([][]string, 0, len(dirs))
				for _, dir := range dirs {
					rows = append(rows, []string{dir.Name, formatDisplayTime(dir.ModTime), formatBytes(dir.Size)})
				}
				rendered := drawTable([]string{"Name", "Modified", "Size"}, rows, []cellAlign{cellLeft, cellLeft, cellRight})
				fmt.Fprintln(stdout, rendered)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue", colorize) {
				fmt.Fprintln(stdout, line)
			}
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				rendered := drawTable([]string{"Status", "Count"}, rows, []cellAlign{cellLeft, cellRight})
				fmt.Fprintln(stdout, rendered)
				return nil
			})
		},
	}
}
