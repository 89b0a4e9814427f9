package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repack/internal/logging"
	"repack/internal/pipeline"
	"repack/internal/queue"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <path>...",
		Short: "Normalize, repackage, and publish archives or folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			return ctx.withStore(func(store *queue.Store) error {
				pipe, err := pipeline.New(cfg, store, logger)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				failures := 0
				for _, path := range args {
					if err := pipe.ProcessPath(signalCtx, path); err != nil {
						if errors.Is(err, context.Canceled) {
							return err
						}
						failures++
						fmt.Fprintf(out, "Failed %s: %v\n", path, err)
						continue
					}
					fmt.Fprintf(out, "Processed %s\n", path)
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d paths failed", failures, len(args))
				}
				return nil
			})
		},
	}
}
