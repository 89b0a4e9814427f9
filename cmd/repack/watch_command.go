package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"repack/internal/logging"
	"repack/internal/pipeline"
	"repack/internal/queue"
	"repack/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the drop folder and process new arrivals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), ctx)
		},
	}
}

func runWatch(parent context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("repack-%s.log", stamp))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	if err := refreshLogLink(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update repack.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "repack-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "repack.pid")
	if err := recordPID(pidPath); err != nil {
		return fmt.Errorf("record pid: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	pipe, err := pipeline.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	svc, err := watch.New(cfg, store, pipe, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("repack watch shutting down")
	svc.Stop()
	return nil
}

// refreshLogLink repoints LogDir/repack.log at the newest per-run log so
// `repack logs` always tails the active file. Filesystems without symlink
// support get a hard link instead.
func refreshLogLink(logDir, runLog string) error {
	if logDir == "" || runLog == "" {
		return nil
	}
	link := filepath.Join(logDir, "repack.log")
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace %s: %w", link, err)
	}
	if symErr := os.Symlink(runLog, link); symErr != nil {
		if hardErr := os.Link(runLog, link); hardErr != nil {
			return fmt.Errorf("point %s at %s: %w", link, filepath.Base(runLog), hardErr)
		}
	}
	return nil
}

func recordPID(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644)
}
