package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repack/internal/logging"
	"repack/internal/queue"
	"repack/internal/services"
	"repack/internal/staging"
)

// ProcessPath records a job for the given source and runs it through the
// pipeline. Directories are packaged as-is; anything else is treated as an
// archive. A path that does not exist is rejected before a job is recorded
// so typos never pollute the run history.
func (p *Pipeline) ProcessPath(ctx context.Context, path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "source path is required", nil)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "resolve source path", err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrNotFound, "ingest", "validate", fmt.Sprintf("source %q does not exist", abs), nil)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "stat source", err)
	}

	kind := queue.KindArchive
	if info.IsDir() {
		kind = queue.KindFolder
	}

	job, err := p.store.NewJob(ctx, abs, kind)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return p.Run(ctx, job)
}

// Run executes a persisted job, transitioning its status as it progresses
// and notifying on the outcome. A context cancellation leaves the job in
// processing state; the startup stuck-job reset recovers it on the next run.
func (p *Pipeline) Run(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}

	ctx = services.WithJobID(ctx, job.ID)
	if job.RequestID != "" {
		ctx = services.WithRequestID(ctx, job.RequestID)
	}
	logger := logging.WithContext(ctx, p.logger)

	job.Status = queue.StatusProcessing
	job.ErrorMessage = ""
	if err := p.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	start := time.Now()
	logger.Info("job started",
		logging.String("source", job.SourcePath),
		logging.String("kind", string(job.Kind)),
	)

	runErr := p.run(ctx, logger, job)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Debug("job interrupted by shutdown")
			return runErr
		}
		job.Status = services.FailureStatus(runErr)
		job.ErrorMessage = runErr.Error()
		if err := p.store.Update(ctx, job); err != nil {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
		logger.Error("job failed",
			logging.String("resolved_status", string(job.Status)),
			logging.Duration("job_duration", time.Since(start)),
			logging.Error(runErr),
		)
		if err := p.notifier.NotifyJobFailed(ctx, p.jobLabel(job), runErr); err != nil {
			logger.Warn("failure notification not delivered", logging.Error(err))
		}
		return runErr
	}

	job.Status = queue.StatusCompleted
	job.ErrorMessage = ""
	if err := p.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job completion: %w", err)
	}
	logger.Info("job completed",
		logging.String("title", job.Title),
		logging.String("archive", job.ArchivePath),
		logging.Int("uploaded", job.UploadedCount),
		logging.Duration("job_duration", time.Since(start)),
	)
	if err := p.notifier.NotifyJobComplete(ctx, p.jobLabel(job), job.ArchivePath); err != nil {
		logger.Warn("completion notification not delivered", logging.Error(err))
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	if p.publisher != nil {
		if err := p.publisher.EnsureLogin(ctx); err != nil {
			return err
		}
		if categories, err := p.publisher.FetchCategories(ctx); err != nil {
			logger.Warn("category prefetch failed", logging.Error(err))
		} else {
			logger.Debug("categories fetched", logging.Int("count", len(categories)))
		}
	}

	manager, err := staging.NewManager(p.cfg.Paths.TempDir, p.retryDelay(), logger)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "staging", "manager", "staging unavailable", err)
	}
	defer manager.Cleanup()

	switch job.Kind {
	case queue.KindFolder:
		return p.runFolder(ctx, logger, job, manager)
	default:
		return p.runArchive(ctx, logger, job, manager)
	}
}

func (p *Pipeline) jobLabel(job *queue.Job) string {
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	return filepath.Base(job.SourcePath)
}
