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

	"repack/internal/fileutil"
	"repack/internal/imaging"
	"repack/internal/logging"
	"repack/internal/naming"
	"repack/internal/queue"
	"repack/internal/services"
	"repack/internal/staging"
)

func (p *Pipeline) runArchive(ctx context.Context, logger *slog.Logger, job *queue.Job, manager *staging.Manager) error {
	info, err := os.Stat(job.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrNotFound, "extract", "validate", fmt.Sprintf("archive %q does not exist", job.SourcePath), nil)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "extract", "validate", "stat archive", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "extract", "validate", fmt.Sprintf("archive %q is empty", filepath.Base(job.SourcePath)), nil)
	}

	originalName := strings.TrimSuffix(filepath.Base(job.SourcePath), filepath.Ext(job.SourcePath))

	extractDir, err := manager.Allocate(staging.KindExtract)
	if err != nil {
		return err
	}
	stepStart := time.Now()
	if err := p.archiver.Extract(ctx, job.SourcePath, extractDir, p.cfg.Extraction.Passwords, originalName); err != nil {
		return err
	}
	// Extraction recreates its destination, which drops the staging marker.
	staging.Mark(extractDir)
	logger.Info("archive extracted", logging.Duration("step_duration", time.Since(stepStart)))

	finalDir, err := manager.Allocate(staging.KindFinal)
	if err != nil {
		return err
	}
	cleanName := naming.Clean(originalName)
	processedDir := filepath.Join(finalDir, cleanName)
	if err := staging.Stage(extractDir, processedDir); err != nil {
		return err
	}

	if err := p.finishJob(ctx, logger, job, processedDir, cleanName); err != nil {
		return err
	}

	p.disposeSource(logger, job)
	return nil
}

func (p *Pipeline) runFolder(ctx context.Context, logger *slog.Logger, job *queue.Job, manager *staging.Manager) error {
	info, err := os.Stat(job.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrNotFound, "stage", "validate", fmt.Sprintf("folder %q does not exist", job.SourcePath), nil)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "stage", "validate", "stat folder", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "stage", "validate", fmt.Sprintf("%q is not a directory", job.SourcePath), nil)
	}

	processDir, err := manager.Allocate(staging.KindProcess)
	if err != nil {
		return err
	}
	cleanName := naming.Clean(filepath.Base(job.SourcePath))
	processedDir := filepath.Join(processDir, cleanName)
	stepStart := time.Now()
	if err := fileutil.CopyTree(job.SourcePath, processedDir); err != nil {
		return services.Wrap(services.ErrTransient, "stage", "copy", "copy folder into staging", err)
	}
	logger.Info("folder copied into staging", logging.Duration("step_duration", time.Since(stepStart)))

	return p.finishJob(ctx, logger, job, processedDir, cleanName)
}

// finishJob carries a staged directory through the shared tail of both
// flows: junk removal, media sequencing, packaging, image re-encoding,
// upload/publish, and compressed-image disposition.
func (p *Pipeline) finishJob(ctx context.Context, logger *slog.Logger, job *queue.Job, processedDir, cleanName string) error {
	if removed := staging.CleanUnwanted(processedDir, logger); removed > 0 {
		logger.Debug("unwanted files removed", logging.Int("count", removed))
	}

	counts, err := staging.RenameMedia(processedDir, p.cfg.Rename.ImagePrefix, p.cfg.Rename.VideoPrefix, logger)
	if err != nil {
		return err
	}
	logger.Info("media files sequenced",
		logging.Int("images", counts.Images),
		logging.Int("videos", counts.Videos),
	)

	title := cleanName
	if stats, err := staging.CollectStats(processedDir); err != nil {
		logger.Warn("stats walk failed, using bare title", logging.Error(err))
	} else {
		title = naming.FormatTitleStats(cleanName, stats.Images, stats.Videos, stats.TotalBytes)
	}
	job.Title = title
	if err := p.store.Update(ctx, job); err != nil {
		logger.Warn("job title not persisted", logging.Error(err))
	}

	if err := os.MkdirAll(p.cfg.Paths.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "package", "prepare", "create output directory", err)
	}
	outputPath := filepath.Join(p.cfg.Paths.OutputDir, naming.SafeFileName(title)+p.cfg.ArchiveExtension())
	stepStart := time.Now()
	if err := p.archiver.Create(ctx, processedDir, outputPath, p.cfg.Archive.Password, p.recipe); err != nil {
		return err
	}
	job.ArchivePath = outputPath
	if err := p.store.Update(ctx, job); err != nil {
		logger.Warn("archive path not persisted", logging.Error(err))
	}
	logger.Info("archive created",
		logging.String("archive", filepath.Base(outputPath)),
		logging.Duration("step_duration", time.Since(stepStart)),
	)

	if p.compressor != nil {
		if result, err := p.compressor.Compress(ctx, processedDir); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("image compression pass failed", logging.Error(err))
		} else if result.Failed > 0 {
			logger.Warn("some images did not re-encode", logging.Int("failed", result.Failed))
		}
	}

	if err := p.publishImages(ctx, logger, job, processedDir, title); err != nil {
		return err
	}

	if p.compressor != nil {
		p.disposeCompressed(logger, processedDir, cleanName)
	}
	return nil
}

func (p *Pipeline) publishImages(ctx context.Context, logger *slog.Logger, job *queue.Job, processedDir, title string) error {
	if p.publisher == nil {
		logger.Info("api operations skipped")
		return nil
	}
	if !p.cfg.API.EnableUpload {
		logger.Info("upload disabled, skipping api operations")
		return nil
	}

	urls, err := p.publisher.UploadImages(ctx, processedDir)
	if err != nil {
		return err
	}
	job.UploadedCount = len(urls)
	if err := p.store.Update(ctx, job); err != nil {
		logger.Warn("uploaded count not persisted", logging.Error(err))
	}
	logger.Info("images uploaded", logging.Int("count", len(urls)))

	if !p.cfg.API.EnablePublish {
		logger.Info("publish disabled, skipping article submission")
		return nil
	}
	articleID, err := p.publisher.SubmitArticle(ctx, title, urls, urls[0])
	if err != nil {
		return err
	}
	logger.Info("article published", logging.String("article_id", articleID))
	return nil
}

// disposeCompressed runs only after a compression pass: it either saves the
// re-encoded images next to the final archive or discards them so staging
// teardown has less to do.
func (p *Pipeline) disposeCompressed(logger *slog.Logger, processedDir, cleanName string) {
	if p.cfg.Images.KeepCompressed {
		destDir := filepath.Join(p.cfg.Paths.OutputDir, cleanName+"_compressed")
		saved, err := imaging.SaveCompressed(processedDir, destDir)
		if err != nil {
			logger.Warn("compressed images not fully saved", logging.Error(err))
		}
		if saved > 0 {
			logger.Info("compressed images saved",
				logging.Int("count", saved),
				logging.String("dir", destDir),
			)
		}
		return
	}

	removed, err := imaging.DiscardCompressed(processedDir)
	if err != nil {
		logger.Warn("compressed images not fully removed", logging.Error(err))
	}
	if removed > 0 {
		logger.Debug("compressed images discarded", logging.Int("count", removed))
	}
}

func (p *Pipeline) disposeSource(logger *slog.Logger, job *queue.Job) {
	if !p.cfg.Cleanup.DeleteSourceFiles {
		logger.Info("source archive kept", logging.String("source", filepath.Base(job.SourcePath)))
		return
	}
	if err := os.Remove(job.SourcePath); err != nil {
		logger.Warn("source archive not deleted", logging.Error(err))
		return
	}
	logger.Info("source archive deleted", logging.String("source", filepath.Base(job.SourcePath)))
}
