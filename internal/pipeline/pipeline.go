package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"repack/internal/config"
	"repack/internal/deps"
	"repack/internal/imaging"
	"repack/internal/logging"
	"repack/internal/notifications"
	"repack/internal/queue"
	"repack/internal/services/contentapi"
	"repack/internal/services/ffmpeg"
	"repack/internal/services/sevenzip"
)

// Archiver drives the 7-Zip binary for extraction and final packaging.
type Archiver interface {
	Extract(ctx context.Context, archivePath, destDir string, passwords []string, originalName string) error
	Create(ctx context.Context, sourceDir, outputPath, password string, recipe sevenzip.Recipe) error
}

// ImageCompressor re-encodes staged images in place.
type ImageCompressor interface {
	Compress(ctx context.Context, dir string) (imaging.Result, error)
}

// Publisher covers the content-API operations a job may perform.
type Publisher interface {
	EnsureLogin(ctx context.Context) error
	FetchCategories(ctx context.Context) ([]contentapi.Category, error)
	UploadImages(ctx context.Context, dir string) ([]string, error)
	SubmitArticle(ctx context.Context, title string, imageURLs []string, cover string) (string, error)
}

// Pipeline processes sources end to end and records each run in the store.
type Pipeline struct {
	cfg        *config.Config
	store      *queue.Store
	notifier   notifications.Service
	logger     *slog.Logger
	archiver   Archiver
	compressor ImageCompressor
	publisher  Publisher
	recipe     sevenzip.Recipe
}

// Option overrides a pipeline dependency, primarily for tests.
type Option func(*Pipeline)

// WithArchiver substitutes the extraction/packaging client.
func WithArchiver(archiver Archiver) Option {
	return func(p *Pipeline) { p.archiver = archiver }
}

// WithImageCompressor substitutes the image re-encoding pass.
func WithImageCompressor(compressor ImageCompressor) Option {
	return func(p *Pipeline) { p.compressor = compressor }
}

// WithPublisher substitutes the content-API client.
func WithPublisher(publisher Publisher) Option {
	return func(p *Pipeline) { p.publisher = publisher }
}

// WithNotifier substitutes the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) { p.notifier = notifier }
}

// New builds a pipeline from configuration. Dependencies not overridden by
// options are constructed for real: the 7-Zip client always, the image
// compressor when image re-encoding is enabled, and the content-API client
// when login is not skipped and at least one API operation is enabled.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires a config")
	}
	if store == nil {
		return nil, errors.New("pipeline requires a queue store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		recipe: sevenzip.RecipeFromConfig(cfg),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.notifier == nil {
		p.notifier = notifications.NewService(cfg)
	}
	if p.archiver == nil {
		client, err := sevenzip.New(deps.Resolve(cfg.Paths.ToolsDir, cfg.SevenZipBinary()), cfg)
		if err != nil {
			return nil, err
		}
		p.archiver = client
	}
	if p.compressor == nil && cfg.Images.Enabled {
		encoder, err := ffmpeg.New(deps.Resolve(cfg.Paths.ToolsDir, cfg.FFmpegBinary()), cfg)
		if err != nil {
			return nil, err
		}
		compressor, err := imaging.NewCompressor(encoder, ffmpeg.OptionsFromConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		p.compressor = compressor
	}
	if p.publisher == nil && apiEnabled(cfg) {
		client, err := contentapi.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		p.publisher = client
	}

	return p, nil
}

func apiEnabled(cfg *config.Config) bool {
	return !cfg.API.SkipLogin && (cfg.API.EnableUpload || cfg.API.EnablePublish)
}

func (p *Pipeline) retryDelay() time.Duration {
	return time.Duration(p.cfg.Cleanup.BackgroundRetryDelay) * time.Second
}
