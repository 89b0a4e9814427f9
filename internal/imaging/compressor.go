package imaging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"repack/internal/logging"
	"repack/internal/services/ffmpeg"
)

// compressibleExtensions lists the source formats handed to the encoder.
// WebP files are left alone so a second pass never re-encodes its own
// output, and GIFs are skipped to preserve animation.
var compressibleExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// Encoder re-encodes a single image file.
type Encoder interface {
	EncodeImage(ctx context.Context, inputPath, outputPath string, opts ffmpeg.EncodeOptions) error
}

// Result summarizes one compression pass over a staging directory.
type Result struct {
	Compressed  int
	Failed      int
	SkippedGIFs int
}

// Compressor re-encodes every eligible image under a directory, replacing
// each source file with its encoded counterpart on success.
type Compressor struct {
	encoder Encoder
	opts    ffmpeg.EncodeOptions
	logger  *slog.Logger
}

// NewCompressor constructs a compressor around the provided encoder.
func NewCompressor(encoder Encoder, opts ffmpeg.EncodeOptions, logger *slog.Logger) (*Compressor, error) {
	if encoder == nil {
		return nil, errors.New("encoder required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compressor{encoder: encoder, opts: opts, logger: logger}, nil
}

// Compress walks dir and re-encodes every compressible image in place.
// Individual encode failures keep the source file and are counted rather
// than aborting the pass; only a scan failure or context cancellation
// stops it early.
func (c *Compressor) Compress(ctx context.Context, dir string) (Result, error) {
	var result Result
	var sources []string

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".gif" {
			result.SkippedGIFs++
			return nil
		}
		if compressibleExtensions[ext] {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan images: %w", err)
	}

	targetExt := "." + strings.ToLower(c.opts.Format)
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		target := strings.TrimSuffix(source, filepath.Ext(source)) + targetExt
		if err := c.encoder.EncodeImage(ctx, source, target, c.opts); err != nil {
			result.Failed++
			c.logger.Warn("image encode failed",
				logging.String("file", filepath.Base(source)),
				logging.Error(err),
			)
			continue
		}
		if err := os.Remove(source); err != nil {
			result.Failed++
			c.logger.Warn("encoded source not removed",
				logging.String("file", filepath.Base(source)),
				logging.Error(err),
			)
			continue
		}
		result.Compressed++
	}

	c.logger.Info("image compression finished",
		logging.String("dir", filepath.Base(dir)),
		logging.Int("compressed", result.Compressed),
		logging.Int("failed", result.Failed),
		logging.Int("skipped_gifs", result.SkippedGIFs),
	)
	return result, nil
}
