package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"repack/internal/config"
)

// FormatWebP and FormatAVIF are the supported encode targets.
const (
	FormatWebP = "webp"
	FormatAVIF = "avif"
)

// EncodeOptions controls a single image re-encode.
type EncodeOptions struct {
	Format    string
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// OptionsFromConfig maps the images config section onto EncodeOptions.
func OptionsFromConfig(cfg *config.Config) EncodeOptions {
	return EncodeOptions{
		Format:    cfg.Images.Format,
		Quality:   cfg.Images.Quality,
		MaxWidth:  cfg.Images.MaxWidth,
		MaxHeight: cfg.Images.MaxHeight,
	}
}

// ExecResult carries the outcome of one binary invocation. A non-zero
// ExitCode is a normal outcome, not an executor error.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs the external binary. Tests substitute their own to avoid
// spawning real processes.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (ExecResult, error)
}

// Option adjusts a Client during construction.
type Option func(*Client)

// WithExecutor swaps the process runner, which tests use to script
// tool behavior.
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps FFmpeg CLI interactions.
type Client struct {
	binary        string
	encodeTimeout time.Duration
	exec          Executor
}

// New constructs an FFmpeg client using the resolved binary path and the
// encode timeout from cfg.
func New(binary string, cfg *config.Config, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	client := &Client{
		binary:        binary,
		encodeTimeout: time.Duration(cfg.Images.EncodeTimeout) * time.Second,
		exec:          processRunner{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// EncodeImage re-encodes inputPath into outputPath. Success requires exit
// 0 and a non-empty output file; on any failure the partial output is
// removed and the source file is left untouched.
func (c *Client) EncodeImage(ctx context.Context, inputPath, outputPath string, opts EncodeOptions) error {
	if strings.TrimSpace(inputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}

	args, err := buildEncodeArgs(inputPath, outputPath, opts)
	if err != nil {
		return err
	}

	runCtx := ctx
	if c.encodeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.encodeTimeout)
		defer cancel()
	}

	res, runErr := c.exec.Run(runCtx, c.binary, args)
	if runErr == nil && res.ExitCode == 0 && fileNonEmpty(outputPath) {
		return nil
	}

	if removeErr := os.Remove(outputPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return fmt.Errorf("remove partial output %s: %w", filepath.Base(outputPath), removeErr)
	}
	if runErr != nil {
		return fmt.Errorf("encode image: %w", runErr)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("encode image: ffmpeg exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	return fmt.Errorf("encode image: no output produced for %s", filepath.Base(inputPath))
}

func buildEncodeArgs(inputPath, outputPath string, opts EncodeOptions) ([]string, error) {
	scale := fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
		opts.MaxWidth, opts.MaxHeight)
	args := []string{"-i", inputPath, "-vf", scale}

	switch strings.ToLower(opts.Format) {
	case FormatWebP:
		args = append(args, "-q:v", strconv.Itoa(opts.Quality), "-compression_level", "6")
	case FormatAVIF:
		// libaom takes crf 0-63 with lower meaning better; map the 0-100
		// quality scale onto it inverted.
		crf := (100 - opts.Quality) * 63 / 100
		args = append(args,
			"-c:v", "libaom-av1",
			"-crf", strconv.Itoa(crf),
			"-cpu-used", "8",
			"-row-mt", "1",
		)
	default:
		return nil, fmt.Errorf("unsupported image format %q", opts.Format)
	}

	return append(args, "-y", outputPath), nil
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

type processRunner struct{}

func (processRunner) Run(ctx context.Context, binary string, args []string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
