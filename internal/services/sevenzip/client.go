package sevenzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"repack/internal/config"
)

// listTimeout bounds archive listings, which should return quickly even
// for large archives.
const listTimeout = 30 * time.Second

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

// Client wraps 7-Zip CLI interactions.
type Client struct {
	binary            string
	noPasswordTimeout time.Duration
	passwordTimeout   time.Duration
	createTimeout     time.Duration
	exec              Executor
}

// New constructs a 7-Zip client using the resolved binary path and the
// timeout settings from cfg.
func New(binary string, cfg *config.Config, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("7-zip binary required")
	}
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	client := &Client{
		binary:            binary,
		noPasswordTimeout: time.Duration(cfg.Extraction.NoPasswordTimeout) * time.Second,
		passwordTimeout:   time.Duration(cfg.Extraction.PasswordTimeout) * time.Second,
		createTimeout:     time.Duration(cfg.Archive.CreateTimeout) * time.Second,
		exec:              processRunner{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extract unpacks archivePath into destDir, probing password candidates in
// order: the configured list, the archive's own name with and without
// extension, the empty password, and a common fallback. destDir is
// recreated empty first and cleared again before every candidate so a
// failed attempt cannot leak partial output into a later success. Only
// exhausting every candidate is an error.
func (c *Client) Extract(ctx context.Context, archivePath, destDir string, passwords []string, originalName string) error {
	if strings.TrimSpace(archivePath) == "" {
		return errors.New("archive path required")
	}
	if strings.TrimSpace(destDir) == "" {
		return errors.New("destination directory required")
	}

	if err := os.RemoveAll(destDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("prepare destination: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	// Most archives are not protected; try without a password first so
	// the common case skips the candidate scan.
	if c.tryExtract(ctx, archivePath, destDir, nil, c.noPasswordTimeout) {
		return nil
	}

	candidates := buildCandidates(passwords, originalName)
	for _, password := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := clearDir(destDir); err != nil {
			return fmt.Errorf("clear destination: %w", err)
		}
		if c.tryExtract(ctx, archivePath, destDir, &password, c.passwordTimeout) {
			return nil
		}
	}
	return fmt.Errorf("extract %s: no password candidate succeeded (%d tried)", filepath.Base(archivePath), len(candidates))
}

// tryExtract runs one extraction attempt. A nil password omits the -p flag
// entirely; an empty password passes a bare -p. Success requires exit 0
// and at least one extracted file.
func (c *Client) tryExtract(ctx context.Context, archivePath, destDir string, password *string, timeout time.Duration) bool {
	args := []string{"x", archivePath, "-o" + destDir}
	if password != nil {
		args = append(args, "-p"+*password)
	}
	args = append(args, "-y")

	res, err := c.run(ctx, args, timeout)
	if err != nil || res.ExitCode != 0 {
		return false
	}
	count, err := countFiles(destDir)
	return err == nil && count > 0
}

// Create builds an archive from sourceDir's contents at outputPath. For
// FormatZstdWrapped an intermediate .7z is produced first, wrapped with
// zstd, and deleted afterwards on both success and failure. Success
// requires exit 0 and a non-empty output file.
func (c *Client) Create(ctx context.Context, sourceDir, outputPath, password string, recipe Recipe) error {
	if strings.TrimSpace(sourceDir) == "" {
		return errors.New("source directory required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	if err := recipe.validate(); err != nil {
		return err
	}
	if recipe.Format == FormatZstdWrapped {
		return c.createWrapped(ctx, sourceDir, outputPath, password, recipe)
	}
	return c.createStandard(ctx, sourceDir, outputPath, password, recipe)
}

func (c *Client) createStandard(ctx context.Context, sourceDir, outputPath, password string, recipe Recipe) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := []string{"a", "-t" + string(recipe.Format)}
	switch recipe.Format {
	case FormatSevenZ:
		args = append(args, "-m0=lzma2", fmt.Sprintf("-mx=%d", recipe.Level), "-md="+recipe.DictionarySize)
		if recipe.Solid {
			args = append(args, "-ms=on")
		}
		args = append(args, fmt.Sprintf("-mfb=%d", fastBytes(recipe.Level)))
	case FormatZip:
		args = append(args, "-m0=deflate", fmt.Sprintf("-mx=%d", recipe.Level))
	}
	if password != "" {
		args = append(args, "-p"+password)
	}
	args = append(args, outputPath, filepath.Join(sourceDir, "*"))

	res, err := c.run(ctx, args, c.createTimeout)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("create archive: 7z exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	if !fileNonEmpty(outputPath) {
		return fmt.Errorf("archive %s missing or empty after create", filepath.Base(outputPath))
	}
	return nil
}

func (c *Client) createWrapped(ctx context.Context, sourceDir, outputPath, password string, recipe Recipe) error {
	inner := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".7z"
	if inner == outputPath {
		return fmt.Errorf("intermediate archive name collides with output %s", filepath.Base(outputPath))
	}

	innerRecipe := recipe
	innerRecipe.Format = FormatSevenZ
	if err := c.createStandard(ctx, sourceDir, inner, password, innerRecipe); err != nil {
		return fmt.Errorf("inner archive: %w", err)
	}

	args := []string{"a", "-tzstd", fmt.Sprintf("-mx=%d", recipe.Level), outputPath, inner}
	res, err := c.run(ctx, args, c.createTimeout)
	wrapped := err == nil && res.ExitCode == 0 && fileNonEmpty(outputPath)

	// The intermediate is deleted on both outcomes; a leftover costs disk
	// but never correctness.
	_ = os.Remove(inner)

	if !wrapped {
		if err != nil {
			return fmt.Errorf("zstd wrap: %w", err)
		}
		return fmt.Errorf("zstd wrap: 7z exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	return nil
}

func (c *Client) run(ctx context.Context, args []string, timeout time.Duration) (ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.exec.Run(runCtx, c.binary, args)
}

func buildCandidates(passwords []string, originalName string) []string {
	candidates := append([]string(nil), passwords...)
	if originalName != "" {
		base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
		candidates = append(candidates, originalName, base)
	}
	return append(candidates, "", "123")
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func countFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
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
