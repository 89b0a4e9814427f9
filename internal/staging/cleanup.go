package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"repack/internal/fileutil"
	"repack/internal/logging"
)

// DefaultStaleAge bounds how long an abandoned staging directory survives
// before a sweep removes it.
const DefaultStaleAge = 24 * time.Hour

// CleanupResult summarizes a teardown pass over tracked directories.
type CleanupResult struct {
	Cleaned []string
	Failed  []string
	Skipped []string
}

// Cleanup removes every tracked directory, deduplicated, and resets the
// tracked set so a second call is a no-op. Directories that survive every
// removal strategy are recorded as failed and handed to a background pass
// that waits briefly and tries once more.
func (m *Manager) Cleanup() CleanupResult {
	m.mu.Lock()
	dirs := m.dirs
	m.dirs = nil
	m.mu.Unlock()

	var result CleanupResult
	seen := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}

		if !pathExists(dir) {
			result.Skipped = append(result.Skipped, dir)
			continue
		}
		if removeDir(dir) {
			result.Cleaned = append(result.Cleaned, dir)
			m.logger.Debug("removed staging directory", logging.String("path", dir))
		} else {
			result.Failed = append(result.Failed, dir)
			m.logger.Warn("staging directory not removed", logging.String("path", dir))
		}
	}

	if len(result.Cleaned) > 0 || len(result.Failed) > 0 {
		m.logger.Info("staging cleanup finished",
			logging.Int("cleaned", len(result.Cleaned)),
			logging.Int("failed", len(result.Failed)),
			logging.Int("skipped", len(result.Skipped)),
		)
	}
	if len(result.Failed) > 0 {
		m.retryLater(result.Failed)
	}
	return result
}

// retryLater re-runs removal once in the background after a short delay,
// logging only. Whatever held the directory open gets a chance to let go.
func (m *Manager) retryLater(dirs []string) {
	logger := m.logger
	delay := m.retryDelay
	go func() {
		time.Sleep(delay)
		for _, dir := range dirs {
			if !pathExists(dir) {
				continue
			}
			if removeDir(dir) {
				logger.Info("removed staging directory on retry", logging.String("path", dir))
			} else {
				logger.Warn("staging directory survived retry", logging.String("path", dir))
			}
		}
	}()
}

// removeDir escalates through removal strategies until the directory is
// gone. Strategies are best-effort; only the existence check decides.
func removeDir(dir string) bool {
	for _, strategy := range []func(string){removeAll, removeChmodWalk, removeFiles, removeForced} {
		strategy(dir)
		if !pathExists(dir) {
			return true
		}
	}
	return false
}

func removeAll(dir string) {
	_ = os.RemoveAll(dir)
}

// removeChmodWalk deletes post-order, clearing restrictive permissions on
// each entry first. The reverse of a pre-order walk visits children before
// their parents.
func removeChmodWalk(dir string) {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, _ fs.DirEntry, _ error) error {
		paths = append(paths, path)
		return nil
	})
	for i := len(paths) - 1; i >= 0; i-- {
		_ = os.Chmod(paths[i], 0o777)
		_ = os.Remove(paths[i])
	}
}

// removeFiles unlinks whatever files it can reach, leaving directory
// skeletons for the next strategy.
func removeFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		_ = os.Remove(path)
		return nil
	})
}

// removeForced shells out to rd on Windows, which can delete paths that
// block the syscall-level approaches. Elsewhere it is a no-op.
func removeForced(dir string) {
	if runtime.GOOS != "windows" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "cmd", "/c", "rd", "/s", "/q", dir).Run()
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CleanStaleResult reports the outcome of a stale sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory with the error that kept it around.
type CleanupError struct {
	Path string
	Err  error
}

// CleanStale removes marked staging directories under tempRoot whose
// modification time is older than maxAge. Directories without the marker
// are foreign and never touched.
func CleanStale(tempRoot string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	if logger == nil {
		logger = logging.NewNop()
	}
	var result CleanStaleResult

	tempRoot = strings.TrimSpace(tempRoot)
	if tempRoot == "" {
		return result
	}
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: tempRoot, Err: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(tempRoot, entry.Name())
		if !hasMarker(dirPath) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if removeDir(dirPath) {
			result.Removed = append(result.Removed, dirPath)
			logger.Info("removed stale staging directory",
				logging.String("path", dirPath),
				logging.Duration("age", time.Since(info.ModTime())),
			)
		} else {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Err: errors.New("directory survived removal attempts")})
			logger.Warn("stale staging directory not removed", logging.String("path", dirPath))
		}
	}
	return result
}

// DirInfo describes one staging directory for status display.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListStaging returns the marked staging directories under tempRoot with
// their recursive content sizes.
func ListStaging(tempRoot string) ([]DirInfo, error) {
	tempRoot = strings.TrimSpace(tempRoot)
	if tempRoot == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(tempRoot, entry.Name())
		if !hasMarker(dirPath) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size, _ := fileutil.DirSize(dirPath)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}
	return dirs, nil
}
