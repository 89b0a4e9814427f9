package imaging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"repack/internal/fileutil"
)

// compressedImageExtensions covers the files a compression pass leaves
// behind: encoded outputs plus any source that failed to encode. GIFs are
// excluded since the pass never touches them.
var compressedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".avif": true,
	".bmp":  true,
	".tiff": true,
}

// DiscardCompressed deletes the re-encoded images under dir once they are
// no longer needed. Individual delete failures are collected rather than
// stopping the sweep.
func DiscardCompressed(dir string) (int, error) {
	removed := 0
	var failures []error

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() || !compressedImageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			failures = append(failures, fmt.Errorf("remove %s: %w", filepath.Base(path), err))
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("scan compressed images: %w", err)
	}
	return removed, errors.Join(failures...)
}

// SaveCompressed copies the re-encoded images under dir into destDir as a
// flat directory, creating it if needed. Files sharing a base name
// overwrite each other; the last one walked wins.
func SaveCompressed(dir, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create save directory: %w", err)
	}

	saved := 0
	var failures []error

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() || !compressedImageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		target := filepath.Join(destDir, filepath.Base(path))
		if err := fileutil.CopyFile(path, target); err != nil {
			failures = append(failures, fmt.Errorf("save %s: %w", filepath.Base(path), err))
			return nil
		}
		saved++
		return nil
	})
	if err != nil {
		return saved, fmt.Errorf("scan compressed images: %w", err)
	}
	return saved, errors.Join(failures...)
}
