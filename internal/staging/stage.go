package staging

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"repack/internal/fileutil"
	"repack/internal/logging"
	"repack/internal/naming"
	"repack/internal/services"
)

// ErrNoContent reports that an extraction finished without producing any
// files to stage.
var ErrNoContent = fmt.Errorf("%w: extraction produced no files", services.ErrValidation)

// Junk dropped from staged content before sequencing.
var (
	unwantedExtensions = map[string]struct{}{
		".html": {}, ".htm": {}, ".txt": {}, ".url": {}, ".lnk": {}, ".nfo": {}, ".diz": {},
	}
	unwantedNames = map[string]struct{}{
		"ewm": {}, "thumbs.db": {}, ".ds_store": {},
	}
)

// Media classes used for sequencing and title statistics. GIFs sequence as
// images even though the re-encoding pass skips them.
var (
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".tiff": {},
	}
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".flv": {}, ".wmv": {}, ".3gp": {}, ".m4v": {},
	}
)

// Stage moves extracted content into targetDir. A lone top-level directory
// is collapsed so the staged tree starts at the content itself; a lone
// file or multiple entries move in as-is. The staging marker never counts
// as content and stays behind for the cleanup sweep.
func Stage(extractedRoot, targetDir string) error {
	entries, err := os.ReadDir(extractedRoot)
	if err != nil {
		return fmt.Errorf("read extracted content: %w", err)
	}
	var content []os.DirEntry
	for _, entry := range entries {
		if entry.Name() == MarkerName {
			continue
		}
		content = append(content, entry)
	}
	if len(content) == 0 {
		return ErrNoContent
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create staging target: %w", err)
	}

	if len(content) == 1 && content[0].IsDir() {
		// Collapse the wrapper directory most archives carry.
		wrapper := filepath.Join(extractedRoot, content[0].Name())
		children, err := os.ReadDir(wrapper)
		if err != nil {
			return fmt.Errorf("read wrapper directory: %w", err)
		}
		for _, child := range children {
			if err := moveEntry(filepath.Join(wrapper, child.Name()), filepath.Join(targetDir, child.Name()), child.IsDir()); err != nil {
				return err
			}
		}
		return nil
	}

	for _, entry := range content {
		if err := moveEntry(filepath.Join(extractedRoot, entry.Name()), filepath.Join(targetDir, entry.Name()), entry.IsDir()); err != nil {
			return err
		}
	}
	return nil
}

func moveEntry(src, dst string, isDir bool) error {
	move := fileutil.MoveFile
	if isDir {
		move = fileutil.MoveTree
	}
	if err := move(src, dst); err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(src), err)
	}
	return nil
}

// CleanUnwanted removes junk files from the staged tree and returns how
// many were dropped. Individual deletions that fail are logged and
// skipped; the tree gets packaged either way.
func CleanUnwanted(dir string, logger *slog.Logger) int {
	if logger == nil {
		logger = logging.NewNop()
	}
	removed := 0
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if !isUnwanted(strings.ToLower(entry.Name())) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			logger.Warn("junk file not removed", logging.String("file", entry.Name()), logging.Error(rmErr))
			return nil
		}
		removed++
		logger.Debug("removed junk file", logging.String("file", entry.Name()))
		return nil
	})
	return removed
}

func isUnwanted(lowerName string) bool {
	if _, ok := unwantedExtensions[filepath.Ext(lowerName)]; ok {
		return true
	}
	if strings.HasPrefix(lowerName, "ewm") {
		return true
	}
	_, ok := unwantedNames[lowerName]
	return ok
}

// MediaCount reports how many files RenameMedia classified as images and
// videos.
type MediaCount struct {
	Images int
	Videos int
}

// RenameMedia renames image and video files in place to sequential
// zero-padded names under the given prefixes. The whole tree is walked in
// natural order so img2 sequences before img10, and counters run globally
// across subdirectories. Files of other types keep their names. A rename
// that fails is logged and skipped; its index is not reused.
func RenameMedia(dir, imagePrefix, videoPrefix string, logger *slog.Logger) (MediaCount, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return MediaCount{}, fmt.Errorf("scan staged files: %w", err)
	}
	naming.SortNatural(files)

	var count MediaCount
	for _, path := range files {
		ext := strings.ToLower(filepath.Ext(path))
		var newName string
		switch {
		case isImageExt(ext):
			count.Images++
			newName = fmt.Sprintf("%s%03d%s", imagePrefix, count.Images, ext)
		case isVideoExt(ext):
			count.Videos++
			newName = fmt.Sprintf("%s%03d%s", videoPrefix, count.Videos, ext)
		default:
			continue
		}
		newPath := filepath.Join(filepath.Dir(path), newName)
		if newPath == path {
			continue
		}
		if err := os.Rename(path, newPath); err != nil {
			logger.Warn("media file not renamed",
				logging.String("from", filepath.Base(path)),
				logging.String("to", newName),
				logging.Error(err),
			)
		}
	}
	return count, nil
}

// MediaStats summarizes staged content for the published title.
type MediaStats struct {
	Images     int
	Videos     int
	TotalBytes int64
}

// CollectStats walks the staged tree and counts images, videos, and the
// total payload size.
func CollectStats(dir string) (MediaStats, error) {
	var stats MediaStats
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		stats.TotalBytes += info.Size()
		switch ext := strings.ToLower(filepath.Ext(path)); {
		case isImageExt(ext):
			stats.Images++
		case isVideoExt(ext):
			stats.Videos++
		}
		return nil
	})
	if err != nil {
		return MediaStats{}, fmt.Errorf("collect media stats: %w", err)
	}
	return stats, nil
}

func isImageExt(ext string) bool { _, ok := imageExtensions[ext]; return ok }
func isVideoExt(ext string) bool { _, ok := videoExtensions[ext]; return ok }
