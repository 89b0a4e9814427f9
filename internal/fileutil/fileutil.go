package fileutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// CopyFile copies src to dst with 0o644 permissions.
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode copies src to dst, creating dst with the given mode.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// CopyFileVerified copies src to dst, hashing the stream as it is written,
// then re-reads dst and confirms the bytes on disk match what was streamed.
// A failed check removes dst so a torn copy never survives.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	streamHash := sha256.New()
	copied, err := io.Copy(out, io.TeeReader(in, streamHash))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}

	diskHash, diskSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("read back copy: %w", err)
	}
	if diskSize != copied || !bytes.Equal(diskHash, streamHash.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("verify %s: bytes on disk do not match source", filepath.Base(dst))
	}
	return nil
}

// hashFile returns the SHA-256 digest and length of the file at path.
func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}

// MoveFile renames src to dst, falling back to a verified copy plus source
// removal when the rename crosses filesystems. The verified copy matters on
// the fallback path because the source is deleted afterwards.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("move file: %w", err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("copy file across devices: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// MoveTree renames the directory src to dst, falling back to a recursive
// copy plus source removal when the rename crosses filesystems.
func MoveTree(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("move tree: %w", err)
	}
	if err := CopyTree(src, dst); err != nil {
		return fmt.Errorf("copy tree across devices: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}

// CopyTree recursively copies the directory rooted at src into dst,
// creating dst if needed. Regular files are copied, directories recreated,
// and anything else (symlinks, devices) is skipped.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("copy tree: %s is not a directory", src)
	}
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// DirSize returns the total size in bytes of all regular files under root.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// WaitForStable polls path until it reports the same non-zero size on
// consecutive checks, then confirms once more before declaring it stable.
// Directories are measured by their recursive content size, so a folder
// still receiving files keeps the wait alive. A path that never settles
// within maxWait is an error.
func WaitForStable(ctx context.Context, path string, maxWait, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(maxWait)
	lastSize := int64(-1)

	for time.Now().Before(deadline) {
		size := pathSize(path)
		if size > 0 && size == lastSize {
			if err := sleepContext(ctx, interval); err != nil {
				return err
			}
			if confirmed := pathSize(path); confirmed == size {
				return nil
			}
			lastSize = pathSize(path)
			continue
		}
		lastSize = size
		if err := sleepContext(ctx, interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("path %s did not stabilize within %s", filepath.Base(path), maxWait)
}

// pathSize reports a file's size or a directory's recursive content size.
// Any stat failure maps to -1 so a vanished path never matches a prior
// observation.
func pathSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	if !info.IsDir() {
		return info.Size()
	}
	size, err := DirSize(path)
	if err != nil {
		return -1
	}
	return size
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
