package testsupport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with size bytes of filler. A size <= 0
// writes a single byte so the file still registers as non-empty.
func WriteFile(tb testing.TB, path string, size int64) {
	tb.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := io.CopyN(f, filler{}, size); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

// filler yields an endless stream of 'B' bytes.
type filler struct{}

func (filler) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'B'
	}
	return len(p), nil
}

// WriteTree creates the named relative paths under root. Entries ending in a
// path separator become directories; everything else becomes a one-byte file.
func WriteTree(tb testing.TB, root string, entries ...string) {
	tb.Helper()

	for _, entry := range entries {
		target := filepath.Join(root, filepath.FromSlash(entry))
		if len(entry) > 0 && entry[len(entry)-1] == '/' {
			if err := os.MkdirAll(target, 0o755); err != nil {
				tb.Fatalf("mkdir %s: %v", target, err)
			}
			continue
		}
		WriteFile(tb, target, 1)
	}
}
