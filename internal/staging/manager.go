package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"repack/internal/logging"
)

// MarkerName is the file written into every allocated staging directory.
// Stale sweeps only touch directories that carry it, so a temp root shared
// with other programs never loses foreign data.
const MarkerName = ".repack-staging"

// Kind labels a staging directory by the pipeline phase it serves.
type Kind string

const (
	// KindExtract holds raw archive extraction output.
	KindExtract Kind = "extract"
	// KindProcess holds the working copy of a source folder.
	KindProcess Kind = "process"
	// KindFinal holds the staged content tree that gets packaged.
	KindFinal Kind = "final"
)

// Manager tracks the staging directories allocated for one job and removes
// them exactly once when the job finishes.
type Manager struct {
	tempRoot   string
	retryDelay time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	dirs []string
}

// NewManager returns a manager rooted at tempRoot. retryDelay sets how
// long the background pass waits before retrying directories the first
// cleanup could not remove; values <= 0 fall back to two seconds.
func NewManager(tempRoot string, retryDelay time.Duration, logger *slog.Logger) (*Manager, error) {
	tempRoot = strings.TrimSpace(tempRoot)
	if tempRoot == "" {
		return nil, errors.New("staging temp root is required")
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		tempRoot:   tempRoot,
		retryDelay: retryDelay,
		logger:     logging.NewComponentLogger(logger, "staging"),
	}, nil
}

// Allocate creates a staging directory for the given kind, marks it, and
// tracks it for cleanup. Names embed the wall clock and pid so concurrent
// runs sharing a temp root stay apart.
func (m *Manager) Allocate(kind Kind) (string, error) {
	dir := filepath.Join(m.tempRoot, fmt.Sprintf("%s_%d_%d", kind, time.Now().Unix(), os.Getpid()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("allocate %s staging directory: %w", kind, err)
	}
	Mark(dir)
	m.Track(dir)
	m.logger.Debug("allocated staging directory",
		logging.String("kind", string(kind)),
		logging.String("path", dir),
	)
	return dir, nil
}

// Track registers a directory for removal during Cleanup. Duplicates are
// tolerated; Cleanup dedupes.
func (m *Manager) Track(dir string) {
	if strings.TrimSpace(dir) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs = append(m.dirs, dir)
}

// Mark writes the staging marker into dir. Allocate does this on its own;
// callers re-mark a directory whose contents were recreated by a later
// step, such as extraction clearing its destination. Best-effort: an
// unmarked staging directory still works, it just falls outside the stale
// sweep.
func Mark(dir string) {
	content := fmt.Sprintf("repack staging directory, safe to delete\ncreated: %s\n", time.Now().Format(time.RFC3339))
	_ = os.WriteFile(filepath.Join(dir, MarkerName), []byte(content), 0o644)
}

func hasMarker(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerName))
	return err == nil && !info.IsDir()
}
