package testsupport

import (
	"context"
	"testing"

	"repack/internal/config"
	"repack/internal/queue"
)

// MustOpenStore opens the job store backing cfg and closes it when the test
// ends.
func MustOpenStore(tb testing.TB, cfg *config.Config) *queue.Store {
	tb.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		tb.Fatalf("open store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// NewJob enqueues a pending job for sourcePath.
func NewJob(tb testing.TB, store *queue.Store, sourcePath string, kind queue.Kind) *queue.Job {
	tb.Helper()

	job, err := store.NewJob(context.Background(), sourcePath, kind)
	if err != nil {
		tb.Fatalf("enqueue %s: %v", sourcePath, err)
	}
	return job
}
