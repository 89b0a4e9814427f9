package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"repack/internal/testsupport"
)

func TestCleanupRemovesTrackedDirectoriesOnce(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	extract, err := manager.Allocate(KindExtract)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	final, err := manager.Allocate(KindFinal)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	testsupport.WriteTree(t, extract, "a.jpg", "deep/nested/b.jpg")
	manager.Track(extract) // duplicate on purpose

	result := manager.Cleanup()
	if len(result.Cleaned) != 2 {
		t.Fatalf("Cleaned = %v, want both staging directories exactly once", result.Cleaned)
	}
	if len(result.Failed) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected failures or skips: %+v", result)
	}
	for _, dir := range []string{extract, final} {
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("directory %s survived cleanup, stat err = %v", dir, err)
		}
	}

	second := manager.Cleanup()
	if len(second.Cleaned)+len(second.Failed)+len(second.Skipped) != 0 {
		t.Fatalf("second cleanup should be a no-op, got %+v", second)
	}
}

func TestCleanupSkipsMissingDirectories(t *testing.T) {
	manager, err := NewManager(t.TempDir(), time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "never-created")
	manager.Track(missing)

	result := manager.Cleanup()
	if len(result.Skipped) != 1 || result.Skipped[0] != missing {
		t.Fatalf("Skipped = %v, want [%s]", result.Skipped, missing)
	}
	if len(result.Cleaned) != 0 || len(result.Failed) != 0 {
		t.Fatalf("unexpected cleaned or failed entries: %+v", result)
	}
}

func TestRemoveChmodWalkDeletesReadOnlyTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stubborn")
	testsupport.WriteTree(t, dir, "a/b/c.txt", "a/d.txt")
	if err := os.Chmod(filepath.Join(dir, "a", "b", "c.txt"), 0o444); err != nil {
		t.Fatal(err)
	}

	removeChmodWalk(dir)
	if pathExists(dir) {
		t.Fatal("directory survived chmod walk")
	}
}

func TestRemoveFilesLeavesDirectorySkeleton(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skeleton")
	testsupport.WriteTree(t, dir, "top.txt", "a/b/deep.txt")

	removeFiles(dir)
	for _, rel := range []string{"top.txt", "a/b/deep.txt"} {
		if pathExists(filepath.Join(dir, filepath.FromSlash(rel))) {
			t.Errorf("file %s survived", rel)
		}
	}
	for _, rel := range []string{"", "a", "a/b"} {
		if !pathExists(filepath.Join(dir, filepath.FromSlash(rel))) {
			t.Errorf("directory %q should remain", rel)
		}
	}
}

func TestCleanStaleHonorsMarkerAndAge(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)

	stale := filepath.Join(root, "extract_1_1")
	testsupport.WriteTree(t, stale, "leftover.jpg")
	Mark(stale)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(root, "final_2_2")
	testsupport.WriteTree(t, fresh, "busy.jpg")
	Mark(fresh)

	foreign := filepath.Join(root, "someone-elses-data")
	testsupport.WriteTree(t, foreign, "keep.dat")
	if err := os.Chtimes(foreign, old, old); err != nil {
		t.Fatal(err)
	}

	result := CleanStale(root, DefaultStaleAge, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("Removed = %v, want [%s]", result.Removed, stale)
	}
	if pathExists(stale) {
		t.Error("stale directory survived sweep")
	}
	if !pathExists(fresh) {
		t.Error("fresh directory removed by sweep")
	}
	if !pathExists(foreign) {
		t.Error("unmarked directory removed by sweep")
	}
}

func TestCleanStaleMissingRootIsQuiet(t *testing.T) {
	result := CleanStale(filepath.Join(t.TempDir(), "absent"), time.Hour, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestListStagingReportsMarkedDirectories(t *testing.T) {
	root := t.TempDir()

	marked := filepath.Join(root, "final_3_3")
	testsupport.WriteFile(t, filepath.Join(marked, "payload.bin"), 100)
	Mark(marked)

	foreign := filepath.Join(root, "other")
	testsupport.WriteFile(t, filepath.Join(foreign, "data.bin"), 100)

	dirs, err := ListStaging(root)
	if err != nil {
		t.Fatalf("ListStaging: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("got %d directories, want 1", len(dirs))
	}
	if dirs[0].Name != "final_3_3" {
		t.Errorf("Name = %q, want final_3_3", dirs[0].Name)
	}
	if dirs[0].Size < 100 {
		t.Errorf("Size = %d, want at least the payload size", dirs[0].Size)
	}
}

func TestListStagingMissingRoot(t *testing.T) {
	dirs, err := ListStaging(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("ListStaging: %v", err)
	}
	if dirs != nil {
		t.Fatalf("expected nil, got %v", dirs)
	}
}
