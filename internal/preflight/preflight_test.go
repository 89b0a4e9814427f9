package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repack/internal/testsupport"
)

func stubStatfs(t *testing.T, total, free uint64, err error) {
	t.Helper()
	old := statfs
	statfs = func(string) (uint64, uint64, error) { return total, free, err }
	t.Cleanup(func() { statfs = old })
}

func TestCheckDirectoryAccessOK(t *testing.T) {
	result := CheckDirectoryAccess("output", t.TempDir())
	if !result.Passed {
		t.Fatalf("writable directory should pass, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("output", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("absent directory should fail the check")
	}
	if result.Detail == "" {
		t.Fatal("failure should carry a detail message")
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "drop.7z")
	if err := os.WriteFile(archive, []byte("7z"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("watch", archive)
	if result.Passed {
		t.Fatal("plain file should fail the directory check")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	stubStatfs(t, 100<<30, 50<<30, nil)
	result := CheckFreeSpace("space", "/anywhere", MinTempFreeBytes)
	if !result.Passed {
		t.Fatalf("expected pass with 50 GiB free, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "GiB free") {
		t.Fatalf("detail should report free space, got: %s", result.Detail)
	}
}

func TestCheckFreeSpaceLow(t *testing.T) {
	stubStatfs(t, 100<<30, 10<<20, nil)
	result := CheckFreeSpace("space", "/anywhere", MinTempFreeBytes)
	if result.Passed {
		t.Fatalf("expected failure with 10 MiB free, got: %s", result.Detail)
	}
}

func TestCheckFreeSpaceStatError(t *testing.T) {
	stubStatfs(t, 0, 0, errors.New("boom"))
	result := CheckFreeSpace("space", "/anywhere", MinTempFreeBytes)
	if result.Passed {
		t.Fatal("expected failure when statfs errors")
	}
}

func TestCheckContentAPIReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.API.LoginURL = srv.URL + "/api/v1/user/login"

	result := CheckContentAPI(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("404 should still count as reachable, got: %s", result.Detail)
	}
}

func TestCheckContentAPIUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.API.LoginURL = srv.URL + "/api/v1/user/login"

	result := CheckContentAPI(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure against closed server")
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("nil config should produce no results")
	}
}

func TestRunAllSkipsAPIWhenLoginSkipped(t *testing.T) {
	stubStatfs(t, 100<<30, 50<<30, nil)
	cfg := testsupport.NewConfig(t, testsupport.WithSkipLogin())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	// output + temp + watch directories plus free space
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	for _, result := range results {
		if !result.Passed {
			t.Errorf("check %q failed: %s", result.Name, result.Detail)
		}
	}
	if !AllPassed(results) {
		t.Error("AllPassed should agree with individual results")
	}
}

func TestCheckToolsAndGating(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	statuses := CheckTools(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 tool statuses, got %d", len(statuses))
	}
	if !RequiredToolsAvailable(statuses) {
		t.Fatalf("stubbed binaries should satisfy requirements: %+v", statuses)
	}

	t.Setenv("PATH", "")
	missing := CheckTools(cfg)
	if RequiredToolsAvailable(missing) {
		t.Fatalf("empty PATH should fail required tools: %+v", missing)
	}
}
