// Package preflight verifies the runtime environment before jobs run:
// directory access, free disk space, external tools, and the publishing
// backend. Checks degrade to informative failures rather than errors so
// status output can show everything at once.
package preflight

import (
	"context"

	"repack/internal/config"
	"repack/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir))
	if cfg.Watch.Dir != "" {
		results = append(results, CheckDirectoryAccess("Watch directory", cfg.Watch.Dir))
	}

	results = append(results, CheckFreeSpace("Temp free space", cfg.Paths.TempDir, MinTempFreeBytes))

	if !cfg.API.SkipLogin && (cfg.API.EnableUpload || cfg.API.EnablePublish) {
		results = append(results, CheckContentAPI(ctx, cfg))
	}

	return results
}

// CheckTools reports the availability of the external binaries the current
// config needs.
func CheckTools(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// RequiredToolsAvailable reports whether every non-optional tool resolved.
func RequiredToolsAvailable(statuses []deps.Status) bool {
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			return false
		}
	}
	return true
}

// AllPassed reports whether every check in results passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
