// Package deps resolves and checks the external tools repack shells out to.
// A bundled copy under the configured tools directory always wins over a
// system-wide install so a portable deployment can ship its own binaries.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"repack/internal/config"
)

// Requirement defines an external tool repack relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the tool list for the given config with each command
// already resolved. FFmpeg is only required while image re-encoding is
// enabled.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "7-Zip",
			Command:     Resolve(cfg.Paths.ToolsDir, cfg.SevenZipBinary()),
			Description: "archive extraction and repackaging",
		},
		{
			Name:        "FFmpeg",
			Command:     Resolve(cfg.Paths.ToolsDir, cfg.FFmpegBinary()),
			Description: "image re-encoding",
			Optional:    !cfg.Images.Enabled,
		},
	}
}

// CheckBinaries probes every requirement and returns one Status per entry,
// in the same order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = check(req)
	}
	return results
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "no command configured"
		return status
	}
	if _, err := exec.LookPath(status.Command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	return status
}
