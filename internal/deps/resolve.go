package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolve returns the command to invoke for the named tool. A bundled copy
// under toolsDir wins over one sitting next to the repack executable, which
// wins over PATH. When nothing is found the bare name comes back so the
// failure surfaces at invocation with the tool name intact.
//
// The tools directory accepts the common distribution layouts:
//
//	<toolsDir>/<name>/bin/<name>   (ffmpeg release archives)
//	<toolsDir>/<name>/<name>       (7-Zip archives)
//	<toolsDir>/<name>              (flat)
func Resolve(toolsDir, name string) string {
	exe := executableName(name)
	if dir := strings.TrimSpace(toolsDir); dir != "" {
		for _, candidate := range []string{
			filepath.Join(dir, name, "bin", exe),
			filepath.Join(dir, name, exe),
			filepath.Join(dir, exe),
		} {
			if isExecutable(candidate) {
				return candidate
			}
		}
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), exe)
		if isExecutable(candidate) {
			return candidate
		}
	}
	if resolved, err := exec.LookPath(exe); err == nil {
		return resolved
	}
	return exe
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
