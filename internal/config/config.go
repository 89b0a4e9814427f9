package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	TempDir   string `toml:"temp_dir"`
	LogDir    string `toml:"log_dir"`
	ToolsDir  string `toml:"tools_dir"`
}

// Extraction contains settings for archive extraction and password recovery.
type Extraction struct {
	Passwords         []string `toml:"passwords"`
	NoPasswordTimeout int      `toml:"no_password_timeout"`
	PasswordTimeout   int      `toml:"password_timeout"`
}

// Rename contains prefixes applied to staged media files.
type Rename struct {
	ImagePrefix string `toml:"image_prefix"`
	VideoPrefix string `toml:"video_prefix"`
}

// Archive contains settings for the final repackaging step.
type Archive struct {
	Password       string `toml:"password"`
	Format         string `toml:"format"`
	Level          int    `toml:"level"`
	Solid          bool   `toml:"solid"`
	DictionarySize string `toml:"dictionary_size"`
	CreateTimeout  int    `toml:"create_timeout"`
}

// Images contains settings for the image re-encoding pass.
type Images struct {
	Enabled        bool   `toml:"enabled"`
	Format         string `toml:"format"`
	Quality        int    `toml:"quality"`
	MaxWidth       int    `toml:"max_width"`
	MaxHeight      int    `toml:"max_height"`
	EncodeTimeout  int    `toml:"encode_timeout"`
	KeepCompressed bool   `toml:"keep_compressed"`
}

// API contains configuration for the publishing backend.
type API struct {
	LoginURL       string `toml:"login_url"`
	UploadURL      string `toml:"upload_url"`
	ArticleURL     string `toml:"article_url"`
	CategoryURL    string `toml:"category_url"`
	Account        string `toml:"account"`
	Password       string `toml:"password"`
	DeviceID       string `toml:"device_id"`
	Token          string `toml:"token"`
	BatchSize      int    `toml:"batch_size"`
	MaxRetries     int    `toml:"max_retries"`
	RequestTimeout int    `toml:"request_timeout"`
	CategoryID     int    `toml:"category_id"`
	SkipLogin      bool   `toml:"skip_login"`
	EnableUpload   bool   `toml:"enable_upload"`
	EnablePublish  bool   `toml:"enable_publish"`
}

// Notifications selects which pipeline events push to ntfy.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobComplete    bool   `toml:"job_complete"`
	JobFailed      bool   `toml:"job_failed"`
	WatchDrained   bool   `toml:"watch_drained"`
}

// Cleanup contains settings for staging teardown and source disposal.
type Cleanup struct {
	DeleteSourceFiles    bool `toml:"delete_source_files"`
	BackgroundRetryDelay int  `toml:"background_retry_delay"`
}

// Logging controls log output format, verbosity, and retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Watch contains configuration for drop-folder watching.
type Watch struct {
	Dir           string `toml:"dir"`
	PollInterval  int    `toml:"poll_interval"`
	SettleTimeout int    `toml:"settle_timeout"`
}

// Config encapsulates all configuration values for repack, one section per
// subsystem:
//   - Paths: output, temp, log, and optional bundled-tools directories
//   - Extraction: configured password list and per-attempt timeouts
//   - Rename: image/video prefixes used when sequencing staged media
//   - Archive: output format, compression level, and packaging knobs
//   - Images: re-encoding format, quality, bounds, and disposition
//   - API: publishing backend endpoints, credentials, and retry limits
//   - Notifications: which pipeline events push to ntfy
//   - Cleanup: staging teardown behaviour and source file disposal
//   - Logging: output format, verbosity, and retention window
//   - Watch: drop-folder polling configuration
type Config struct {
	Paths         Paths         `toml:"paths"`
	Extraction    Extraction    `toml:"extraction"`
	Rename        Rename        `toml:"rename"`
	Archive       Archive       `toml:"archive"`
	Images        Images        `toml:"images"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Logging       Logging       `toml:"logging"`
	Watch         Watch         `toml:"watch"`
}

// DefaultConfigPath returns where `repack config init` writes by default.
func DefaultConfigPath() (string, error) {
	return expandUser("~/.config/repack/config.toml")
}

// Load reads the configuration file at path (or the first discovered
// location when path is empty), returning the effective config, the resolved
// file path, and whether the file existed. All path fields come back
// expanded and absolute.
func Load(path string) (*Config, string, bool, error) {
	foundPath, exists, err := locateConfigFile(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(foundPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, foundPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// locateConfigFile picks the file to read: an explicit path wins, otherwise
// the default location is probed, then a repack.toml in the working
// directory.
func locateConfigFile(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandUser(path)
		if err != nil {
			return "", false, err
		}
		switch _, statErr := os.Stat(expanded); {
		case statErr == nil:
			return expanded, true, nil
		case errors.Is(statErr, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", statErr)
		}
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("repack.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// The watch directory is created on a best-effort basis so the CLI can run
// when the drop folder lives on storage that is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.TempDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Watch.Dir) != "" {
		_ = os.MkdirAll(c.Watch.Dir, 0o755)
	}
	return nil
}

// SevenZipBinary returns the 7-Zip executable name.
func (c *Config) SevenZipBinary() string {
	return "7z"
}

// FFmpegBinary returns the ffmpeg executable name used for image re-encoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// ArchiveExtension returns the output file extension for the configured
// archive format. The zst format wraps an inner 7z, hence the double suffix.
func (c *Config) ArchiveExtension() string {
	if strings.EqualFold(c.Archive.Format, "zst") {
		return ".7z.zst"
	}
	return "." + strings.ToLower(c.Archive.Format)
}

func expandUser(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") || strings.HasPrefix(pathValue, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimLeft(pathValue[1:], `/\`))
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies tilde expansion and absolutization for callers outside
// this package.
func ExpandPath(pathValue string) (string, error) {
	return expandUser(pathValue)
}

// CreateSample writes the annotated sample config to path, creating parent
// directories as needed.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config to %s: %w", path, err)
	}
	return nil
}
