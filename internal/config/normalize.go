package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func lowerTrim(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeRename()
	c.normalizeArchive()
	c.normalizeImages()
	c.normalizeAPI()
	c.normalizeCleanup()
	c.normalizeLogging()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandUser(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = filepath.Join(c.Paths.OutputDir, "temp")
	}
	if c.Paths.TempDir, err = expandUser(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.OutputDir, "logs")
	}
	if c.Paths.LogDir, err = expandUser(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ToolsDir) != "" {
		if c.Paths.ToolsDir, err = expandUser(c.Paths.ToolsDir); err != nil {
			return fmt.Errorf("paths.tools_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	passwords := make([]string, 0, len(c.Extraction.Passwords))
	for _, password := range c.Extraction.Passwords {
		trimmed := strings.TrimSpace(password)
		if trimmed == "" {
			continue
		}
		passwords = append(passwords, trimmed)
	}
	c.Extraction.Passwords = passwords
	if c.Extraction.NoPasswordTimeout <= 0 {
		c.Extraction.NoPasswordTimeout = defaultNoPasswordTimeout
	}
	if c.Extraction.PasswordTimeout <= 0 {
		c.Extraction.PasswordTimeout = defaultPasswordTimeout
	}
}

func (c *Config) normalizeRename() {
	if c.Rename.ImagePrefix == "" {
		c.Rename.ImagePrefix = defaultImagePrefix
	}
	if c.Rename.VideoPrefix == "" {
		c.Rename.VideoPrefix = defaultVideoPrefix
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Format = lowerTrim(c.Archive.Format)
	if c.Archive.Format == "" {
		c.Archive.Format = defaultArchiveFormat
	}
	if strings.TrimSpace(c.Archive.DictionarySize) == "" {
		c.Archive.DictionarySize = defaultDictionarySize
	}
	if c.Archive.CreateTimeout <= 0 {
		c.Archive.CreateTimeout = defaultCreateTimeout
	}
}

func (c *Config) normalizeImages() {
	c.Images.Format = lowerTrim(c.Images.Format)
	if c.Images.Format == "" {
		c.Images.Format = defaultImageFormat
	}
	if c.Images.Quality <= 0 {
		c.Images.Quality = defaultImageQuality
	}
	if c.Images.MaxWidth <= 0 {
		c.Images.MaxWidth = defaultImageMaxWidth
	}
	if c.Images.MaxHeight <= 0 {
		c.Images.MaxHeight = defaultImageMaxHeight
	}
	if c.Images.EncodeTimeout <= 0 {
		c.Images.EncodeTimeout = defaultEncodeTimeout
	}
}

func (c *Config) normalizeAPI() {
	c.API.LoginURL = strings.TrimSpace(c.API.LoginURL)
	c.API.UploadURL = strings.TrimSpace(c.API.UploadURL)
	c.API.ArticleURL = strings.TrimSpace(c.API.ArticleURL)
	c.API.CategoryURL = strings.TrimSpace(c.API.CategoryURL)
	if c.API.Account == "" {
		if value, ok := os.LookupEnv("REPACK_API_ACCOUNT"); ok {
			c.API.Account = strings.TrimSpace(value)
		}
	}
	if c.API.Password == "" {
		if value, ok := os.LookupEnv("REPACK_API_PASSWORD"); ok {
			c.API.Password = strings.TrimSpace(value)
		}
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.DeviceID = strings.TrimSpace(c.API.DeviceID)
	if c.API.BatchSize <= 0 {
		c.API.BatchSize = defaultBatchSize
	}
	if c.API.MaxRetries <= 0 {
		c.API.MaxRetries = defaultMaxRetries
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = defaultAPITimeout
	}
	if c.API.CategoryID <= 0 {
		c.API.CategoryID = defaultCategoryID
	}
}

func (c *Config) normalizeCleanup() {
	if c.Cleanup.BackgroundRetryDelay <= 0 {
		c.Cleanup.BackgroundRetryDelay = defaultBackgroundRetryDelay
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerTrim(c.Logging.Format)
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = lowerTrim(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeWatch() error {
	var err error
	if strings.TrimSpace(c.Watch.Dir) != "" {
		if c.Watch.Dir, err = expandUser(c.Watch.Dir); err != nil {
			return fmt.Errorf("watch.dir: %w", err)
		}
	}
	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = defaultWatchPollInterval
	}
	if c.Watch.SettleTimeout <= 0 {
		c.Watch.SettleTimeout = defaultSettleTimeout
	}
	return nil
}
