package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.TempDir == c.Paths.OutputDir {
		return errors.New("paths.temp_dir must differ from paths.output_dir")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	return requirePositive(map[string]int{
		"extraction.no_password_timeout": c.Extraction.NoPasswordTimeout,
		"extraction.password_timeout":    c.Extraction.PasswordTimeout,
	})
}

func (c *Config) validateArchive() error {
	switch c.Archive.Format {
	case "7z", "zip", "zst":
	default:
		return fmt.Errorf("archive.format must be one of 7z, zip, zst (got %q)", c.Archive.Format)
	}
	if c.Archive.Level < 0 || c.Archive.Level > 9 {
		return errors.New("archive.level must be between 0 and 9")
	}
	if c.Archive.CreateTimeout <= 0 {
		return errors.New("archive.create_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateImages() error {
	if !c.Images.Enabled {
		return nil
	}
	switch c.Images.Format {
	case "webp", "avif":
	default:
		return fmt.Errorf("images.format must be webp or avif (got %q)", c.Images.Format)
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		return errors.New("images.quality must be between 1 and 100")
	}
	return requirePositive(map[string]int{
		"images.max_width":      c.Images.MaxWidth,
		"images.max_height":     c.Images.MaxHeight,
		"images.encode_timeout": c.Images.EncodeTimeout,
	})
}

func (c *Config) validateAPI() error {
	if c.API.SkipLogin {
		return nil
	}
	if c.API.EnableUpload {
		if strings.TrimSpace(c.API.LoginURL) == "" {
			return errors.New("api.login_url must be set when api.enable_upload is true")
		}
		if strings.TrimSpace(c.API.UploadURL) == "" {
			return errors.New("api.upload_url must be set when api.enable_upload is true")
		}
	}
	if c.API.EnableUpload && c.API.EnablePublish {
		if strings.TrimSpace(c.API.ArticleURL) == "" {
			return errors.New("api.article_url must be set when api.enable_publish is true")
		}
	}
	return requirePositive(map[string]int{
		"api.batch_size":      c.API.BatchSize,
		"api.max_retries":     c.API.MaxRetries,
		"api.request_timeout": c.API.RequestTimeout,
	})
}

func (c *Config) validateWatch() error {
	return requirePositive(map[string]int{
		"watch.poll_interval":  c.Watch.PollInterval,
		"watch.settle_timeout": c.Watch.SettleTimeout,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func requirePositive(settings map[string]int) error {
	for key, value := range settings {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero", key)
		}
	}
	return nil
}
