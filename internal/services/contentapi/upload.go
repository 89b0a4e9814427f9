package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"repack/internal/logging"
	"repack/internal/naming"
	"repack/internal/services"
)

// ErrNoImages means the staged directory held nothing the backend accepts.
// It carries the validation marker so the job lands in review rather than
// being retried.
var ErrNoImages = fmt.Errorf("%w: no uploadable images found", services.ErrValidation)

// uploadableExtensions lists what the backend accepts. GIFs are excluded
// deliberately; they stay local only.
var uploadableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadImages uploads every eligible image under dir in natural order and
// returns the hosted URLs, ordered to match. Batches retry independently;
// the first exhausted batch aborts the whole upload so the caller never
// sees a partial URL list.
func (c *Client) UploadImages(ctx context.Context, dir string) ([]string, error) {
	images, skippedGIFs, err := collectUploadable(dir)
	if err != nil {
		return nil, fmt.Errorf("scan upload directory: %w", err)
	}
	if skippedGIFs > 0 {
		c.logger.Info("gif files excluded from upload", logging.Int("count", skippedGIFs))
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	naming.SortNatural(images)
	totalBatches := (len(images) + c.batchSize - 1) / c.batchSize
	c.logger.Info("uploading images",
		logging.Int("count", len(images)),
		logging.Int("batches", totalBatches),
	)

	urls := make([]string, 0, len(images))
	for start := 0; start < len(images); start += c.batchSize {
		end := min(start+c.batchSize, len(images))
		batchNum := start/c.batchSize + 1
		batchURLs, err := c.uploadBatch(ctx, images[start:end], batchNum, totalBatches)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", batchNum, totalBatches, err)
		}
		urls = append(urls, batchURLs...)
	}

	c.logger.Info("image upload complete", logging.Int("urls", len(urls)))
	return urls, nil
}

func (c *Client) uploadBatch(ctx context.Context, batch []string, batchNum, totalBatches int) ([]string, error) {
	c.logger.Info("uploading batch",
		logging.Int("batch", batchNum),
		logging.Int("total_batches", totalBatches),
		logging.Int("files", len(batch)),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		urls, status, err := c.postBatch(ctx, batch)
		if err == nil {
			return urls, nil
		}
		lastErr = err

		if isAuthStatus(status) {
			if refreshErr := c.refreshAuth(ctx, status); refreshErr != nil {
				return nil, refreshErr
			}
			// Fresh token; retry the same batch immediately.
			continue
		}

		c.logger.Warn("batch upload attempt failed",
			logging.Int("batch", batchNum),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		if attempt < c.maxRetries {
			if err := c.sleepBetween(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) postBatch(ctx context.Context, batch []string) ([]string, int, error) {
	body, contentType, err := multipartBody(batch)
	if err != nil {
		return nil, 0, err
	}

	status, payload, err := c.do(ctx, http.MethodPost, c.uploadURL, body, contentType)
	if err != nil {
		return nil, 0, err
	}
	if isAuthStatus(status) {
		return nil, status, fmt.Errorf("auth rejected (HTTP %d)", status)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, status, fmt.Errorf("unexpected HTTP status %d", status)
	}

	env, err := decodeEnvelope(payload)
	if err != nil {
		return nil, status, err
	}
	if !env.accepted() {
		return nil, status, fmt.Errorf("backend rejected upload: %s", env.describe())
	}

	var items []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, status, fmt.Errorf("decode upload response: %w", err)
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if item.URL != "" {
			urls = append(urls, item.URL)
		}
	}
	if len(urls) == 0 {
		return nil, status, errors.New("upload response carried no urls")
	}
	return urls, status, nil
}

// multipartBody builds a multipart form with one repeated "file" field per
// image, the shape the backend's upload endpoint expects.
func multipartBody(paths []string) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for _, path := range paths {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file); err != nil {
			file.Close()
			return nil, "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		file.Close()
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

func collectUploadable(dir string) ([]string, int, error) {
	var images []string
	skippedGIFs := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".gif" {
			skippedGIFs++
			return nil
		}
		if uploadableExtensions[ext] {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return images, skippedGIFs, nil
}
