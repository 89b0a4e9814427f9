package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"repack/internal/logging"
)

type articleRequest struct {
	Title             string   `json:"title"`
	Images            []string `json:"images"`
	Cover             string   `json:"cover"`
	CategoryID        int      `json:"categoryId"`
	Type              string   `json:"type"`
	RequireMembership bool     `json:"requireMembership"`
	Status            string   `json:"status"`
}

// Category is one publishing category exposed by the backend.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SubmitArticle publishes an image article referencing already-uploaded
// URLs. Acceptance is deliberately tolerant: the body-level code OR the
// nested success flag wins, since the backend has shipped both shapes.
// Returns the article id when the backend reports one.
func (c *Client) SubmitArticle(ctx context.Context, title string, imageURLs []string, cover string) (string, error) {
	payload, err := json.Marshal(articleRequest{
		Title:             title,
		Images:            imageURLs,
		Cover:             cover,
		CategoryID:        c.categoryID,
		Type:              "image",
		RequireMembership: true,
		Status:            "pending",
	})
	if err != nil {
		return "", fmt.Errorf("encode article payload: %w", err)
	}

	c.logger.Info("submitting article",
		logging.String("title", title),
		logging.Int("images", len(imageURLs)),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		articleID, status, err := c.postArticle(ctx, payload)
		if err == nil {
			c.logger.Info("article accepted",
				logging.String("title", title),
				logging.String("article_id", articleID),
			)
			return articleID, nil
		}
		lastErr = err

		if isAuthStatus(status) {
			if refreshErr := c.refreshAuth(ctx, status); refreshErr != nil {
				return "", refreshErr
			}
			continue
		}

		c.logger.Warn("article submission attempt failed",
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		if attempt < c.maxRetries {
			if err := c.sleepBetween(ctx, attempt); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("exhausted %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) postArticle(ctx context.Context, payload []byte) (string, int, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.articleURL, bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", 0, err
	}
	if isAuthStatus(status) {
		return "", status, fmt.Errorf("auth rejected (HTTP %d)", status)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", status, fmt.Errorf("unexpected HTTP status %d", status)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return "", status, err
	}

	// data may be an object, an array, or absent depending on backend
	// version; a shape mismatch just means no success flag and no id.
	var data struct {
		Success bool `json:"success"`
		Data    struct {
			ID any `json:"id"`
		} `json:"data"`
	}
	if len(env.Data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		_ = dec.Decode(&data)
	}

	if !env.accepted() && !data.Success {
		return "", status, fmt.Errorf("backend rejected article: %s", env.describe())
	}
	return formatArticleID(data.Data.ID), status, nil
}

func formatArticleID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// FetchCategories lists the backend's publishing categories. One shot, no
// retry; callers poke this interactively.
func (c *Client) FetchCategories(ctx context.Context) ([]Category, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.categoryURL, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("unexpected HTTP status %d", status)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !env.accepted() {
		return nil, fmt.Errorf("backend rejected category request: %s", env.describe())
	}

	var categories []Category
	if err := json.Unmarshal(env.Data, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}
