package assetstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 15 * time.Second

// DeleteResult reports a bulk deletion: partial success is the normal case
// and never fatal to the caller.
type DeleteResult struct {
	DeletedCount int
	Errors       []string
}

// Deleter is the remote asset deletion port.
type Deleter interface {
	DeleteAll(ctx context.Context, assetIDs []string) DeleteResult
}

// Client talks to the remote asset store's file API.
type Client struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultStoreTimeout)
	client.SetRetryCount(0)

	return NewClientWithResty(baseURL, client, logger)
}

func NewClientWithResty(baseURL string, client *resty.Client, logger *zap.Logger) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("asset store url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid asset store url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultStoreTimeout)
	}
	client.SetRetryCount(0)

	return &Client{
		client:  client,
		baseURL: trimmed,
		logger:  logger,
	}, nil
}

// DeleteAll removes the given remote assets one by one. Each deletion is
// best-effort: a failure is recorded and the remaining ids still get their
// delete call. Blank ids are skipped.
func (c *Client) DeleteAll(ctx context.Context, assetIDs []string) DeleteResult {
	var result DeleteResult
	if c == nil || c.client == nil {
		result.Errors = append(result.Errors, "asset store client is not initialized")
		return result
	}

	for _, assetID := range assetIDs {
		id := strings.TrimSpace(assetID)
		if id == "" {
			continue
		}

		if err := c.deleteOne(ctx, id); err != nil {
			c.logger.Warn("asset deletion failed",
				zap.String("assetId", id),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		result.DeletedCount++
	}

	return result
}

func (c *Client) deleteOne(ctx context.Context, assetID string) error {
	target := fmt.Sprintf("%s/files/%s", c.baseURL, url.PathEscape(assetID))

	response, err := c.client.R().
		SetContext(ctx).
		Delete(target)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}

	statusCode := response.StatusCode()
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return nil
	case statusCode == http.StatusNotFound:
		// Already gone; the goal state is reached.
		return nil
	default:
		body := strings.TrimSpace(response.String())
		if body == "" {
			return fmt.Errorf("store returned status %d", statusCode)
		}
		return fmt.Errorf("store returned status %d: %s", statusCode, body)
	}
}
