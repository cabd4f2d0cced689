package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/ratelimit"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultChannelTimeout = 10 * time.Second

	// RateLimitResource is the limiter bucket that throttles message posting.
	RateLimitResource = "review-channel"

	kindHeader  = "header"
	kindItem    = "item"
	kindSummary = "summary"
)

// ItemHandle references the channel message posted for one batch item. Used
// for fallback reconciliation; the action token remains the source of truth.
type ItemHandle struct {
	ItemIndex  int
	MessageRef string
}

// Summary describes a finished review for the completion announcement.
type Summary struct {
	BatchID       string
	ApprovedCount int
	RejectedCount int
	DeletedCount  int
	DeleteErrors  []string
}

type channelMessage struct {
	BatchID string          `json:"batchId"`
	Kind    string          `json:"kind"`
	Text    string          `json:"text"`
	Assets  []string        `json:"assets,omitempty"`
	Actions []messageAction `json:"actions,omitempty"`
}

type messageAction struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

type postMessageResponse struct {
	MessageID string `json:"messageId"`
}

// Client posts reviewable units to the approval channel webhook.
type Client struct {
	client   *resty.Client
	endpoint string
	limiter  ratelimit.RateLimiter
	logger   *zap.Logger
}

func NewClient(endpoint string, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultChannelTimeout)
	client.SetRetryCount(0)

	return NewClientWithResty(endpoint, client, limiter, logger)
}

func NewClientWithResty(endpoint string, client *resty.Client, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Client, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("channel endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid channel endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultChannelTimeout)
	}
	client.SetRetryCount(0)

	return &Client{
		client:   client,
		endpoint: trimmedEndpoint,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// PublishBatch posts one header message and one reviewable message per item,
// each carrying mutually exclusive approve/reject actions. Fan-out is
// best-effort: a failed item post is logged and the rest proceed. An error
// is returned only when not a single item message went out.
func (c *Client) PublishBatch(ctx context.Context, batch *domain.Batch, items []domain.BatchItem) ([]ItemHandle, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("channel client is not initialized")
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: batch is required", domain.ErrValidation)
	}

	header := channelMessage{
		BatchID: batch.ID,
		Kind:    kindHeader,
		Text:    fmt.Sprintf("Review batch %s: %d item(s) awaiting decision", batch.ID, len(items)),
	}
	if _, err := c.postMessage(ctx, header); err != nil {
		c.logger.Error("failed to post batch header message",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}

	handles := make([]ItemHandle, 0, len(items))
	for i := range items {
		item := &items[i]
		msg := renderItemMessage(batch.ID, item)

		ref, err := c.postMessage(ctx, msg)
		if err != nil {
			c.logger.Error("failed to post item review message",
				zap.String("batchId", batch.ID),
				zap.Int("itemIndex", item.Index),
				zap.Error(err),
			)
			continue
		}

		handles = append(handles, ItemHandle{ItemIndex: item.Index, MessageRef: ref})
	}

	if len(items) > 0 && len(handles) == 0 {
		return handles, fmt.Errorf("no item message reached the review channel for batch %s", batch.ID)
	}

	return handles, nil
}

// PublishSummary announces the review outcome back on the channel.
func (c *Client) PublishSummary(ctx context.Context, summary Summary) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("channel client is not initialized")
	}

	text := fmt.Sprintf("Batch %s review finished: %d approved, %d rejected, %d asset(s) deleted",
		summary.BatchID, summary.ApprovedCount, summary.RejectedCount, summary.DeletedCount)
	if n := len(summary.DeleteErrors); n > 0 {
		text += fmt.Sprintf(" (%d deletion(s) failed)", n)
	}

	_, err := c.postMessage(ctx, channelMessage{
		BatchID: summary.BatchID,
		Kind:    kindSummary,
		Text:    text,
	})
	return err
}

func renderItemMessage(batchID string, item *domain.BatchItem) channelMessage {
	assetID := ""
	if item.RemoteAssetID != nil {
		assetID = strings.TrimSpace(*item.RemoteAssetID)
	}

	var assets []string
	if item.HasAudio() {
		assets = append(assets, *item.AudioHandle)
	}
	if item.HasVideo() {
		assets = append(assets, *item.VideoHandle)
	}

	approve := ActionToken{Action: domain.ActionApprove, BatchID: batchID, ItemIndex: item.Index, RemoteAssetID: assetID}
	reject := ActionToken{Action: domain.ActionReject, BatchID: batchID, ItemIndex: item.Index, RemoteAssetID: assetID}

	return channelMessage{
		BatchID: batchID,
		Kind:    kindItem,
		Text:    fmt.Sprintf("#%d %s\n\n%s", item.Index, item.Title, item.Content),
		Assets:  assets,
		Actions: []messageAction{
			{Label: "Approve", Token: approve.Encode()},
			{Label: "Reject", Token: reject.Encode()},
		},
	}
}

func (c *Client) postMessage(ctx context.Context, msg channelMessage) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, RateLimitResource); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var parsed postMessageResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return "", &ChannelError{
			Message:   "channel request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return "", &ChannelError{
			Message:   "channel returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return messageRef(response, parsed), nil
	}

	return "", &ChannelError{
		StatusCode: statusCode,
		Message:    channelErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func channelErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("channel returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func messageRef(response *resty.Response, parsed postMessageResponse) string {
	if ref := strings.TrimSpace(parsed.MessageID); ref != "" {
		return ref
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
