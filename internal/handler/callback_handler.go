package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/creativeops/review-engine/internal/channel"
	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DecisionService interface {
	RecordDecision(ctx context.Context, token channel.ActionToken, messageRef string) (*service.DecisionResult, error)
}

// CallbackHandler receives reviewer decisions from the review channel.
// Channels retry callbacks that do not get a 2xx back, so every response
// here is a 200: a malformed callback is acknowledged and dropped, never
// bounced into a retry loop.
type CallbackHandler struct {
	decisions DecisionService
	logger    *zap.Logger
}

func NewCallbackHandler(decisions DecisionService, logger *zap.Logger) (*CallbackHandler, error) {
	if decisions == nil {
		return nil, fmt.Errorf("decision service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackHandler{decisions: decisions, logger: logger}, nil
}

func RegisterCallbackRoutes(router fiber.Router, decisions DecisionService, logger *zap.Logger) error {
	h, err := NewCallbackHandler(decisions, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/callbacks/decision", h.HandleDecision)

	return nil
}

// flexInt accepts both a JSON number and a quoted numeric string, since
// channels disagree on how they encode the item index.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid item index %q", s)
	}
	*f = flexInt(n)
	return nil
}

type decisionPayload struct {
	Action        string  `json:"action"`
	BatchID       string  `json:"batchId"`
	ItemIndex     flexInt `json:"itemIndex"`
	RemoteAssetID string  `json:"remoteAssetId"`
	MessageRef    string  `json:"messageRef"`
}

type decisionCallback struct {
	Token         string           `json:"token" form:"token"`
	Payload       *decisionPayload `json:"payload" form:"-"`
	PayloadRaw    string           `json:"-" form:"payload"`
	Action        string           `json:"action" form:"action"`
	BatchID       string           `json:"batchId" form:"batchId"`
	ItemIndex     string           `json:"itemIndex" form:"itemIndex"`
	RemoteAssetID string           `json:"remoteAssetId" form:"remoteAssetId"`
	MessageRef    string           `json:"messageRef" form:"messageRef"`
}

func (h *CallbackHandler) HandleDecision(c *fiber.Ctx) error {
	token, messageRef, err := h.parseCallback(c)
	if err != nil {
		h.logger.Warn("decision callback ignored",
			zap.String("contentType", c.Get(fiber.HeaderContentType)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusOK).SendString(fmt.Sprintf("ignored: %s", err.Error()))
	}

	result, err := h.decisions.RecordDecision(c.Context(), token, messageRef)
	if err != nil {
		h.logger.Error("failed to record decision",
			zap.String("batchId", token.BatchID),
			zap.Int("itemIndex", token.ItemIndex),
			zap.Error(err),
		)
		return c.Status(fiber.StatusOK).SendString("ignored: decision could not be recorded")
	}

	return c.Status(fiber.StatusOK).SendString(fmt.Sprintf(
		"ok: recorded %s for item %d of batch %s",
		token.Action, result.ItemIndex, result.BatchID,
	))
}

// parseCallback normalizes the three encodings review channels send:
// a JSON object, a URL-encoded form, or a raw token buffer.
func (h *CallbackHandler) parseCallback(c *fiber.Ctx) (channel.ActionToken, string, error) {
	body := strings.TrimSpace(string(c.Body()))
	if body == "" {
		return channel.ActionToken{}, "", fmt.Errorf("empty body")
	}

	var cb decisionCallback
	switch {
	case strings.HasPrefix(body, "{"):
		if err := json.Unmarshal([]byte(body), &cb); err != nil {
			return channel.ActionToken{}, "", fmt.Errorf("malformed json callback")
		}
	case strings.Contains(body, "=") && !strings.Contains(body, "||"):
		if err := c.BodyParser(&cb); err != nil {
			return channel.ActionToken{}, "", fmt.Errorf("malformed form callback")
		}
		if raw := strings.TrimSpace(cb.PayloadRaw); raw != "" {
			var payload decisionPayload
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return channel.ActionToken{}, "", fmt.Errorf("malformed payload field")
			}
			cb.Payload = &payload
		}
	default:
		cb.Token = body
	}

	if cb.Payload != nil {
		return tokenFromPayload(cb.Payload)
	}

	if cb.Token != "" {
		token, err := channel.ParseActionToken(cb.Token)
		if err != nil {
			return channel.ActionToken{}, "", fmt.Errorf("malformed token")
		}
		return token, strings.TrimSpace(cb.MessageRef), nil
	}

	action, err := domain.ParseActionFromString(cb.Action)
	if err != nil {
		return channel.ActionToken{}, "", fmt.Errorf("unknown action %q", cb.Action)
	}
	batchID := strings.TrimSpace(cb.BatchID)
	if batchID == "" {
		return channel.ActionToken{}, "", fmt.Errorf("missing batch id")
	}
	itemIndex, err := strconv.Atoi(strings.TrimSpace(cb.ItemIndex))
	if err != nil || itemIndex < 0 {
		return channel.ActionToken{}, "", fmt.Errorf("invalid item index %q", cb.ItemIndex)
	}

	return channel.ActionToken{
		Action:        action,
		BatchID:       batchID,
		ItemIndex:     itemIndex,
		RemoteAssetID: strings.TrimSpace(cb.RemoteAssetID),
	}, strings.TrimSpace(cb.MessageRef), nil
}

func tokenFromPayload(p *decisionPayload) (channel.ActionToken, string, error) {
	action, err := domain.ParseActionFromString(p.Action)
	if err != nil {
		return channel.ActionToken{}, "", fmt.Errorf("unknown action %q", p.Action)
	}
	batchID := strings.TrimSpace(p.BatchID)
	if batchID == "" {
		return channel.ActionToken{}, "", fmt.Errorf("missing batch id")
	}
	if p.ItemIndex < 0 {
		return channel.ActionToken{}, "", fmt.Errorf("invalid item index %d", p.ItemIndex)
	}

	return channel.ActionToken{
		Action:        action,
		BatchID:       batchID,
		ItemIndex:     int(p.ItemIndex),
		RemoteAssetID: strings.TrimSpace(p.RemoteAssetID),
	}, strings.TrimSpace(p.MessageRef), nil
}
