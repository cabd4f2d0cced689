package handler

import (
	"fmt"
	"strings"

	"github.com/creativeops/review-engine/internal/assetstore"
	"github.com/creativeops/review-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
)

// AssetHandler exposes a manual deletion endpoint for operators cleaning
// up after a timed-out review.
type AssetHandler struct {
	deleter assetstore.Deleter
}

func NewAssetHandler(deleter assetstore.Deleter) (*AssetHandler, error) {
	if deleter == nil {
		return nil, fmt.Errorf("asset deleter is required")
	}
	return &AssetHandler{deleter: deleter}, nil
}

func RegisterAssetRoutes(router fiber.Router, deleter assetstore.Deleter) error {
	h, err := NewAssetHandler(deleter)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/assets/delete", h.DeleteAssets)

	return nil
}

type deleteAssetsRequest struct {
	AssetIDs []string `json:"assetIds"`
}

type deleteAssetsResponse struct {
	DeletedCount int      `json:"deletedCount"`
	Errors       []string `json:"errors"`
}

func (h *AssetHandler) DeleteAssets(c *fiber.Ctx) error {
	var req deleteAssetsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ids := make([]string, 0, len(req.AssetIDs))
	for _, id := range req.AssetIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return toHTTPError(fmt.Errorf("%w: assetIds is required", domain.ErrValidation))
	}

	result := h.deleter.DeleteAll(c.Context(), ids)

	return c.Status(fiber.StatusOK).JSON(deleteAssetsResponse{
		DeletedCount: result.DeletedCount,
		Errors:       emptyIfNil(result.Errors),
	})
}
