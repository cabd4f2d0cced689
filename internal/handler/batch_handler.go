package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/repository"
	"github.com/creativeops/review-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type BatchService interface {
	Create(ctx context.Context, declaredCount int, remoteFolder *string) (*domain.Batch, error)
	GetByID(ctx context.Context, batchID string) (*service.BatchDetail, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error)
	AttachItems(ctx context.Context, batchID string, drafts []service.ItemDraft) (domain.ValidationReport, error)
	AttachAssets(ctx context.Context, batchID string, updates []repository.AssetUpdate) (*domain.Batch, error)
}

type ReviewService interface {
	Integrity(ctx context.Context, batchID string) (domain.ValidationReport, error)
	Publish(ctx context.Context, batchID string) (*service.PublishResult, error)
}

type BatchHandler struct {
	batches BatchService
	reviews ReviewService
}

func NewBatchHandler(batches BatchService, reviews ReviewService) (*BatchHandler, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	if reviews == nil {
		return nil, fmt.Errorf("review service is required")
	}
	return &BatchHandler{batches: batches, reviews: reviews}, nil
}

func RegisterBatchRoutes(router fiber.Router, batches BatchService, reviews ReviewService) error {
	h, err := NewBatchHandler(batches, reviews)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Put("/batches/:id/items", h.AttachItems)
	v1.Post("/batches/:id/assets", h.AttachAssets)
	v1.Get("/batches/:id/integrity", h.GetIntegrity)
	v1.Post("/batches/:id/publish", h.PublishBatch)

	return nil
}

type createBatchRequest struct {
	DeclaredCount int     `json:"declaredCount"`
	RemoteFolder  *string `json:"remoteFolder,omitempty"`
}

type attachItemsRequest struct {
	Items []itemDraftRequest `json:"items"`
}

type itemDraftRequest struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type attachAssetsRequest struct {
	Assets []assetUpdateRequest `json:"assets"`
}

type assetUpdateRequest struct {
	ItemIndex     int     `json:"itemIndex"`
	AudioHandle   *string `json:"audioHandle,omitempty"`
	VideoHandle   *string `json:"videoHandle,omitempty"`
	RemoteAssetID *string `json:"remoteAssetId,omitempty"`
}

type batchResponse struct {
	ID            string    `json:"id"`
	DeclaredCount int       `json:"declaredCount"`
	Status        string    `json:"status"`
	RemoteFolder  *string   `json:"remoteFolder,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

type batchItemResponse struct {
	Index         int     `json:"index"`
	Title         string  `json:"title"`
	Fingerprint   string  `json:"fingerprint"`
	AudioHandle   *string `json:"audioHandle,omitempty"`
	VideoHandle   *string `json:"videoHandle,omitempty"`
	RemoteAssetID *string `json:"remoteAssetId,omitempty"`
}

type batchDetailResponse struct {
	batchResponse
	Items    []batchItemResponse `json:"items"`
	Progress progressResponse    `json:"progress"`
}

type progressResponse struct {
	ReviewedCount int `json:"reviewedCount"`
	ApprovedCount int `json:"approvedCount"`
	RejectedCount int `json:"rejectedCount"`
}

type validationReportResponse struct {
	Valid      bool     `json:"valid"`
	Issues     []string `json:"issues"`
	Violations []string `json:"violations"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type publishResponse struct {
	BatchID        string `json:"batchId"`
	PublishedCount int    `json:"publishedCount"`
	Status         string `json:"status"`
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := h.batches.Create(c.Context(), req.DeclaredCount, req.RemoteFolder)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	detail, err := h.batches.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]batchItemResponse, 0, len(detail.Items))
	for i := range detail.Items {
		item := &detail.Items[i]
		items = append(items, batchItemResponse{
			Index:         item.Index,
			Title:         item.Title,
			Fingerprint:   item.Fingerprint,
			AudioHandle:   item.AudioHandle,
			VideoHandle:   item.VideoHandle,
			RemoteAssetID: item.RemoteAssetID,
		})
	}

	return c.Status(fiber.StatusOK).JSON(batchDetailResponse{
		batchResponse: toBatchResponse(&detail.Batch),
		Items:         items,
		Progress: progressResponse{
			ReviewedCount: detail.Progress.ReviewedCount,
			ApprovedCount: detail.Progress.ApprovedCount,
			RejectedCount: detail.Progress.RejectedCount,
		},
	})
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	batches, total, err := h.batches.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchResponse, 0, len(batches))
	for i := range batches {
		data = append(data, toBatchResponse(&batches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *BatchHandler) AttachItems(c *fiber.Ctx) error {
	var req attachItemsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return toHTTPError(fmt.Errorf("%w: items is required", domain.ErrValidation))
	}

	drafts := make([]service.ItemDraft, 0, len(req.Items))
	for _, item := range req.Items {
		drafts = append(drafts, service.ItemDraft{
			Index:   item.Index,
			Title:   item.Title,
			Content: item.Content,
		})
	}

	id := strings.TrimSpace(c.Params("id"))
	report, err := h.batches.AttachItems(c.Context(), id, drafts)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toValidationReportResponse(report))
}

func (h *BatchHandler) AttachAssets(c *fiber.Ctx) error {
	var req attachAssetsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Assets) == 0 {
		return toHTTPError(fmt.Errorf("%w: assets is required", domain.ErrValidation))
	}

	updates := make([]repository.AssetUpdate, 0, len(req.Assets))
	for _, asset := range req.Assets {
		updates = append(updates, repository.AssetUpdate{
			ItemIndex:     asset.ItemIndex,
			AudioHandle:   asset.AudioHandle,
			VideoHandle:   asset.VideoHandle,
			RemoteAssetID: asset.RemoteAssetID,
		})
	}

	id := strings.TrimSpace(c.Params("id"))
	batch, err := h.batches.AttachAssets(c.Context(), id, updates)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) GetIntegrity(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	report, err := h.reviews.Integrity(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toValidationReportResponse(report))
}

func (h *BatchHandler) PublishBatch(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	result, err := h.reviews.Publish(c.Context(), id)
	if err != nil {
		var vErr *service.ValidationFailedError
		if errors.As(err, &vErr) {
			code := fiber.StatusUnprocessableEntity
			if errors.Is(err, domain.ErrIntegrity) {
				code = fiber.StatusConflict
			}
			return c.Status(code).JSON(fiber.Map{
				"error":      "batch failed validation",
				"issues":     emptyIfNil(vErr.Issues),
				"violations": emptyIfNil(vErr.Violations),
			})
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(publishResponse{
		BatchID:        result.BatchID,
		PublishedCount: result.PublishedCount,
		Status:         domain.BatchStatusPublished.String(),
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}
	return batchResponse{
		ID:            b.ID,
		DeclaredCount: b.DeclaredCount,
		Status:        b.Status.String(),
		RemoteFolder:  b.RemoteFolder,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toValidationReportResponse(report domain.ValidationReport) validationReportResponse {
	return validationReportResponse{
		Valid:      report.Valid(),
		Issues:     emptyIfNil(report.Issues),
		Violations: emptyIfNil(report.IntegrityViolations),
	}
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrIntegrity):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
