package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/repository"
	"github.com/creativeops/review-engine/internal/tracker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemDraft is one generated script handed over by the generation pipeline.
type ItemDraft struct {
	Index   int
	Title   string
	Content string
}

// BatchDetail is the full read model for one batch.
type BatchDetail struct {
	Batch    domain.Batch
	Items    []domain.BatchItem
	Progress tracker.Progress
}

// TrackerStore is the decision state the batch workflow reads and manages.
type TrackerStore interface {
	Ensure(batchID string)
	Status(batchID string) tracker.Progress
	Snapshot(batchID string) []domain.Decision
	Discard(batchID string)
}

// BatchService owns the batch store operations: creation, item ingestion
// with fingerprinting, and asset attachment.
type BatchService struct {
	batches repository.BatchRepository
	items   repository.ItemRepository
	tracker TrackerStore
	logger  *zap.Logger
}

func NewBatchService(
	batches repository.BatchRepository,
	items repository.ItemRepository,
	trackerStore TrackerStore,
	logger *zap.Logger,
) (*BatchService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if trackerStore == nil {
		return nil, fmt.Errorf("tracker store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches: batches,
		items:   items,
		tracker: trackerStore,
		logger:  logger,
	}, nil
}

func (s *BatchService) Create(ctx context.Context, declaredCount int, remoteFolder *string) (*domain.Batch, error) {
	if declaredCount <= 0 {
		return nil, fmt.Errorf("%w: declared count must be positive", domain.ErrValidation)
	}

	batch := &domain.Batch{
		ID:            uuid.NewString(),
		DeclaredCount: declaredCount,
		Status:        domain.BatchStatusGenerating,
		RemoteFolder:  normalizeOptionalString(remoteFolder),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *BatchService) GetByID(ctx context.Context, batchID string) (*BatchDetail, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.items.GetByBatchID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{
		Batch:    *batch,
		Items:    items,
		Progress: s.tracker.Status(id),
	}, nil
}

func (s *BatchService) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, int64, error) {
	return s.batches.List(ctx, params)
}

// AttachItems stores the generated scripts for a batch and fingerprints each
// one at ingestion time. The loose validation report is returned alongside:
// issues do not block storage, they are fixed upstream by regeneration.
func (s *BatchService) AttachItems(ctx context.Context, batchID string, drafts []ItemDraft) (domain.ValidationReport, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return domain.ValidationReport{}, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if len(drafts) == 0 {
		return domain.ValidationReport{}, fmt.Errorf("%w: at least one item is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return domain.ValidationReport{}, err
	}
	if batch.Status == domain.BatchStatusPublished || batch.Status == domain.BatchStatusCompleted {
		return domain.ValidationReport{}, fmt.Errorf("%w: batch %s is already %s", domain.ErrConflict, id, batch.Status)
	}

	items := make([]domain.BatchItem, 0, len(drafts))
	itemPtrs := make([]*domain.BatchItem, 0, len(drafts))
	for _, draft := range drafts {
		items = append(items, domain.BatchItem{
			ID:          uuid.NewString(),
			BatchID:     id,
			Index:       draft.Index,
			Title:       strings.TrimSpace(draft.Title),
			Content:     draft.Content,
			Fingerprint: domain.ContentFingerprint(draft.Content),
		})
	}
	for i := range items {
		itemPtrs = append(itemPtrs, &items[i])
	}

	report := domain.ValidateLoose(batch, items)
	if !report.Valid() {
		s.logger.Warn("generated items stored with validation issues",
			zap.String("batchId", id),
			zap.Strings("issues", report.Issues),
		)
	}

	if err := s.items.ReplaceForBatch(ctx, id, itemPtrs); err != nil {
		return report, err
	}

	return report, nil
}

// AttachAssets records generated audio/video handles and remote asset ids.
// Once every item carries its required assets the batch advances to
// ASSETS_READY.
func (s *BatchService) AttachAssets(ctx context.Context, batchID string, updates []repository.AssetUpdate) (*domain.Batch, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: at least one asset update is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.Status == domain.BatchStatusPublished || batch.Status == domain.BatchStatusCompleted {
		return nil, fmt.Errorf("%w: batch %s is already %s", domain.ErrConflict, id, batch.Status)
	}

	if err := s.items.AttachAssets(ctx, id, updates); err != nil {
		return nil, err
	}

	items, err := s.items.GetByBatchID(ctx, id)
	if err != nil {
		return nil, err
	}

	if batch.Status == domain.BatchStatusGenerating && assetsComplete(batch, items) {
		if err := s.batches.AdvanceStatus(ctx, id, domain.BatchStatusAssetsReady); err != nil {
			return nil, err
		}
		batch.Status = domain.BatchStatusAssetsReady
	}

	return batch, nil
}

func assetsComplete(batch *domain.Batch, items []domain.BatchItem) bool {
	if len(items) != batch.DeclaredCount {
		return false
	}
	for i := range items {
		item := &items[i]
		if !item.HasAudio() && !item.HasVideo() {
			return false
		}
		if !item.HasRemoteAsset() {
			return false
		}
	}
	return true
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
