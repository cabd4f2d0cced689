package service

import (
	"context"
	"fmt"
	"time"

	"github.com/creativeops/review-engine/internal/assetstore"
	"github.com/creativeops/review-engine/internal/channel"
	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/observability"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SummaryPublisher posts the end-of-review summary to the review channel.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, summary channel.Summary) error
}

// FinalizeResult reports what the cleanup pass actually did.
type FinalizeResult struct {
	BatchID       string
	ApprovedCount int
	RejectedCount int
	DeletedCount  int
	DeleteErrors  []string
}

// Finalizer runs the cleanup pass for a fully reviewed batch: rejected
// remote assets are deleted best-effort, a summary goes to the review
// channel, the in-memory decision table is torn down and the batch is
// marked completed.
type Finalizer struct {
	tracker TrackerStore
	batches repository.BatchRepository
	deleter assetstore.Deleter
	channel SummaryPublisher
	events  queue.EventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewFinalizer(
	trackerStore TrackerStore,
	batches repository.BatchRepository,
	deleter assetstore.Deleter,
	summaries SummaryPublisher,
	events queue.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*Finalizer, error) {
	if trackerStore == nil {
		return nil, fmt.Errorf("tracker store is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if deleter == nil {
		return nil, fmt.Errorf("asset deleter is required")
	}
	if summaries == nil {
		return nil, fmt.Errorf("summary publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Finalizer{
		tracker: trackerStore,
		batches: batches,
		deleter: deleter,
		channel: summaries,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Finalize never aborts on a downstream failure: every step after the
// snapshot is best-effort, so a flaky asset store or channel cannot leave
// the batch stuck in watching state.
func (f *Finalizer) Finalize(ctx context.Context, batchID string) (*FinalizeResult, error) {
	decisions := f.tracker.Snapshot(batchID)
	if len(decisions) == 0 {
		return nil, fmt.Errorf("%w: no decisions recorded for batch %s", domain.ErrNotFound, batchID)
	}

	result := &FinalizeResult{BatchID: batchID}
	rejectedAssets := make([]string, 0, len(decisions))
	for _, decision := range decisions {
		if decision.Approved {
			result.ApprovedCount++
			continue
		}
		result.RejectedCount++
		if decision.RemoteAssetID != "" {
			rejectedAssets = append(rejectedAssets, decision.RemoteAssetID)
		}
	}

	deleteResult := f.deleter.DeleteAll(ctx, rejectedAssets)
	result.DeletedCount = deleteResult.DeletedCount
	result.DeleteErrors = deleteResult.Errors
	f.metrics.AddAssetsDeleted(deleteResult.DeletedCount)
	f.metrics.AddAssetDeleteFailures(len(deleteResult.Errors))
	if len(deleteResult.Errors) > 0 {
		f.logger.Warn("some rejected assets could not be deleted",
			zap.String("batchId", batchID),
			zap.Strings("errors", deleteResult.Errors),
		)
	}

	summary := channel.Summary{
		BatchID:       batchID,
		ApprovedCount: result.ApprovedCount,
		RejectedCount: result.RejectedCount,
		DeletedCount:  result.DeletedCount,
		DeleteErrors:  result.DeleteErrors,
	}
	if err := f.channel.PublishSummary(ctx, summary); err != nil {
		f.logger.Warn("failed to publish review summary",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}

	f.tracker.Discard(batchID)

	if err := f.batches.AdvanceStatus(ctx, batchID, domain.BatchStatusCompleted); err != nil {
		f.logger.Error("failed to mark batch completed",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}

	f.emitCompleted(ctx, result, len(decisions))

	return result, nil
}

func (f *Finalizer) emitCompleted(ctx context.Context, result *FinalizeResult, itemCount int) {
	if f.events == nil {
		return
	}

	event := queue.BatchEvent{
		EventID:       uuid.NewString(),
		Type:          queue.EventBatchCompleted,
		BatchID:       result.BatchID,
		ItemCount:     itemCount,
		ApprovedCount: result.ApprovedCount,
		RejectedCount: result.RejectedCount,
		DeletedCount:  result.DeletedCount,
		OccurredAt:    f.now().UTC(),
	}
	if err := f.events.Publish(ctx, event); err != nil {
		f.logger.Warn("failed to emit batch completed event",
			zap.String("batchId", result.BatchID),
			zap.Error(err),
		)
	}
}
