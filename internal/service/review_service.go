package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/creativeops/review-engine/internal/channel"
	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/observability"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelPublisher fans a batch out to the review channel.
type ChannelPublisher interface {
	PublishBatch(ctx context.Context, batch *domain.Batch, items []domain.BatchItem) ([]channel.ItemHandle, error)
	PublishSummary(ctx context.Context, summary channel.Summary) error
}

// DecisionRecorder extends the tracker read surface with decision writes.
type DecisionRecorder interface {
	TrackerStore
	Record(batchID string, itemIndex int, approved bool, assetID, channelRef string)
}

// ValidationFailedError carries the itemized report of a failed publish
// gate. Integrity violations take precedence when classifying it.
type ValidationFailedError struct {
	Issues     []string
	Violations []string
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, 0, len(e.Violations)+len(e.Issues))
	parts = append(parts, e.Violations...)
	parts = append(parts, e.Issues...)
	return fmt.Sprintf("batch failed validation: %s", strings.Join(parts, "; "))
}

func (e *ValidationFailedError) Unwrap() error {
	if len(e.Violations) > 0 {
		return domain.ErrIntegrity
	}
	return domain.ErrValidation
}

// PublishResult reports the outcome of a successful batch publish.
type PublishResult struct {
	BatchID        string
	PublishedCount int
	Handles        []channel.ItemHandle
}

// DecisionResult reports how a decision callback was applied.
type DecisionResult struct {
	BatchID   string
	ItemIndex int
	Approved  bool
	Progress  Progress
}

// Progress mirrors the tracker counters for API responses.
type Progress struct {
	ReviewedCount int
	ApprovedCount int
	RejectedCount int
}

// ReviewService drives the approval workflow: the integrity-gated publish,
// decision callbacks from the review channel and the completion watch.
type ReviewService struct {
	batches repository.BatchRepository
	items   repository.ItemRepository
	tracker DecisionRecorder
	channel ChannelPublisher
	monitor *Monitor
	events  queue.EventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
	spawn   func(func())
}

func NewReviewService(
	batches repository.BatchRepository,
	items repository.ItemRepository,
	trackerStore DecisionRecorder,
	channelClient ChannelPublisher,
	monitor *Monitor,
	events queue.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*ReviewService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if trackerStore == nil {
		return nil, fmt.Errorf("tracker store is required")
	}
	if channelClient == nil {
		return nil, fmt.Errorf("channel publisher is required")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReviewService{
		batches: batches,
		items:   items,
		tracker: trackerStore,
		channel: channelClient,
		monitor: monitor,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		spawn:   func(fn func()) { go fn() },
	}, nil
}

// Integrity runs the strict validation pass and returns the full report
// without gating anything. Operators use it to inspect a batch before
// publishing.
func (s *ReviewService) Integrity(ctx context.Context, batchID string) (domain.ValidationReport, error) {
	batch, items, err := s.load(ctx, batchID)
	if err != nil {
		return domain.ValidationReport{}, err
	}
	return domain.ValidateStrict(batch, items), nil
}

// Publish runs the strict validation gate and fans the batch out to the
// review channel. Any integrity violation fails the publish closed: a
// tampered batch never reaches reviewers.
func (s *ReviewService) Publish(ctx context.Context, batchID string) (*PublishResult, error) {
	batch, items, err := s.load(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == domain.BatchStatusPublished || batch.Status == domain.BatchStatusCompleted {
		return nil, fmt.Errorf("%w: batch %s is already %s", domain.ErrConflict, batch.ID, batch.Status)
	}

	report := domain.ValidateStrict(batch, items)
	issues := append([]string{}, report.Issues...)
	for i := range items {
		if !items[i].HasRemoteAsset() {
			issues = append(issues, fmt.Sprintf("item %d has no remote asset id", items[i].Index))
		}
	}
	if len(issues) > 0 || report.HasIntegrityViolation() {
		if report.HasIntegrityViolation() {
			s.metrics.IncIntegrityViolation()
			observability.SecurityEvent(observability.WithContextLogger(s.logger, ctx), "batch blocked by integrity violation",
				zap.String("batchId", batch.ID),
				zap.Strings("violations", report.IntegrityViolations),
			)
		}
		return nil, &ValidationFailedError{Issues: issues, Violations: report.IntegrityViolations}
	}

	handles, err := s.channel.PublishBatch(ctx, batch, items)
	if err != nil {
		s.metrics.IncPublishFailure()
		return nil, fmt.Errorf("failed to publish batch %s: %w", batch.ID, err)
	}

	s.tracker.Ensure(batch.ID)

	if err := s.batches.AdvanceStatus(ctx, batch.ID, domain.BatchStatusPublished); err != nil {
		s.logger.Error("failed to mark batch published",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}

	s.metrics.IncBatchPublished()
	s.emitPublished(ctx, batch.ID, len(items))

	// The watch must outlive the publish request.
	watchCtx := context.WithoutCancel(ctx)
	declaredCount := batch.DeclaredCount
	s.spawn(func() {
		s.monitor.Watch(watchCtx, batch.ID, declaredCount)
	})

	return &PublishResult{
		BatchID:        batch.ID,
		PublishedCount: len(handles),
		Handles:        handles,
	}, nil
}

// RecordDecision applies a reviewer's approve/reject callback. Repeat
// callbacks for the same item overwrite the previous decision, so a
// reviewer changing their mind is handled without special casing.
func (s *ReviewService) RecordDecision(ctx context.Context, token channel.ActionToken, messageRef string) (*DecisionResult, error) {
	approved := token.Action == domain.ActionApprove

	s.tracker.Record(token.BatchID, token.ItemIndex, approved, token.RemoteAssetID, messageRef)
	s.metrics.IncDecisionRecorded(approved)

	progress := s.tracker.Status(token.BatchID)
	observability.WithContextLogger(s.logger, ctx).Info("review decision recorded",
		zap.String("batchId", token.BatchID),
		zap.Int("itemIndex", token.ItemIndex),
		zap.Bool("approved", approved),
		zap.Int("reviewedCount", progress.ReviewedCount),
	)

	return &DecisionResult{
		BatchID:   token.BatchID,
		ItemIndex: token.ItemIndex,
		Approved:  approved,
		Progress: Progress{
			ReviewedCount: progress.ReviewedCount,
			ApprovedCount: progress.ApprovedCount,
			RejectedCount: progress.RejectedCount,
		},
	}, nil
}

func (s *ReviewService) load(ctx context.Context, batchID string) (*domain.Batch, []domain.BatchItem, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.items.GetByBatchID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return batch, items, nil
}

func (s *ReviewService) emitPublished(ctx context.Context, batchID string, itemCount int) {
	if s.events == nil {
		return
	}
	event := queue.BatchEvent{
		EventID:    uuid.NewString(),
		Type:       queue.EventBatchPublished,
		BatchID:    batchID,
		ItemCount:  itemCount,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to emit batch published event",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
