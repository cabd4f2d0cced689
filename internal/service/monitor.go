package service

import (
	"context"
	"fmt"
	"time"

	"github.com/creativeops/review-engine/internal/observability"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMonitorInterval = 30 * time.Second
	DefaultMonitorMaxTicks = 120
)

// BatchFinalizer runs the cleanup pass once a batch is fully reviewed.
type BatchFinalizer interface {
	Finalize(ctx context.Context, batchID string) (*FinalizeResult, error)
}

// Monitor polls the decision tracker for a published batch until every
// declared item has a decision, then hands the batch to the finalizer.
// A bounded tick budget keeps abandoned batches from being watched forever.
type Monitor struct {
	tracker   TrackerStore
	finalizer BatchFinalizer
	events    queue.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	interval  time.Duration
	maxTicks  int
	now       func() time.Time
}

func NewMonitor(
	trackerStore TrackerStore,
	finalizer BatchFinalizer,
	events queue.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
	interval time.Duration,
	maxTicks int,
) (*Monitor, error) {
	if trackerStore == nil {
		return nil, fmt.Errorf("tracker store is required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if maxTicks <= 0 {
		maxTicks = DefaultMonitorMaxTicks
	}

	return &Monitor{
		tracker:   trackerStore,
		finalizer: finalizer,
		events:    events,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		maxTicks:  maxTicks,
		now:       time.Now,
	}, nil
}

// Watch blocks until the batch completes, the tick budget runs out or the
// context is canceled. Callers run it in its own goroutine per batch.
func (m *Monitor) Watch(ctx context.Context, batchID string, declaredCount int) {
	m.metrics.IncMonitorsWatching()
	defer m.metrics.DecMonitorsWatching()

	m.logger.Info("watching batch for review completion",
		zap.String("batchId", batchID),
		zap.Int("declaredCount", declaredCount),
		zap.Duration("interval", m.interval),
		zap.Int("maxTicks", m.maxTicks),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			m.logger.Info("batch monitor stopped",
				zap.String("batchId", batchID),
				zap.Error(ctx.Err()),
			)
			return
		case <-ticker.C:
			if m.check(ctx, batchID, declaredCount) {
				m.metrics.IncBatchCompleted("complete")
				return
			}
			if tick >= m.maxTicks {
				m.timeout(ctx, batchID, declaredCount)
				return
			}
		}
	}
}

// check reports whether the batch is fully reviewed, running finalization
// when it is.
func (m *Monitor) check(ctx context.Context, batchID string, declaredCount int) bool {
	progress := m.tracker.Status(batchID)
	if progress.ReviewedCount < declaredCount {
		m.logger.Debug("batch review still in progress",
			zap.String("batchId", batchID),
			zap.Int("reviewedCount", progress.ReviewedCount),
			zap.Int("declaredCount", declaredCount),
		)
		return false
	}

	m.logger.Info("batch fully reviewed",
		zap.String("batchId", batchID),
		zap.Int("approvedCount", progress.ApprovedCount),
		zap.Int("rejectedCount", progress.RejectedCount),
	)

	if _, err := m.finalizer.Finalize(ctx, batchID); err != nil {
		m.logger.Error("batch finalization failed",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
	return true
}

// timeout abandons the watch without cleanup: the decision table stays in
// memory for operator inspection until the retention sweep reclaims it.
func (m *Monitor) timeout(ctx context.Context, batchID string, declaredCount int) {
	progress := m.tracker.Status(batchID)
	m.logger.Warn("batch review timed out",
		zap.String("batchId", batchID),
		zap.Int("reviewedCount", progress.ReviewedCount),
		zap.Int("declaredCount", declaredCount),
		zap.Int("maxTicks", m.maxTicks),
	)
	m.metrics.IncBatchCompleted("timed_out")

	if m.events == nil {
		return
	}
	event := queue.BatchEvent{
		EventID:       uuid.NewString(),
		Type:          queue.EventBatchTimedOut,
		BatchID:       batchID,
		ItemCount:     declaredCount,
		ApprovedCount: progress.ApprovedCount,
		RejectedCount: progress.RejectedCount,
		OccurredAt:    m.now().UTC(),
	}
	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to emit batch timed out event",
			zap.String("batchId", batchID),
			zap.Error(err),
		)
	}
}
