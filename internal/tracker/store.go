package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/creativeops/review-engine/internal/domain"
	"go.uber.org/zap"
)

// Progress is a consistent snapshot of review counts for one batch.
type Progress struct {
	ReviewedCount int
	ApprovedCount int
	RejectedCount int
}

// Store holds in-memory decision tables keyed by batch id. Each batch table
// has its own mutex so callbacks for unrelated batches never contend. State
// is non-durable: a restart loses in-flight decisions.
type Store struct {
	mu      sync.Mutex
	batches map[string]*table
	logger  *zap.Logger
	now     func() time.Time
}

type table struct {
	mu        sync.Mutex
	decisions map[int]domain.Decision
	createdAt time.Time
	updatedAt time.Time
}

func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		batches: make(map[string]*table),
		logger:  logger,
		now:     time.Now,
	}
}

// Ensure materializes an empty decision table for a batch. Called at publish
// time; Record also creates tables lazily, so publish and the first callback
// need no ordering between them.
func (s *Store) Ensure(batchID string) {
	s.tableFor(batchID)
}

// Record upserts a decision. Last write wins: a repeated decision for the
// same item index overwrites, it never appends.
func (s *Store) Record(batchID string, itemIndex int, approved bool, assetID, channelRef string) {
	t := s.tableFor(batchID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.decisions[itemIndex]; exists {
		s.logger.Info("overwriting earlier decision",
			zap.String("batchId", batchID),
			zap.Int("itemIndex", itemIndex),
			zap.Bool("approved", approved),
		)
	}

	now := s.now().UTC()
	t.decisions[itemIndex] = domain.Decision{
		BatchID:           batchID,
		ItemIndex:         itemIndex,
		Approved:          approved,
		ChannelMessageRef: channelRef,
		RemoteAssetID:     assetID,
		RecordedAt:        now,
	}
	t.updatedAt = now
}

// Status returns review counts for a batch. A batch with no table reads as
// zero progress.
func (s *Store) Status(batchID string) Progress {
	t := s.lookup(batchID)
	if t == nil {
		return Progress{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var progress Progress
	for _, d := range t.decisions {
		progress.ReviewedCount++
		if d.Approved {
			progress.ApprovedCount++
		} else {
			progress.RejectedCount++
		}
	}
	return progress
}

// Snapshot returns a copy of all decisions for a batch, ordered by item index.
func (s *Store) Snapshot(batchID string) []domain.Decision {
	t := s.lookup(batchID)
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	decisions := make([]domain.Decision, 0, len(t.decisions))
	for _, d := range t.decisions {
		decisions = append(decisions, d)
	}
	sort.Slice(decisions, func(i, j int) bool {
		return decisions[i].ItemIndex < decisions[j].ItemIndex
	})
	return decisions
}

// Discard drops a batch's table. Called at finalize so the store cannot grow
// unbounded across the process lifetime.
func (s *Store) Discard(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, batchID)
}

// DiscardStale drops tables untouched for longer than maxAge and returns how
// many were reclaimed. Covers tables left behind by timed-out monitors and
// stray callbacks for unknown batches.
func (s *Store) DiscardStale(maxAge time.Duration) int {
	cutoff := s.now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for batchID, t := range s.batches {
		t.mu.Lock()
		last := t.updatedAt
		if last.IsZero() {
			last = t.createdAt
		}
		t.mu.Unlock()

		if last.Before(cutoff) {
			delete(s.batches, batchID)
			reclaimed++
			s.logger.Info("reclaimed stale decision table", zap.String("batchId", batchID))
		}
	}
	return reclaimed
}

func (s *Store) tableFor(batchID string) *table {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.batches[batchID]
	if !ok {
		t = &table{
			decisions: make(map[int]domain.Decision),
			createdAt: s.now().UTC(),
		}
		s.batches[batchID] = t
	}
	return t
}

func (s *Store) lookup(batchID string) *table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[batchID]
}
