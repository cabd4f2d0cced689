package service

import (
	"context"
	"errors"
	"testing"

	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/tracker"
	"go.uber.org/zap"
)

func newTestFinalizer(t *testing.T, store *tracker.Store, batches *fakeBatchRepo, deleter *fakeDeleter, ch *fakeChannel, events *fakeEvents) *Finalizer {
	t.Helper()
	var publisher queue.EventPublisher
	if events != nil {
		publisher = events
	}
	f, err := NewFinalizer(store, batches, deleter, ch, publisher, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFinalizer() error = %v", err)
	}
	return f
}

func seedPublishedBatch(t *testing.T, batches *fakeBatchRepo, id string, count int) {
	t.Helper()
	batch := &domain.Batch{ID: id, DeclaredCount: count, Status: domain.BatchStatusPublished}
	if err := batches.Create(context.Background(), batch); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
}

func TestFinalizeDeletesOnlyRejectedAssets(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")
	store.Record("batch-1", 1, false, "asset-1", "msg-1")
	store.Record("batch-1", 2, true, "asset-2", "msg-2")

	batches := newFakeBatchRepo()
	seedPublishedBatch(t, batches, "batch-1", 3)
	deleter := &fakeDeleter{}
	ch := &fakeChannel{}
	events := &fakeEvents{}

	f := newTestFinalizer(t, store, batches, deleter, ch, events)
	result, err := f.Finalize(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if result.ApprovedCount != 2 || result.RejectedCount != 1 {
		t.Fatalf("counts = %d approved / %d rejected, want 2/1", result.ApprovedCount, result.RejectedCount)
	}
	if got := deleter.deletedIDs(); len(got) != 1 || got[0] != "asset-1" {
		t.Fatalf("deleted assets = %v, want [asset-1]", got)
	}
	if result.DeletedCount != 1 {
		t.Fatalf("DeletedCount = %d, want 1", result.DeletedCount)
	}

	if ch.summaryCount() != 1 {
		t.Fatalf("summary published %d times, want 1", ch.summaryCount())
	}
	summary := ch.summaries[0]
	if summary.ApprovedCount != 2 || summary.RejectedCount != 1 || summary.DeletedCount != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	if progress := store.Status("batch-1"); progress.ReviewedCount != 0 {
		t.Fatalf("decision table not discarded, reviewed = %d", progress.ReviewedCount)
	}
	if got := batches.statusOf("batch-1"); got != domain.BatchStatusCompleted {
		t.Fatalf("batch status = %s, want %s", got, domain.BatchStatusCompleted)
	}

	types := events.types()
	if len(types) != 1 || types[0] != queue.EventBatchCompleted {
		t.Fatalf("events = %v, want single %s", types, queue.EventBatchCompleted)
	}
}

func TestFinalizeSurvivesDeleteFailures(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, false, "asset-0", "msg-0")
	store.Record("batch-1", 1, false, "asset-1", "msg-1")

	batches := newFakeBatchRepo()
	seedPublishedBatch(t, batches, "batch-1", 2)
	deleter := &fakeDeleter{failIDs: map[string]bool{"asset-0": true}}
	ch := &fakeChannel{}

	f := newTestFinalizer(t, store, batches, deleter, ch, nil)
	result, err := f.Finalize(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if result.DeletedCount != 1 || len(result.DeleteErrors) != 1 {
		t.Fatalf("deleted = %d errors = %v, want 1 deletion and 1 error", result.DeletedCount, result.DeleteErrors)
	}
	if ch.summaryCount() != 1 {
		t.Fatal("summary skipped after partial deletion failure")
	}
	if got := batches.statusOf("batch-1"); got != domain.BatchStatusCompleted {
		t.Fatalf("batch status = %s, want %s", got, domain.BatchStatusCompleted)
	}
}

func TestFinalizeSurvivesSummaryFailure(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")

	batches := newFakeBatchRepo()
	seedPublishedBatch(t, batches, "batch-1", 1)
	ch := &fakeChannel{summaryErr: errors.New("channel down")}

	f := newTestFinalizer(t, store, batches, &fakeDeleter{}, ch, nil)
	if _, err := f.Finalize(context.Background(), "batch-1"); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if progress := store.Status("batch-1"); progress.ReviewedCount != 0 {
		t.Fatal("decision table kept after summary failure")
	}
	if got := batches.statusOf("batch-1"); got != domain.BatchStatusCompleted {
		t.Fatalf("batch status = %s, want %s", got, domain.BatchStatusCompleted)
	}
}

func TestFinalizeSkipsBlankAssetIDs(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, false, "", "msg-0")

	batches := newFakeBatchRepo()
	seedPublishedBatch(t, batches, "batch-1", 1)
	deleter := &fakeDeleter{}

	f := newTestFinalizer(t, store, batches, deleter, &fakeChannel{}, nil)
	result, err := f.Finalize(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(deleter.deletedIDs()) != 0 || result.DeletedCount != 0 {
		t.Fatalf("deletion attempted for decision without an asset id: %v", deleter.deletedIDs())
	}
	if result.RejectedCount != 1 {
		t.Fatalf("RejectedCount = %d, want 1", result.RejectedCount)
	}
}

func TestFinalizeUnknownBatch(t *testing.T) {
	t.Parallel()

	f := newTestFinalizer(t, tracker.NewStore(nil), newFakeBatchRepo(), &fakeDeleter{}, &fakeChannel{}, nil)
	_, err := f.Finalize(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Finalize() error = %v, want ErrNotFound", err)
	}
}
