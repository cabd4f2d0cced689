package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/creativeops/review-engine/internal/assetstore"
	"github.com/creativeops/review-engine/internal/channel"
	"github.com/creativeops/review-engine/internal/domain"
	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/repository"
)

type fakeBatchRepo struct {
	mu       sync.Mutex
	batches  map[string]*domain.Batch
	advanced []domain.BatchStatus

	createErr  error
	advanceErr error
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[string]*domain.Batch)}
}

func (r *fakeBatchRepo) Create(_ context.Context, b *domain.Batch) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *b
	r.batches[b.ID] = &copied
	return nil
}

func (r *fakeBatchRepo) GetByID(_ context.Context, id string) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBatchRepo) List(_ context.Context, _ repository.ListParams) ([]domain.Batch, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeBatchRepo) AdvanceStatus(_ context.Context, id string, next domain.BatchStatus) error {
	if r.advanceErr != nil {
		return r.advanceErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("%w: batch %s", domain.ErrNotFound, id)
	}
	if !b.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: cannot advance from %s to %s", domain.ErrConflict, b.Status, next)
	}
	b.Status = next
	r.advanced = append(r.advanced, next)
	return nil
}

func (r *fakeBatchRepo) statusOf(id string) domain.BatchStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[id].Status
}

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[string][]domain.BatchItem

	replaceErr error
	attachErr  error
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[string][]domain.BatchItem)}
}

func (r *fakeItemRepo) ReplaceForBatch(_ context.Context, batchID string, items []*domain.BatchItem) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]domain.BatchItem, 0, len(items))
	for _, item := range items {
		stored = append(stored, *item)
	}
	r.items[batchID] = stored
	return nil
}

func (r *fakeItemRepo) GetByBatchID(_ context.Context, batchID string) ([]domain.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BatchItem, len(r.items[batchID]))
	copy(out, r.items[batchID])
	return out, nil
}

func (r *fakeItemRepo) AttachAssets(_ context.Context, batchID string, updates []repository.AssetUpdate) error {
	if r.attachErr != nil {
		return r.attachErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.items[batchID]
	for _, update := range updates {
		for i := range stored {
			if stored[i].Index != update.ItemIndex {
				continue
			}
			if update.AudioHandle != nil {
				stored[i].AudioHandle = update.AudioHandle
			}
			if update.VideoHandle != nil {
				stored[i].VideoHandle = update.VideoHandle
			}
			if update.RemoteAssetID != nil {
				stored[i].RemoteAssetID = update.RemoteAssetID
			}
		}
	}
	r.items[batchID] = stored
	return nil
}

type fakeChannel struct {
	mu        sync.Mutex
	published [][]domain.BatchItem
	summaries []channel.Summary

	publishErr error
	summaryErr error
}

func (c *fakeChannel) PublishBatch(_ context.Context, _ *domain.Batch, items []domain.BatchItem) ([]channel.ItemHandle, error) {
	if c.publishErr != nil {
		return nil, c.publishErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, items)
	handles := make([]channel.ItemHandle, 0, len(items))
	for i := range items {
		handles = append(handles, channel.ItemHandle{
			ItemIndex:  items[i].Index,
			MessageRef: fmt.Sprintf("msg-%d", items[i].Index),
		})
	}
	return handles, nil
}

func (c *fakeChannel) PublishSummary(_ context.Context, summary channel.Summary) error {
	if c.summaryErr != nil {
		return c.summaryErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, summary)
	return nil
}

func (c *fakeChannel) summaryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.summaries)
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string

	failIDs map[string]bool
}

func (d *fakeDeleter) DeleteAll(_ context.Context, assetIDs []string) assetstore.DeleteResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := assetstore.DeleteResult{}
	for _, id := range assetIDs {
		if d.failIDs[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("asset %s: simulated failure", id))
			continue
		}
		d.deleted = append(d.deleted, id)
		result.DeletedCount++
	}
	return result
}

func (d *fakeDeleter) deletedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.deleted))
	copy(out, d.deleted)
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []queue.BatchEvent

	publishErr error
}

func (e *fakeEvents) Publish(_ context.Context, event queue.BatchEvent) error {
	if e.publishErr != nil {
		return e.publishErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) Close() error { return nil }

func (e *fakeEvents) types() []queue.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]queue.EventType, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.Type)
	}
	return out
}

type fakeFinalizer struct {
	mu     sync.Mutex
	calls  []string
	result *FinalizeResult
	err    error
}

func (f *fakeFinalizer) Finalize(_ context.Context, batchID string) (*FinalizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, batchID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &FinalizeResult{BatchID: batchID}, nil
}

func (f *fakeFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
