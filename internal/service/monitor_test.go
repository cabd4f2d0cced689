package service

import (
	"context"
	"testing"
	"time"

	"github.com/creativeops/review-engine/internal/queue"
	"github.com/creativeops/review-engine/internal/tracker"
	"go.uber.org/zap"
)

func newTestMonitor(t *testing.T, store *tracker.Store, finalizer BatchFinalizer, events queue.EventPublisher, interval time.Duration, maxTicks int) *Monitor {
	t.Helper()
	m, err := NewMonitor(store, finalizer, events, nil, zap.NewNop(), interval, maxTicks)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	return m
}

func TestMonitorCheckIncomplete(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")

	finalizer := &fakeFinalizer{}
	m := newTestMonitor(t, store, finalizer, nil, time.Second, 10)

	if m.check(context.Background(), "batch-1", 3) {
		t.Fatal("check() = true with 1 of 3 items reviewed")
	}
	if finalizer.callCount() != 0 {
		t.Fatalf("finalizer called %d times before completion", finalizer.callCount())
	}
}

func TestMonitorCheckComplete(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")
	store.Record("batch-1", 1, false, "asset-1", "msg-1")

	finalizer := &fakeFinalizer{}
	m := newTestMonitor(t, store, finalizer, nil, time.Second, 10)

	if !m.check(context.Background(), "batch-1", 2) {
		t.Fatal("check() = false with every item reviewed")
	}
	if finalizer.callCount() != 1 {
		t.Fatalf("finalizer called %d times, want 1", finalizer.callCount())
	}
}

func TestMonitorWatchCompletes(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")
	store.Record("batch-1", 1, true, "asset-1", "msg-1")

	finalizer := &fakeFinalizer{}
	events := &fakeEvents{}
	m := newTestMonitor(t, store, finalizer, events, 5*time.Millisecond, 100)

	done := make(chan struct{})
	go func() {
		m.Watch(context.Background(), "batch-1", 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after batch completed")
	}

	if finalizer.callCount() != 1 {
		t.Fatalf("finalizer called %d times, want 1", finalizer.callCount())
	}
	if got := events.types(); len(got) != 0 {
		t.Fatalf("unexpected events on completion: %v", got)
	}
}

func TestMonitorWatchTimesOut(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	store.Record("batch-1", 0, true, "asset-0", "msg-0")

	finalizer := &fakeFinalizer{}
	events := &fakeEvents{}
	m := newTestMonitor(t, store, finalizer, events, 2*time.Millisecond, 3)

	done := make(chan struct{})
	go func() {
		m.Watch(context.Background(), "batch-1", 5)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after exhausting its tick budget")
	}

	if finalizer.callCount() != 0 {
		t.Fatalf("finalizer called %d times on timeout, want 0", finalizer.callCount())
	}
	got := events.types()
	if len(got) != 1 || got[0] != queue.EventBatchTimedOut {
		t.Fatalf("events = %v, want single %s", got, queue.EventBatchTimedOut)
	}
	if progress := store.Status("batch-1"); progress.ReviewedCount != 1 {
		t.Fatalf("decision table torn down on timeout, reviewed = %d", progress.ReviewedCount)
	}
}

func TestMonitorWatchCanceled(t *testing.T) {
	t.Parallel()

	store := tracker.NewStore(nil)
	finalizer := &fakeFinalizer{}
	m := newTestMonitor(t, store, finalizer, nil, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, "batch-1", 2)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after context cancel")
	}
	if finalizer.callCount() != 0 {
		t.Fatalf("finalizer called %d times after cancel, want 0", finalizer.callCount())
	}
}

func TestNewMonitorDefaults(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, tracker.NewStore(nil), &fakeFinalizer{}, nil, 0, 0)
	if m.interval != DefaultMonitorInterval {
		t.Fatalf("interval = %v, want %v", m.interval, DefaultMonitorInterval)
	}
	if m.maxTicks != DefaultMonitorMaxTicks {
		t.Fatalf("maxTicks = %d, want %d", m.maxTicks, DefaultMonitorMaxTicks)
	}
}

func TestNewMonitorRequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewMonitor(nil, &fakeFinalizer{}, nil, nil, nil, time.Second, 1); err == nil {
		t.Fatal("NewMonitor() accepted nil tracker")
	}
	if _, err := NewMonitor(tracker.NewStore(nil), nil, nil, nil, nil, time.Second, 1); err == nil {
		t.Fatal("NewMonitor() accepted nil finalizer")
	}
}
