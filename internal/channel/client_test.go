package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/creativeops/review-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func testBatchWithItems(n int) (*domain.Batch, []domain.BatchItem) {
	batch := &domain.Batch{
		ID:            "batch-1",
		DeclaredCount: n,
		Status:        domain.BatchStatusAssetsReady,
	}

	items := make([]domain.BatchItem, 0, n)
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("script %d", i)
		items = append(items, domain.BatchItem{
			ID:            fmt.Sprintf("i-%d", i),
			BatchID:       batch.ID,
			Index:         i,
			Title:         fmt.Sprintf("Spot %d", i),
			Content:       content,
			Fingerprint:   domain.ContentFingerprint(content),
			AudioHandle:   strPtr(fmt.Sprintf("audio-%d", i)),
			VideoHandle:   strPtr(fmt.Sprintf("video-%d", i)),
			RemoteAssetID: strPtr(fmt.Sprintf("asset-%d", i)),
		})
	}

	return batch, items
}

func TestPublishBatchFansOutOneMessagePerItem(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []channelMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg channelMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("failed to decode message: %v", err)
		}
		mu.Lock()
		got = append(got, msg)
		n := len(got)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(`{"messageId":"msg-%d"}`, n)))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	batch, items := testBatchWithItems(3)
	handles, err := client.PublishBatch(context.Background(), batch, items)
	if err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}

	// One header plus one message per item.
	if len(got) != 4 {
		t.Fatalf("messages posted = %d, want 4", len(got))
	}
	if got[0].Kind != kindHeader {
		t.Fatalf("first message kind = %s, want header", got[0].Kind)
	}

	if len(handles) != 3 {
		t.Fatalf("handles = %d, want 3", len(handles))
	}
	for i, h := range handles {
		if h.ItemIndex != i {
			t.Fatalf("handle %d index = %d, want %d", i, h.ItemIndex, i)
		}
		if h.MessageRef == "" {
			t.Fatalf("handle %d has empty message ref", i)
		}
	}

	item := got[1]
	if len(item.Actions) != 2 {
		t.Fatalf("item actions = %d, want 2", len(item.Actions))
	}
	approve, err := ParseActionToken(item.Actions[0].Token)
	if err != nil {
		t.Fatalf("approve token unparseable: %v", err)
	}
	if approve.Action != domain.ActionApprove || approve.BatchID != "batch-1" || approve.ItemIndex != 0 || approve.RemoteAssetID != "asset-0" {
		t.Fatalf("approve token = %+v", approve)
	}
	reject, err := ParseActionToken(item.Actions[1].Token)
	if err != nil {
		t.Fatalf("reject token unparseable: %v", err)
	}
	if reject.Action != domain.ActionReject {
		t.Fatalf("second action = %s, want reject", reject.Action)
	}
	if !strings.Contains(item.Text, "Spot 0") {
		t.Fatalf("item text = %q, want it to contain the title", item.Text)
	}
}

func TestPublishBatchContinuesAfterItemFailure(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		// Header succeeds, second post (item 0) fails, the rest succeed.
		if n == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(fmt.Sprintf(`{"messageId":"msg-%d"}`, n)))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	batch, items := testBatchWithItems(3)
	handles, err := client.PublishBatch(context.Background(), batch, items)
	if err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}

	if calls != 4 {
		t.Fatalf("calls = %d, want 4 (failure must not abort fan-out)", calls)
	}
	if len(handles) != 2 {
		t.Fatalf("handles = %d, want 2", len(handles))
	}
	if handles[0].ItemIndex != 1 || handles[1].ItemIndex != 2 {
		t.Fatalf("handles = %+v, want items 1 and 2", handles)
	}
}

func TestPublishBatchAllItemsFailed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	batch, items := testBatchWithItems(2)
	handles, err := client.PublishBatch(context.Background(), batch, items)
	if err == nil {
		t.Fatal("expected error when no item message is delivered")
	}
	if len(handles) != 0 {
		t.Fatalf("handles = %d, want 0", len(handles))
	}
}

func TestPublishSummaryIncludesCounts(t *testing.T) {
	t.Parallel()

	var got channelMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode message: %v", err)
		}
		_, _ = w.Write([]byte(`{"messageId":"msg-s"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	err = client.PublishSummary(context.Background(), Summary{
		BatchID:       "batch-1",
		ApprovedCount: 2,
		RejectedCount: 1,
		DeletedCount:  1,
		DeleteErrors:  []string{"asset-2: gone already"},
	})
	if err != nil {
		t.Fatalf("PublishSummary() error = %v", err)
	}

	if got.Kind != kindSummary {
		t.Fatalf("kind = %s, want summary", got.Kind)
	}
	for _, want := range []string{"2 approved", "1 rejected", "1 asset(s) deleted", "1 deletion(s) failed"} {
		if !strings.Contains(got.Text, want) {
			t.Fatalf("summary text = %q, want it to contain %q", got.Text, want)
		}
	}
}

func TestPostMessageStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("channel failed"))
			}))
			defer server.Close()

			client, err := NewClient(server.URL, nil, nil)
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}

			err = client.PublishSummary(context.Background(), Summary{BatchID: "b"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}
		})
	}
}
