package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
	"pdptw/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}

type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
	Next    *time.Time
}

type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError, Next: nextAttemptAt})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnceSignsAndMarksSuccess(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	body := []byte(`{"id":"evt1"}`)
	id, err := rs.EnqueueWebhook(context.Background(), "run-1", EventRunCompleted, srv.URL, "secret", body)
	require.NoError(t, err)

	w.processOnce()

	require.Equal(t, EventRunCompleted, gotType)
	require.True(t, VerifyHMAC("secret", gotBody, gotSig))
	require.Len(t, rs.marks, 1)
	require.Equal(t, id, rs.marks[0].ID)
	require.True(t, rs.marks[0].Success)
	require.Equal(t, http.StatusOK, rs.marks[0].Code)
}

func TestWorkerProcessOnceRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	_, err := rs.EnqueueWebhook(context.Background(), "run-1", EventRunCompleted, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w.processOnce()
	require.Len(t, rs.marks, 1)
	require.False(t, rs.marks[0].Success)
	require.Equal(t, "unexpected status 500", rs.marks[0].LastErr)
	require.NotNil(t, rs.marks[0].Next)
	require.Empty(t, rs.fails)

	// The retry is scheduled in the future, so nothing is due yet.
	w.processOnce()
	require.Len(t, rs.marks, 1)
}

func TestWorkerFailsAtMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, err := rs.EnqueueWebhook(context.Background(), "run-1", EventRunCompleted, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w.processOnce()
	require.Len(t, rs.fails, 1)
	require.Equal(t, http.StatusBadGateway, rs.fails[0].Code)
	failed, err := rs.ListWebhookDeliveries(context.Background(), "run-1", store.DeliveryFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestNextBackoff(t *testing.T) {
	require.Equal(t, time.Second, nextBackoff(-1))
	require.Equal(t, 8*time.Second, nextBackoff(3))
	require.Equal(t, time.Hour, nextBackoff(40))
}

func TestNewWorkerDefaultsMaxAttempts(t *testing.T) {
	require.Equal(t, defaultMaxAttempts, NewWorker(store.NewMemory(), 0).MaxAttempts)
	require.Equal(t, 4, NewWorker(store.NewMemory(), 4).MaxAttempts)
}

func TestPublisherRunCompleted(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPublisher(mem)

	id, err := p.RunCompleted(ctx, model.Run{ID: "run-1", Status: model.RunSucceeded})
	require.NoError(t, err)
	require.Empty(t, id)

	id, err = p.RunCompleted(ctx, model.Run{ID: "run-2", Status: model.RunSucceeded, CallbackURL: "http://hook", CallbackSecret: "s"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ds, err := mem.ListWebhookDeliveries(ctx, "run-2", "")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	require.Equal(t, "s", ds[0].Secret)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(ds[0].Payload, &payload))
	require.Equal(t, EventRunCompleted, payload["type"])
	require.Equal(t, "run-2", payload["runId"])
}
