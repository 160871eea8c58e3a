package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/queue"
	"sharpms/dashboard/internal/storage"
	"sharpms/dashboard/internal/views"
)

type fakeAPI struct {
	err    error
	token  string
	path   string
	called int
}

func (f *fakeAPI) Get(_ context.Context, token string, path string) (json.RawMessage, error) {
	f.called++
	f.token = token
	f.path = path
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`[{"id":1}]`), nil
}

type recordingNotifier struct {
	updates []hub.Update
}

func (n *recordingNotifier) Publish(_ context.Context, u hub.Update) error {
	n.updates = append(n.updates, u)
	return nil
}

func newProcessor(t *testing.T, api *fakeAPI) (*Processor, *storage.MemoryStorage, *recordingNotifier, *fetch.MemoryCache) {
	t.Helper()
	store := storage.NewMemoryStorage()
	cache := fetch.NewMemoryCache(time.Now)
	fetcher := fetch.NewFetcher(cache, 5*time.Minute, 10*time.Minute, zerolog.Nop())
	notifier := &recordingNotifier{}
	return NewProcessor(store, views.NewRegistry(nil), api, fetcher, notifier, zerolog.Nop()), store, notifier, cache
}

func seedSession(t *testing.T, store storage.Storage, deviceID string) {
	t.Helper()
	err := store.Set(context.Background(), deviceID, map[string]string{
		storage.KeyUser:         `{"id":"u1","name":"Ada","roles":["Staff"],"onboarded":true}`,
		storage.KeyAccessToken:  "at",
		storage.KeyRefreshToken: "rt",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestProcess_RefreshesAndPublishes(t *testing.T) {
	api := &fakeAPI{}
	p, store, notifier, cache := newProcessor(t, api)
	seedSession(t, store, "dev-1")

	err := p.Process(context.Background(), queue.Task{Type: queue.TaskRefresh, View: "notifications", DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if api.token != "at" || api.path != "/notifications" {
		t.Fatalf("unexpected call: token=%q path=%q", api.token, api.path)
	}
	if len(notifier.updates) != 1 || notifier.updates[0].View != "notifications" || notifier.updates[0].DeviceID != "dev-1" {
		t.Fatalf("unexpected updates: %+v", notifier.updates)
	}
	if _, ok, _ := cache.Get(context.Background(), views.CacheKey("u1", "notifications")); !ok {
		t.Fatalf("expected cached payload")
	}
}

func TestProcess_SkipsLoggedOutDevice(t *testing.T) {
	api := &fakeAPI{}
	p, _, notifier, _ := newProcessor(t, api)

	err := p.Process(context.Background(), queue.Task{Type: queue.TaskRefresh, View: "notifications", DeviceID: "gone"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if api.called != 0 || len(notifier.updates) != 0 {
		t.Fatalf("expected no work for logged out device")
	}
}

func TestProcess_UnauthorizedIsNotRetried(t *testing.T) {
	api := &fakeAPI{err: &apiclient.APIError{StatusCode: http.StatusUnauthorized}}
	p, store, notifier, _ := newProcessor(t, api)
	seedSession(t, store, "dev-1")

	if err := p.Process(context.Background(), queue.Task{Type: queue.TaskRefresh, View: "meals", DeviceID: "dev-1"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(notifier.updates) != 0 {
		t.Fatalf("expected no update")
	}
}

func TestProcess_ServerErrorIsReturned(t *testing.T) {
	api := &fakeAPI{err: &apiclient.APIError{StatusCode: http.StatusBadGateway}}
	p, store, _, _ := newProcessor(t, api)
	seedSession(t, store, "dev-1")

	err := p.Process(context.Background(), queue.Task{Type: queue.TaskRefresh, View: "meals", DeviceID: "dev-1"})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestProcess_UnknownViewAndType(t *testing.T) {
	api := &fakeAPI{}
	p, _, _, _ := newProcessor(t, api)

	if err := p.Process(context.Background(), queue.Task{Type: queue.TaskRefresh, View: "nope"}); err != nil {
		t.Fatalf("unknown view: %v", err)
	}
	if err := p.Process(context.Background(), queue.Task{Type: "other"}); err != nil {
		t.Fatalf("unknown type: %v", err)
	}
	if api.called != 0 {
		t.Fatalf("expected no api calls")
	}
}
