package action

import (
	"context"
	"errors"
	"testing"

	"github.com/aicmo/aicmo/internal/storage"
)

// memStore records action lifecycle transitions in memory.
type memStore struct {
	records map[string]*storage.ActionRecord
	creates int
	updates int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*storage.ActionRecord)}
}

func (m *memStore) CreateAction(a storage.ActionRecord) error {
	m.creates++
	copy := a
	m.records[a.ID] = &copy
	return nil
}

func (m *memStore) CompleteAction(id, result string) error {
	m.updates++
	r, ok := m.records[id]
	if !ok || r.Status != storage.ActionProcessing {
		return storage.ErrNotFound
	}
	r.Status = storage.ActionCompleted
	r.Result = result
	return nil
}

func (m *memStore) FailAction(id, errMsg string) error {
	m.updates++
	r, ok := m.records[id]
	if !ok || r.Status != storage.ActionProcessing {
		return storage.ErrNotFound
	}
	r.Status = storage.ActionFailed
	r.Error = errMsg
	return nil
}

func (m *memStore) only(t *testing.T) *storage.ActionRecord {
	t.Helper()
	if len(m.records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(m.records))
	}
	for _, r := range m.records {
		return r
	}
	return nil
}

func TestDispatchSuccess(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(store)
	d.Register("echo", HandlerFunc(func(ctx context.Context, params map[string]any) (string, error) {
		return params["msg"].(string), nil
	}))

	res, err := d.Dispatch(context.Background(), "u1", "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Result != "hi" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.ActionID == "" {
		t.Error("action id missing")
	}

	rec := store.only(t)
	if rec.Status != storage.ActionCompleted || rec.Result != "hi" {
		t.Errorf("record not completed: %+v", rec)
	}
	if store.creates != 1 || store.updates != 1 {
		t.Errorf("expected 1 create and 1 terminal update, got %d/%d", store.creates, store.updates)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(store)

	res, err := d.Dispatch(context.Background(), "u1", "unknown_type", nil)
	if err != nil {
		t.Fatalf("unknown type must not return an error: %v", err)
	}
	if res.Success {
		t.Error("expected failure")
	}
	if res.Error != "Unknown action type: unknown_type" {
		t.Errorf("error message = %q", res.Error)
	}

	rec := store.only(t)
	if rec.Status != storage.ActionFailed {
		t.Errorf("record status = %s", rec.Status)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(store)
	d.Register("boom", HandlerFunc(func(ctx context.Context, params map[string]any) (string, error) {
		return "", errors.New("handler exploded")
	}))

	res, err := d.Dispatch(context.Background(), "u1", "boom", nil)
	if err != nil {
		t.Fatalf("handler error must be isolated: %v", err)
	}
	if res.Success || res.Error != "handler exploded" {
		t.Errorf("unexpected result: %+v", res)
	}

	rec := store.only(t)
	if rec.Status != storage.ActionFailed || rec.Error != "handler exploded" {
		t.Errorf("record: %+v", rec)
	}
}

func TestDispatchHandlerPanic(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(store)
	d.Register("panic", HandlerFunc(func(ctx context.Context, params map[string]any) (string, error) {
		panic("nil map write")
	}))

	res, err := d.Dispatch(context.Background(), "u1", "panic", nil)
	if err != nil {
		t.Fatalf("panic must be isolated: %v", err)
	}
	if res.Success {
		t.Error("expected failure")
	}
	if store.only(t).Status != storage.ActionFailed {
		t.Error("panic not recorded as failed")
	}
}

func TestDispatchPostTweetDisabled(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher(store)
	d.Register("post_tweet", Tweeter{})

	res, err := d.Dispatch(context.Background(), "u1", "post_tweet", map[string]any{"text": "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Error("post_tweet must be a handled failure while disabled")
	}
	if res.Error != tweetDisabledMsg {
		t.Errorf("error = %q", res.Error)
	}
}

func TestTypesSortedWhitelist(t *testing.T) {
	d := NewDispatcher(newMemStore())
	d.Register("post_tweet", Tweeter{})
	d.Register("scrape_url", NewScraper())

	types := d.Types()
	if len(types) != 2 || types[0] != "post_tweet" || types[1] != "scrape_url" {
		t.Errorf("types = %v", types)
	}
}
