package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("listing migrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	if versions[0] != 1 {
		t.Errorf("expected first migration version 1, got %d", versions[0])
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)

	u := User{
		ID:           "u1",
		Email:        "breezy@example.com",
		DisplayName:  "Breezy",
		APIToken:     "tok-abc",
		ContextsJSON: `{"company":{"user":{"name":"Breezy"},"business":{}}}`,
	}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	got, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("getting user: %v", err)
	}
	if got.Email != u.Email || got.ContextsJSON != u.ContextsJSON {
		t.Errorf("user mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	byToken, err := s.GetUserByToken("tok-abc")
	if err != nil {
		t.Fatalf("getting user by token: %v", err)
	}
	if byToken.ID != "u1" {
		t.Errorf("expected u1, got %s", byToken.ID)
	}

	if _, err := s.GetUserByToken("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown token, got %v", err)
	}
}

func TestUpdateUserContexts(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser(User{ID: "u1", APIToken: "t1"}); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if err := s.UpdateUserContexts("u1", `{"personal":{"user":{},"business":{}}}`); err != nil {
		t.Fatalf("updating contexts: %v", err)
	}

	got, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("getting user: %v", err)
	}
	if got.ContextsJSON == "{}" {
		t.Error("contexts not updated")
	}

	if err := s.UpdateUserContexts("missing", "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConversationRoundTrip(t *testing.T) {
	s := openTestStore(t)

	c := Conversation{
		ID:           "c1",
		UserID:       "u1",
		ContextType:  "company",
		MessagesJSON: `[{"role":"user","content":"hi"}]`,
	}
	if err := s.CreateConversation(c); err != nil {
		t.Fatalf("creating conversation: %v", err)
	}

	got, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("getting conversation: %v", err)
	}
	if got.ContextType != "company" || got.MessagesJSON != c.MessagesJSON {
		t.Errorf("conversation mismatch: %+v", got)
	}

	if err := s.UpdateConversationMessages("c1", `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`); err != nil {
		t.Fatalf("updating messages: %v", err)
	}
	got, err = s.GetConversation("c1")
	if err != nil {
		t.Fatalf("re-getting conversation: %v", err)
	}
	if got.MessagesJSON == c.MessagesJSON {
		t.Error("messages not updated")
	}

	if _, err := s.GetConversation("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversationsOrderedByUpdate(t *testing.T) {
	s := openTestStore(t)

	old := time.Now().UTC().Add(-time.Hour)
	if err := s.CreateConversation(Conversation{ID: "c1", UserID: "u1", ContextType: "company", CreatedAt: old, UpdatedAt: old}); err != nil {
		t.Fatalf("creating c1: %v", err)
	}
	if err := s.CreateConversation(Conversation{ID: "c2", UserID: "u1", ContextType: "personal"}); err != nil {
		t.Fatalf("creating c2: %v", err)
	}
	if err := s.CreateConversation(Conversation{ID: "c3", UserID: "other", ContextType: "company"}); err != nil {
		t.Fatalf("creating c3: %v", err)
	}

	list, err := s.ListConversations("u1", 10)
	if err != nil {
		t.Fatalf("listing conversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != "c2" {
		t.Errorf("expected most recently updated first, got %s", list[0].ID)
	}
}

func TestActionLifecycle(t *testing.T) {
	s := openTestStore(t)

	a := ActionRecord{ID: "a1", UserID: "u1", Type: "scrape_url", ParamsJSON: `{"url":"https://example.com"}`}
	if err := s.CreateAction(a); err != nil {
		t.Fatalf("creating action: %v", err)
	}

	got, err := s.GetAction("a1")
	if err != nil {
		t.Fatalf("getting action: %v", err)
	}
	if got.Status != ActionProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}
	if !got.CompletedAt.IsZero() {
		t.Error("completed_at set before terminal update")
	}

	if err := s.CompleteAction("a1", "page text"); err != nil {
		t.Fatalf("completing action: %v", err)
	}
	got, err = s.GetAction("a1")
	if err != nil {
		t.Fatalf("re-getting action: %v", err)
	}
	if got.Status != ActionCompleted || got.Result != "page text" {
		t.Errorf("unexpected terminal state: %+v", got)
	}
	if got.CompletedAt.IsZero() {
		t.Error("completed_at not set")
	}

	// A second terminal update must not apply.
	if err := s.FailAction("a1", "late failure"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double terminal update, got %v", err)
	}
	got, _ = s.GetAction("a1")
	if got.Status != ActionCompleted {
		t.Errorf("terminal state overwritten: %s", got.Status)
	}
}

func TestFailAction(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateAction(ActionRecord{ID: "a1", UserID: "u1", Type: "post_tweet"}); err != nil {
		t.Fatalf("creating action: %v", err)
	}
	if err := s.FailAction("a1", "posting disabled"); err != nil {
		t.Fatalf("failing action: %v", err)
	}

	got, err := s.GetAction("a1")
	if err != nil {
		t.Fatalf("getting action: %v", err)
	}
	if got.Status != ActionFailed || got.Error != "posting disabled" {
		t.Errorf("unexpected failed state: %+v", got)
	}
}

func TestListActions(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"a1", "a2"} {
		if err := s.CreateAction(ActionRecord{ID: id, UserID: "u1", Type: "scrape_url"}); err != nil {
			t.Fatalf("creating %s: %v", id, err)
		}
	}
	if err := s.CreateAction(ActionRecord{ID: "a3", UserID: "other", Type: "scrape_url"}); err != nil {
		t.Fatalf("creating a3: %v", err)
	}

	list, err := s.ListActions("u1", 10)
	if err != nil {
		t.Fatalf("listing actions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(list))
	}
}
