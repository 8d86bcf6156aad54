package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aicmo/aicmo/internal/llm"
	"github.com/aicmo/aicmo/internal/persona"
	"github.com/aicmo/aicmo/internal/profile"
	"github.com/aicmo/aicmo/internal/prompt"
	"github.com/aicmo/aicmo/internal/storage"
)

// fakeCompleter returns a canned response and records the request.
type fakeCompleter struct {
	reply    string
	err      error
	messages []llm.Message
	params   persona.GenParams
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, params persona.GenParams) (string, error) {
	f.calls++
	f.messages = messages
	f.params = params
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestSession(t *testing.T, completer llm.Completer) (*Session, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.CreateUser(storage.User{ID: "u1", APIToken: "tok"}); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	profiles := profile.NewManager(store)
	if err := profiles.Initialize("u1", nil, &profile.UserAttributes{Name: "Breezy", Profession: "VP of Marketing"}, nil); err != nil {
		t.Fatalf("initializing profile: %v", err)
	}

	personas := persona.NewRegistry(nil)
	prompts := prompt.NewBuilder(personas, []string{"scrape_url", "post_tweet"})
	return NewSession(store, profile.NewManager(store), personas, prompts, completer), store
}

func TestHandleTurnUnauthenticated(t *testing.T) {
	fc := &fakeCompleter{reply: "hi"}
	s, _ := newTestSession(t, fc)

	_, err := s.HandleTurn(context.Background(), "", TurnRequest{Message: "hello"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if fc.calls != 0 {
		t.Error("no completion call may happen before auth check")
	}
}

func TestHandleTurnProfileMissing(t *testing.T) {
	fc := &fakeCompleter{reply: "hi"}
	s, store := newTestSession(t, fc)

	// A user without any initialized context.
	if err := store.CreateUser(storage.User{ID: "u2", APIToken: "tok2"}); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if _, err := s.HandleTurn(context.Background(), "u2", TurnRequest{Message: "hello"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound for empty contexts, got %v", err)
	}

	// A user that does not exist at all.
	if _, err := s.HandleTurn(context.Background(), "ghost", TurnRequest{Message: "hello"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound for missing user, got %v", err)
	}
}

func TestHandleTurnNewConversation(t *testing.T) {
	fc := &fakeCompleter{reply: "Here is a campaign idea."}
	s, store := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{
		Message:     "Plan a launch",
		ContextType: profile.ContextCompany,
		Agent:       "cmo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatal("expected a freshly generated conversation id")
	}
	if res.Reply != "Here is a campaign idea." {
		t.Errorf("reply = %q", res.Reply)
	}

	conv, err := store.GetConversation(res.ConversationID)
	if err != nil {
		t.Fatalf("loading conversation: %v", err)
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(conv.MessagesJSON), &msgs); err != nil {
		t.Fatalf("decoding transcript: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "Plan a launch" {
		t.Errorf("user message: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != res.Reply {
		t.Errorf("assistant message: %+v", msgs[1])
	}
	// The synthesized system message is never persisted.
	for _, m := range msgs {
		if m.Role == "system" {
			t.Error("system message persisted")
		}
	}
}

func TestHandleTurnMessageOrder(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	s, _ := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{Message: "first"})
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := s.HandleTurn(context.Background(), "u1", TurnRequest{
		Message:        "second",
		ConversationID: res.ConversationID,
	}); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	// Second call: system prompt, 2 history messages, new user message.
	if len(fc.messages) != 4 {
		t.Fatalf("expected 4 wire messages, got %d", len(fc.messages))
	}
	if fc.messages[0].Role != llm.RoleSystem {
		t.Error("system prompt must come first")
	}
	if !strings.Contains(fc.messages[0].Content, "Breezy") {
		t.Error("system prompt missing profile data")
	}
	if fc.messages[1].Content != "first" || fc.messages[2].Content != "ok" {
		t.Error("history not in order")
	}
	if last := fc.messages[len(fc.messages)-1]; last.Role != llm.RoleUser || last.Content != "second" {
		t.Errorf("new user message must come last: %+v", last)
	}
}

func TestHandleTurnHistoryWindow(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	s, _ := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{Message: "turn 0"})
	if err != nil {
		t.Fatalf("turn 0: %v", err)
	}
	for i := 1; i < 9; i++ {
		if _, err := s.HandleTurn(context.Background(), "u1", TurnRequest{
			Message:        "another turn",
			ConversationID: res.ConversationID,
		}); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	// 9 turns persisted 18 messages; the window caps the trailing history
	// at 10, plus system prompt and the new user message.
	if len(fc.messages) != 12 {
		t.Errorf("expected 12 wire messages (system + 10 history + user), got %d", len(fc.messages))
	}
}

func TestHandleTurnPersonaParams(t *testing.T) {
	fc := &fakeCompleter{reply: "```html\n<div></div>\n```"}
	s, _ := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{Message: "build a page", Agent: "developer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dev, _ := persona.Get(persona.Developer)
	if fc.params != dev.Params {
		t.Errorf("params = %+v, want %+v", fc.params, dev.Params)
	}
	if res.Action != nil {
		t.Error("developer persona must never yield an action")
	}
	if res.Reply != fc.reply {
		t.Error("developer reply must be verbatim")
	}
}

func TestHandleTurnActionEnvelope(t *testing.T) {
	fc := &fakeCompleter{reply: `{"reply":"Let me check that page.","action":{"type":"scrape_url","params":{"url":"https://example.com"}}}`}
	s, store := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{Message: "look at example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != "Let me check that page." {
		t.Errorf("reply = %q", res.Reply)
	}
	if res.Action == nil || res.Action.Type != "scrape_url" {
		t.Fatalf("action = %+v", res.Action)
	}

	// The persisted assistant message stores the reply text, not the raw
	// envelope.
	conv, _ := store.GetConversation(res.ConversationID)
	if strings.Contains(conv.MessagesJSON, `\"action\"`) {
		t.Error("raw envelope leaked into transcript")
	}
}

func TestHandleTurnCompletionFailureFailsTurn(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("upstream down")}
	s, store := newTestSession(t, fc)

	_, err := s.HandleTurn(context.Background(), "u1", TurnRequest{Message: "hello"})
	if err == nil {
		t.Fatal("expected turn failure")
	}
	if fc.calls != 1 {
		t.Errorf("expected exactly one completion attempt, got %d", fc.calls)
	}
	// Nothing persisted for the failed turn.
	list, _ := store.ListConversations("u1", 10)
	if len(list) != 0 {
		t.Errorf("failed turn persisted %d conversations", len(list))
	}
}

func TestHandleTurnUnknownConversationStartsFresh(t *testing.T) {
	fc := &fakeCompleter{reply: "ok"}
	s, _ := newTestSession(t, fc)

	res, err := s.HandleTurn(context.Background(), "u1", TurnRequest{
		Message:        "hello",
		ConversationID: "does-not-exist",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConversationID == "" || res.ConversationID == "does-not-exist" {
		t.Errorf("expected a fresh conversation id, got %q", res.ConversationID)
	}
}
