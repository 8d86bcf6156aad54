// Package chat orchestrates one conversational turn: load profile and
// history, build the system prompt, call the model once, interpret the
// response, and persist the exchange.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aicmo/aicmo/internal/action"
	"github.com/aicmo/aicmo/internal/interpret"
	"github.com/aicmo/aicmo/internal/llm"
	"github.com/aicmo/aicmo/internal/persona"
	"github.com/aicmo/aicmo/internal/profile"
	"github.com/aicmo/aicmo/internal/prompt"
	"github.com/aicmo/aicmo/internal/storage"
)

// Named precondition failures. Everything else that goes wrong in a turn is
// collapsed by the API layer into a generic internal error.
var (
	ErrUnauthenticated = errors.New("user must be authenticated")
	ErrProfileNotFound = errors.New("user profile not found; complete profile setup first")
)

// historyWindow is the fixed context-window cap: at most this many trailing
// messages accompany a turn. Not configurable at call time.
const historyWindow = 10

// Message is one persisted transcript entry. System messages are
// synthesized per turn and never stored.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnRequest is one incoming chat message.
type TurnRequest struct {
	Message        string
	ConversationID string
	ContextType    profile.ContextType
	Agent          string
}

// TurnResult is what a completed turn returns to the caller.
type TurnResult struct {
	Reply          string
	Action         *action.Descriptor
	ConversationID string
}

// Store abstracts conversation persistence.
// Implemented by storage.Store.
type Store interface {
	GetConversation(id string) (storage.Conversation, error)
	CreateConversation(c storage.Conversation) error
	UpdateConversationMessages(id, messagesJSON string) error
}

// Session wires the turn pipeline together. All dependencies are injected;
// tests substitute the completer with a double.
type Session struct {
	store     Store
	profiles  *profile.Manager
	personas  *persona.Registry
	prompts   *prompt.Builder
	completer llm.Completer
}

// NewSession creates a Session.
func NewSession(store Store, profiles *profile.Manager, personas *persona.Registry, prompts *prompt.Builder, completer llm.Completer) *Session {
	return &Session{
		store:     store,
		profiles:  profiles,
		personas:  personas,
		prompts:   prompts,
		completer: completer,
	}
}

// HandleTurn runs one chat turn for the given user. The steps are awaited
// sequentially; there is exactly one completion call, with no retry.
func (s *Session) HandleTurn(ctx context.Context, userID string, req TurnRequest) (TurnResult, error) {
	if userID == "" {
		return TurnResult{}, ErrUnauthenticated
	}

	contextType := req.ContextType
	if !contextType.Valid() {
		contextType = profile.ContextCompany
	}

	contexts, err := s.profiles.Contexts(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return TurnResult{}, ErrProfileNotFound
	}
	if err != nil {
		return TurnResult{}, fmt.Errorf("loading profile: %w", err)
	}
	if contexts.IsEmpty() {
		return TurnResult{}, ErrProfileNotFound
	}

	// The requested context may be absent even when the profile exists;
	// the prompt then renders from empty attributes.
	var userAttrs profile.UserAttributes
	var bizAttrs profile.BusinessAttributes
	if c := contexts.Get(contextType); c != nil {
		userAttrs = c.User
		bizAttrs = c.Business
	}

	history, conversationID, err := s.loadHistory(userID, req.ConversationID)
	if err != nil {
		return TurnResult{}, err
	}

	def := s.personas.Resolve(req.Agent)
	system := s.prompts.Build(userAttrs, bizAttrs, contextType, def.ID)

	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range tail(history, historyWindow) {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	raw, err := s.completer.Complete(ctx, messages, def.Params)
	if err != nil {
		return TurnResult{}, fmt.Errorf("completing chat turn: %w", err)
	}

	reply := interpret.Interpret(raw, def)

	now := time.Now().UTC()
	history = append(history,
		Message{Role: llm.RoleUser, Content: req.Message, Timestamp: now},
		Message{Role: llm.RoleAssistant, Content: reply.Text, Timestamp: now},
	)

	messagesJSON, err := json.Marshal(history)
	if err != nil {
		return TurnResult{}, fmt.Errorf("encoding transcript: %w", err)
	}

	if conversationID != "" {
		// Read-then-write append: concurrent turns on the same conversation
		// race and the last writer wins.
		if err := s.store.UpdateConversationMessages(conversationID, string(messagesJSON)); err != nil {
			return TurnResult{}, fmt.Errorf("updating conversation: %w", err)
		}
	} else {
		conversationID = uuid.New().String()
		if err := s.store.CreateConversation(storage.Conversation{
			ID:           conversationID,
			UserID:       userID,
			ContextType:  string(contextType),
			MessagesJSON: string(messagesJSON),
		}); err != nil {
			return TurnResult{}, fmt.Errorf("creating conversation: %w", err)
		}
	}

	return TurnResult{
		Reply:          reply.Text,
		Action:         reply.Action,
		ConversationID: conversationID,
	}, nil
}

// loadHistory resolves the existing transcript. A conversation id that does
// not exist or belongs to another user starts a fresh conversation instead
// of failing the turn.
func (s *Session) loadHistory(userID, conversationID string) ([]Message, string, error) {
	if conversationID == "" {
		return nil, "", nil
	}

	conv, err := s.store.GetConversation(conversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading conversation: %w", err)
	}
	if conv.UserID != userID {
		slog.Warn("conversation owned by another user, starting fresh", "conversation_id", conversationID)
		return nil, "", nil
	}

	var history []Message
	if err := json.Unmarshal([]byte(conv.MessagesJSON), &history); err != nil {
		slog.Warn("malformed transcript, starting fresh", "conversation_id", conversationID, "error", err)
		return nil, conv.ID, nil
	}
	return history, conv.ID, nil
}

func tail(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
