// Package api exposes the HTTP surface of the assistant: registration,
// chat, action execution, profile management, and conversation history.
// It also hosts the MCP server adaptation of the same operations.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aicmo/aicmo/internal/action"
	"github.com/aicmo/aicmo/internal/chat"
	"github.com/aicmo/aicmo/internal/llm"
	"github.com/aicmo/aicmo/internal/profile"
	"github.com/aicmo/aicmo/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxResumeBodySize = 10 << 20 // 10MB

// titleRunes caps the derived conversation title length.
const titleRunes = 50

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store      *storage.Store
	Profiles   *profile.Manager
	Session    *chat.Session
	Dispatcher *action.Dispatcher
}

// NewHandler returns the full HTTP API. Everything except /health and
// /register requires a bearer token issued at registration.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/register", handleRegister(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Store))

		r.Post("/chat", handleChat(deps))
		r.Post("/actions", handleExecuteAction(deps))
		r.Get("/actions", handleListActions(deps))
		r.Get("/actions/{id}", handleGetAction(deps))
		r.Post("/profile", handleInitProfile(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Post("/profile/resume", handleImportResume(deps))
		r.Get("/conversations", handleListConversations(deps))
		r.Get("/conversations/{id}", handleGetConversation(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func handleRegister(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Email == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "email is required")
			return
		}

		token, err := newAPIToken()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate token: %v", err)
			return
		}
		u := storage.User{
			ID:          uuid.New().String(),
			Email:       req.Email,
			DisplayName: req.DisplayName,
			APIToken:    token,
		}
		if err := deps.Store.CreateUser(u); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create user: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"userId": u.ID,
			"token":  token,
		})
	}
}

func newAPIToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	ContextType    string `json:"contextType"`
	Agent          string `json:"agentType"`
}

type chatResponse struct {
	Reply          string             `json:"reply"`
	Action         *action.Descriptor `json:"action,omitempty"`
	ConversationID string             `json:"conversationId"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		res, err := deps.Session.HandleTurn(r.Context(), UserID(r.Context()), chat.TurnRequest{
			Message:        req.Message,
			ConversationID: req.ConversationID,
			ContextType:    profile.ContextType(req.ContextType),
			Agent:          req.Agent,
		})
		switch {
		case errors.Is(err, chat.ErrUnauthenticated):
			httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
			return
		case errors.Is(err, chat.ErrProfileNotFound):
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		case err != nil:
			slog.Error("chat turn failed", "user_id", UserID(r.Context()), "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "Failed to process chat message")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			Reply:          res.Reply,
			Action:         res.Action,
			ConversationID: res.ConversationID,
		})
	}
}

type executeActionRequest struct {
	ActionType string         `json:"actionType"`
	Params     map[string]any `json:"params"`
}

func handleExecuteAction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req executeActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ActionType == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "actionType is required")
			return
		}

		res, err := deps.Dispatcher.Dispatch(r.Context(), UserID(r.Context()), req.ActionType, req.Params)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record action: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

type actionView struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Params      json.RawMessage `json:"params"`
	Status      string          `json:"status"`
	Result      string          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func toActionView(a storage.ActionRecord) actionView {
	v := actionView{
		ID:        a.ID,
		Type:      a.Type,
		Params:    json.RawMessage(a.ParamsJSON),
		Status:    a.Status,
		Result:    a.Result,
		Error:     a.Error,
		CreatedAt: a.CreatedAt,
	}
	if !a.CompletedAt.IsZero() {
		t := a.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

func handleListActions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		records, err := deps.Store.ListActions(UserID(r.Context()), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list actions: %v", err)
			return
		}

		views := make([]actionView, len(records))
		for i, a := range records {
			views[i] = toActionView(a)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func handleGetAction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		a, err := deps.Store.GetAction(id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && a.UserID != UserID(r.Context())) {
			httpError(w, http.StatusNotFound, "not_found", "action not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get action: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toActionView(a))
	}
}

type initProfileRequest struct {
	Personal *profile.UserAttributes     `json:"personal"`
	Company  *profile.UserAttributes     `json:"company"`
	Business *profile.BusinessAttributes `json:"business"`
}

func handleInitProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req initProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Personal == nil && req.Company == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of personal or company is required")
			return
		}

		if err := deps.Profiles.Initialize(UserID(r.Context()), req.Personal, req.Company, req.Business); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to initialize profile: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "initialized"})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := deps.Profiles.Contexts(UserID(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		if cs.IsEmpty() {
			httpError(w, http.StatusNotFound, "not_found", "profile not initialized")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cs)
	}
}

func handleImportResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxResumeBodySize)
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read resume body: %v", err)
			return
		}
		if len(data) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "resume body is empty")
			return
		}

		if err := deps.Profiles.ImportResume(UserID(r.Context()), data); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "user not found")
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to import resume: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "imported"})
	}
}

type conversationSummary struct {
	ID           string    `json:"id"`
	ContextType  string    `json:"contextType"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type conversationView struct {
	ID          string         `json:"id"`
	ContextType string         `json:"contextType"`
	Messages    []chat.Message `json:"messages"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// conversationTitle derives a list title from the first user message,
// capped at titleRunes runes.
func conversationTitle(msgs []chat.Message) string {
	for _, m := range msgs {
		if m.Role != llm.RoleUser {
			continue
		}
		if utf8.RuneCountInString(m.Content) > titleRunes {
			runes := []rune(m.Content)
			return string(runes[:titleRunes]) + "..."
		}
		return m.Content
	}
	return "New conversation"
}

func decodeMessages(messagesJSON string) []chat.Message {
	var msgs []chat.Message
	if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
		return nil
	}
	return msgs
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		convs, err := deps.Store.ListConversations(UserID(r.Context()), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list conversations: %v", err)
			return
		}

		summaries := make([]conversationSummary, len(convs))
		for i, c := range convs {
			msgs := decodeMessages(c.MessagesJSON)
			summaries[i] = conversationSummary{
				ID:           c.ID,
				ContextType:  c.ContextType,
				Title:        conversationTitle(msgs),
				MessageCount: len(msgs),
				UpdatedAt:    c.UpdatedAt,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summaries)
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := deps.Store.GetConversation(id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && c.UserID != UserID(r.Context())) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get conversation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conversationView{
			ID:          c.ID,
			ContextType: c.ContextType,
			Messages:    decodeMessages(c.MessagesJSON),
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
