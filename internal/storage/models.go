package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Action record statuses. A record is created as "processing" and receives
// exactly one terminal update.
const (
	ActionProcessing = "processing"
	ActionCompleted  = "completed"
	ActionFailed     = "failed"
)

// User is the per-user profile document. ContextsJSON holds the
// contexts.{personal,company}.{user,business} structure as text; the
// profile package owns its shape.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	APIToken     string
	ContextsJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Conversation is a chat transcript document. MessagesJSON is the ordered
// message array stored as text.
type Conversation struct {
	ID           string
	UserID       string
	ContextType  string
	MessagesJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActionRecord is the audit row for a dispatched action. CompletedAt is the
// zero time while the record is still processing.
type ActionRecord struct {
	ID          string
	UserID      string
	Type        string
	ParamsJSON  string
	Status      string
	Result      string
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}
