package profile

import (
	"encoding/json"
	"fmt"

	"github.com/aicmo/aicmo/internal/storage"
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	GetUser(id string) (storage.User, error)
	UpdateUserContexts(id, contextsJSON string) error
}

// Manager provides structured access to the per-user profile contexts stored
// as a JSON document on the user record.
type Manager struct {
	store Store
}

// NewManager creates a Manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Contexts loads and decodes the contexts document for a user.
// Returns storage.ErrNotFound if the user does not exist.
func (m *Manager) Contexts(userID string) (Contexts, error) {
	u, err := m.store.GetUser(userID)
	if err != nil {
		return Contexts{}, err
	}

	var c Contexts
	raw := u.ContextsJSON
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Contexts{}, fmt.Errorf("decoding contexts for user %s: %w", userID, err)
	}
	return c, nil
}

// Initialize writes the initial contexts document from the supplied setup
// data. Either half may be nil; a company setup receives built-in defaults
// for the fields most users leave blank, a personal setup gets an empty
// business context.
func (m *Manager) Initialize(userID string, personal *UserAttributes, company *UserAttributes, business *BusinessAttributes) error {
	var c Contexts

	if personal != nil {
		c.Personal = &Context{User: *personal, Business: BusinessAttributes{}}
	}

	if company != nil {
		user := *company
		applyCompanyUserDefaults(&user)

		biz := BusinessAttributes{}
		if business != nil {
			biz = *business
		}
		applyCompanyBusinessDefaults(&biz)

		c.Company = &Context{User: user, Business: biz}
	}

	return m.save(userID, c)
}

// Update replaces a single context, leaving the other untouched.
func (m *Manager) Update(userID string, t ContextType, ctx Context) error {
	if !t.Valid() {
		return fmt.Errorf("unknown context type %q", t)
	}

	existing, err := m.Contexts(userID)
	if err != nil {
		return err
	}

	switch t {
	case ContextPersonal:
		existing.Personal = &ctx
	case ContextCompany:
		existing.Company = &ctx
	}
	return m.save(userID, existing)
}

func (m *Manager) save(userID string, c Contexts) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding contexts: %w", err)
	}
	if err := m.store.UpdateUserContexts(userID, string(b)); err != nil {
		return fmt.Errorf("saving contexts for user %s: %w", userID, err)
	}
	return nil
}

func applyCompanyUserDefaults(u *UserAttributes) {
	if u.Voice == "" {
		u.Voice = "Professional, helpful, and strategic"
	}
	if u.Preferences == "" {
		u.Preferences = "Data-driven decisions, creative solutions"
	}
	if len(u.Expertise) == 0 {
		u.Expertise = []string{"Digital marketing", "Content strategy"}
	}
	if u.BrandValues == "" {
		u.BrandValues = "Innovation and strategic growth"
	}
}

func applyCompanyBusinessDefaults(b *BusinessAttributes) {
	if len(b.Services) == 0 {
		b.Services = []string{"Marketing", "Consulting"}
	}
	if b.UniqueValueProp == "" {
		b.UniqueValueProp = "Innovative solutions for modern businesses"
	}
}
