package profile

import (
	"errors"
	"testing"

	"github.com/aicmo/aicmo/internal/storage"
)

// fakeStore implements Store over a map.
type fakeStore struct {
	users map[string]storage.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]storage.User)}
}

func (f *fakeStore) GetUser(id string) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) UpdateUserContexts(id, contextsJSON string) error {
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.ContextsJSON = contextsJSON
	f.users[id] = u
	return nil
}

func TestContextsMissingUser(t *testing.T) {
	m := NewManager(newFakeStore())

	_, err := m.Contexts("nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContextsEmptyDocument(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = storage.User{ID: "u1", ContextsJSON: "{}"}
	m := NewManager(store)

	c, err := m.Contexts("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsEmpty() {
		t.Error("expected empty contexts")
	}
}

func TestInitializePersonalOnly(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = storage.User{ID: "u1", ContextsJSON: "{}"}
	m := NewManager(store)

	err := m.Initialize("u1", &UserAttributes{Name: "Breezy", Profession: "Marketer"}, nil, nil)
	if err != nil {
		t.Fatalf("initializing: %v", err)
	}

	c, err := m.Contexts("u1")
	if err != nil {
		t.Fatalf("loading contexts: %v", err)
	}
	if c.Personal == nil {
		t.Fatal("personal context missing")
	}
	if c.Company != nil {
		t.Error("company context should not exist")
	}
	if c.Personal.User.Name != "Breezy" {
		t.Errorf("name = %q", c.Personal.User.Name)
	}
	// Personal branding keeps an empty business context.
	if !c.Personal.Business.IsEmpty() {
		t.Error("personal business context should be empty")
	}
}

func TestInitializeCompanyDefaults(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = storage.User{ID: "u1", ContextsJSON: "{}"}
	m := NewManager(store)

	err := m.Initialize("u1", nil, &UserAttributes{Name: "Breezy", Profession: "VP of Marketing"}, nil)
	if err != nil {
		t.Fatalf("initializing: %v", err)
	}

	c, err := m.Contexts("u1")
	if err != nil {
		t.Fatalf("loading contexts: %v", err)
	}
	if c.Company == nil {
		t.Fatal("company context missing")
	}

	u := c.Company.User
	if u.Voice != "Professional, helpful, and strategic" {
		t.Errorf("voice default not applied: %q", u.Voice)
	}
	if u.Preferences != "Data-driven decisions, creative solutions" {
		t.Errorf("preferences default not applied: %q", u.Preferences)
	}
	if len(u.Expertise) != 2 {
		t.Errorf("expertise default not applied: %v", u.Expertise)
	}
	if u.BrandValues == "" {
		t.Error("brand values default not applied")
	}

	b := c.Company.Business
	if len(b.Services) == 0 || b.UniqueValueProp == "" {
		t.Errorf("business defaults not applied: %+v", b)
	}
}

func TestInitializeCompanyKeepsProvidedValues(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = storage.User{ID: "u1", ContextsJSON: "{}"}
	m := NewManager(store)

	err := m.Initialize("u1", nil,
		&UserAttributes{Name: "B", Voice: "Weird and fun", Expertise: []string{"GTM strategy"}},
		&BusinessAttributes{Services: []string{"AI marketing consulting"}, UniqueValueProp: "AI for tech companies"},
	)
	if err != nil {
		t.Fatalf("initializing: %v", err)
	}

	c, _ := m.Contexts("u1")
	if c.Company.User.Voice != "Weird and fun" {
		t.Errorf("provided voice overwritten: %q", c.Company.User.Voice)
	}
	if got := c.Company.Business.UniqueValueProp; got != "AI for tech companies" {
		t.Errorf("provided value prop overwritten: %q", got)
	}
}

func TestUpdateSingleContext(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = storage.User{ID: "u1", ContextsJSON: "{}"}
	m := NewManager(store)

	if err := m.Initialize("u1", &UserAttributes{Name: "A"}, &UserAttributes{Name: "A"}, nil); err != nil {
		t.Fatalf("initializing: %v", err)
	}

	err := m.Update("u1", ContextPersonal, Context{User: UserAttributes{Name: "B", Tagline: "builder"}})
	if err != nil {
		t.Fatalf("updating: %v", err)
	}

	c, _ := m.Contexts("u1")
	if c.Personal.User.Name != "B" {
		t.Errorf("personal not updated: %q", c.Personal.User.Name)
	}
	if c.Company == nil || c.Company.User.Name != "A" {
		t.Error("company context disturbed by personal update")
	}

	if err := m.Update("u1", ContextType("bogus"), Context{}); err == nil {
		t.Error("expected error for unknown context type")
	}
}
