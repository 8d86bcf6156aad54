package interpret

import (
	"testing"

	"github.com/aicmo/aicmo/internal/persona"
)

func def(t *testing.T, p persona.Persona) persona.Definition {
	t.Helper()
	d, ok := persona.Get(p)
	if !ok {
		t.Fatalf("unknown persona %s", p)
	}
	return d
}

func TestInterpretEnvelope(t *testing.T) {
	raw := `{"reply":"hi","action":{"type":"scrape_url","params":{"url":"https://example.com"}}}`

	got := Interpret(raw, def(t, persona.CMO))
	if got.Text != "hi" {
		t.Errorf("reply = %q", got.Text)
	}
	if got.Action == nil {
		t.Fatal("action missing")
	}
	if got.Action.Type != "scrape_url" {
		t.Errorf("action type = %q", got.Action.Type)
	}
	if got.Action.Params["url"] != "https://example.com" {
		t.Errorf("action params = %v", got.Action.Params)
	}
}

func TestInterpretEnvelopeNullAction(t *testing.T) {
	got := Interpret(`{"reply":"just chatting","action":null}`, def(t, persona.Growth))
	if got.Text != "just chatting" {
		t.Errorf("reply = %q", got.Text)
	}
	if got.Action != nil {
		t.Errorf("expected nil action, got %+v", got.Action)
	}
}

func TestInterpretPlainTextFallback(t *testing.T) {
	inputs := []string{
		"Here are three campaign ideas for you.",
		`{"reply": "broken json`,
		"",
		"Sure! 1) do this 2) do that {with braces}",
	}
	for _, in := range inputs {
		got := Interpret(in, def(t, persona.Content))
		if got.Text != in {
			t.Errorf("input %q: reply = %q, want verbatim", in, got.Text)
		}
		if got.Action != nil {
			t.Errorf("input %q: expected nil action", in)
		}
	}
}

func TestInterpretDeveloperNeverParses(t *testing.T) {
	inputs := []string{
		"```html\n<section>...</section>\n```",
		`{"reply":"hi","action":{"type":"scrape_url","params":{"url":"https://example.com"}}}`,
	}
	for _, in := range inputs {
		got := Interpret(in, def(t, persona.Developer))
		if got.Text != in {
			t.Errorf("developer reply must be verbatim, got %q", got.Text)
		}
		if got.Action != nil {
			t.Error("developer persona must never yield an action")
		}
	}
}

func TestInterpretUnrelatedJSON(t *testing.T) {
	in := `{"foo": 1}`
	got := Interpret(in, def(t, persona.CMO))
	if got.Text != in || got.Action != nil {
		t.Errorf("unrelated JSON should fall back to plain text, got %+v", got)
	}
}

func TestInterpretNoWhitelistEnforcement(t *testing.T) {
	// Unknown action types pass through; the dispatcher is the enforcement
	// point.
	got := Interpret(`{"reply":"r","action":{"type":"made_up","params":{}}}`, def(t, persona.CMO))
	if got.Action == nil || got.Action.Type != "made_up" {
		t.Errorf("interpreter must not filter action types: %+v", got.Action)
	}
}
