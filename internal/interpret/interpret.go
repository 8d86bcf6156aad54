// Package interpret parses raw model output into a reply plus an optional
// action descriptor. The model's JSON envelope is best-effort: parsing is a
// fallible operation with a defined plain-text fallback, never an error.
package interpret

import (
	"encoding/json"
	"strings"

	"github.com/aicmo/aicmo/internal/action"
	"github.com/aicmo/aicmo/internal/persona"
)

// Reply is the interpreted model response.
type Reply struct {
	Text   string
	Action *action.Descriptor
}

// envelope is the structured response format non-raw personas are
// instructed to emit.
type envelope struct {
	Reply  string             `json:"reply"`
	Action *action.Descriptor `json:"action"`
}

// Interpret maps raw model text to a Reply under the persona's response
// policy. Raw-response personas (the developer) always get the text verbatim
// and never an action. For everyone else a failed envelope parse silently
// degrades to plain text.
func Interpret(raw string, def persona.Definition) Reply {
	if def.RawResponse {
		return Reply{Text: raw}
	}

	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err != nil {
		return Reply{Text: raw}
	}
	if env.Reply == "" && env.Action == nil {
		// Valid JSON but not our envelope (e.g. a bare number or object
		// without the expected keys): treat as conversational text.
		return Reply{Text: raw}
	}
	return Reply{Text: env.Reply, Action: env.Action}
}
