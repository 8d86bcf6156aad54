package action

import "context"

// Descriptor is a structured action proposal parsed from model output. It is
// transient: only the persisted ActionRecord survives a dispatch.
type Descriptor struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Result is the structured outcome of one dispatch. Handler failures land
// here, never as transport errors.
type Result struct {
	Success  bool   `json:"success"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
	ActionID string `json:"actionId"`
}

// Handler executes one action type.
type Handler interface {
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, params map[string]any) (string, error) {
	return f(ctx, params)
}
