// Package action dispatches side-effecting actions proposed by the
// assistant. Every dispatch writes an audit record that moves
// processing → completed | failed exactly once; handler errors and panics
// are isolated there and never propagate past the dispatcher.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/aicmo/aicmo/internal/storage"
)

// RecordStore abstracts action-record persistence.
// Implemented by storage.Store.
type RecordStore interface {
	CreateAction(a storage.ActionRecord) error
	CompleteAction(id, result string) error
	FailAction(id, errMsg string) error
}

// Dispatcher maps action types to handlers. The mapping is closed after
// construction; unknown types are recorded failures, not errors.
type Dispatcher struct {
	store    RecordStore
	handlers map[string]Handler
}

// NewDispatcher creates a Dispatcher with no handlers registered.
func NewDispatcher(store RecordStore) *Dispatcher {
	return &Dispatcher{
		store:    store,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to an action type. Call before serving traffic;
// the map is not safe for concurrent mutation.
func (d *Dispatcher) Register(actionType string, h Handler) {
	d.handlers[actionType] = h
}

// Types returns the registered action types in sorted order. The prompt
// builder uses this as the whitelist communicated to the model, keeping
// prompt and dispatcher in lockstep.
func (d *Dispatcher) Types() []string {
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch creates the audit record, runs the handler, and writes the
// terminal state. The returned error is reserved for record-persistence
// failures; handler outcomes, including unknown types, come back in Result.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, actionType string, params map[string]any) (Result, error) {
	paramsJSON := "{}"
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return Result{}, fmt.Errorf("encoding action params: %w", err)
		}
		paramsJSON = string(b)
	}

	actionID := uuid.New().String()
	record := storage.ActionRecord{
		ID:         actionID,
		UserID:     userID,
		Type:       actionType,
		ParamsJSON: paramsJSON,
		Status:     storage.ActionProcessing,
	}
	if err := d.store.CreateAction(record); err != nil {
		return Result{}, fmt.Errorf("creating action record: %w", err)
	}

	result, err := d.run(ctx, actionType, params)
	if err != nil {
		slog.Warn("action failed", "action_id", actionID, "type", actionType, "error", err)
		if ferr := d.store.FailAction(actionID, err.Error()); ferr != nil {
			return Result{}, fmt.Errorf("recording action failure: %w", ferr)
		}
		return Result{Success: false, Error: err.Error(), ActionID: actionID}, nil
	}

	if cerr := d.store.CompleteAction(actionID, result); cerr != nil {
		return Result{}, fmt.Errorf("recording action completion: %w", cerr)
	}
	slog.Info("action completed", "action_id", actionID, "type", actionType)
	return Result{Success: true, Result: result, ActionID: actionID}, nil
}

// run resolves and executes the handler, converting panics into errors so a
// misbehaving handler cannot take down the dispatch.
func (d *Dispatcher) run(ctx context.Context, actionType string, params map[string]any) (result string, err error) {
	h, ok := d.handlers[actionType]
	if !ok {
		return "", fmt.Errorf("Unknown action type: %s", actionType)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action handler panic: %v", r)
		}
	}()
	return h.Execute(ctx, params)
}
