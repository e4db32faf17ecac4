// Package workflow implements the Workflow Engine (spec §4.7, component
// C8): a typed state machine with checkpointed state, interrupt/resume
// semantics, conditional routing, and retry/escalation nodes.
package workflow

import (
	"fmt"
)

// Reducer controls how a node's partial state update merges into existing
// state for one field (spec §4.7: "array-typed fields use an append
// reducer").
type Reducer int

const (
	// ReducerReplace overwrites the field with the update's value.
	ReducerReplace Reducer = iota
	// ReducerAppend appends the update's value (expected to be a slice) to
	// the existing slice value.
	ReducerAppend
)

// FieldSchema describes one named field of a graph's state (spec §4.7:
// "TypedDict-like: named fields with types and default producers").
type FieldSchema struct {
	// Required marks a field that must be supplied by the caller's initial
	// state if Default is nil.
	Required bool
	// Default produces the field's zero value when absent from the
	// caller-supplied initial state.
	Default func() any
	// Reducer controls how node updates merge into this field.
	Reducer Reducer
}

// Schema is a graph's full state schema, keyed by field name.
type Schema map[string]FieldSchema

// ValidateAndFill validates input against schema and fills any missing
// optional fields with their defaults (spec §4.8: validate_state "checks
// required fields and fills missing optional fields with defaults").
func (s Schema) ValidateAndFill(input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for name, field := range s {
		if v, ok := input[name]; ok {
			out[name] = v
			continue
		}
		if field.Required && field.Default == nil {
			return nil, fmt.Errorf("workflow: missing required state field %q", name)
		}
		if field.Default != nil {
			out[name] = field.Default()
		}
	}
	return out, nil
}

// Merge applies update onto state according to each field's reducer,
// returning a new state map (spec §4.7 step 2: "apply the returned partial
// state update by shallow merge").
func (s Schema) Merge(state map[string]any, update map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	for k, v := range update {
		field, known := s[k]
		if known && field.Reducer == ReducerAppend {
			out[k] = appendValue(out[k], v)
			continue
		}
		out[k] = v
	}
	return out
}

func appendValue(existing, addition any) any {
	existingSlice, ok := existing.([]any)
	if !ok {
		existingSlice = nil
	}
	switch add := addition.(type) {
	case []any:
		return append(append([]any(nil), existingSlice...), add...)
	default:
		return append(append([]any(nil), existingSlice...), add)
	}
}
