// Package tools implements the Tool Registry (spec §4.2, component C2): a
// static, process-wide mapping from tool name to handler plus input schema,
// filtered per session by enabled industry, with a risk classifier attached.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

const (
	// CommonIndustry marks a tool visible regardless of enabled industries
	// (spec §3 invariant 2).
	CommonIndustry = "common"
)

type (
	// Handler executes a tool call against validated input and returns a
	// JSON-serializable result. emitter is the SSE channel bound to the
	// current request (spec §9 decision 4: passed explicitly, never
	// recovered from context); most handlers ignore it, but the workflow
	// bridge tool (component C10) forwards workflow engine frames through
	// it into the agent's own stream.
	Handler func(ctx context.Context, input json.RawMessage, emitter *stream.Emitter) (any, error)

	// Definition is a ToolDefinition (spec §3): name, description, schema,
	// owning industry, and the handler invoked on execute.
	Definition struct {
		// Name is the globally unique tool identifier.
		Name string
		// Description is shown to the planner/LLM as tool documentation.
		Description string
		// Industry is the owning industry tag, or CommonIndustry for tools
		// visible regardless of a session's enabled industry set.
		Industry string
		// Schema is the JSON Schema (as a decoded document) validating Input.
		Schema map[string]any
		// OperationKind classifies the tool for risk assessment (spec §4.2
		// signal table): "read", "create", "update", "submit", "cancel", or
		// "bulk".
		OperationKind risk.OperationKind
		// Handler executes the tool.
		Handler Handler
	}

	// Registry is the static, process-wide Tool Registry.
	Registry struct {
		mu        sync.RWMutex
		defs      map[string]*compiledDef
		classifer *risk.Classifier
	}

	compiledDef struct {
		def    Definition
		schema *jsonschema.Schema
	}
)

// NewRegistry builds an empty Registry with the given risk classifier.
func NewRegistry(classifier *risk.Classifier) *Registry {
	if classifier == nil {
		classifier = risk.NewClassifier(risk.DefaultThresholds())
	}
	return &Registry{defs: make(map[string]*compiledDef), classifer: classifier}
}

// Register compiles def's schema and adds it to the registry. Register is
// only called during startup wiring (spec §5, "process-wide state ...
// loaded once at startup, immutable at runtime"); it is not safe to call
// concurrently with Execute/List/Get/AssessRisk in production use, though it
// is mutex-guarded for test convenience.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("%w: tool definition requires name and handler", errs.ErrInvalidInput)
	}
	var schema *jsonschema.Schema
	if len(def.Schema) > 0 {
		c := jsonschema.NewCompiler()
		resourceName := def.Name + ".schema.json"
		if err := c.AddResource(resourceName, def.Schema); err != nil {
			return fmt.Errorf("%w: compile schema for %s: %s", errs.ErrInvalidInput, def.Name, err)
		}
		compiled, err := c.Compile(resourceName)
		if err != nil {
			return fmt.Errorf("%w: compile schema for %s: %s", errs.ErrInvalidInput, def.Name, err)
		}
		schema = compiled
	}
	if def.Industry == "" {
		def.Industry = CommonIndustry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = &compiledDef{def: def, schema: schema}
	return nil
}

// List returns the tool definitions visible to a session enabling the given
// industries (spec §3 invariant 2): industry in enabledIndustries, or the
// common industry.
func (r *Registry) List(enabledIndustries []string) []Definition {
	allowed := make(map[string]bool, len(enabledIndustries)+1)
	allowed[CommonIndustry] = true
	for _, ind := range enabledIndustries {
		allowed[ind] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, cd := range r.defs {
		if allowed[cd.def.Industry] {
			out = append(out, cd.def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the definition for name, regardless of industry filtering.
// Callers that must respect session visibility should first consult List or
// use GetVisible.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cd, ok := r.defs[name]
	if !ok {
		return Definition{}, false
	}
	return cd.def, true
}

// GetVisible returns the definition for name only if it is visible to a
// session enabling enabledIndustries; otherwise it reports errs.ErrUnknownTool,
// matching spec §7's unknown_tool kind.
func (r *Registry) GetVisible(name string, enabledIndustries []string) (Definition, error) {
	def, ok := r.Get(name)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", errs.ErrUnknownTool, name)
	}
	if def.Industry == CommonIndustry {
		return def, nil
	}
	for _, ind := range enabledIndustries {
		if ind == def.Industry {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %s", errs.ErrUnknownTool, name)
}

// AssessRisk classifies a prospective tool invocation (spec §4.2, §4.3).
func (r *Registry) AssessRisk(name string, input json.RawMessage, docState risk.DocumentState) (risk.Assessment, error) {
	def, ok := r.Get(name)
	if !ok {
		return risk.Assessment{}, fmt.Errorf("%w: %s", errs.ErrUnknownTool, name)
	}
	var decoded map[string]any
	if len(input) > 0 {
		_ = json.Unmarshal(input, &decoded)
	}
	return r.classifer.Assess(risk.Invocation{
		Tool:       name,
		Operation:  def.OperationKind,
		Input:      decoded,
		DocState:   docState,
	}), nil
}

// Execute validates input against the tool's schema and invokes its handler.
// Callers are responsible for the risk/approval gate (spec §4.5 step e);
// Execute itself performs no approval check, matching the registry's pure
// "validate and run" contract (spec §4.2). emitter is threaded through to
// the handler unchanged (spec §9 decision 4); it may be nil for tools that
// never emit.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage, emitter *stream.Emitter) (any, error) {
	r.mu.RLock()
	cd, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownTool, name)
	}
	if cd.schema != nil {
		var doc any
		if len(input) == 0 {
			doc = map[string]any{}
		} else if err := json.Unmarshal(input, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}
		if err := cd.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}
	}
	return cd.def.Handler(ctx, input, emitter)
}
