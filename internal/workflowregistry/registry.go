package workflowregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/frappe/erp-coagent-gateway/internal/workflow"
)

// Manifest is the declarative metadata one graph manifest YAML file
// declares (spec §4.8: "{name, graph_factory, state_schema, capabilities[],
// tags[]}" — graph_factory and state_schema are resolved from the compiled
// Factory registered under Name, not carried in the manifest itself).
type Manifest struct {
	Name         string   `yaml:"name"`
	Industry     string   `yaml:"industry"`
	Capabilities []string `yaml:"capabilities"`
	Tags         []string `yaml:"tags"`
}

// Entry is one resolved registry record: a manifest bound to its compiled
// graph factory.
type Entry struct {
	Manifest
	Factory Factory
}

// Registry implements the Workflow Registry (spec §4.8). Resolution by
// name is O(1); list_by_industry and list_by_tag are O(n) scans, matching
// the spec's stated complexity.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// LoadManifests scans dir for `*.yaml`/`*.yml` graph manifests and
// (re)populates the registry. A manifest whose Name has no registered
// Factory is skipped, not an error, so manifests can be added ahead of
// the code implementing them without blocking the others (this is what
// makes fsnotify-driven reload meaningful without a restart).
func (r *Registry) LoadManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("workflowregistry: read manifest dir %s: %w", dir, err)
	}

	next := make(map[string]Entry, len(entries))
	var skipped []string
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("workflowregistry: read %s: %w", path, err)
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("workflowregistry: parse %s: %w", path, err)
		}
		if m.Name == "" {
			return nil, fmt.Errorf("workflowregistry: %s missing required name field", path)
		}
		factory, ok := factoryFor(m.Name)
		if !ok {
			skipped = append(skipped, m.Name)
			continue
		}
		next[m.Name] = Entry{Manifest: m, Factory: factory}
	}

	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
	return skipped, nil
}

// Get resolves name in O(1), building a fresh graph instance via its
// factory.
func (r *Registry) Get(name string) (*workflow.Graph, Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, Entry{}, false
	}
	return e.Factory(), e, true
}

// ListByIndustry returns every entry tagged with the given industry.
func (r *Registry) ListByIndustry(industry string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if e.Industry == industry {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByTag returns every entry carrying the given tag.
func (r *Registry) ListByTag(tag string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range r.entries {
		for _, t := range e.Tags {
			if t == tag {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateState checks graphName's state schema against state, filling
// missing optional fields with defaults (spec §4.8).
func (r *Registry) ValidateState(graphName string, state map[string]any) (map[string]any, error) {
	g, _, ok := r.Get(graphName)
	if !ok {
		return nil, fmt.Errorf("workflowregistry: unknown graph %q", graphName)
	}
	return g.Schema.ValidateAndFill(state)
}
