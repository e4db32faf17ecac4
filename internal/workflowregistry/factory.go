// Package workflowregistry implements the Workflow Registry (spec §4.8,
// component C9): discovery of workflow graphs by industry/workflow path,
// with list_by_industry/list_by_tag/validate_state lookups and optional
// fsnotify-driven hot reload of graph manifests.
package workflowregistry

import (
	"sync"

	"github.com/frappe/erp-coagent-gateway/internal/workflow"
)

// Factory builds a fresh workflow.Graph instance. Graphs are compiled Go
// code (nodes close over Go functions), so they cannot be discovered by
// scanning the filesystem the way sub-agent configs are; instead each
// industry package registers its factories by name during startup
// (typically from an init function), and the registry's manifest scan
// binds declarative metadata (industry, tags, capabilities) to those
// already-registered factories.
type Factory func() *workflow.Graph

var (
	factoriesMu sync.Mutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a graph factory available to the registry under
// name. Call from an industry package's init function.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// factoryFor looks up a previously registered Factory by name.
func factoryFor(name string) (Factory, bool) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	f, ok := factories[name]
	return f, ok
}
