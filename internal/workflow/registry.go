package workflow

import "fmt"

// Definition describes one registered workflow: its metadata, how to build
// a fresh Flow for one run, and whether it must run under the async
// executor. Phases is carried purely for UI progress bars, matching the
// original registry's phases metadata (spec §9 supplement) even though no
// UI here consumes it.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	Phases      []string
	IsAsync     bool
	Factory     func() *Flow
}

// Registry maps workflow names to definitions and enforces the
// configuration allow-list plus sync/async executor matching.
type Registry struct {
	definitions map[string]Definition
	allowed     func(name string) bool
}

func NewRegistry(allowed func(name string) bool) *Registry {
	return &Registry{definitions: make(map[string]Definition), allowed: allowed}
}

func (r *Registry) Register(def Definition) {
	r.definitions[def.Name] = def
}

func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.definitions[name]
	if !ok || (r.allowed != nil && !r.allowed(name)) {
		return Definition{}, false
	}
	return def, true
}

// CreateExecutor builds a SyncExecutor for name's flow, rejecting async-only
// workflows.
func (r *Registry) CreateExecutor(name string) (*SyncExecutor, *Flow, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("workflow %q is not registered or not enabled", name)
	}
	if def.IsAsync {
		return nil, nil, fmt.Errorf("workflow %q is async-only; use CreateAsyncExecutor", name)
	}
	return &SyncExecutor{}, def.Factory(), nil
}

// CreateAsyncExecutor builds an AsyncExecutor for name's flow. Async
// executors may also run sync-flagged workflows (spec §4.5's off-load
// behavior), so no IsAsync check is required here.
func (r *Registry) CreateAsyncExecutor(name string) (*AsyncExecutor, *Flow, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("workflow %q is not registered or not enabled", name)
	}
	return &AsyncExecutor{}, def.Factory(), nil
}
