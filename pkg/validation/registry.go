package validation

import (
	"errors"
	"sort"
)

// ErrUnknownRuleSet is returned when a rule set identifier is not registered
var ErrUnknownRuleSet = errors.New("unknown validation rule set")

// Registry resolves rule set identifiers to executors
type Registry interface {
	Resolve(id string) Executor
}

// MapRegistry is a Registry backed by a map
type MapRegistry struct {
	sets map[string]Executor
}

// NewRegistry creates an empty registry
func NewRegistry() *MapRegistry {
	return &MapRegistry{
		sets: make(map[string]Executor),
	}
}

// Register adds or replaces an executor
func (r *MapRegistry) Register(id string, executor Executor) {
	r.sets[id] = executor
}

// RegisterRuleSet adds a compiled rule set under its own identifier
func (r *MapRegistry) RegisterRuleSet(rs *RuleSet) {
	r.sets[rs.ID] = rs
}

// Resolve implements Registry. It returns nil for unknown identifiers.
func (r *MapRegistry) Resolve(id string) Executor {
	return r.sets[id]
}

// Remove removes an executor
func (r *MapRegistry) Remove(id string) {
	delete(r.sets, id)
}

// IDs returns the registered identifiers in sorted order
func (r *MapRegistry) IDs() []string {
	ids := make([]string, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewDefaultRegistry creates a registry holding the built-in rule sets.
func NewDefaultRegistry() (Registry, error) {
	return newBuiltinRegistry()
}

func newBuiltinRegistry() (*MapRegistry, error) {
	r := NewRegistry()
	for _, rs := range builtinRuleSets() {
		compiled, err := NewRuleSet(rs.id, rs.name, rs.rules...)
		if err != nil {
			return nil, err
		}
		r.RegisterRuleSet(compiled)
	}
	return r, nil
}
