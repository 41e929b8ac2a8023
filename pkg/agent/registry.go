package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named Agent instances. It is populated once at
// startup (cmd/hornetd calls RegisterDefaults) and read concurrently by the
// dispatcher and coordinator thereafter; a RWMutex keeps Register rare
// and Get/All cheap.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds or replaces the agent under its own Name().
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get returns the named agent, or false if no such agent is registered.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// MustGet returns the named agent and panics if it is absent — used at
// startup wiring time where a missing configured agent is a fatal
// misconfiguration, never a runtime condition to handle gracefully.
func (r *Registry) MustGet(name string) Agent {
	a, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("agent: no agent registered under name %q", name))
	}
	return a
}

// All returns every registered agent, sorted by name for deterministic
// iteration order (useful for tests and for stable log output).
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ByNames returns the agents registered under the given names, in that
// order, skipping (and not erroring on) any name with no registration
// — a detection squad member dropped from configuration degrades
// fan-out width, it does not fail the dispatcher.
func (r *Registry) ByNames(names []string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(names))
	for _, n := range names {
		if a, ok := r.agents[n]; ok {
			out = append(out, a)
		}
	}
	return out
}

// DefaultDetectionSquad names the five bundled detection agents used
// when configuration does not override the squad membership.
var DefaultDetectionSquad = []string{"hunter", "sentinel", "behavioral", "netwatch", "endpoint"}
