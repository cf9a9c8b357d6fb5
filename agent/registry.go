package agent

import (
	"github.com/finsight-ai/finsight/core"
)

// Registry holds the registered agents in registration order. Order
// matters: the router breaks score ties in favor of the agent registered
// first. The registry is populated during setup and read-only afterwards,
// so it carries no locking.
type Registry struct {
	agents []*Agent
	byName map[string]*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Agent{}}
}

// Register adds an agent. Registering a second agent under an existing
// name fails with ErrDuplicateAgent.
func (r *Registry) Register(a *Agent) error {
	if _, ok := r.byName[a.Name()]; ok {
		return core.NewError(core.KindDuplicateAgent, "agent %q already registered", a.Name())
	}
	r.agents = append(r.agents, a)
	r.byName[a.Name()] = a
	return nil
}

// Get returns the named agent or ErrAgentNotFound.
func (r *Registry) Get(name string) (*Agent, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, core.NewError(core.KindAgentNotFound, "agent %q not registered", name)
	}
	return a, nil
}

// Names lists agent names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.agents))
	for i, a := range r.agents {
		out[i] = a.Name()
	}
	return out
}

// All returns the agents in registration order. Callers must not modify
// the returned slice.
func (r *Registry) All() []*Agent { return r.agents }
