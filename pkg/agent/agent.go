// Package agent binds an AgentId to the LLM provider and defaults a workflow's
// Agent nodes execute against (§4.5 step 1: "Look up the Agent for agent_id;
// fail if absent").
package agent

import (
	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// Agent is a named binding of one LLM provider plus the defaults an Agent
// node falls back to when its node config omits them.
type Agent struct {
	id          ids.AgentId
	name        string
	description string
	provider    llm.Provider

	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
}

// New constructs an Agent bound to provider.
func New(id ids.AgentId, name, description string, provider llm.Provider) *Agent {
	return &Agent{id: id, name: name, description: description, provider: provider}
}

func (a *Agent) Id() ids.AgentId        { return a.id }
func (a *Agent) Name() string           { return a.name }
func (a *Agent) Description() string    { return a.description }
func (a *Agent) LlmProvider() llm.Provider { return a.provider }

// Registry is the executor's agent_id -> Agent lookup table (§4.4/§4.5).
type Registry struct {
	agents map[ids.AgentId]*Agent
}

// NewRegistry builds a Registry from a list of agents.
func NewRegistry(agents ...*Agent) *Registry {
	r := &Registry{agents: make(map[ids.AgentId]*Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.id] = a
	}
	return r
}

// Register adds or replaces an agent binding.
func (r *Registry) Register(a *Agent) {
	r.agents[a.id] = a
}

// Get looks up an agent by id, failing with AgentNotFoundError when absent
// (§4.5 step 1, §7).
func (r *Registry) Get(id ids.AgentId) (*Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, ids.AgentNotFoundError(id)
	}
	return a, nil
}
