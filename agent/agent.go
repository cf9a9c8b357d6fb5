// Package agent defines the specialist agents of the banking domain:
// each owns a set of tools, a trigger vocabulary for routing, a plan
// builder that turns a natural language query into an executable plan,
// and an optional adaptation hook consulted between step completions.
package agent

import (
	"strings"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/tool"
)

// BuildFunc turns a query into a plan. The returned plan is validated by
// Agent.BuildPlan before anything executes it.
type BuildFunc func(query string) (*core.Plan, error)

// AdaptFunc inspects the plan after a step reached a terminal status and
// proposes a mutation. Returning the zero Adaptation means no change and
// does not count against the adaptation limit.
type AdaptFunc func(plan *core.Plan, completed *core.Step) core.Adaptation

// Descriptor declares everything an agent is made of.
type Descriptor struct {
	Description string
	Triggers    []string
	Tools       []tool.Tool
	Build       BuildFunc
	Adapt       AdaptFunc
}

// Agent is a routable specialist. Agents are stateless across queries;
// all per-query state lives in the plan and its run.
type Agent struct {
	name        string
	description string
	triggers    []string
	tools       map[string]tool.Tool
	build       BuildFunc
	adapt       AdaptFunc
}

// New constructs an agent from a descriptor.
func New(name string, desc Descriptor) (*Agent, error) {
	if name == "" {
		return nil, core.NewError(core.KindInvalidPlan, "agent name must not be empty")
	}
	if desc.Build == nil {
		return nil, core.NewError(core.KindInvalidPlan, "agent %q has no plan builder", name)
	}
	tools := make(map[string]tool.Tool, len(desc.Tools))
	for _, t := range desc.Tools {
		tools[t.Name()] = t
	}
	triggers := make([]string, len(desc.Triggers))
	for i, t := range desc.Triggers {
		triggers[i] = strings.ToLower(t)
	}
	return &Agent{
		name:        name,
		description: desc.Description,
		triggers:    triggers,
		tools:       tools,
		build:       desc.Build,
		adapt:       desc.Adapt,
	}, nil
}

// Name returns the agent's registry name.
func (a *Agent) Name() string { return a.name }

// Description returns the human-readable agent description.
func (a *Agent) Description() string { return a.description }

// Triggers returns the lowercase trigger vocabulary used for routing.
func (a *Agent) Triggers() []string { return a.triggers }

// Tool returns the named tool, or nil if the agent does not own it.
func (a *Agent) Tool(name string) tool.Tool { return a.tools[name] }

// BuildPlan builds and validates a plan for the query. It enforces that
// every step references a tool the agent owns and that the primary step,
// when present, invokes an analysis tool.
func (a *Agent) BuildPlan(query string) (*core.Plan, error) {
	plan, err := a.build(query)
	if err != nil {
		return nil, err
	}
	plan.Agent = a.name

	for _, s := range plan.Steps {
		t, ok := a.tools[s.Tool]
		if !ok {
			return nil, core.NewError(core.KindInvalidPlan,
				"step %q uses tool %q not owned by agent %q", s.ID, s.Tool, a.name)
		}
		if s.OutputKey == core.AnalysisOutputKey && t.Kind() != tool.KindAnalysis {
			return nil, core.NewError(core.KindInvalidPlan,
				"primary step %q must use an analysis tool, got %q", s.ID, s.Tool)
		}
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Adapt runs the adaptation hook. It is nil-safe: agents without a hook
// never mutate their plans.
func (a *Agent) Adapt(plan *core.Plan, completed *core.Step) core.Adaptation {
	if a.adapt == nil {
		return core.Adaptation{}
	}
	return a.adapt(plan, completed)
}
