package core

import (
	"github.com/google/uuid"
)

// AnalysisOutputKey is the output key the plan's primary step must use
// when it invokes an analysis tool. The formatter looks this key up to
// decide between a structured answer and a raw-data fallback.
const AnalysisOutputKey = "analysis"

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	// StepPending means the step has not been dispatched yet.
	StepPending StepStatus = "pending"
	// StepRunning means the step is executing its tool.
	StepRunning StepStatus = "running"
	// StepSucceeded means the tool returned a result.
	StepSucceeded StepStatus = "succeeded"
	// StepFailed means the tool returned an error or timed out.
	StepFailed StepStatus = "failed"
	// StepSkipped means the step never ran (failed dependency or
	// cancellation).
	StepSkipped StepStatus = "skipped"
)

// Terminal reports whether the status is final. A terminal step's result
// is never mutated again; adaptation adds new steps instead.
func (s StepStatus) Terminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepSkipped
}

// Binding is one input of a step: either a literal value or a reference
// to another step's output key. A reference is resolved only once the
// producing step has reached a terminal status.
type Binding struct {
	Value any
	Ref   string
}

// Literal builds a literal binding.
func Literal(v any) Binding { return Binding{Value: v} }

// Ref builds a binding that resolves to the output of the step producing
// the given output key.
func Ref(outputKey string) Binding { return Binding{Ref: outputKey} }

// IsRef reports whether the binding references another step's output.
func (b Binding) IsRef() bool { return b.Ref != "" }

// Unavailable is the explicit marker substituted for a reference input
// whose producing step failed or was skipped, when the dependent step is
// optional and attempted anyway.
type Unavailable struct {
	Key string
}

// Step is a single tool invocation with bound inputs and a named output.
type Step struct {
	ID          string
	Tool        string
	Description string
	Inputs      map[string]Binding
	OutputKey   string

	// Optional steps are attempted with Unavailable substitutes when a
	// dependency failed, and their own failure only downgrades the
	// response to partial instead of skipping dependents.
	Optional bool

	Status StepStatus
	Result *ToolResult
	Err    error
}

// NewStep constructs a pending step. The ID defaults to the output key,
// which is unique within a plan anyway.
func NewStep(tool, outputKey string) *Step {
	return &Step{
		ID:        outputKey,
		Tool:      tool,
		OutputKey: outputKey,
		Inputs:    map[string]Binding{},
		Status:    StepPending,
	}
}

// Bind sets one input binding and returns the step for chaining.
func (s *Step) Bind(name string, b Binding) *Step {
	s.Inputs[name] = b
	return s
}

// Describe sets the human-readable description and returns the step.
func (s *Step) Describe(d string) *Step {
	s.Description = d
	return s
}

// MarkOptional flags the step as optional and returns it.
func (s *Step) MarkOptional() *Step {
	s.Optional = true
	return s
}

// Adaptation describes plan mutations produced by an agent's adaptation
// hook. It is always a value, never nil: the zero value means "no
// change". Mutations are applied atomically between step completions and
// re-validated for output-key uniqueness and acyclicity.
type Adaptation struct {
	AddSteps      []*Step
	RemoveStepIDs []string
	// Rebind overrides input bindings of existing steps, keyed by step ID
	// then input name.
	Rebind map[string]map[string]Binding
}

// Empty reports whether the adaptation changes nothing.
func (a Adaptation) Empty() bool {
	return len(a.AddSteps) == 0 && len(a.RemoveStepIDs) == 0 && len(a.Rebind) == 0
}

// Plan is the ordered, adaptable sequence of steps executed for one
// query on behalf of one agent.
type Plan struct {
	ID     string
	Agent  string
	Goal   string
	Steps  []*Step
	Budget Budget
}

// NewPlan creates an empty plan for the given agent and goal.
func NewPlan(agent, goal string) *Plan {
	return &Plan{
		ID:     uuid.NewString(),
		Agent:  agent,
		Goal:   goal,
		Budget: DefaultBudget,
	}
}

// Add appends steps to the plan.
func (p *Plan) Add(steps ...*Step) *Plan {
	p.Steps = append(p.Steps, steps...)
	return p
}

// Step returns the step with the given ID, or nil.
func (p *Plan) Step(id string) *Step {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Producer returns the step producing the given output key, or nil.
func (p *Plan) Producer(outputKey string) *Step {
	for _, s := range p.Steps {
		if s.OutputKey == outputKey {
			return s
		}
	}
	return nil
}

// Primary returns the step whose output feeds the response body: the one
// with output key "analysis", or nil if the plan has none.
func (p *Plan) Primary() *Step { return p.Producer(AnalysisOutputKey) }

// Dependencies returns the steps the given step binds from.
func (p *Plan) Dependencies(s *Step) ([]*Step, error) {
	var deps []*Step
	for name, b := range s.Inputs {
		if !b.IsRef() {
			continue
		}
		dep := p.Producer(b.Ref)
		if dep == nil {
			return nil, NewError(KindMissingDependency,
				"step %q input %q references unknown output key %q", s.ID, name, b.Ref)
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// Validate checks the plan invariants: at least one step, output keys
// unique, every reference resolvable, and no dependency cycle.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return NewError(KindInvalidPlan, "plan %s has no steps", p.ID)
	}
	seen := map[string]string{}
	for _, s := range p.Steps {
		if s.OutputKey == "" {
			return NewError(KindInvalidPlan, "step %q has no output key", s.ID)
		}
		if prev, ok := seen[s.OutputKey]; ok {
			return NewError(KindInvalidPlan,
				"output key %q produced by both %q and %q", s.OutputKey, prev, s.ID)
		}
		seen[s.OutputKey] = s.ID
	}
	for _, s := range p.Steps {
		if _, err := p.Dependencies(s); err != nil {
			return err
		}
	}
	return p.checkAcyclic()
}

// checkAcyclic runs a three-color depth-first search over the binding
// graph.
func (p *Plan) checkAcyclic() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}

	var visit func(s *Step) error
	visit = func(s *Step) error {
		color[s.ID] = grey
		deps, err := p.Dependencies(s)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			switch color[dep.ID] {
			case grey:
				return NewError(KindCyclicPlan,
					"dependency cycle through steps %q and %q", s.ID, dep.ID)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[s.ID] = black
		return nil
	}

	for _, s := range p.Steps {
		if color[s.ID] == white {
			if err := visit(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply applies an adaptation atomically: the mutation is staged on a
// copy of the step list, re-validated, and only then committed. Terminal
// steps are never modified; rebinding a terminal step is rejected.
func (p *Plan) Apply(a Adaptation) error {
	if a.Empty() {
		return nil
	}

	removed := map[string]bool{}
	for _, id := range a.RemoveStepIDs {
		s := p.Step(id)
		if s == nil {
			return NewError(KindInvalidPlan, "adaptation removes unknown step %q", id)
		}
		if s.Status == StepRunning {
			return NewError(KindInvalidPlan, "adaptation removes running step %q", id)
		}
		removed[id] = true
	}
	for id := range a.Rebind {
		s := p.Step(id)
		if s == nil {
			return NewError(KindInvalidPlan, "adaptation rebinds unknown step %q", id)
		}
		if s.Status.Terminal() || s.Status == StepRunning {
			return NewError(KindInvalidPlan, "adaptation rebinds step %q in status %s", id, s.Status)
		}
	}

	staged := &Plan{ID: p.ID, Agent: p.Agent, Goal: p.Goal, Budget: p.Budget}
	for _, s := range p.Steps {
		if removed[s.ID] {
			continue
		}
		cp := *s
		if rb, ok := a.Rebind[s.ID]; ok {
			inputs := map[string]Binding{}
			for k, v := range s.Inputs {
				inputs[k] = v
			}
			for k, v := range rb {
				inputs[k] = v
			}
			cp.Inputs = inputs
		}
		staged.Steps = append(staged.Steps, &cp)
	}
	staged.Steps = append(staged.Steps, a.AddSteps...)

	if err := staged.Validate(); err != nil {
		return err
	}

	// Commit: rebind and remove on the live plan, append new steps.
	kept := p.Steps[:0]
	for _, s := range p.Steps {
		if removed[s.ID] {
			continue
		}
		if rb, ok := a.Rebind[s.ID]; ok {
			for k, v := range rb {
				s.Inputs[k] = v
			}
		}
		kept = append(kept, s)
	}
	p.Steps = append(kept, a.AddSteps...)
	return nil
}
