// Package engine executes plans. The Executor schedules steps onto a
// bounded worker pool, resolves input bindings as producers finish,
// enforces the plan budget, and applies agent adaptations atomically
// between step completions. The formatter turns a finished run into the
// external response.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finsight-ai/finsight/agent"
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/logging"
	"github.com/finsight-ai/finsight/tool"
)

// Config bounds one executor.
type Config struct {
	// WorkerPool is the number of steps of one plan that may execute
	// concurrently. This is plan-local parallelism; completion-service
	// throughput is governed separately by the shared CompletionLimiter.
	WorkerPool int

	// MaxAdaptations caps how many non-empty adaptations one plan may
	// apply before the run fails.
	MaxAdaptations int
}

// DefaultConfig returns the default executor bounds.
func DefaultConfig() Config {
	return Config{WorkerPool: 4, MaxAdaptations: 5}
}

// Options configure optional executor collaborators.
type Options struct {
	Logger  *logging.PlanLogger
	Counter *core.TokenCounter
}

// Executor runs plans. It is stateless across runs and safe for
// concurrent use.
type Executor struct {
	config  Config
	logger  *logging.PlanLogger
	counter *core.TokenCounter
}

// New creates an executor.
func New(config Config, optFns ...func(o *Options)) *Executor {
	if config.WorkerPool < 1 {
		config.WorkerPool = 1
	}
	if config.MaxAdaptations < 0 {
		config.MaxAdaptations = 0
	}
	opts := Options{
		Logger:  logging.NewNopPlanLogger(),
		Counter: core.NewTokenCounter(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{config: config, logger: opts.Logger, counter: opts.Counter}
}

// Run is the outcome of executing one plan. Step-level detail stays on
// the plan's steps; Run collects the cross-step state.
type Run struct {
	Plan        *core.Plan
	Outputs     map[string]*core.ToolResult
	Warnings    []string
	Adaptations int
	// Err is set only for plan-level failures: invalid plan, adaptation
	// limit exceeded. Individual step failures do not set it.
	Err      error
	Duration time.Duration
}

// Output returns the result stored under an output key, or nil.
func (r *Run) Output(key string) *core.ToolResult { return r.Outputs[key] }

type job struct {
	step   *core.Step
	tool   tool.Tool
	params map[string]any
}

type completion struct {
	step     *core.Step
	result   *core.ToolResult
	err      error
	duration time.Duration
}

// Execute runs the plan to completion (or to its deadline) and returns
// the run. The agent supplies the tools and the adaptation hook.
func (e *Executor) Execute(ctx context.Context, ag *agent.Agent, plan *core.Plan) *Run {
	start := time.Now()
	run := &Run{Plan: plan, Outputs: map[string]*core.ToolResult{}}
	logger := e.logger.WithAgent(plan.Agent).WithPlan(plan.ID)

	if err := plan.Validate(); err != nil {
		run.Err = err
		run.Duration = time.Since(start)
		return run
	}

	if plan.Budget.PlanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, plan.Budget.PlanTimeout)
		defer cancel()
	}

	jobs := make(chan job)
	results := make(chan completion)

	var wg sync.WaitGroup
	for i := 0; i < e.config.WorkerPool; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				stepStart := time.Now()
				res, err := e.runTool(ctx, plan.Budget, j)
				results <- completion{step: j.step, result: res, err: err, duration: time.Since(stepStart)}
			}
		}()
	}

	e.schedule(ctx, ag, plan, run, logger, jobs, results)

	close(jobs)
	wg.Wait()
	run.Duration = time.Since(start)
	return run
}

type resolveState int

const (
	stReady resolveState = iota
	stBlocked
	stSkip
)

// schedule is the single goroutine that owns all step-state mutation.
// Workers only execute tools; everything else (binding resolution,
// budget checks, adaptation) happens here, so the plan needs no locking.
func (e *Executor) schedule(ctx context.Context, ag *agent.Agent, plan *core.Plan, run *Run,
	logger *logging.PlanLogger, jobs chan<- job, results <-chan completion) {

	var (
		ready    []job
		inFlight int
		halted   bool // plan deadline hit or adaptation limit tripped
	)

	// settle marks a step terminal, records its output, and consults the
	// agent's adaptation hook.
	settle := func(s *core.Step, status core.StepStatus, result *core.ToolResult, err error, dur time.Duration) {
		s.Status = status
		s.Result = result
		s.Err = err
		if status == core.StepSucceeded && result != nil {
			run.Outputs[s.OutputKey] = result
		}
		logger.LogStep(s.ID, s.Tool, string(status), dur, err)

		if halted {
			return
		}
		adaptation := ag.Adapt(plan, s)
		if adaptation.Empty() {
			return
		}
		if run.Adaptations >= e.config.MaxAdaptations {
			run.Err = core.NewError(core.KindAdaptationLimitExceeded,
				"plan %s exceeded the limit of %d adaptations", plan.ID, e.config.MaxAdaptations)
			halted = true
			return
		}
		if applyErr := plan.Apply(adaptation); applyErr != nil {
			// An adaptation that fails re-validation (stranded reference,
			// key collision, cycle) is fatal to the plan, not a soft skip.
			run.Err = core.WrapError(core.KindOf(applyErr), applyErr,
				"adaptation after step %q rejected", s.ID)
			halted = true
			return
		}
		run.Adaptations++
		logger.Info("plan adapted",
			"step_id", s.ID,
			"added", len(adaptation.AddSteps),
			"removed", len(adaptation.RemoveStepIDs),
			"rebound", len(adaptation.Rebind))
	}

	// The plan deadline is a cancellation of the whole run, not a step
	// timeout: steps it catches are skipped with Cancelled. Timeout is
	// reserved for the per-step budget in runTool.
	haltErr := func() error {
		if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
			return core.WrapError(core.KindCancelled, err, "plan deadline exceeded")
		} else if err != nil {
			return core.WrapError(core.KindCancelled, err, "plan cancelled")
		}
		return core.NewError(core.KindCancelled, "plan halted")
	}
	halt := func() {
		if !halted {
			halted = true
			run.Warnings = append(run.Warnings, haltErr().Error())
		}
	}

	for {
		if ctx.Err() != nil {
			halt()
		}
		if halted && len(ready) > 0 {
			for _, j := range ready {
				settle(j.step, core.StepSkipped, nil, haltErr(), 0)
			}
			ready = nil
		}

		// Settle skips and collect newly dispatchable steps until the
		// plan state stops changing. Skips cascade: a skipped producer
		// can doom a dependent in the same pass.
		for changed := true; changed; {
			changed = false
			for _, s := range plan.Steps {
				if s.Status != core.StepPending {
					continue
				}
				if halted {
					settle(s, core.StepSkipped, nil, haltErr(), 0)
					changed = true
					continue
				}
				t := ag.Tool(s.Tool)
				if t == nil {
					settle(s, core.StepFailed, nil, core.NewError(core.KindInvalidPlan,
						"step %q uses tool %q not owned by agent %q", s.ID, s.Tool, ag.Name()), 0)
					changed = true
					continue
				}
				params, state, err := resolve(plan, run, s)
				switch state {
				case stBlocked:
					// Producer still pending or running.
				case stSkip:
					settle(s, core.StepSkipped, nil, err, 0)
					changed = true
				case stReady:
					params, err = e.applyBudget(plan.Budget, run, s, t, params)
					if err != nil {
						settle(s, core.StepFailed, nil, err, 0)
						changed = true
						continue
					}
					s.Status = core.StepRunning
					ready = append(ready, job{step: s, tool: t, params: params})
					changed = true
				}
			}
		}

		if inFlight == 0 && len(ready) == 0 {
			if done, stuck := planState(plan); done {
				return
			} else if stuck != nil {
				// Defensive: validation guarantees acyclicity, so a
				// pending step with nothing in flight cannot happen.
				settle(stuck, core.StepSkipped, nil, core.NewError(core.KindInvalidPlan,
					"step %q is unreachable", stuck.ID), 0)
				continue
			}
		}

		var jobsCh chan<- job
		var next job
		if len(ready) > 0 {
			jobsCh = jobs
			next = ready[0]
		}
		var ctxDone <-chan struct{}
		if !halted {
			ctxDone = ctx.Done()
		}

		select {
		case jobsCh <- next:
			ready = ready[1:]
			inFlight++
		case c := <-results:
			inFlight--
			if c.err != nil {
				settle(c.step, core.StepFailed, nil, c.err, c.duration)
			} else {
				settle(c.step, core.StepSucceeded, c.result, nil, c.duration)
			}
		case <-ctxDone:
			halt()
		}
	}
}

// planState reports whether every step is terminal, and otherwise
// returns some pending step.
func planState(plan *core.Plan) (bool, *core.Step) {
	var pending *core.Step
	for _, s := range plan.Steps {
		if !s.Status.Terminal() {
			if pending == nil {
				pending = s
			}
			return false, pending
		}
	}
	return true, nil
}

// resolve builds the parameter map for a pending step from its bindings.
func resolve(plan *core.Plan, run *Run, s *core.Step) (map[string]any, resolveState, error) {
	params := make(map[string]any, len(s.Inputs))
	for name, b := range s.Inputs {
		if !b.IsRef() {
			params[name] = b.Value
			continue
		}
		dep := plan.Producer(b.Ref)
		if dep == nil {
			return nil, stSkip, core.NewError(core.KindMissingDependency,
				"step %q input %q references unknown output key %q", s.ID, name, b.Ref)
		}
		switch {
		case !dep.Status.Terminal():
			return nil, stBlocked, nil
		case dep.Status == core.StepSucceeded:
			params[name] = outputValue(run.Outputs[b.Ref])
		case s.Optional:
			// Optional steps run anyway with an explicit marker so the
			// tool can note what is missing.
			params[name] = core.Unavailable{Key: b.Ref}
		default:
			return nil, stSkip, core.NewError(core.KindMissingDependency,
				"step %q lost input %q: producer %q is %s", s.ID, name, dep.ID, dep.Status)
		}
	}
	return params, stReady, nil
}

func outputValue(res *core.ToolResult) any {
	switch {
	case res == nil:
		return nil
	case res.Analysis != nil:
		return res.Analysis
	default:
		return res.Records
	}
}

// applyBudget enforces the analysis token ceiling before dispatch: a
// record set over budget is halved once, keeping the head of the
// provider's stable order; if still over, the step fails.
func (e *Executor) applyBudget(budget core.Budget, run *Run, s *core.Step, t tool.Tool, params map[string]any) (map[string]any, error) {
	if t.Kind() != tool.KindAnalysis || budget.MaxAnalysisTokens <= 0 {
		return params, nil
	}
	records, ok := params["records"].([]core.Record)
	if !ok {
		return params, nil
	}
	cost := e.counter.CountRecords(records)
	if cost <= budget.MaxAnalysisTokens {
		return params, nil
	}

	truncated := core.TruncateRecords(records, len(records)/2)
	run.Warnings = append(run.Warnings, fmt.Sprintf(
		"step %q: input of ~%d tokens exceeds the %d token budget, truncated from %d to %d rows",
		s.ID, cost, budget.MaxAnalysisTokens, len(records), len(truncated)))

	if e.counter.CountRecords(truncated) > budget.MaxAnalysisTokens {
		return nil, core.NewError(core.KindBudgetExceeded,
			"step %q input still exceeds the %d token budget after truncation",
			s.ID, budget.MaxAnalysisTokens)
	}
	params["records"] = truncated
	return params, nil
}

// runTool executes one step's tool inside the per-step timeout. Runs on
// a worker goroutine; must not touch the plan.
func (e *Executor) runTool(ctx context.Context, budget core.Budget, j job) (res *core.ToolResult, err error) {
	if budget.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.StepTimeout)
		defer cancel()
	}

	switch t := j.tool.(type) {
	case tool.QueryTool:
		var records []core.Record
		records, err = t.Execute(ctx, j.params)
		if err == nil {
			res = core.RecordsResult(records)
		}
	case tool.AnalysisTool:
		records, queryContext := splitAnalysisInputs(j.params)
		var analysis *core.Analysis
		analysis, err = t.Execute(ctx, records, queryContext)
		if err == nil {
			res = core.AnalysisResult(analysis)
		}
	default:
		err = core.NewError(core.KindInvalidPlan,
			"tool %q is neither a query nor an analysis tool", j.tool.Name())
	}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && core.KindOf(err) != core.KindTimeout {
		err = core.WrapError(core.KindTimeout, err, "step %q timed out", j.step.ID)
	}
	return res, err
}

// splitAnalysisInputs separates the record set from the remaining query
// context of an analysis step. A non-record value under "records" (the
// Unavailable marker) stays in the context so the tool can report it.
func splitAnalysisInputs(params map[string]any) ([]core.Record, map[string]any) {
	queryContext := make(map[string]any, len(params))
	var records []core.Record
	for k, v := range params {
		if k == "records" {
			if recs, ok := v.([]core.Record); ok {
				records = recs
				continue
			}
		}
		queryContext[k] = v
	}
	return records, queryContext
}
