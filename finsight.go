// Package finsight wires the banking analytics stack together: a router
// that maps natural language queries onto specialist agents, agents that
// build executable plans over query and analysis tools, and an engine
// that runs those plans within a budget and formats the response.
//
// The zero-configuration path uses the deterministic in-memory data
// provider and a mock completion service, which makes it runnable
// offline:
//
//	analyst, err := finsight.New()
//	if err != nil { ... }
//	resp, err := analyst.Ask(ctx, "What is our loan default rate?")
package finsight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/finsight-ai/finsight/agent"
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/data/local"
	"github.com/finsight-ai/finsight/engine"
	"github.com/finsight-ai/finsight/logging"
	"github.com/finsight-ai/finsight/model"
	"github.com/finsight-ai/finsight/router"
)

// Options configure an Analyst.
type Options struct {
	// Provider is the data source behind the query tools. Defaults to
	// the deterministic in-memory provider.
	Provider data.Provider

	// Completer drives the analysis tools. Defaults to the mock
	// completer; production callers plug in the openai or anthropic
	// subpackage.
	Completer model.Completer

	Logger       *logging.PlanLogger
	RouterConfig router.Config
	EngineConfig engine.Config

	// Budget applies to every plan the analyst runs.
	Budget core.Budget

	// CompletionCallsPerSecond and CompletionBurst size the shared rate
	// limiter gating all completion calls across concurrent queries.
	// CallsPerSecond <= 0 disables throttling.
	CompletionCallsPerSecond float64
	CompletionBurst          int
}

// Analyst answers banking analytics questions by routing them to
// specialist agents. It is safe for concurrent use.
type Analyst struct {
	registry *agent.Registry
	router   *router.Router
	executor *engine.Executor
	budget   core.Budget
	logger   *logging.PlanLogger
}

// New builds an Analyst with the four built-in domain agents (customer,
// loan, deposit, transaction) registered in that order.
func New(optFns ...func(o *Options)) (*Analyst, error) {
	opts := Options{
		Logger:                   logging.NewNopPlanLogger(),
		RouterConfig:             router.DefaultConfig(),
		EngineConfig:             engine.DefaultConfig(),
		Budget:                   core.DefaultBudget,
		CompletionCallsPerSecond: 5,
		CompletionBurst:          5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Provider == nil {
		opts.Provider = local.New()
	}
	if opts.Completer == nil {
		opts.Completer = model.NewMockCompleter()
	}

	limiter := core.NewCompletionLimiter(opts.CompletionCallsPerSecond, opts.CompletionBurst)
	agentOpts := func(o *agent.Options) {
		o.Limiter = limiter
		o.Logger = opts.Logger
	}

	registry := agent.NewRegistry()
	builders := []func(data.Provider, model.Completer, ...func(o *agent.Options)) (*agent.Agent, error){
		agent.NewCustomerAgent,
		agent.NewLoanAgent,
		agent.NewDepositAgent,
		agent.NewTransactionAgent,
	}
	for _, build := range builders {
		a, err := build(opts.Provider, opts.Completer, agentOpts)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	return &Analyst{
		registry: registry,
		router: router.New(registry, opts.RouterConfig, func(o *router.Options) {
			o.Logger = opts.Logger
		}),
		executor: engine.New(opts.EngineConfig, func(o *engine.Options) {
			o.Logger = opts.Logger
		}),
		budget: opts.Budget,
		logger: opts.Logger,
	}, nil
}

// Agents lists the registered agent names in registration order.
func (a *Analyst) Agents() []string { return a.registry.Names() }

// Route exposes the routing decision for a query without executing it.
func (a *Analyst) Route(query string) (router.Decision, error) {
	return a.router.Route(query)
}

// Ask routes the query, runs a plan per selected agent (concurrently for
// cross-domain queries) and merges the responses. It returns an error
// only when no agent matches the query; per-agent failures surface as
// the response status and warnings.
func (a *Analyst) Ask(ctx context.Context, query string) (core.Response, error) {
	decision, err := a.router.Route(query)
	if err != nil {
		return core.Response{}, err
	}

	responses := make([]core.Response, len(decision.Agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range decision.Agents {
		g.Go(func() error {
			responses[i] = a.run(gctx, name, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Response{}, err
	}
	return engine.Merge(responses), nil
}

func (a *Analyst) run(ctx context.Context, name, query string) core.Response {
	ag, err := a.registry.Get(name)
	if err == nil {
		var plan *core.Plan
		plan, err = ag.BuildPlan(query)
		if err == nil {
			plan.Budget = a.budget
			return engine.Format(a.executor.Execute(ctx, ag, plan))
		}
	}
	return core.Response{
		Status:   core.StatusFailure,
		Agent:    name,
		Warnings: []string{err.Error()},
	}
}
