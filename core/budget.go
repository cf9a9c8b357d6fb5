package core

import "time"

// Budget bounds the cost of one plan: a token ceiling for any single
// analysis-tool invocation, a per-step timeout, and an overall deadline
// for the whole plan.
type Budget struct {
	// MaxAnalysisTokens caps the estimated token cost of the inputs bound
	// into one analysis step. Zero means unlimited.
	MaxAnalysisTokens int

	// StepTimeout bounds one tool call. Zero means no per-step timeout.
	StepTimeout time.Duration

	// PlanTimeout bounds the whole plan. Once passed, pending and running
	// steps are cancelled and the plan finalizes with what it has.
	PlanTimeout time.Duration
}

// DefaultBudget is a safe starting point for interactive analytics
// queries.
var DefaultBudget = Budget{
	MaxAnalysisTokens: 8000,
	StepTimeout:       30 * time.Second,
	PlanTimeout:       2 * time.Minute,
}
