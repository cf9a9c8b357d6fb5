// Package core defines the shared data model of the Finsight planning
// engine: plans and their steps, input bindings, adaptations, budgets,
// tool results and the externally visible response shape, plus the
// enumerated error taxonomy used across every component.
//
// Everything in this package is a plain value type. A Plan is created
// fresh for each incoming query, mutated only by the executor (step
// status) and by validated Adaptations, and discarded once a Response
// has been produced. No state in this package survives a query.
package core
