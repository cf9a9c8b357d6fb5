// Package data defines the narrow contract through which the planning
// core retrieves records. The concrete engine behind a Provider — an
// in-memory dataset, a file-backed store or a managed warehouse — is an
// external collaborator the core never sees past this interface.
package data

import (
	"context"

	"github.com/finsight-ai/finsight/core"
)

// Canonical view names of the banking domain. Providers may serve more,
// but the built-in tools reference these.
const (
	ViewCustomers    = "customers"
	ViewLoans        = "loans"
	ViewDeposits     = "deposits"
	ViewTransactions = "transactions"
)

// Filter is one predicate applied to a view before aggregation.
type Filter struct {
	Field string
	Op    string // "=", "!=", ">=", "<=", "contains"
	Value any
}

// TimeRange restricts a query to records whose date field falls inside
// [Start, End], both in YYYY-MM-DD form.
type TimeRange struct {
	Start string
	End   string
}

// QuerySpec is a parameterized query specification: a view name, filter
// predicates and an aggregation descriptor. Providers must evaluate it
// read-only and return records in a stable order, so that identical
// specs against an unchanged snapshot yield identical results.
type QuerySpec struct {
	View      string
	Filters   []Filter
	Metrics   []string // count, sum, average, min, max, default_rate
	GroupBy   []string
	TimeRange *TimeRange
	Limit     int
}

// Provider executes query specifications against a data source. Query
// failures carry the DataSourceError kind.
type Provider interface {
	// Query returns the ordered records matching the spec.
	Query(ctx context.Context, spec QuerySpec) ([]core.Record, error)

	// Views lists the view names the provider can serve.
	Views() []string
}
