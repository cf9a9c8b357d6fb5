// Package local provides a deterministic in-memory data.Provider seeded
// with a small banking dataset (customers, loans, deposits,
// transactions). It exists for tests, examples and local development;
// production deployments supply a Provider backed by a real store.
package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
)

// View names served by the local provider, aliased from the contract
// package.
const (
	ViewCustomers    = data.ViewCustomers
	ViewLoans        = data.ViewLoans
	ViewDeposits     = data.ViewDeposits
	ViewTransactions = data.ViewTransactions
)

// dateFields maps each view to its date column for TimeRange filtering.
var dateFields = map[string]string{
	ViewCustomers:    "join_date",
	ViewLoans:        "origination_date",
	ViewDeposits:     "opened_date",
	ViewTransactions: "date",
}

// amountFields maps each view to the numeric column its metrics
// aggregate over.
var amountFields = map[string]string{
	ViewCustomers:    "lifetime_value",
	ViewLoans:        "amount",
	ViewDeposits:     "balance",
	ViewTransactions: "amount",
}

// Provider is a read-only, mutex-free after construction, in-memory
// data source. The dataset is generated deterministically, so repeated
// identical queries always return identical record sequences.
type Provider struct {
	mu    sync.RWMutex
	views map[string][]core.Record
}

// Options tune the generated dataset size.
type Options struct {
	Customers    int
	Loans        int
	Deposits     int
	Transactions int
}

// New creates a provider with a deterministically seeded dataset.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{Customers: 200, Loans: 300, Deposits: 400, Transactions: 1000}
	for _, fn := range optFns {
		fn(&opts)
	}
	p := &Provider{views: map[string][]core.Record{}}
	p.seed(opts)
	return p
}

// Views implements data.Provider.
func (p *Provider) Views() []string {
	return []string{ViewCustomers, ViewLoans, ViewDeposits, ViewTransactions}
}

// Query implements data.Provider. Records are returned in primary-key
// order; grouped results are sorted by their group key values.
func (p *Provider) Query(_ context.Context, spec data.QuerySpec) ([]core.Record, error) {
	p.mu.RLock()
	rows, ok := p.views[spec.View]
	p.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.KindDataSource, "unknown view %q", spec.View)
	}

	filtered := make([]core.Record, 0, len(rows))
	for _, r := range rows {
		match, err := matches(r, spec)
		if err != nil {
			return nil, err
		}
		if match {
			filtered = append(filtered, r)
		}
	}

	if len(spec.GroupBy) == 0 && len(spec.Metrics) == 0 {
		return limit(filtered, spec.Limit), nil
	}
	if len(spec.GroupBy) == 0 {
		return []core.Record{aggregate(filtered, spec)}, nil
	}
	return limit(groupAggregate(filtered, spec), spec.Limit), nil
}

func matches(r core.Record, spec data.QuerySpec) (bool, error) {
	for _, f := range spec.Filters {
		ok, err := applyFilter(r, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if tr := spec.TimeRange; tr != nil {
		field := dateFields[spec.View]
		date, _ := r[field].(string)
		if tr.Start != "" && date < tr.Start {
			return false, nil
		}
		if tr.End != "" && date > tr.End {
			return false, nil
		}
	}
	return true, nil
}

func applyFilter(r core.Record, f data.Filter) (bool, error) {
	value, ok := r[f.Field]
	if !ok {
		return false, nil
	}
	switch f.Op {
	case "", "=":
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", f.Value), nil
	case "!=":
		return fmt.Sprintf("%v", value) != fmt.Sprintf("%v", f.Value), nil
	case ">=":
		return toFloat(value) >= toFloat(f.Value), nil
	case "<=":
		return toFloat(value) <= toFloat(f.Value), nil
	case "contains":
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", value)),
			strings.ToLower(fmt.Sprintf("%v", f.Value)),
		), nil
	default:
		return false, core.NewError(core.KindDataSource, "unsupported filter op %q", f.Op)
	}
}

// aggregate computes the requested metrics over one bucket of rows.
func aggregate(rows []core.Record, spec data.QuerySpec) core.Record {
	out := core.Record{}
	amountField := amountFields[spec.View]
	for _, metric := range spec.Metrics {
		switch metric {
		case "count":
			out["total_count"] = len(rows)
		case "sum":
			out["total_amount"] = round2(sum(rows, amountField))
		case "average":
			if len(rows) > 0 {
				out["average_amount"] = round2(sum(rows, amountField) / float64(len(rows)))
			} else {
				out["average_amount"] = 0.0
			}
		case "min":
			out["min_amount"] = round2(minOf(rows, amountField))
		case "max":
			out["max_amount"] = round2(maxOf(rows, amountField))
		case "default_rate":
			out["default_rate"] = round2(statusRate(rows, "default"))
		}
	}
	return out
}

func groupAggregate(rows []core.Record, spec data.QuerySpec) []core.Record {
	buckets := map[string][]core.Record{}
	var keys []string
	for _, r := range rows {
		parts := make([]string, len(spec.GroupBy))
		for i, g := range spec.GroupBy {
			parts[i] = fmt.Sprintf("%v", r[g])
		}
		key := strings.Join(parts, "\x00")
		if _, seen := buckets[key]; !seen {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], r)
	}
	sort.Strings(keys)

	out := make([]core.Record, 0, len(keys))
	for _, key := range keys {
		bucket := buckets[key]
		rec := aggregate(bucket, spec)
		for i, g := range spec.GroupBy {
			rec[g] = strings.Split(key, "\x00")[i]
		}
		out = append(out, rec)
	}
	return out
}

func limit(rows []core.Record, n int) []core.Record {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

func sum(rows []core.Record, field string) float64 {
	total := 0.0
	for _, r := range rows {
		total += toFloat(r[field])
	}
	return total
}

func minOf(rows []core.Record, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	m := toFloat(rows[0][field])
	for _, r := range rows[1:] {
		if v := toFloat(r[field]); v < m {
			m = v
		}
	}
	return m
}

func maxOf(rows []core.Record, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	m := toFloat(rows[0][field])
	for _, r := range rows[1:] {
		if v := toFloat(r[field]); v > m {
			m = v
		}
	}
	return m
}

func statusRate(rows []core.Record, status string) float64 {
	if len(rows) == 0 {
		return 0
	}
	n := 0
	for _, r := range rows {
		if s, _ := r["status"].(string); s == status {
			n++
		}
	}
	return float64(n) * 100 / float64(len(rows))
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
