// Package testutil provides shared helpers for package tests: a
// scriptable data provider and builders for canned records and
// completion payloads.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
)

// StaticProvider is a data.Provider returning canned records per view,
// or a fixed error. It records every query spec it receives.
type StaticProvider struct {
	RecordsByView map[string][]core.Record
	Err           error

	mu      sync.Mutex
	queries []data.QuerySpec
}

// Query implements data.Provider.
func (p *StaticProvider) Query(_ context.Context, spec data.QuerySpec) ([]core.Record, error) {
	p.mu.Lock()
	p.queries = append(p.queries, spec)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.RecordsByView[spec.View], nil
}

// Views implements data.Provider.
func (p *StaticProvider) Views() []string {
	out := make([]string, 0, len(p.RecordsByView))
	for v := range p.RecordsByView {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Queries returns a copy of the specs seen so far.
func (p *StaticProvider) Queries() []data.QuerySpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]data.QuerySpec(nil), p.queries...)
}

// Records builds n distinguishable records.
func Records(n int) []core.Record {
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.Record{"id": fmt.Sprintf("R%04d", i), "amount": float64(100 * (i + 1))}
	}
	return out
}

// AnalysisJSON renders a canned completion payload in the shape the
// analysis tools parse.
func AnalysisJSON(answer string, insights, recommendations []string) string {
	raw, err := json.Marshal(core.Analysis{
		Answer:          answer,
		Insights:        insights,
		Recommendations: recommendations,
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}
