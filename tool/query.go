package tool

import (
	"context"
	"errors"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/internal/util"
)

// queryParamsSchema is shared by all data query tools.
var queryParamsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query_type": map[string]any{
			"type":        "string",
			"description": "Named query template to run against the view",
		},
		"filters": map[string]any{
			"type":        "object",
			"description": "Optional equality filters (field -> value)",
		},
		"time_start": map[string]any{"type": "string"},
		"time_end":   map[string]any{"type": "string"},
		"limit":      map[string]any{"type": "integer"},
	},
}

// DataQueryTool executes named query templates against one view of a
// data provider. Each domain tool is an instance of this adapter with
// its own template table; the templates are deterministic so the same
// parameters always produce the same QuerySpec.
type DataQueryTool struct {
	name        string
	description string
	provider    data.Provider
	view        string
	templates   map[string]data.QuerySpec
	defaultType string
}

// Name implements Tool.
func (t *DataQueryTool) Name() string { return t.name }

// Description implements Tool.
func (t *DataQueryTool) Description() string { return t.description }

// Kind implements Tool.
func (t *DataQueryTool) Kind() Kind { return KindQuery }

// QueryTypes lists the template names the tool accepts.
func (t *DataQueryTool) QueryTypes() []string {
	out := make([]string, 0, len(t.templates))
	for name := range t.templates {
		out = append(out, name)
	}
	return out
}

// Execute implements QueryTool. Unknown query types fall back to the
// tool's default template; provider failures surface as DataSourceError.
func (t *DataQueryTool) Execute(ctx context.Context, params map[string]any) ([]core.Record, error) {
	params, _ = stripUnavailable(params)
	if err := util.ValidateParameters(params, queryParamsSchema); err != nil {
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "VALIDATION_ERROR", Cause: err}
	}

	queryType, _ := params["query_type"].(string)
	template, ok := t.templates[queryType]
	if !ok {
		template = t.templates[t.defaultType]
	}

	spec := template
	spec.View = t.view
	spec.Filters = append([]data.Filter{}, template.Filters...)

	if filters, ok := params["filters"].(map[string]any); ok {
		for field, value := range filters {
			spec.Filters = append(spec.Filters, data.Filter{Field: field, Op: "=", Value: value})
		}
	}
	start, _ := params["time_start"].(string)
	end, _ := params["time_end"].(string)
	if start != "" || end != "" {
		spec.TimeRange = &data.TimeRange{Start: start, End: end}
	}
	if limit, ok := asInt(params["limit"]); ok && limit > 0 {
		spec.Limit = limit
	}

	records, err := t.provider.Query(ctx, spec)
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = core.WrapError(core.KindDataSource, err, "querying view %q", t.view)
		}
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "DATA_SOURCE_ERROR", Cause: err}
	}
	return records, nil
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

var errNilProvider = errors.New("tool: nil data provider")

func newDataQueryTool(name, description, view, defaultType string, provider data.Provider, templates map[string]data.QuerySpec) *DataQueryTool {
	if provider == nil {
		panic(errNilProvider)
	}
	return &DataQueryTool{
		name:        name,
		description: description,
		provider:    provider,
		view:        view,
		templates:   templates,
		defaultType: defaultType,
	}
}

// NewCustomerQueryTool retrieves customer analytics: segmentation,
// lifetime value, churn risk, demographics and product adoption.
func NewCustomerQueryTool(provider data.Provider) *DataQueryTool {
	return newDataQueryTool(
		"customer_query",
		"Execute customer analytics queries (segmentation, lifetime value, churn risk, demographics)",
		data.ViewCustomers,
		"demographics",
		provider,
		map[string]data.QuerySpec{
			"segmentation": {GroupBy: []string{"segment"}, Metrics: []string{"count", "average"}},
			"lifetime_value": {
				GroupBy: []string{"segment"},
				Metrics: []string{"count", "sum", "average"},
			},
			"churn_risk": {
				Filters: []data.Filter{{Field: "churn_risk", Op: ">=", Value: 0.7}},
				Limit:   50,
			},
			"demographics":     {GroupBy: []string{"segment"}, Metrics: []string{"count"}},
			"product_adoption": {GroupBy: []string{"products"}, Metrics: []string{"count"}},
		},
	)
}

// NewLoanQueryTool retrieves loan portfolio metrics.
func NewLoanQueryTool(provider data.Provider) *DataQueryTool {
	return newDataQueryTool(
		"loan_query",
		"Execute loan portfolio queries (portfolio breakdown, default rates, performance)",
		data.ViewLoans,
		"portfolio",
		provider,
		map[string]data.QuerySpec{
			"portfolio": {
				GroupBy: []string{"loan_type"},
				Metrics: []string{"count", "sum", "average", "default_rate"},
			},
			"default_rate": {GroupBy: []string{"loan_type"}, Metrics: []string{"count", "default_rate"}},
			"performance":  {GroupBy: []string{"status"}, Metrics: []string{"count", "sum"}},
			"rates":        {GroupBy: []string{"loan_type"}, Metrics: []string{"average", "min", "max"}},
		},
	)
}

// NewDepositQueryTool retrieves deposit balances and trends.
func NewDepositQueryTool(provider data.Provider) *DataQueryTool {
	return newDataQueryTool(
		"deposit_query",
		"Execute deposit queries (trends by account type, balance distribution)",
		data.ViewDeposits,
		"trends",
		provider,
		map[string]data.QuerySpec{
			"trends":   {GroupBy: []string{"account_type"}, Metrics: []string{"count", "sum", "average"}},
			"balances": {GroupBy: []string{"account_type"}, Metrics: []string{"average", "min", "max"}},
		},
	)
}

// NewTransactionQueryTool retrieves transaction patterns and anomalies.
func NewTransactionQueryTool(provider data.Provider) *DataQueryTool {
	return newDataQueryTool(
		"transaction_query",
		"Execute transaction queries (patterns by category, channel usage, large transactions)",
		data.ViewTransactions,
		"patterns",
		provider,
		map[string]data.QuerySpec{
			"patterns": {GroupBy: []string{"category"}, Metrics: []string{"count", "sum", "average"}},
			"channels": {GroupBy: []string{"channel"}, Metrics: []string{"count", "sum"}},
			"anomalies": {
				Filters: []data.Filter{{Field: "amount", Op: ">=", Value: 2000.0}},
				Limit:   50,
			},
		},
	)
}
