package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/logging"
	"github.com/finsight-ai/finsight/tool"
)

// Options configure the built-in domain agents.
type Options struct {
	// Limiter is the shared completion rate limiter. All analysis tools
	// of all agents should share one instance.
	Limiter *core.CompletionLimiter
	Logger  logging.Logger
}

const fallbackOutputKey = "records_fallback"

var topNRe = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)

// topN extracts an explicit result limit like "top 5" from the query.
// Returns 0 when the query does not ask for one.
func topN(query string) int {
	m := topNRe.FindStringSubmatch(query)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// typeRule maps a query keyword to a query-template name. Rules are
// checked in order; the first match wins.
type typeRule struct {
	keyword   string
	queryType string
}

func classify(query string, rules []typeRule, fallback string) string {
	q := strings.ToLower(query)
	for _, r := range rules {
		if strings.Contains(q, r.keyword) {
			return r.queryType
		}
	}
	return fallback
}

// buildTwoStepPlan is the common plan shape of the domain agents: one
// data query feeding one optional analysis step.
func buildTwoStepPlan(query, queryTool, analysisTool, queryType, focus string) *core.Plan {
	fetch := core.NewStep(queryTool, "records").
		Bind("query_type", core.Literal(queryType)).
		Describe("fetch " + queryType + " data")
	if n := topN(query); n > 0 {
		fetch.Bind("limit", core.Literal(n))
	}

	analyze := core.NewStep(analysisTool, core.AnalysisOutputKey).
		Bind("records", core.Ref("records")).
		Bind("goal", core.Literal(query)).
		Bind("focus", core.Literal(focus)).
		Describe("interpret the " + queryType + " results").
		MarkOptional()

	return core.NewPlan("", query).Add(fetch, analyze)
}

// broadenOnEmpty returns an adaptation hook that retries with the
// broadest query template once when the initial fetch matched nothing,
// and points the analysis step at the retry's output.
func broadenOnEmpty(queryTool, broadType string) AdaptFunc {
	return func(plan *core.Plan, completed *core.Step) core.Adaptation {
		if completed.OutputKey != "records" || completed.Status != core.StepSucceeded {
			return core.Adaptation{}
		}
		if completed.Result == nil || len(completed.Result.Records) > 0 {
			return core.Adaptation{}
		}
		// Retry at most once per plan.
		if plan.Producer(fallbackOutputKey) != nil {
			return core.Adaptation{}
		}

		retry := core.NewStep(queryTool, fallbackOutputKey).
			Bind("query_type", core.Literal(broadType)).
			Describe("broadened retry after the initial query matched nothing")

		adaptation := core.Adaptation{AddSteps: []*core.Step{retry}}
		if primary := plan.Primary(); primary != nil && !primary.Status.Terminal() {
			adaptation.Rebind = map[string]map[string]core.Binding{
				primary.ID: {"records": core.Ref(fallbackOutputKey)},
			}
		}
		return adaptation
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func analysisOptions(opts Options) func(o *tool.AnalysisOptions) {
	return func(o *tool.AnalysisOptions) {
		o.Limiter = opts.Limiter
		o.Logger = opts.Logger
	}
}
