package agent

import (
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/model"
	"github.com/finsight-ai/finsight/tool"
)

// CustomerAgentName is the registry name of the customer analytics agent.
const CustomerAgentName = "customer_agent"

var customerTriggers = []string{
	"customer", "customers", "segment", "segments", "segmentation",
	"churn", "retention", "demographics", "lifetime value", "clv",
	"product adoption", "cross-sell",
}

var customerTypeRules = []typeRule{
	{"churn", "churn_risk"},
	{"retention", "churn_risk"},
	{"segment", "segmentation"},
	{"lifetime", "lifetime_value"},
	{"clv", "lifetime_value"},
	{"product", "product_adoption"},
	{"cross-sell", "product_adoption"},
}

// NewCustomerAgent builds the customer analytics specialist: base
// demographics, segmentation, lifetime value, churn risk and product
// adoption queries, each feeding a completion-backed interpretation.
func NewCustomerAgent(provider data.Provider, completer model.Completer, optFns ...func(o *Options)) (*Agent, error) {
	opts := applyOptions(optFns)

	queryTool := tool.NewCustomerQueryTool(provider)
	analysisTool := tool.NewAnalyzeCustomerSegmentsTool(completer, analysisOptions(opts))

	return New(CustomerAgentName, Descriptor{
		Description: "Customer analytics: segmentation, churn risk, lifetime value and product adoption",
		Triggers:    customerTriggers,
		Tools:       []tool.Tool{queryTool, analysisTool},
		Build: func(query string) (*core.Plan, error) {
			qt := classify(query, customerTypeRules, "demographics")
			return buildTwoStepPlan(query, queryTool.Name(), analysisTool.Name(), qt, "customer base"), nil
		},
		Adapt: broadenOnEmpty(queryTool.Name(), "demographics"),
	})
}
