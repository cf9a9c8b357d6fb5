package agent

import (
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/model"
	"github.com/finsight-ai/finsight/tool"
)

// TransactionAgentName is the registry name of the payments analytics
// agent.
const TransactionAgentName = "transaction_agent"

var transactionTriggers = []string{
	"transaction", "transactions", "spending", "payment", "payments",
	"transfer", "transfers", "channel", "channels", "merchant",
	"anomaly", "anomalies", "fraud", "unusual",
}

var transactionTypeRules = []typeRule{
	{"channel", "channels"},
	{"anomal", "anomalies"},
	{"fraud", "anomalies"},
	{"unusual", "anomalies"},
	{"large", "anomalies"},
}

// NewTransactionAgent builds the payments specialist: spending patterns
// by category, channel usage and large-transaction anomaly queries.
func NewTransactionAgent(provider data.Provider, completer model.Completer, optFns ...func(o *Options)) (*Agent, error) {
	opts := applyOptions(optFns)

	queryTool := tool.NewTransactionQueryTool(provider)
	analysisTool := tool.NewAnalyzeTransactionPatternsTool(completer, analysisOptions(opts))

	return New(TransactionAgentName, Descriptor{
		Description: "Transaction analytics: spending patterns, channel usage and anomalies",
		Triggers:    transactionTriggers,
		Tools:       []tool.Tool{queryTool, analysisTool},
		Build: func(query string) (*core.Plan, error) {
			qt := classify(query, transactionTypeRules, "patterns")
			return buildTwoStepPlan(query, queryTool.Name(), analysisTool.Name(), qt, "transaction activity"), nil
		},
		Adapt: broadenOnEmpty(queryTool.Name(), "patterns"),
	})
}
