package agent

import (
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/model"
	"github.com/finsight-ai/finsight/tool"
)

// DepositAgentName is the registry name of the deposit analytics agent.
const DepositAgentName = "deposit_agent"

var depositTriggers = []string{
	"deposit", "deposits", "savings", "checking", "balance", "balances",
	"account type", "money market", "cd", "certificate",
}

var depositTypeRules = []typeRule{
	{"balance", "balances"},
	{"distribution", "balances"},
}

// NewDepositAgent builds the deposit specialist: balance trends by
// account type and balance distribution queries.
func NewDepositAgent(provider data.Provider, completer model.Completer, optFns ...func(o *Options)) (*Agent, error) {
	opts := applyOptions(optFns)

	queryTool := tool.NewDepositQueryTool(provider)
	analysisTool := tool.NewAnalyzeDepositTrendsTool(completer, analysisOptions(opts))

	return New(DepositAgentName, Descriptor{
		Description: "Deposit analytics: trends and balance distribution across account types",
		Triggers:    depositTriggers,
		Tools:       []tool.Tool{queryTool, analysisTool},
		Build: func(query string) (*core.Plan, error) {
			qt := classify(query, depositTypeRules, "trends")
			return buildTwoStepPlan(query, queryTool.Name(), analysisTool.Name(), qt, "deposit base"), nil
		},
		Adapt: broadenOnEmpty(queryTool.Name(), "trends"),
	})
}
