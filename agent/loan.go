package agent

import (
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/model"
	"github.com/finsight-ai/finsight/tool"
)

// LoanAgentName is the registry name of the lending analytics agent.
const LoanAgentName = "loan_agent"

var loanTriggers = []string{
	"loan", "loans", "lending", "credit", "default", "defaults",
	"mortgage", "mortgages", "interest rate", "borrower", "portfolio",
	"delinquency",
}

// Specific rules come before the generic "rate" keyword so a query like
// "interest rate performance" classifies as performance, not rates.
var loanTypeRules = []typeRule{
	{"default", "default_rate"},
	{"delinquen", "default_rate"},
	{"performance", "performance"},
	{"risk", "performance"},
	{"rate", "rates"},
}

// NewLoanAgent builds the lending specialist: portfolio composition,
// default rates, performance and pricing queries.
func NewLoanAgent(provider data.Provider, completer model.Completer, optFns ...func(o *Options)) (*Agent, error) {
	opts := applyOptions(optFns)

	queryTool := tool.NewLoanQueryTool(provider)
	analysisTool := tool.NewAnalyzeLoanPortfolioTool(completer, analysisOptions(opts))

	return New(LoanAgentName, Descriptor{
		Description: "Loan analytics: portfolio composition, default rates, performance and pricing",
		Triggers:    loanTriggers,
		Tools:       []tool.Tool{queryTool, analysisTool},
		Build: func(query string) (*core.Plan, error) {
			qt := classify(query, loanTypeRules, "portfolio")
			return buildTwoStepPlan(query, queryTool.Name(), analysisTool.Name(), qt, "loan portfolio"), nil
		},
		Adapt: broadenOnEmpty(queryTool.Name(), "portfolio"),
	})
}
