package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/data"
	"github.com/finsight-ai/finsight/internal/testutil"
	"github.com/finsight-ai/finsight/model"
)

func TestTopN(t *testing.T) {
	assert.Equal(t, 5, topN("show me the top 5 customers"))
	assert.Equal(t, 10, topN("Top 10 segments by value"))
	assert.Equal(t, 0, topN("show me all customers"))
	assert.Equal(t, 0, topN("laptop 3 review"))
}

func TestClassify(t *testing.T) {
	rules := []typeRule{{"churn", "churn_risk"}, {"segment", "segmentation"}}
	assert.Equal(t, "churn_risk", classify("Which customers may CHURN?", rules, "demographics"))
	assert.Equal(t, "segmentation", classify("break down by segment", rules, "demographics"))
	assert.Equal(t, "demographics", classify("who are our customers", rules, "demographics"))
}

func TestDomainAgentBuilders(t *testing.T) {
	provider := &testutil.StaticProvider{}
	completer := model.NewMockCompleter()

	cases := []struct {
		name      string
		build     func(data.Provider, model.Completer, ...func(o *Options)) (*Agent, error)
		agentName string
		query     string
		queryType string
	}{
		{"customer churn", NewCustomerAgent, CustomerAgentName,
			"which customers are at churn risk", "churn_risk"},
		{"customer default", NewCustomerAgent, CustomerAgentName,
			"tell me about our customers", "demographics"},
		{"loan default rate", NewLoanAgent, LoanAgentName,
			"what is the loan default rate", "default_rate"},
		{"loan portfolio", NewLoanAgent, LoanAgentName,
			"describe the lending book", "portfolio"},
		{"loan rate performance", NewLoanAgent, LoanAgentName,
			"how is interest rate performance trending", "performance"},
		{"loan rates", NewLoanAgent, LoanAgentName,
			"current interest rate by loan type", "rates"},
		{"deposit balances", NewDepositAgent, DepositAgentName,
			"balance distribution by account type", "balances"},
		{"transaction channels", NewTransactionAgent, TransactionAgentName,
			"compare channel usage", "channels"},
		{"transaction anomalies", NewTransactionAgent, TransactionAgentName,
			"any unusual transactions lately", "anomalies"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := tc.build(provider, completer)
			require.NoError(t, err)
			assert.Equal(t, tc.agentName, a.Name())

			plan, err := a.BuildPlan(tc.query)
			require.NoError(t, err)
			require.NotNil(t, plan.Step("records"))
			assert.Equal(t, tc.queryType, plan.Step("records").Inputs["query_type"].Value)
			require.NotNil(t, plan.Primary())
			assert.Equal(t, "records", plan.Primary().Inputs["records"].Ref)
		})
	}
}

func TestTopNFlowsIntoLimit(t *testing.T) {
	a, err := NewCustomerAgent(&testutil.StaticProvider{}, model.NewMockCompleter())
	require.NoError(t, err)

	plan, err := a.BuildPlan("top 3 customers by lifetime value")
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Step("records").Inputs["limit"].Value)
}

func TestBroadenOnEmpty(t *testing.T) {
	adapt := broadenOnEmpty("loan_query", "portfolio")

	emptyPlan := func() (*core.Plan, *core.Step) {
		plan := core.NewPlan("loan_agent", "g")
		fetch := core.NewStep("loan_query", "records").
			Bind("query_type", core.Literal("default_rate"))
		analyze := core.NewStep("analyze_loan_portfolio", core.AnalysisOutputKey).
			Bind("records", core.Ref("records")).
			MarkOptional()
		plan.Add(fetch, analyze)
		fetch.Status = core.StepSucceeded
		fetch.Result = core.RecordsResult(nil)
		return plan, fetch
	}

	t.Run("empty result triggers one broadened retry", func(t *testing.T) {
		plan, fetch := emptyPlan()
		a := adapt(plan, fetch)
		require.False(t, a.Empty())
		require.Len(t, a.AddSteps, 1)
		assert.Equal(t, fallbackOutputKey, a.AddSteps[0].OutputKey)
		assert.Equal(t, "portfolio", a.AddSteps[0].Inputs["query_type"].Value)
		assert.Equal(t, fallbackOutputKey,
			a.Rebind[core.AnalysisOutputKey]["records"].Ref)

		require.NoError(t, plan.Apply(a))

		// The retry already exists now, so a second empty result is left
		// alone.
		retry := plan.Producer(fallbackOutputKey)
		retry.Status = core.StepSucceeded
		retry.Result = core.RecordsResult(nil)
		assert.True(t, adapt(plan, fetch).Empty())
	})

	t.Run("non-empty result is left alone", func(t *testing.T) {
		plan, fetch := emptyPlan()
		fetch.Result = core.RecordsResult(testutil.Records(2))
		assert.True(t, adapt(plan, fetch).Empty())
	})

	t.Run("failed step is left alone", func(t *testing.T) {
		plan, fetch := emptyPlan()
		fetch.Status = core.StepFailed
		assert.True(t, adapt(plan, fetch).Empty())
	})
}
