package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/agent"
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/internal/testutil"
	"github.com/finsight-ai/finsight/tool"
)

type stubQueryTool struct {
	name    string
	records []core.Record
	err     error
	delay   time.Duration
}

func (t *stubQueryTool) Name() string        { return t.name }
func (t *stubQueryTool) Description() string { return "stub query" }
func (t *stubQueryTool) Kind() tool.Kind     { return tool.KindQuery }

func (t *stubQueryTool) Execute(ctx context.Context, _ map[string]any) ([]core.Record, error) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return t.records, t.err
}

type stubAnalysisTool struct {
	name     string
	analysis *core.Analysis
	err      error

	mu          sync.Mutex
	seenRecords []core.Record
	seenContext map[string]any
	calls       int
}

func (t *stubAnalysisTool) Name() string        { return t.name }
func (t *stubAnalysisTool) Description() string { return "stub analysis" }
func (t *stubAnalysisTool) Kind() tool.Kind     { return tool.KindAnalysis }

func (t *stubAnalysisTool) Execute(_ context.Context, records []core.Record, queryContext map[string]any) (*core.Analysis, error) {
	t.mu.Lock()
	t.seenRecords = records
	t.seenContext = queryContext
	t.calls++
	t.mu.Unlock()
	return t.analysis, t.err
}

// stubAgent assembles an agent over the given tools with a fixed plan
// builder and an optional adaptation hook.
func stubAgent(t *testing.T, tools []tool.Tool, adapt agent.AdaptFunc) *agent.Agent {
	t.Helper()
	a, err := agent.New("stub_agent", agent.Descriptor{
		Tools: tools,
		Build: func(q string) (*core.Plan, error) { return core.NewPlan("stub_agent", q), nil },
		Adapt: adapt,
	})
	require.NoError(t, err)
	return a
}

func fetchAnalyzePlan(budget core.Budget) *core.Plan {
	plan := core.NewPlan("stub_agent", "how are things")
	plan.Budget = budget
	plan.Add(
		core.NewStep("fetch", "records").Bind("query_type", core.Literal("all")),
		core.NewStep("analyze", core.AnalysisOutputKey).
			Bind("records", core.Ref("records")).
			Bind("goal", core.Literal("how are things")).
			MarkOptional(),
	)
	return plan
}

func TestExecuteSuccess(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(3)}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "all good"}}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	exec := New(DefaultConfig())
	run := exec.Execute(context.Background(), ag, fetchAnalyzePlan(core.Budget{}))

	require.NoError(t, run.Err)
	assert.Equal(t, core.StepSucceeded, run.Plan.Step("records").Status)
	assert.Equal(t, core.StepSucceeded, run.Plan.Primary().Status)
	assert.Len(t, analyze.seenRecords, 3)
	assert.Equal(t, "how are things", analyze.seenContext["goal"])

	resp := Format(run)
	assert.Equal(t, core.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, "all good", resp.Body.Answer)
	assert.Empty(t, resp.Warnings)
}

func TestExecuteOptionalStepRunsOnFailedDependency(t *testing.T) {
	query := &stubQueryTool{name: "fetch", err: core.NewError(core.KindDataSource, "store offline")}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "partial view"}}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	run := New(DefaultConfig()).Execute(context.Background(), ag, fetchAnalyzePlan(core.Budget{}))

	require.NoError(t, run.Err)
	assert.Equal(t, core.StepFailed, run.Plan.Step("records").Status)
	assert.Equal(t, core.StepSucceeded, run.Plan.Primary().Status)

	// The optional analysis ran with an explicit marker instead of data.
	assert.Equal(t, 1, analyze.calls)
	assert.Nil(t, analyze.seenRecords)
	assert.Equal(t, core.Unavailable{Key: "records"}, analyze.seenContext["records"])

	resp := Format(run)
	assert.Equal(t, core.StatusPartial, resp.Status)
	require.NotNil(t, resp.Body)
}

func TestExecuteNonOptionalDependentIsSkipped(t *testing.T) {
	query := &stubQueryTool{name: "fetch", err: core.NewError(core.KindDataSource, "store offline")}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "unused"}}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	plan := fetchAnalyzePlan(core.Budget{})
	plan.Primary().Optional = false
	run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

	require.NoError(t, run.Err)
	assert.Equal(t, core.StepSkipped, plan.Primary().Status)
	assert.Equal(t, 0, analyze.calls)
	assert.Equal(t, core.StatusFailure, Format(run).Status)
}

func TestExecuteAnalysisFailureFallsBackToRawData(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(4)}
	analyze := &stubAnalysisTool{name: "analyze", err: core.NewError(core.KindCompletionService, "500")}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	run := New(DefaultConfig()).Execute(context.Background(), ag, fetchAnalyzePlan(core.Budget{}))

	resp := Format(run)
	assert.Equal(t, core.StatusPartial, resp.Status)
	assert.Nil(t, resp.Body)
	assert.Len(t, resp.RawData, 4)
	assert.NotEmpty(t, resp.Warnings)
}

func TestExecuteBudgetTruncation(t *testing.T) {
	records := testutil.Records(4)
	counter := core.NewTokenCounter()
	costFull := counter.CountRecords(records)
	costHalf := counter.CountRecords(records[:2])

	t.Run("halving once brings the input under budget", func(t *testing.T) {
		query := &stubQueryTool{name: "fetch", records: records}
		analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "ok"}}
		ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

		plan := fetchAnalyzePlan(core.Budget{MaxAnalysisTokens: (costHalf + costFull) / 2})
		run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

		require.NoError(t, run.Err)
		assert.Len(t, analyze.seenRecords, 2)
		require.NotEmpty(t, run.Warnings)
		assert.Contains(t, run.Warnings[0], "truncated")

		resp := Format(run)
		assert.Equal(t, core.StatusSuccess, resp.Status)
		assert.Contains(t, resp.Warnings[0], "truncated")
	})

	t.Run("still over budget after halving fails the step", func(t *testing.T) {
		query := &stubQueryTool{name: "fetch", records: records}
		analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "unused"}}
		ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

		plan := fetchAnalyzePlan(core.Budget{MaxAnalysisTokens: costHalf / 2})
		run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

		require.NoError(t, run.Err)
		assert.Equal(t, core.StepFailed, plan.Primary().Status)
		assert.Equal(t, core.KindBudgetExceeded, core.KindOf(plan.Primary().Err))
		assert.Equal(t, 0, analyze.calls)

		// Raw data still flows out.
		resp := Format(run)
		assert.Equal(t, core.StatusPartial, resp.Status)
		assert.Len(t, resp.RawData, 4)
	})
}

func TestExecuteAdaptation(t *testing.T) {
	empty := &stubQueryTool{name: "fetch", records: nil}
	broad := &stubQueryTool{name: "fetch_broad", records: testutil.Records(2)}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "retried"}}

	adapt := func(plan *core.Plan, completed *core.Step) core.Adaptation {
		if completed.OutputKey != "records" || completed.Result == nil || len(completed.Result.Records) > 0 {
			return core.Adaptation{}
		}
		if plan.Producer("records_broad") != nil {
			return core.Adaptation{}
		}
		return core.Adaptation{
			AddSteps: []*core.Step{core.NewStep("fetch_broad", "records_broad")},
			Rebind: map[string]map[string]core.Binding{
				core.AnalysisOutputKey: {"records": core.Ref("records_broad")},
			},
		}
	}
	ag := stubAgent(t, []tool.Tool{empty, broad, analyze}, adapt)

	run := New(DefaultConfig()).Execute(context.Background(), ag, fetchAnalyzePlan(core.Budget{}))

	require.NoError(t, run.Err)
	assert.Equal(t, 1, run.Adaptations)
	assert.Len(t, run.Plan.Steps, 3)
	assert.Len(t, analyze.seenRecords, 2)
	assert.Equal(t, core.StatusSuccess, Format(run).Status)
}

func TestExecuteAdaptationLimit(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(1)}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "ok"}}

	n := 0
	adapt := func(plan *core.Plan, completed *core.Step) core.Adaptation {
		if completed.Tool != "fetch" {
			return core.Adaptation{}
		}
		n++
		return core.Adaptation{
			AddSteps: []*core.Step{core.NewStep("fetch", fmt.Sprintf("extra_%d", n))},
		}
	}
	ag := stubAgent(t, []tool.Tool{query, analyze}, adapt)

	run := New(Config{WorkerPool: 1, MaxAdaptations: 1}).
		Execute(context.Background(), ag, fetchAnalyzePlan(core.Budget{}))

	require.Error(t, run.Err)
	assert.Equal(t, core.KindAdaptationLimitExceeded, core.KindOf(run.Err))
	assert.Equal(t, 1, run.Adaptations)
	assert.Equal(t, core.StatusFailure, Format(run).Status)
}

func TestExecuteInvalidAdaptationFailsPlan(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(1)}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "ok"}}

	adapt := func(plan *core.Plan, completed *core.Step) core.Adaptation {
		if completed.OutputKey != "records" {
			return core.Adaptation{}
		}
		// Removing the producer strands the pending analysis step's
		// reference, so re-validation must reject the whole plan.
		return core.Adaptation{RemoveStepIDs: []string{completed.ID}}
	}
	ag := stubAgent(t, []tool.Tool{query, analyze}, adapt)

	plan := fetchAnalyzePlan(core.Budget{})
	run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

	require.Error(t, run.Err)
	assert.Equal(t, core.KindMissingDependency, core.KindOf(run.Err))
	assert.Equal(t, 0, run.Adaptations)
	// The producer stays in the plan untouched.
	require.NotNil(t, plan.Step("records"))
	assert.Equal(t, core.StepSucceeded, plan.Step("records").Status)
	assert.Equal(t, core.StatusFailure, Format(run).Status)
}

func TestExecuteStepTimeout(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(1), delay: 200 * time.Millisecond}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "late"}}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	plan := fetchAnalyzePlan(core.Budget{StepTimeout: 20 * time.Millisecond})
	run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

	require.NoError(t, run.Err)
	assert.Equal(t, core.StepFailed, plan.Step("records").Status)
	assert.Equal(t, core.KindTimeout, core.KindOf(plan.Step("records").Err))
	// The optional analysis still ran without the data.
	assert.Equal(t, core.StepSucceeded, plan.Primary().Status)
	assert.Equal(t, core.StatusPartial, Format(run).Status)
}

func TestExecutePlanDeadline(t *testing.T) {
	query := &stubQueryTool{name: "fetch", records: testutil.Records(1), delay: time.Second}
	analyze := &stubAnalysisTool{name: "analyze", analysis: &core.Analysis{Answer: "late"}}
	ag := stubAgent(t, []tool.Tool{query, analyze}, nil)

	plan := fetchAnalyzePlan(core.Budget{PlanTimeout: 30 * time.Millisecond})
	start := time.Now()
	run := New(DefaultConfig()).Execute(context.Background(), ag, plan)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, core.StepFailed, plan.Step("records").Status)
	assert.Equal(t, core.StepSkipped, plan.Primary().Status)
	// A deadline skip is a cancellation, not a step timeout.
	assert.Equal(t, core.KindCancelled, core.KindOf(plan.Primary().Err))
	assert.Equal(t, 0, analyze.calls)
	assert.Equal(t, core.StatusFailure, Format(run).Status)
}

func TestExecuteInvalidPlan(t *testing.T) {
	ag := stubAgent(t, nil, nil)
	run := New(DefaultConfig()).Execute(context.Background(), ag, core.NewPlan("stub_agent", "empty"))

	require.Error(t, run.Err)
	assert.Equal(t, core.KindInvalidPlan, core.KindOf(run.Err))
	assert.Equal(t, core.StatusFailure, Format(run).Status)
}

func TestExecuteParallelSteps(t *testing.T) {
	// Two independent fetches run concurrently: with a pool of 2 the
	// total time stays near one delay, not two.
	q1 := &stubQueryTool{name: "fetch_a", records: testutil.Records(1), delay: 80 * time.Millisecond}
	q2 := &stubQueryTool{name: "fetch_b", records: testutil.Records(1), delay: 80 * time.Millisecond}
	ag := stubAgent(t, []tool.Tool{q1, q2}, nil)

	plan := core.NewPlan("stub_agent", "parallel")
	plan.Add(
		core.NewStep("fetch_a", "a"),
		core.NewStep("fetch_b", "b"),
	)

	start := time.Now()
	run := New(Config{WorkerPool: 2, MaxAdaptations: 0}).Execute(context.Background(), ag, plan)
	elapsed := time.Since(start)

	require.NoError(t, run.Err)
	assert.Equal(t, core.StepSucceeded, plan.Step("a").Status)
	assert.Equal(t, core.StepSucceeded, plan.Step("b").Status)
	assert.Less(t, elapsed, 150*time.Millisecond)
}
