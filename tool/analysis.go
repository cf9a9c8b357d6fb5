package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/logging"
	"github.com/finsight-ai/finsight/model"
)

// CompletionAnalysisTool interprets query records by prompting the
// external completion service and parsing its reply into a structured
// analysis. Every instance shares the process-wide CompletionLimiter so
// concurrent plans respect provider throughput limits.
type CompletionAnalysisTool struct {
	name         string
	description  string
	completer    model.Completer
	limiter      *core.CompletionLimiter
	logger       logging.Logger
	systemPrompt string
	instruction  string
}

// AnalysisOptions configure a completion analysis tool.
type AnalysisOptions struct {
	Limiter *core.CompletionLimiter
	Logger  logging.Logger
}

func newAnalysisTool(name, description, systemPrompt, instruction string, completer model.Completer, optFns ...func(o *AnalysisOptions)) *CompletionAnalysisTool {
	opts := AnalysisOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CompletionAnalysisTool{
		name:         name,
		description:  description,
		completer:    completer,
		limiter:      opts.Limiter,
		logger:       opts.Logger,
		systemPrompt: systemPrompt,
		instruction:  instruction,
	}
}

// Name implements Tool.
func (t *CompletionAnalysisTool) Name() string { return t.name }

// Description implements Tool.
func (t *CompletionAnalysisTool) Description() string { return t.description }

// Kind implements Tool.
func (t *CompletionAnalysisTool) Kind() Kind { return KindAnalysis }

// Execute implements AnalysisTool. The records have already been
// budget-checked (and possibly truncated) by the executor; this method
// serializes them into the prompt, waits on the shared limiter and maps
// completion failures onto the core taxonomy.
func (t *CompletionAnalysisTool) Execute(ctx context.Context, records []core.Record, queryContext map[string]any) (*core.Analysis, error) {
	queryContext, missing := stripUnavailable(queryContext)

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "RATE_LIMITED", Cause: err}
		}
	}

	prompt := t.buildPrompt(records, queryContext, missing)
	start := time.Now()

	resp, err := t.completer.Complete(ctx, model.Request{
		System:      t.systemPrompt,
		Prompt:      prompt,
		Temperature: 0.2,
	})
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = core.WrapError(core.KindCompletionService, err, "analysis completion")
		}
		t.logger.Warn("analysis completion failed", "tool", t.name, "error", err)
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "COMPLETION_ERROR", Cause: err}
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	t.logger.Debug("analysis completion finished",
		"tool", t.name, "token_count", tokens, "duration", time.Since(start))

	return parseAnalysis(resp.Text), nil
}

// buildPrompt assembles a deterministic prompt: instruction, query
// context, then the serialized records.
func (t *CompletionAnalysisTool) buildPrompt(records []core.Record, queryContext map[string]any, missing []string) string {
	var b strings.Builder
	b.WriteString(t.instruction)
	b.WriteString("\n\nRespond with ONLY a JSON object of this shape:\n")
	b.WriteString(`{"answer": "...", "insights": ["..."], "recommendations": ["..."]}`)

	if goal, ok := queryContext["goal"].(string); ok && goal != "" {
		b.WriteString("\n\nQuestion: ")
		b.WriteString(goal)
	}
	if focus, ok := queryContext["focus"].(string); ok && focus != "" {
		b.WriteString("\nFocus: ")
		b.WriteString(focus)
	}
	for _, key := range missing {
		fmt.Fprintf(&b, "\nNote: input %q is unavailable for this analysis.", key)
	}

	b.WriteString("\n\nData:\n")
	if len(records) == 0 {
		b.WriteString("(no records)")
	} else if raw, err := json.Marshal(records); err == nil {
		b.Write(raw)
	} else {
		fmt.Fprintf(&b, "%v", records)
	}
	return b.String()
}

// parseAnalysis extracts the structured payload from a completion. Plain
// text replies become the answer with no insights rather than an error;
// degraded output is still an answer.
func parseAnalysis(text string) *core.Analysis {
	begin := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if begin >= 0 && end > begin {
		var out core.Analysis
		if err := json.Unmarshal([]byte(text[begin:end+1]), &out); err == nil && out.Answer != "" {
			return &out
		}
	}
	return &core.Analysis{Answer: strings.TrimSpace(text)}
}

// NewAnalyzeCustomerSegmentsTool interprets customer segmentation data:
// growth opportunities, retention strategies and product fit.
func NewAnalyzeCustomerSegmentsTool(completer model.Completer, optFns ...func(o *AnalysisOptions)) *CompletionAnalysisTool {
	return newAnalysisTool(
		"analyze_customer_segments",
		"Analyze customer segment data and provide strategic insights",
		"You are a customer analytics specialist for a retail bank. Base every insight on the supplied data.",
		"Analyze the customer segment data below. Identify the dominant segments, notable value or churn differences between them, and concrete opportunities.",
		completer, optFns...,
	)
}

// NewAnalyzeLoanPortfolioTool interprets loan portfolio breakdowns and
// default-rate data.
func NewAnalyzeLoanPortfolioTool(completer model.Completer, optFns ...func(o *AnalysisOptions)) *CompletionAnalysisTool {
	return newAnalysisTool(
		"analyze_loan_portfolio",
		"Analyze loan portfolio composition, performance and default risk",
		"You are a lending risk analyst. Base every insight on the supplied data and flag concentration risk explicitly.",
		"Analyze the loan portfolio data below. Comment on composition by type, default rates and any risk concentrations.",
		completer, optFns...,
	)
}

// NewAnalyzeDepositTrendsTool interprets deposit balance distributions.
func NewAnalyzeDepositTrendsTool(completer model.Completer, optFns ...func(o *AnalysisOptions)) *CompletionAnalysisTool {
	return newAnalysisTool(
		"analyze_deposit_trends",
		"Analyze deposit trends and balance distribution across account types",
		"You are a deposit product analyst for a retail bank. Base every insight on the supplied data.",
		"Analyze the deposit data below. Comment on balance distribution across account types and where growth or outflow pressure shows.",
		completer, optFns...,
	)
}

// NewAnalyzeTransactionPatternsTool interprets transaction pattern and
// channel data.
func NewAnalyzeTransactionPatternsTool(completer model.Completer, optFns ...func(o *AnalysisOptions)) *CompletionAnalysisTool {
	return newAnalysisTool(
		"analyze_transaction_patterns",
		"Analyze transaction patterns, channel usage and anomalies",
		"You are a payments analyst for a retail bank. Base every insight on the supplied data.",
		"Analyze the transaction data below. Comment on spending patterns by category, channel usage and anything anomalous.",
		completer, optFns...,
	)
}
