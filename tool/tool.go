// Package tool implements the adapters between plan steps and the two
// external capabilities the engine consumes: data retrieval (query
// tools) and data interpretation (analysis tools, which may call the
// completion service). Adapters validate parameters, normalize errors
// onto the core taxonomy and stay free of orchestration concerns.
package tool

import (
	"context"
	"fmt"

	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/internal/util"
)

// Kind distinguishes the two tool contracts.
type Kind string

const (
	// KindQuery marks a pure data-retrieval tool.
	KindQuery Kind = "query"
	// KindAnalysis marks an interpretation tool that may call the
	// completion service.
	KindAnalysis Kind = "analysis"
)

// Tool is the common surface of both tool kinds. Implementations must be
// safe for concurrent use: the executor may run independent steps that
// share a tool instance in parallel.
type Tool interface {
	// Name returns the unique identifier referenced by plan steps
	// (snake_case).
	Name() string

	// Description returns a human-readable description of what the tool
	// does.
	Description() string

	// Kind reports whether this is a query or an analysis tool.
	Kind() Kind
}

// QueryTool retrieves an ordered sequence of records. Execution must be
// read-only and side-effect-free from the executor's perspective.
type QueryTool interface {
	Tool
	Execute(ctx context.Context, params map[string]any) ([]core.Record, error)
}

// AnalysisTool interprets records in the light of the user's query and
// produces a structured analysis. The records argument is the (possibly
// budget-truncated) output of an earlier query step; queryContext
// carries the remaining literal inputs of the step.
type AnalysisTool interface {
	Tool
	Execute(ctx context.Context, records []core.Record, queryContext map[string]any) (*core.Analysis, error)
}

// ValidationError is re-exported for callers inspecting parameter
// failures.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Cause   error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause, letting errors.Is reach the core
// error kinds.
func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// stripUnavailable removes Unavailable markers so templates fall back to
// their defaults, and reports which inputs were missing.
func stripUnavailable(params map[string]any) (map[string]any, []string) {
	out := map[string]any{}
	var missing []string
	for k, v := range params {
		if u, ok := v.(core.Unavailable); ok {
			missing = append(missing, u.Key)
			continue
		}
		out[k] = v
	}
	return out, missing
}
