package core

// Record is one row returned by a query tool. Order within a result is
// meaningful: providers return records in a stable, documented order and
// budget truncation keeps the head of that order.
type Record map[string]any

// Analysis is the structured payload produced by an analysis tool.
type Analysis struct {
	Answer          string   `json:"answer"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// ToolResult is the typed payload of a completed step: exactly one of
// Records (query tool) or Analysis (analysis tool) is set.
type ToolResult struct {
	Records  []Record
	Analysis *Analysis
}

// RecordsResult wraps query-tool output.
func RecordsResult(records []Record) *ToolResult { return &ToolResult{Records: records} }

// AnalysisResult wraps analysis-tool output.
func AnalysisResult(a *Analysis) *ToolResult { return &ToolResult{Analysis: a} }
