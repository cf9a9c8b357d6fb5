package engine

import (
	"fmt"
	"strings"

	"github.com/finsight-ai/finsight/core"
)

// Format turns a finished run into the external response, walking the
// fallback chain: structured analysis first, raw query data when the
// analysis was lost, failure when nothing usable survived.
func Format(run *Run) core.Response {
	plan := run.Plan
	resp := core.Response{Agent: plan.Agent, Warnings: []string{}}
	resp.Warnings = append(resp.Warnings, run.Warnings...)

	if run.Err != nil {
		resp.Status = core.StatusFailure
		resp.Warnings = append(resp.Warnings, run.Err.Error())
		return resp
	}

	degraded := false
	for _, s := range plan.Steps {
		switch s.Status {
		case core.StepFailed:
			degraded = true
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("step %q failed: %v", s.ID, s.Err))
		case core.StepSkipped:
			degraded = true
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("step %q skipped: %v", s.ID, s.Err))
		}
	}

	primary := plan.Primary()
	if primary != nil && primary.Status == core.StepSucceeded &&
		primary.Result != nil && primary.Result.Analysis != nil {
		resp.Body = primary.Result.Analysis
		if degraded {
			resp.Status = core.StatusPartial
		} else {
			resp.Status = core.StatusSuccess
		}
		return resp
	}

	if raw := rawFallback(run, plan); len(raw) > 0 {
		resp.Status = core.StatusPartial
		resp.RawData = raw
		resp.Warnings = append(resp.Warnings, "analysis unavailable, returning raw query data")
		return resp
	}

	resp.Status = core.StatusFailure
	if len(resp.Warnings) == 0 {
		resp.Warnings = append(resp.Warnings, "no step produced a usable result")
	}
	return resp
}

// rawFallback picks the record set to return when the analysis was lost:
// the records the primary step would have consumed, otherwise the last
// successful query output.
func rawFallback(run *Run, plan *core.Plan) []core.Record {
	if primary := plan.Primary(); primary != nil {
		if b, ok := primary.Inputs["records"]; ok && b.IsRef() {
			if out := run.Output(b.Ref); out != nil && len(out.Records) > 0 {
				return out.Records
			}
		}
	}
	var raw []core.Record
	for _, s := range plan.Steps {
		if s.Status == core.StepSucceeded && s.Result != nil && len(s.Result.Records) > 0 {
			raw = s.Result.Records
		}
	}
	return raw
}

// Merge combines the per-agent responses of a cross-domain query into a
// single response. Answers, insights, recommendations and warnings are
// prefixed with the contributing agent's name; the overall status is the
// worst of the parts.
func Merge(responses []core.Response) core.Response {
	if len(responses) == 0 {
		return core.Response{
			Status:   core.StatusFailure,
			Warnings: []string{"no agent produced a response"},
		}
	}
	if len(responses) == 1 {
		return responses[0]
	}

	merged := core.Response{Warnings: []string{}}
	body := &core.Analysis{}
	var (
		names    []string
		statuses []core.Status
		answers  []string
		rawCount int
		raw      []core.Record
	)
	for _, r := range responses {
		names = append(names, r.Agent)
		statuses = append(statuses, r.Status)
		for _, w := range r.Warnings {
			merged.Warnings = append(merged.Warnings, r.Agent+": "+w)
		}
		if r.Body != nil {
			if r.Body.Answer != "" {
				answers = append(answers, r.Agent+": "+r.Body.Answer)
			}
			for _, in := range r.Body.Insights {
				body.Insights = append(body.Insights, r.Agent+": "+in)
			}
			for _, rec := range r.Body.Recommendations {
				body.Recommendations = append(body.Recommendations, r.Agent+": "+rec)
			}
		}
		if len(r.RawData) > 0 {
			rawCount++
			raw = r.RawData
		}
	}

	merged.Agent = strings.Join(names, ",")
	merged.Status = core.WorstStatus(statuses...)
	body.Answer = strings.Join(answers, "\n\n")
	if body.Answer != "" || len(body.Insights) > 0 || len(body.Recommendations) > 0 {
		merged.Body = body
	}
	switch rawCount {
	case 0:
	case 1:
		merged.RawData = raw
	default:
		merged.Warnings = append(merged.Warnings,
			"raw data from multiple agents omitted from the merged response")
	}
	return merged
}
