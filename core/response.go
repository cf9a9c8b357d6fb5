package core

// Status is the overall outcome of a query.
type Status string

const (
	// StatusSuccess means the primary analysis step succeeded and no
	// optional step was lost.
	StatusSuccess Status = "success"
	// StatusPartial means the answer degraded: raw data instead of
	// analysis, or an optional step failed along the way.
	StatusPartial Status = "partial"
	// StatusFailure means no step produced a usable result.
	StatusFailure Status = "failure"
)

// worse orders statuses from best to worst for multi-agent merging.
func (s Status) worse(other Status) Status {
	rank := map[Status]int{StatusSuccess: 0, StatusPartial: 1, StatusFailure: 2}
	if rank[other] > rank[s] {
		return other
	}
	return s
}

// WorstStatus returns the least favorable of the given statuses.
func WorstStatus(statuses ...Status) Status {
	out := StatusSuccess
	for _, s := range statuses {
		out = out.worse(s)
	}
	return out
}

// Response is the externally visible result of one query. Exactly one of
// Body and RawData is populated unless the plan failed outright, in
// which case both are empty and Warnings summarize what went wrong.
type Response struct {
	Status   Status    `json:"status"`
	Agent    string    `json:"agent,omitempty"`
	Body     *Analysis `json:"response,omitempty"`
	RawData  []Record  `json:"raw_data,omitempty"`
	Warnings []string  `json:"warnings"`
}
