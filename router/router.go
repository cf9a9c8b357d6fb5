// Package router maps a natural language query onto one or more
// registered agents by scoring each agent's trigger vocabulary against
// the query text. Scoring is deterministic: same query, same registry,
// same decision.
package router

import (
	"strings"

	"github.com/finsight-ai/finsight/agent"
	"github.com/finsight-ai/finsight/core"
	"github.com/finsight-ai/finsight/logging"
)

// Config controls cross-domain fan-out.
type Config struct {
	// CrossDomainThreshold is the minimum score a runner-up agent needs
	// to be included alongside the winner.
	CrossDomainThreshold int
	// CrossDomainMargin is the maximum score gap to the winner a
	// runner-up may have and still be included.
	CrossDomainMargin int
}

// DefaultConfig returns the default fan-out thresholds.
func DefaultConfig() Config {
	return Config{CrossDomainThreshold: 2, CrossDomainMargin: 1}
}

// Decision is the routing outcome for one query.
type Decision struct {
	// Agents lists the selected agent names in registration order, the
	// winner first.
	Agents []string
	// Scores holds the trigger score of every registered agent,
	// including zero scores.
	Scores map[string]int
	// Matches holds the triggers that matched, per selected agent.
	Matches map[string][]string
}

// CrossDomain reports whether the query fans out to multiple agents.
func (d Decision) CrossDomain() bool { return len(d.Agents) > 1 }

// Router scores queries against a registry of agents.
type Router struct {
	registry *agent.Registry
	config   Config
	logger   logging.Logger
}

// Options configure optional router collaborators.
type Options struct {
	Logger logging.Logger
}

// New creates a router over the given registry.
func New(registry *agent.Registry, config Config, optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{registry: registry, config: config, logger: opts.Logger}
}

// Route scores the query against every agent's triggers and selects the
// winner, fanning out to runners-up that clear the cross-domain
// threshold and margin. A query matching no trigger at all fails with
// ErrNoMatchingAgent.
func (r *Router) Route(query string) (Decision, error) {
	q := strings.ToLower(query)

	decision := Decision{
		Scores:  map[string]int{},
		Matches: map[string][]string{},
	}

	agents := r.registry.All()
	matches := make([][]string, len(agents))
	best := 0
	for i, a := range agents {
		var hit []string
		for _, trigger := range a.Triggers() {
			if strings.Contains(q, trigger) {
				hit = append(hit, trigger)
			}
		}
		matches[i] = hit
		decision.Scores[a.Name()] = len(hit)
		if len(hit) > best {
			best = len(hit)
		}
	}

	if best == 0 {
		return Decision{}, core.NewError(core.KindNoMatchingAgent,
			"no agent matches query %q", query)
	}

	// The winner is the first-registered agent with the best score.
	// Runners-up join when they clear both the threshold and the margin
	// to the winner.
	winner := -1
	for i := range agents {
		if len(matches[i]) == best {
			winner = i
			break
		}
	}
	decision.Agents = append(decision.Agents, agents[winner].Name())
	decision.Matches[agents[winner].Name()] = matches[winner]
	for i, a := range agents {
		score := len(matches[i])
		if i == winner || score == 0 {
			continue
		}
		if score >= r.config.CrossDomainThreshold && best-score <= r.config.CrossDomainMargin {
			decision.Agents = append(decision.Agents, a.Name())
			decision.Matches[a.Name()] = matches[i]
		}
	}

	r.logger.Debug("query routed",
		"agents", decision.Agents, "scores", decision.Scores, "cross_domain", decision.CrossDomain())
	return decision, nil
}
