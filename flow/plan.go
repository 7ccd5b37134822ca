package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/analystmesh/core"
)

// Plan is an ordered list of agent names. It decodes from a JSON array of
// strings or from a free-text plan such as "1. sql_writer -> 2. answer_summarizer".
type Plan []string

var planSeparator = regexp.MustCompile(`\s*(?:->|=>|→|,|;|\n|\bthen\b)\s*`)

var stepPrefix = regexp.MustCompile(`^(?:step\s*)?\d+[.):]?\s*`)

// UnmarshalJSON implements json.Unmarshaler.
func (p *Plan) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = nil
		return nil
	}
	var steps []string
	if err := json.Unmarshal(b, &steps); err == nil {
		*p = normalizeSteps(steps)
		return nil
	}
	var text string
	if err := json.Unmarshal(b, &text); err != nil {
		return fmt.Errorf("routing plan must be a list or a string: %w", err)
	}
	*p = ParsePlan(text)
	return nil
}

// ParsePlan splits a free-text plan into canonical agent names.
func ParsePlan(text string) Plan {
	return normalizeSteps(planSeparator.Split(text, -1))
}

func normalizeSteps(steps []string) Plan {
	out := make(Plan, 0, len(steps))
	for _, s := range steps {
		s = strings.ToLower(strings.TrimSpace(s))
		s = stepPrefix.ReplaceAllString(s, "")
		s = strings.Trim(s, "`'\". ")
		if s == "" {
			continue
		}
		out = append(out, core.CanonicalAgent(s))
	}
	return out
}

var (
	// ErrEmptyPlan is reported for a missing plan.
	ErrEmptyPlan = errors.New("routing plan is empty")
	// ErrMalformedPlan is reported for a plan naming the router or an unknown agent.
	ErrMalformedPlan = errors.New("routing plan is malformed")
)

// Validate checks that every step names a known, non-router agent.
func (p Plan) Validate(known func(name string) bool) error {
	if len(p) == 0 {
		return ErrEmptyPlan
	}
	for i, step := range p {
		if step == core.AgentRouter {
			return fmt.Errorf("%w: step %d plans the router", ErrMalformedPlan, i)
		}
		if known != nil && !known(step) {
			return fmt.Errorf("%w: step %d names unknown agent %q", ErrMalformedPlan, i, step)
		}
	}
	return nil
}
