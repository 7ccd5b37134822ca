package core

import (
	"maps"
	"slices"
	"time"
)

// Interaction records one agent step in interactions_history.
type Interaction struct {
	ID            string           `json:"id"`
	Agent         string           `json:"agent"`
	Timestamp     time.Time        `json:"timestamp"`
	InputSummary  string           `json:"input_summary"`
	OutputSummary string           `json:"output_summary"`
	Produced      []string         `json:"produced,omitempty"` // artifact fields changed by the step
	ToolCalls     []ToolCallRecord `json:"tool_calls,omitempty"`
}

// Clone returns a deep copy of the interaction.
func (i Interaction) Clone() Interaction {
	c := i
	c.Produced = slices.Clone(i.Produced)
	if i.ToolCalls != nil {
		c.ToolCalls = make([]ToolCallRecord, len(i.ToolCalls))
		for n, tc := range i.ToolCalls {
			tc.Args = maps.Clone(tc.Args)
			c.ToolCalls[n] = tc
		}
	}
	return c
}

// ToolCallRecord captures a single tool invocation made during a step.
type ToolCallRecord struct {
	ID       string         `json:"id"`
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args,omitempty"`
	Duration time.Duration  `json:"duration"`
	Rows     int            `json:"rows"`
	Error    string         `json:"error,omitempty"`
}

// ReasoningTrace is the rationale an agent attached to its step.
type ReasoningTrace struct {
	Agent         string `json:"agent"`
	Reasoning     string `json:"reasoning"`
	FailureReason string `json:"failure_reason,omitempty"`
}
