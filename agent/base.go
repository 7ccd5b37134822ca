package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/model"
)

// Options configures the model-backed agents.
type Options struct {
	// Instruction overrides the default prompt template.
	Instruction Instruction
	// Description overrides the default description shown to the router.
	Description string
	// Fallback configures the second generation attempt.
	Fallback FallbackOptions
	// Schema is the database description given to data agents.
	Schema string
	// PreviewRows bounds the rows of queried data placed into prompts.
	PreviewRows int
}

func defaultOptions() Options {
	return Options{
		Fallback:    FallbackOptions{Temperature: DefaultFallbackTemperature},
		PreviewRows: 50,
	}
}

// BaseAgent bundles identity, the authorized field set and the model wiring
// shared by all specialists. Embed it and implement Invoke.
type BaseAgent struct {
	name        string
	description string
	writes      []string
	llm         model.Model
	opts        Options
}

func newBaseAgent(name, description string, writes []string, llm model.Model, defaultInstruction string, optFns []func(o *Options)) BaseAgent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(defaultInstruction)
	}
	if opts.Description != "" {
		description = opts.Description
	}
	return BaseAgent{
		name:        name,
		description: description,
		writes:      writes,
		llm:         llm,
		opts:        opts,
	}
}

// Name returns the agent identifier used in routing plans.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the purpose of the agent.
func (b *BaseAgent) Description() string { return b.description }

// Writes returns the state fields the agent may set.
func (b *BaseAgent) Writes() []string { return slices.Clone(b.writes) }

// promptData assembles the template data shared by all agents.
func (b *BaseAgent) promptData(ic *core.InvocationContext) map[string]any {
	s := ic.State
	data := s.Fields()
	data["agent"] = b.name
	data["schema"] = b.opts.Schema
	data["visited"] = s.VisitedAgents()
	data["artifacts"] = s.Artifacts()
	if s.QueriedData != nil {
		data["data_preview"] = s.QueriedData.Head(b.opts.PreviewRows).String()
		data["data_rows"] = s.QueriedData.Len()
	}
	var failures []string
	for _, tr := range s.ReasoningTraces {
		if tr.FailureReason != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", tr.Agent, tr.FailureReason))
		}
	}
	data["failures"] = failures
	return data
}

// request renders the instruction and wraps the user request.
func (b *BaseAgent) request(ic *core.InvocationContext, data map[string]any, extra ...core.Part) (model.Request, error) {
	instructions, err := b.opts.Instruction.Resolve(ic, data)
	if err != nil {
		return model.Request{}, fmt.Errorf("agent %s: render instruction: %w", b.name, err)
	}
	parts := []core.Part{core.TextPart{Text: ic.State.Request}}
	parts = append(parts, extra...)
	return model.Request{
		Instructions: instructions,
		Contents:     []core.Content{{Role: "user", Parts: parts}},
		JSON:         true,
	}, nil
}

// generate runs a structured generation under the fallback discipline.
func generate[T any](b *BaseAgent, ic *core.InvocationContext, req model.Request, parse func(string) (T, error)) (T, error) {
	return WithFallback(ic, b.name, b.llm, req, b.opts.Fallback, parse)
}

func summarize(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
