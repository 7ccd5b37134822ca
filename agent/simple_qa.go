package agent

import (
	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/model"
)

// SimpleQA answers general questions without touching data.
type SimpleQA struct {
	BaseAgent
}

// NewSimpleQA creates the general question agent.
func NewSimpleQA(llm model.Model, optFns ...func(o *Options)) *SimpleQA {
	return &SimpleQA{
		BaseAgent: newBaseAgent(
			core.AgentSimpleQA,
			"answers general questions that need no data",
			[]string{core.FieldAnswer},
			llm,
			simpleQAInstruction,
			optFns,
		),
	}
}

// Invoke implements core.Agent.
func (q *SimpleQA) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	return answer(&q.BaseAgent, ic, map[string]any{"request": ic.State.Request})
}
