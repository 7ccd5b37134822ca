package agent

import (
	"errors"
	"strings"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/util"
	"github.com/hupe1980/analystmesh/model"
)

// AnswerSummarizer writes the final answer from the gathered artifacts.
type AnswerSummarizer struct {
	BaseAgent
}

// NewAnswerSummarizer creates the summarizing agent.
func NewAnswerSummarizer(llm model.Model, optFns ...func(o *Options)) *AnswerSummarizer {
	return &AnswerSummarizer{
		BaseAgent: newBaseAgent(
			core.AgentAnswerSummarizer,
			"writes the final answer from the gathered artifacts",
			[]string{core.FieldAnswer},
			llm,
			answerSummarizerInstruction,
			optFns,
		),
	}
}

type answerReply struct {
	Answer    string `json:"answer"`
	Reasoning string `json:"reasoning"`
}

func parseAnswerReply(text string) (answerReply, error) {
	var r answerReply
	if err := util.DecodeJSON(text, &r); err != nil {
		return r, err
	}
	r.Answer = strings.TrimSpace(r.Answer)
	if r.Answer == "" {
		return r, errors.New("missing answer")
	}
	return r, nil
}

// Invoke implements core.Agent.
func (a *AnswerSummarizer) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	return answer(&a.BaseAgent, ic, a.promptData(ic))
}

func answer(b *BaseAgent, ic *core.InvocationContext, data map[string]any) (*core.AgentOutput, error) {
	req, err := b.request(ic, data)
	if err != nil {
		return nil, err
	}
	reply, err := generate(b, ic, req, parseAnswerReply)
	if err != nil {
		return nil, err
	}
	return &core.AgentOutput{
		Delta:     core.StateDelta{core.FieldAnswer: reply.Answer},
		Reasoning: reply.Reasoning,
		Summary:   "answer: " + summarize(reply.Answer, 120),
	}, nil
}
