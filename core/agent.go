package core

import "strings"

// Agent names. Routing plans and routing decisions use these identifiers.
const (
	AgentRouter           = "router"
	AgentSQLWriter        = "sql_writer"
	AgentInsightGenerator = "insight_generator"
	AgentAnswerSummarizer = "answer_summarizer"
	AgentSimpleQA         = "simple_qa"

	// AgentGeneralQuestion is the router's label for requests that need no
	// data access. It resolves to AgentSimpleQA.
	AgentGeneralQuestion = "general_question"
)

// CanonicalAgent normalizes an agent label emitted by a model. Unknown labels
// are returned lower-cased and trimmed.
func CanonicalAgent(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == AgentGeneralQuestion {
		return AgentSimpleQA
	}
	return n
}

// IsTerminal reports whether the session ends after the named agent's step.
func IsTerminal(name string) bool {
	switch CanonicalAgent(name) {
	case AgentAnswerSummarizer, AgentSimpleQA:
		return true
	}
	return false
}

// Agent is a specialist that reads a state snapshot and returns a partial
// update. Implementations must not retain or mutate the snapshot they are
// handed and must honor cancellation of the invocation context.
type Agent interface {
	Name() string
	Description() string
	// Writes lists the state fields the agent may set.
	Writes() []string
	Invoke(invocationCtx *InvocationContext) (*AgentOutput, error)
}

// AgentOutput is the result of a single agent step.
type AgentOutput struct {
	Delta         StateDelta
	Reasoning     string
	FailureReason string
	// Summary is a short description of the step's output for the
	// interaction record.
	Summary string
}

// ToolUser is implemented by agents that hold tools. The coordinator only
// authorizes tool calls for the names returned by Tools.
type ToolUser interface {
	Tools() []string
}
