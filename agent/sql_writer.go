package agent

import (
	"errors"
	"strings"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/util"
	"github.com/hupe1980/analystmesh/model"
)

// SQLWriter drafts the SQL statement answering the request.
type SQLWriter struct {
	BaseAgent
}

// NewSQLWriter creates the SQL writing agent. Pass the database description
// through Options.Schema.
func NewSQLWriter(llm model.Model, optFns ...func(o *Options)) *SQLWriter {
	return &SQLWriter{
		BaseAgent: newBaseAgent(
			core.AgentSQLWriter,
			"writes a SQL query and explains it",
			[]string{core.FieldSQL, core.FieldSQLExplanation},
			llm,
			sqlWriterInstruction,
			optFns,
		),
	}
}

type sqlReply struct {
	SQL            string `json:"sql"`
	SQLExplanation string `json:"sql_explanation"`
	Reasoning      string `json:"reasoning"`
	FailureReason  string `json:"failure_reason"`
}

func parseSQLReply(text string) (sqlReply, error) {
	var r sqlReply
	if err := util.DecodeJSON(text, &r); err != nil {
		return r, err
	}
	r.SQL = strings.TrimSpace(r.SQL)
	if r.SQL == "" && r.FailureReason == "" {
		return r, errors.New("missing sql")
	}
	return r, nil
}

// Invoke implements core.Agent.
func (w *SQLWriter) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	req, err := w.request(ic, w.promptData(ic))
	if err != nil {
		return nil, err
	}
	reply, err := generate(&w.BaseAgent, ic, req, parseSQLReply)
	if err != nil {
		return nil, err
	}

	delta := core.StateDelta{}
	if reply.SQL != "" {
		delta[core.FieldSQL] = reply.SQL
	}
	if reply.SQLExplanation != "" {
		delta[core.FieldSQLExplanation] = reply.SQLExplanation
	}
	summary := "sql: " + summarize(reply.SQL, 120)
	if reply.SQL == "" {
		summary = "no sql: " + summarize(reply.FailureReason, 120)
	}
	return &core.AgentOutput{
		Delta:         delta,
		Reasoning:     reply.Reasoning,
		FailureReason: reply.FailureReason,
		Summary:       summary,
	}, nil
}
