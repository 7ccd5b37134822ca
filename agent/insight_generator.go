package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/util"
	"github.com/hupe1980/analystmesh/model"
	"github.com/hupe1980/analystmesh/tool"
)

// InsightGenerator pulls data through its tools and extracts insights. It is
// the only agent holding tools:
//   - a user data file in state is read with the file tool
//   - otherwise the statement in state (or one drafted on the spot) is run
//     with the database tool
//
// A failed tool call does not fail the step; the agent records a degraded
// insights note and the failure reason so the summarizer can narrate it.
type InsightGenerator struct {
	BaseAgent
	dbTool   tool.Tool
	fileTool tool.Tool
}

// NewInsightGenerator creates the data analysis agent.
func NewInsightGenerator(llm model.Model, dbTool, fileTool tool.Tool, optFns ...func(o *Options)) *InsightGenerator {
	return &InsightGenerator{
		BaseAgent: newBaseAgent(
			core.AgentInsightGenerator,
			"runs the query or reads the user's file and extracts insights from the data",
			[]string{core.FieldInsights, core.FieldQueriedData, core.FieldSQL},
			llm,
			insightInstruction,
			optFns,
		),
		dbTool:   dbTool,
		fileTool: fileTool,
	}
}

// Tools implements core.ToolUser.
func (g *InsightGenerator) Tools() []string {
	var names []string
	if g.dbTool != nil {
		names = append(names, g.dbTool.Name())
	}
	if g.fileTool != nil {
		names = append(names, g.fileTool.Name())
	}
	return names
}

type queryReply struct {
	SQL       string `json:"sql"`
	Reasoning string `json:"reasoning"`
}

func parseQueryReply(text string) (queryReply, error) {
	var r queryReply
	if err := util.DecodeJSON(text, &r); err != nil {
		return r, err
	}
	r.SQL = strings.TrimSpace(r.SQL)
	if r.SQL == "" {
		return r, errors.New("missing sql")
	}
	return r, nil
}

type insightReply struct {
	Insights      string `json:"insights"`
	Reasoning     string `json:"reasoning"`
	FailureReason string `json:"failure_reason"`
}

func parseInsightReply(text string) (insightReply, error) {
	var r insightReply
	if err := util.DecodeJSON(text, &r); err != nil {
		return r, err
	}
	r.Insights = strings.TrimSpace(r.Insights)
	if r.Insights == "" {
		return r, errors.New("missing insights")
	}
	return r, nil
}

// Invoke implements core.Agent.
func (g *InsightGenerator) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	delta := core.StateDelta{}
	state := ic.State

	var (
		tbl    core.Table
		err    error
		source string
	)
	switch {
	case state.UserDataFile != "" && g.fileTool != nil:
		source = state.UserDataFile
		tbl, err = tool.Run(ic, g.fileTool, map[string]any{"path": state.UserDataFile})
	case g.dbTool != nil:
		statement := state.SQL
		if statement == "" {
			statement, err = g.draftQuery(ic)
			if err != nil {
				return nil, err
			}
			delta[core.FieldSQL] = statement
		}
		source = "database"
		tbl, err = tool.Run(ic, g.dbTool, map[string]any{"statement": statement})
	default:
		err = &core.ToolExecutionError{Tool: "none", Code: core.ToolErrExecution, Message: "no data source available"}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var te *core.ToolExecutionError
		if !errors.As(err, &te) {
			return nil, err
		}
		ic.LogWarn("agent.insights.degraded", "tool", te.Tool, "code", te.Code)
		delta[core.FieldInsights] = fmt.Sprintf("No insights could be extracted: data retrieval failed (%s).", te.Message)
		return &core.AgentOutput{
			Delta:         delta,
			Reasoning:     "data access failed; reporting degraded insights",
			FailureReason: te.Error(),
			Summary:       "degraded: " + summarize(te.Message, 120),
		}, nil
	}

	delta[core.FieldQueriedData] = tbl

	data := g.promptData(ic)
	if sql, ok := delta[core.FieldSQL].(string); ok {
		data[core.FieldSQL] = sql
	}
	req, err := g.request(ic, data, core.DataPart{Table: tbl.Head(g.opts.PreviewRows)})
	if err != nil {
		return nil, err
	}
	reply, err := generate(&g.BaseAgent, ic, req, parseInsightReply)
	if err != nil {
		return nil, err
	}
	delta[core.FieldInsights] = reply.Insights

	return &core.AgentOutput{
		Delta:         delta,
		Reasoning:     reply.Reasoning,
		FailureReason: reply.FailureReason,
		Summary:       fmt.Sprintf("%d rows from %s; insights: %s", tbl.Len(), source, summarize(reply.Insights, 100)),
	}, nil
}

func (g *InsightGenerator) draftQuery(ic *core.InvocationContext) (string, error) {
	instructions, err := util.RenderTemplate(insightQueryInstruction, g.promptData(ic))
	if err != nil {
		return "", err
	}
	req := model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent("user", ic.State.Request)},
		JSON:         true,
	}
	reply, err := generate(&g.BaseAgent, ic, req, parseQueryReply)
	if err != nil {
		return "", err
	}
	return reply.SQL, nil
}
