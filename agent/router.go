package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/flow"
	"github.com/hupe1980/analystmesh/internal/util"
	"github.com/hupe1980/analystmesh/model"
)

// CatalogEntry describes a specialist the router may plan.
type CatalogEntry struct {
	Name        string
	Description string
}

// DefaultCatalog lists the built-in specialists.
var DefaultCatalog = []CatalogEntry{
	{core.AgentSQLWriter, "writes a SQL query and explains it"},
	{core.AgentInsightGenerator, "runs the query or reads the user's file and extracts insights from the data"},
	{core.AgentAnswerSummarizer, "writes the final answer from the gathered artifacts"},
	{core.AgentGeneralQuestion, "answers general questions that need no data"},
}

// Router classifies the request and plans the specialists to consult.
type Router struct {
	BaseAgent
	catalog []CatalogEntry
}

// NewRouter creates the router agent.
func NewRouter(llm model.Model, optFns ...func(o *Options)) *Router {
	return &Router{
		BaseAgent: newBaseAgent(
			core.AgentRouter,
			"plans which specialists handle the request",
			[]string{core.FieldRoutingPlan, core.FieldRoutingDecision, core.FieldUserDataFile},
			llm,
			routerInstruction,
			optFns,
		),
		catalog: DefaultCatalog,
	}
}

type routerReply struct {
	RoutingDecision string    `json:"routing_decision"`
	RoutingPlan     flow.Plan `json:"routing_plan"`
	UserDataFile    string    `json:"user_data_file"`
	Reasoning       string    `json:"reasoning"`
	FailureReason   string    `json:"failure_reason"`
}

var routable = map[string]bool{
	core.AgentSQLWriter:        true,
	core.AgentInsightGenerator: true,
	core.AgentAnswerSummarizer: true,
	core.AgentSimpleQA:         true,
}

func parseRouterReply(text string) (routerReply, error) {
	var r routerReply
	if err := util.DecodeJSON(text, &r); err != nil {
		return r, err
	}
	r.RoutingDecision = core.CanonicalAgent(r.RoutingDecision)
	if !routable[r.RoutingDecision] {
		return r, fmt.Errorf("invalid routing_decision %q", r.RoutingDecision)
	}
	return r, nil
}

// Invoke implements core.Agent. The plan is normalized so that a general
// question always maps to [simple_qa] and an empty plan starts with the
// routing decision.
func (r *Router) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	data := r.promptData(ic)
	data["catalog"] = r.catalog
	if ic.DataFiles != nil {
		if files, err := ic.DataFiles.List(ic.Context); err == nil {
			data["files"] = files
		}
	}

	req, err := r.request(ic, data)
	if err != nil {
		return nil, err
	}
	reply, err := generate(&r.BaseAgent, ic, req, parseRouterReply)
	if err != nil {
		return nil, err
	}

	plan := []string(reply.RoutingPlan)
	switch {
	case reply.RoutingDecision == core.AgentSimpleQA:
		plan = []string{core.AgentSimpleQA}
	case len(plan) == 0:
		plan = []string{reply.RoutingDecision}
	}

	delta := core.StateDelta{
		core.FieldRoutingPlan:     plan,
		core.FieldRoutingDecision: reply.RoutingDecision,
	}
	if f := strings.TrimSpace(reply.UserDataFile); f != "" {
		delta[core.FieldUserDataFile] = f
	}

	return &core.AgentOutput{
		Delta:         delta,
		Reasoning:     reply.Reasoning,
		FailureReason: reply.FailureReason,
		Summary:       "plan: " + strings.Join(plan, " -> "),
	}, nil
}
