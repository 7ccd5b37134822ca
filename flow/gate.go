package flow

import (
	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/logging"
)

// Reason explains a routing choice. It is recorded on every snapshot.
type Reason string

const (
	ReasonInitial        Reason = "initial"
	ReasonPlan           Reason = "plan"
	ReasonReplan         Reason = "replan"
	ReasonInteractionCap Reason = "interaction_cap"
	ReasonCycle          Reason = "cycle"
	ReasonReplanBudget   Reason = "replan_budget"
)

// Forced reports whether the gate overrode the plan to end the session.
func (r Reason) Forced() bool {
	return r == ReasonInteractionCap || r == ReasonCycle || r == ReasonReplanBudget
}

// Cursor is the coordinator-held position in the current plan.
type Cursor struct {
	// Position is the index of the next plan step.
	Position int
	// Replans counts router re-invocations since the last followed plan step.
	Replans int
}

// Replanned returns the cursor to use after a router step: the new plan is
// followed from its first step while the re-plan count is kept.
func (c Cursor) Replanned() Cursor { return Cursor{Replans: c.Replans} }

// Decision is the gate's answer for one step.
type Decision struct {
	Agent  string
	Reason Reason
	Cursor Cursor
}

// Terminal reports whether the chosen agent ends the session.
func (d Decision) Terminal() bool { return core.IsTerminal(d.Agent) }

// GateOptions configures a Gate.
type GateOptions struct {
	// MaxInteractions caps interactions_history; reaching it forces the
	// summarizer. Non-positive values fall back to DefaultMaxInteractions.
	MaxInteractions int
	// CycleDetector guards against loops. Nil disables detection.
	CycleDetector CycleDetector
	// MaxConsecutiveReplans bounds router re-invocations without progress.
	MaxConsecutiveReplans int
	// Known reports whether an agent is registered. Nil accepts every name.
	Known  func(name string) bool
	Logger logging.Logger
}

// DefaultMaxInteractions is the interaction cap used when none is configured.
const DefaultMaxInteractions = 5

// Gate chooses the next agent from the state snapshot and the cursor.
type Gate struct {
	opts GateOptions
}

// NewGate creates a Gate with a cap of 5 interactions, the default cycle
// detector and a re-plan budget of 2.
func NewGate(optFns ...func(o *GateOptions)) *Gate {
	opts := GateOptions{
		MaxInteractions:       DefaultMaxInteractions,
		CycleDetector:         DefaultCycleDetector(),
		MaxConsecutiveReplans: 2,
		Logger:                logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = DefaultMaxInteractions
	}
	if opts.MaxConsecutiveReplans < 0 {
		opts.MaxConsecutiveReplans = 0
	}
	return &Gate{opts: opts}
}

// MaxInteractions returns the configured cap.
func (g *Gate) MaxInteractions() int { return g.opts.MaxInteractions }

// Next returns the agent to run after the step that produced state.
func (g *Gate) Next(state core.State, cur Cursor) Decision {
	if len(state.InteractionsHistory) >= g.opts.MaxInteractions {
		return g.force(ReasonInteractionCap, cur, "interactions", len(state.InteractionsHistory))
	}

	plan := Plan(state.RoutingPlan)
	err := plan.Validate(g.opts.Known)
	if err == nil && cur.Position < len(plan) {
		next := plan[cur.Position]
		if g.opts.CycleDetector != nil && g.opts.CycleDetector.Detect(state, next) {
			return g.force(ReasonCycle, cur, "candidate", next)
		}
		return Decision{
			Agent:  next,
			Reason: ReasonPlan,
			Cursor: Cursor{Position: cur.Position + 1},
		}
	}

	if cur.Replans >= g.opts.MaxConsecutiveReplans {
		return g.force(ReasonReplanBudget, cur, "replans", cur.Replans)
	}
	if err != nil {
		g.opts.Logger.Debug("gate.replan", "error", err.Error())
	} else {
		g.opts.Logger.Debug("gate.replan", "reason", "plan exhausted")
	}
	return Decision{
		Agent:  core.AgentRouter,
		Reason: ReasonReplan,
		Cursor: Cursor{Position: cur.Position, Replans: cur.Replans + 1},
	}
}

func (g *Gate) force(reason Reason, cur Cursor, kv ...any) Decision {
	g.opts.Logger.Info("gate.forced", append([]any{"reason", string(reason)}, kv...)...)
	return Decision{Agent: core.AgentAnswerSummarizer, Reason: reason, Cursor: cur}
}
