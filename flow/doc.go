// Package flow decides where control goes after each coordinator step.
//
// The Gate combines three inputs: the interaction cap, a pluggable
// CycleDetector and the router's plan. It never invokes agents itself; the
// engine asks it for the next node and carries the returned Cursor into the
// following step.
//
// Precedence, highest first:
//
//	interaction cap    -> answer_summarizer (reason interaction_cap)
//	cycle detected     -> answer_summarizer (reason cycle)
//	next plan step     -> that agent        (reason plan)
//	plan unusable      -> router            (reason replan)
//	replans exhausted  -> answer_summarizer (reason replan_budget)
package flow
