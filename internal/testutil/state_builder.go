package testutil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/model"
)

// StateBuilder constructs state snapshots with fluent chaining.
//
//	s := NewStateBuilder("q").Set(core.FieldSQL, "SELECT 1").Interactions("sql_writer").Build()
type StateBuilder struct {
	state core.State
	delta core.StateDelta
}

// NewStateBuilder starts a snapshot for request.
func NewStateBuilder(request string) *StateBuilder {
	return &StateBuilder{state: core.NewState(request), delta: core.StateDelta{}}
}

// Set stages a field value (chainable).
func (b *StateBuilder) Set(field string, v any) *StateBuilder {
	b.delta[field] = v
	return b
}

// Interactions appends one interaction per agent name (chainable).
func (b *StateBuilder) Interactions(agents ...string) *StateBuilder {
	hist, _ := b.delta[core.FieldInteractionsHistory].([]core.Interaction)
	for _, a := range agents {
		hist = append(hist, core.Interaction{ID: uuid.NewString(), Agent: a, Timestamp: time.Now()})
	}
	b.delta[core.FieldInteractionsHistory] = hist
	return b
}

// Build merges the staged fields. It panics on schema violations since the
// builder is only used with literal test data.
func (b *StateBuilder) Build() core.State {
	s, err := b.state.Merge(b.delta)
	if err != nil {
		panic(err)
	}
	return s
}

// Invocation builds an InvocationContext for agent over state.
func Invocation(ctx context.Context, agent string, state core.State, optFns ...func(o *core.InvocationOptions)) *core.InvocationContext {
	return core.NewInvocationContext(ctx, "session-test", uuid.NewString(), 1, agent, state, optFns...)
}

// JSON marshals v for use as a scripted model reply.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Reply is a scripted successful model reply carrying v as JSON.
func Reply(v any) model.ScriptedReply {
	return model.ScriptedReply{Text: JSON(v)}
}

// Garbage is a scripted reply that cannot be parsed as structured output.
func Garbage() model.ScriptedReply {
	return model.ScriptedReply{Text: "I am not sure what you mean."}
}
