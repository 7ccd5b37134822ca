package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/testutil"
)

func withPlan(plan ...string) *testutil.StateBuilder {
	return testutil.NewStateBuilder("q").Set(core.FieldRoutingPlan, plan)
}

func TestGate_FollowsPlan(t *testing.T) {
	g := NewGate()
	state := withPlan(core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentAnswerSummarizer).Build()

	d := g.Next(state, Cursor{})
	assert.Equal(t, core.AgentSQLWriter, d.Agent)
	assert.Equal(t, ReasonPlan, d.Reason)
	assert.False(t, d.Terminal())

	d = g.Next(state, d.Cursor)
	assert.Equal(t, core.AgentInsightGenerator, d.Agent)

	d = g.Next(state, d.Cursor)
	assert.Equal(t, core.AgentAnswerSummarizer, d.Agent)
	assert.True(t, d.Terminal())
	assert.Equal(t, Cursor{Position: 3}, d.Cursor)
}

func TestGate_InteractionCap(t *testing.T) {
	g := NewGate(func(o *GateOptions) { o.MaxInteractions = 3 })
	state := withPlan(core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentSQLWriter, core.AgentInsightGenerator).
		Interactions(core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentSQLWriter).
		Build()

	d := g.Next(state, Cursor{Position: 3})
	assert.Equal(t, core.AgentAnswerSummarizer, d.Agent)
	assert.Equal(t, ReasonInteractionCap, d.Reason)
	assert.True(t, d.Reason.Forced())
}

func TestGate_NonPositiveCapUsesDefault(t *testing.T) {
	for _, limit := range []int{0, -3} {
		g := NewGate(func(o *GateOptions) {
			o.MaxInteractions = limit
			o.CycleDetector = nil
		})
		assert.Equal(t, DefaultMaxInteractions, g.MaxInteractions())

		done := make([]string, DefaultMaxInteractions)
		for i := range done {
			done[i] = core.AgentSQLWriter
		}
		state := withPlan(append(done, core.AgentSQLWriter)...).Interactions(done...).Build()

		d := g.Next(state, Cursor{Position: DefaultMaxInteractions})
		assert.Equal(t, core.AgentAnswerSummarizer, d.Agent)
		assert.Equal(t, ReasonInteractionCap, d.Reason)
	}
}

func TestGate_CapTakesPrecedenceOverReplan(t *testing.T) {
	g := NewGate(func(o *GateOptions) { o.MaxInteractions = 1 })
	state := testutil.NewStateBuilder("q").Interactions(core.AgentSQLWriter).Build()

	d := g.Next(state, Cursor{})
	assert.Equal(t, ReasonInteractionCap, d.Reason)
}

func TestGate_ExhaustedPlanReplans(t *testing.T) {
	g := NewGate()
	state := withPlan(core.AgentSQLWriter).Interactions(core.AgentSQLWriter).Build()

	d := g.Next(state, Cursor{Position: 1})
	assert.Equal(t, core.AgentRouter, d.Agent)
	assert.Equal(t, ReasonReplan, d.Reason)
	assert.Equal(t, 1, d.Cursor.Replans)
	assert.Equal(t, Cursor{Replans: 1}, d.Cursor.Replanned())
}

func TestGate_MalformedPlanReplans(t *testing.T) {
	known := func(name string) bool { return name == core.AgentSQLWriter || name == core.AgentAnswerSummarizer }
	g := NewGate(func(o *GateOptions) { o.Known = known })

	for name, plan := range map[string][]string{
		"router step":   {core.AgentRouter, core.AgentAnswerSummarizer},
		"unknown agent": {"data_scientist"},
	} {
		t.Run(name, func(t *testing.T) {
			d := g.Next(withPlan(plan...).Build(), Cursor{})
			assert.Equal(t, core.AgentRouter, d.Agent)
			assert.Equal(t, ReasonReplan, d.Reason)
		})
	}

	d := g.Next(testutil.NewStateBuilder("q").Build(), Cursor{})
	assert.Equal(t, core.AgentRouter, d.Agent, "empty plan")
}

func TestGate_ReplanBudget(t *testing.T) {
	g := NewGate(func(o *GateOptions) { o.MaxConsecutiveReplans = 2 })
	state := testutil.NewStateBuilder("q").Build()

	cur := Cursor{}
	d := g.Next(state, cur)
	require.Equal(t, core.AgentRouter, d.Agent)
	d = g.Next(state, d.Cursor.Replanned())
	require.Equal(t, core.AgentRouter, d.Agent)
	d = g.Next(state, d.Cursor.Replanned())
	assert.Equal(t, core.AgentAnswerSummarizer, d.Agent)
	assert.Equal(t, ReasonReplanBudget, d.Reason)
}

func TestGate_FollowingPlanResetsReplans(t *testing.T) {
	g := NewGate()
	d := g.Next(withPlan(core.AgentSQLWriter).Build(), Cursor{Replans: 2})
	assert.Equal(t, core.AgentSQLWriter, d.Agent)
	assert.Zero(t, d.Cursor.Replans)
}

func TestGate_CycleForcesSummarizer(t *testing.T) {
	g := NewGate()
	state := withPlan(core.AgentSQLWriter, core.AgentSQLWriter).Interactions(core.AgentSQLWriter).Build()

	d := g.Next(state, Cursor{Position: 1})
	assert.Equal(t, core.AgentAnswerSummarizer, d.Agent)
	assert.Equal(t, ReasonCycle, d.Reason)
}

func TestGate_NilDetectorDisablesCycleDetection(t *testing.T) {
	g := NewGate(func(o *GateOptions) { o.CycleDetector = nil })
	state := withPlan(core.AgentSQLWriter, core.AgentSQLWriter).Interactions(core.AgentSQLWriter).Build()

	d := g.Next(state, Cursor{Position: 1})
	assert.Equal(t, core.AgentSQLWriter, d.Agent)
}

func TestGate_CapBoundsEveryWalk(t *testing.T) {
	agents := []string{core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentAnswerSummarizer, core.AgentRouter, "bogus"}

	rapid.Check(t, func(t *rapid.T) {
		maxInteractions := rapid.IntRange(1, 8).Draw(t, "max")
		plan := rapid.SliceOfN(rapid.SampledFrom(agents), 0, 10).Draw(t, "plan")
		g := NewGate(func(o *GateOptions) {
			o.MaxInteractions = maxInteractions
			o.CycleDetector = nil
		})

		state := testutil.NewStateBuilder("q").Set(core.FieldRoutingPlan, plan).Build()
		cur := Cursor{}
		for steps := 0; ; steps++ {
			if steps > 3*maxInteractions+10 {
				t.Fatalf("walk did not terminate")
			}
			d := g.Next(state, cur)
			if d.Terminal() {
				if len(state.InteractionsHistory) >= maxInteractions {
					assert.Equal(t, ReasonInteractionCap, d.Reason)
				}
				return
			}
			if d.Agent == core.AgentRouter {
				cur = d.Cursor.Replanned()
				continue
			}
			cur = d.Cursor
			var err error
			state, err = state.Merge(core.StateDelta{core.FieldInteractionsHistory: core.Interaction{Agent: d.Agent}})
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			if len(state.InteractionsHistory) > maxInteractions {
				t.Fatalf("history %d exceeds cap %d", len(state.InteractionsHistory), maxInteractions)
			}
		}
	})
}

func TestImmediateRepeat(t *testing.T) {
	idle := testutil.NewStateBuilder("q").Interactions(core.AgentSQLWriter).Build()
	assert.True(t, ImmediateRepeat{}.Detect(idle, core.AgentSQLWriter))
	assert.False(t, ImmediateRepeat{}.Detect(idle, core.AgentInsightGenerator))

	productive, err := core.NewState("q").Merge(core.StateDelta{
		core.FieldInteractionsHistory: core.Interaction{Agent: core.AgentSQLWriter, Produced: []string{core.FieldSQL}},
	})
	require.NoError(t, err)
	assert.False(t, ImmediateRepeat{}.Detect(productive, core.AgentSQLWriter))
	assert.False(t, ImmediateRepeat{}.Detect(core.NewState("q"), core.AgentSQLWriter))
}

func TestAlternatingPair(t *testing.T) {
	d := AlternatingPair{Window: 4}
	state := testutil.NewStateBuilder("q").
		Interactions(core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentSQLWriter, core.AgentInsightGenerator).
		Build()

	assert.True(t, d.Detect(state, core.AgentSQLWriter))
	assert.False(t, d.Detect(state, core.AgentAnswerSummarizer))

	short := testutil.NewStateBuilder("q").Interactions(core.AgentSQLWriter, core.AgentInsightGenerator).Build()
	assert.False(t, d.Detect(short, core.AgentSQLWriter))

	three := testutil.NewStateBuilder("q").
		Interactions(core.AgentSQLWriter, core.AgentInsightGenerator, core.AgentAnswerSummarizer, core.AgentInsightGenerator).
		Build()
	assert.False(t, d.Detect(three, core.AgentSQLWriter))
}

func TestAnyOf(t *testing.T) {
	never := CycleDetectorFunc(func(core.State, string) bool { return false })
	always := CycleDetectorFunc(func(core.State, string) bool { return true })

	assert.False(t, AnyOf().Detect(core.NewState("q"), "x"))
	assert.False(t, AnyOf(never, nil).Detect(core.NewState("q"), "x"))
	assert.True(t, AnyOf(never, always).Detect(core.NewState("q"), "x"))
}

func TestPlan_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Plan
	}{
		{"array", `["sql_writer", "Insight_Generator"]`, Plan{"sql_writer", "insight_generator"}},
		{"alias", `["general_question"]`, Plan{core.AgentSimpleQA}},
		{"arrow text", `"1. sql_writer -> 2. insight_generator -> 3. answer_summarizer"`, Plan{"sql_writer", "insight_generator", "answer_summarizer"}},
		{"comma text", `"sql_writer, answer_summarizer"`, Plan{"sql_writer", "answer_summarizer"}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Plan
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p)
		})
	}

	var p Plan
	assert.Error(t, json.Unmarshal([]byte(`42`), &p))
}

func TestPlan_Validate(t *testing.T) {
	assert.ErrorIs(t, Plan{}.Validate(nil), ErrEmptyPlan)
	assert.ErrorIs(t, Plan{core.AgentRouter}.Validate(nil), ErrMalformedPlan)
	assert.ErrorIs(t, Plan{"x"}.Validate(func(string) bool { return false }), ErrMalformedPlan)
	assert.NoError(t, Plan{core.AgentSQLWriter}.Validate(nil))
}
