package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStateMerge_ScalarOverwrite(t *testing.T) {
	s := NewState("average ticket size last week by store")

	s1, err := s.Merge(StateDelta{FieldSQL: "SELECT 1"})
	require.NoError(t, err)
	s2, err := s1.Merge(StateDelta{FieldSQL: "SELECT 2"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT 2", s2.SQL)
	assert.Equal(t, "SELECT 1", s1.SQL, "earlier snapshot must not change")
	assert.Empty(t, s.SQL)
}

func TestStateMerge_AccumulatingAppends(t *testing.T) {
	s := NewState("q")
	a := Interaction{ID: "1", Agent: AgentSQLWriter}
	b := Interaction{ID: "2", Agent: AgentInsightGenerator}

	s1, err := s.Merge(StateDelta{FieldInteractionsHistory: a})
	require.NoError(t, err)
	s2, err := s1.Merge(StateDelta{FieldInteractionsHistory: []Interaction{b, b}})
	require.NoError(t, err)

	require.Len(t, s1.InteractionsHistory, 1)
	require.Len(t, s2.InteractionsHistory, 3)
	assert.Equal(t, "1", s2.InteractionsHistory[0].ID)
	assert.Equal(t, "2", s2.InteractionsHistory[2].ID)
}

func TestStateMerge_DoesNotAliasSlices(t *testing.T) {
	s, err := NewState("q").Merge(StateDelta{FieldRoutingPlan: []string{AgentSQLWriter}})
	require.NoError(t, err)

	next, err := s.Merge(StateDelta{FieldReasoningTraces: ReasoningTrace{Agent: AgentRouter}})
	require.NoError(t, err)
	next.RoutingPlan[0] = "mutated"

	assert.Equal(t, AgentSQLWriter, s.RoutingPlan[0])
	assert.Empty(t, s.ReasoningTraces)
}

func TestStateMerge_SchemaViolations(t *testing.T) {
	base := NewState("q")

	tests := []struct {
		name  string
		delta StateDelta
		field string
	}{
		{"unknown field", StateDelta{"chart": "bar"}, "chart"},
		{"wrong scalar shape", StateDelta{FieldSQL: 42}, FieldSQL},
		{"wrong plan element", StateDelta{FieldRoutingPlan: []any{"sql_writer", 3}}, FieldRoutingPlan},
		{"wrong accumulating shape", StateDelta{FieldInteractionsHistory: "router ran"}, FieldInteractionsHistory},
		{"nil value", StateDelta{FieldAnswer: nil}, FieldAnswer},
		{"request rewrite", StateDelta{FieldRequest: "other"}, FieldRequest},
		{"wrong table shape", StateDelta{FieldQueriedData: [][]any{{1}}}, FieldQueriedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.Merge(tt.delta)
			require.Error(t, err)

			var sv *SchemaViolation
			require.True(t, errors.As(err, &sv))
			assert.Equal(t, tt.field, sv.Field)
			assert.Equal(t, base, got)
		})
	}
}

func TestStateMerge_AtomicOnViolation(t *testing.T) {
	base := NewState("q")
	got, err := base.Merge(StateDelta{
		FieldAnswer: "partial",
		FieldSQL:    12,
	})
	require.Error(t, err)
	assert.Empty(t, got.Answer)
}

func TestStateMerge_RequestSetOnce(t *testing.T) {
	s, err := State{}.Merge(StateDelta{FieldRequest: "q"})
	require.NoError(t, err)
	same, err := s.Merge(StateDelta{FieldRequest: "q"})
	require.NoError(t, err)
	assert.Equal(t, "q", same.Request)
}

func TestStateMerge_PlanFromDecodedJSON(t *testing.T) {
	s, err := NewState("q").Merge(StateDelta{FieldRoutingPlan: []any{"sql_writer", "insight_generator"}})
	require.NoError(t, err)
	assert.Equal(t, []string{AgentSQLWriter, AgentInsightGenerator}, s.RoutingPlan)
}

func TestState_ArtifactsAndChanges(t *testing.T) {
	s := NewState("q")
	assert.Empty(t, s.Artifacts())

	next, err := s.Merge(StateDelta{
		FieldSQL:         "SELECT 1",
		FieldQueriedData: Table{Columns: []string{"a"}, Rows: [][]any{{1}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{FieldSQL, FieldQueriedData}, next.Artifacts())
	assert.Equal(t, []string{FieldSQL, FieldQueriedData}, next.ChangedArtifacts(s))
	assert.Empty(t, next.ChangedArtifacts(next))
}

func TestState_VisitedAgentsAndFields(t *testing.T) {
	s, err := NewState("q").Merge(StateDelta{FieldInteractionsHistory: []Interaction{
		{Agent: AgentSQLWriter}, {Agent: AgentInsightGenerator}, {Agent: AgentSQLWriter},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{AgentSQLWriter, AgentInsightGenerator}, s.VisitedAgents())

	f := s.Fields()
	assert.Equal(t, "q", f[FieldRequest])
	assert.NotContains(t, f, FieldAnswer)
}

func genDelta() *rapid.Generator[StateDelta] {
	return rapid.Custom(func(t *rapid.T) StateDelta {
		d := StateDelta{}
		if rapid.Bool().Draw(t, "sql") {
			d[FieldSQL] = rapid.StringN(1, 20, -1).Draw(t, "sqlText")
		}
		if rapid.Bool().Draw(t, "answer") {
			d[FieldAnswer] = rapid.StringN(1, 20, -1).Draw(t, "answerText")
		}
		if rapid.Bool().Draw(t, "plan") {
			d[FieldRoutingPlan] = rapid.SliceOfN(rapid.SampledFrom([]string{
				AgentSQLWriter, AgentInsightGenerator, AgentAnswerSummarizer,
			}), 0, 4).Draw(t, "planSteps")
		}
		n := rapid.IntRange(0, 3).Draw(t, "interactions")
		if n > 0 {
			hist := make([]Interaction, n)
			for i := range hist {
				hist[i] = Interaction{
					ID:    fmt.Sprintf("%d", i),
					Agent: rapid.SampledFrom([]string{AgentSQLWriter, AgentInsightGenerator}).Draw(t, "agent"),
				}
			}
			d[FieldInteractionsHistory] = hist
		}
		if rapid.Bool().Draw(t, "trace") {
			d[FieldReasoningTraces] = ReasoningTrace{Agent: AgentRouter, Reasoning: rapid.String().Draw(t, "reasoning")}
		}
		return d
	})
}

func TestStateMerge_PropertyAccumulatingPrefix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		deltas := rapid.SliceOfN(genDelta(), 1, 8).Draw(t, "deltas")

		states := []State{NewState("q")}
		for _, d := range deltas {
			next, err := states[len(states)-1].Merge(d)
			require.NoError(t, err)
			states = append(states, next)
		}

		for i := 0; i < len(states); i++ {
			for j := i + 1; j < len(states); j++ {
				earlier, later := states[i], states[j]
				require.LessOrEqual(t, len(earlier.InteractionsHistory), len(later.InteractionsHistory))
				require.Equal(t, earlier.InteractionsHistory, later.InteractionsHistory[:len(earlier.InteractionsHistory)])
				require.LessOrEqual(t, len(earlier.ReasoningTraces), len(later.ReasoningTraces))
				require.Equal(t, earlier.ReasoningTraces, later.ReasoningTraces[:len(earlier.ReasoningTraces)])
			}
		}
	})
}

func TestStateMerge_PropertyEmptyDeltaIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewState("q")
		for _, d := range rapid.SliceOfN(genDelta(), 0, 5).Draw(t, "deltas") {
			var err error
			s, err = s.Merge(d)
			require.NoError(t, err)
		}

		same, err := s.Merge(StateDelta{})
		require.NoError(t, err)
		require.Equal(t, s, same)

		same, err = s.Merge(nil)
		require.NoError(t, err)
		require.Equal(t, s, same)
	})
}

func TestStateMerge_PropertyScalarLastWriteWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.StringN(1, 16, -1), 1, 6).Draw(t, "values")
		s := NewState("q")
		for _, v := range values {
			var err error
			s, err = s.Merge(StateDelta{FieldInsights: v})
			require.NoError(t, err)
		}
		require.Equal(t, values[len(values)-1], s.Insights)
	})
}

func TestInteraction_CloneIsDeep(t *testing.T) {
	in := Interaction{
		Agent:     AgentInsightGenerator,
		Timestamp: time.Now(),
		Produced:  []string{FieldInsights},
		ToolCalls: []ToolCallRecord{{Tool: "search_database", Args: map[string]any{"statement": "SELECT 1"}}},
	}
	c := in.Clone()
	c.Produced[0] = "x"
	c.ToolCalls[0].Args["statement"] = "DROP"

	assert.Equal(t, FieldInsights, in.Produced[0])
	assert.Equal(t, "SELECT 1", in.ToolCalls[0].Args["statement"])
}
