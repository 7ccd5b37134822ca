package core

import (
	"fmt"
	"slices"
	"sort"
)

// State field keys. They double as the JSON keys of the persisted snapshot.
const (
	FieldRequest             = "request"
	FieldRoutingPlan         = "routing_plan"
	FieldRoutingDecision     = "routing_decision"
	FieldSQL                 = "sql"
	FieldSQLExplanation      = "sql_explanation"
	FieldInsights            = "insights"
	FieldQueriedData         = "queried_data"
	FieldAnswer              = "answer"
	FieldUserDataFile        = "user_data_file"
	FieldInteractionsHistory = "interactions_history"
	FieldReasoningTraces     = "reasoning_traces"
)

// ArtifactFields lists the fields produced by the analysis agents. A field
// counts as present once it holds a non-empty value.
var ArtifactFields = []string{
	FieldSQL,
	FieldSQLExplanation,
	FieldInsights,
	FieldQueriedData,
	FieldAnswer,
}

// FieldKind is the merge discipline of a state field.
type FieldKind int

const (
	// Scalar fields are last-write-wins.
	Scalar FieldKind = iota
	// Accumulating fields are append-only sequences.
	Accumulating
)

// String returns the discipline name.
func (k FieldKind) String() string {
	if k == Accumulating {
		return "accumulating"
	}
	return "scalar"
}

// StateDelta is a partial update returned by an agent. Keys are field names;
// values must match the shape of the field. Accumulating fields accept either
// a single element or a slice of elements to append.
type StateDelta map[string]any

// State is an immutable snapshot of the shared session state. Merge never
// mutates the receiver; it returns a new snapshot that shares no slices with
// the original.
type State struct {
	Request             string           `json:"request"`
	RoutingPlan         []string         `json:"routing_plan,omitempty"`
	RoutingDecision     string           `json:"routing_decision,omitempty"`
	SQL                 string           `json:"sql,omitempty"`
	SQLExplanation      string           `json:"sql_explanation,omitempty"`
	Insights            string           `json:"insights,omitempty"`
	QueriedData         *Table           `json:"queried_data,omitempty"`
	Answer              string           `json:"answer,omitempty"`
	UserDataFile        string           `json:"user_data_file,omitempty"`
	InteractionsHistory []Interaction    `json:"interactions_history"`
	ReasoningTraces     []ReasoningTrace `json:"reasoning_traces"`
}

// NewState returns the initial snapshot for a request.
func NewState(request string) State {
	return State{
		Request:             request,
		InteractionsHistory: []Interaction{},
		ReasoningTraces:     []ReasoningTrace{},
	}
}

type fieldSpec struct {
	kind  FieldKind
	apply func(s *State, v any) error
}

// fieldTable drives Merge. Adding a field to State requires an entry here.
var fieldTable = map[string]fieldSpec{
	FieldRequest: {Scalar, func(s *State, v any) error {
		str, err := asString(v)
		if err != nil {
			return err
		}
		if s.Request != "" && s.Request != str {
			return fmt.Errorf("request is immutable once set")
		}
		s.Request = str
		return nil
	}},
	FieldRoutingPlan: {Scalar, func(s *State, v any) error {
		plan, err := asStringSlice(v)
		if err != nil {
			return err
		}
		s.RoutingPlan = plan
		return nil
	}},
	FieldRoutingDecision: {Scalar, stringSetter(func(s *State) *string { return &s.RoutingDecision })},
	FieldSQL:             {Scalar, stringSetter(func(s *State) *string { return &s.SQL })},
	FieldSQLExplanation:  {Scalar, stringSetter(func(s *State) *string { return &s.SQLExplanation })},
	FieldInsights:        {Scalar, stringSetter(func(s *State) *string { return &s.Insights })},
	FieldAnswer:          {Scalar, stringSetter(func(s *State) *string { return &s.Answer })},
	FieldUserDataFile:    {Scalar, stringSetter(func(s *State) *string { return &s.UserDataFile })},
	FieldQueriedData: {Scalar, func(s *State, v any) error {
		switch t := v.(type) {
		case Table:
			c := t.Clone()
			s.QueriedData = &c
		case *Table:
			if t == nil {
				return fmt.Errorf("nil table")
			}
			c := t.Clone()
			s.QueriedData = &c
		default:
			return fmt.Errorf("expected table, got %T", v)
		}
		return nil
	}},
	FieldInteractionsHistory: {Accumulating, func(s *State, v any) error {
		switch t := v.(type) {
		case Interaction:
			s.InteractionsHistory = append(s.InteractionsHistory, t.Clone())
		case []Interaction:
			for _, in := range t {
				s.InteractionsHistory = append(s.InteractionsHistory, in.Clone())
			}
		default:
			return fmt.Errorf("expected interaction, got %T", v)
		}
		return nil
	}},
	FieldReasoningTraces: {Accumulating, func(s *State, v any) error {
		switch t := v.(type) {
		case ReasoningTrace:
			s.ReasoningTraces = append(s.ReasoningTraces, t)
		case []ReasoningTrace:
			s.ReasoningTraces = append(s.ReasoningTraces, t...)
		default:
			return fmt.Errorf("expected reasoning trace, got %T", v)
		}
		return nil
	}},
}

// Kind reports the merge discipline of a field and whether the field exists.
func Kind(field string) (FieldKind, bool) {
	fs, ok := fieldTable[field]
	return fs.kind, ok
}

// KnownField reports whether field is part of the state schema.
func KnownField(field string) bool {
	_, ok := fieldTable[field]
	return ok
}

// Merge applies delta and returns the resulting snapshot. Scalars are
// overwritten, accumulating fields are appended in delta order. A delta that
// names an unknown field or carries a value of the wrong shape yields a
// *SchemaViolation and the receiver is returned unchanged. An empty delta
// returns an equal snapshot.
func (s State) Merge(delta StateDelta) (State, error) {
	next := s.Clone()
	if len(delta) == 0 {
		return next, nil
	}

	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fs, ok := fieldTable[k]
		if !ok {
			return s, &SchemaViolation{Field: k, Reason: "unknown field"}
		}
		v := delta[k]
		if v == nil {
			return s, &SchemaViolation{Field: k, Reason: "nil value; fields cannot be deleted"}
		}
		if err := fs.apply(&next, v); err != nil {
			return s, &SchemaViolation{Field: k, Reason: err.Error()}
		}
	}
	return next, nil
}

// Clone returns a deep copy of the snapshot.
func (s State) Clone() State {
	c := s
	c.RoutingPlan = slices.Clone(s.RoutingPlan)
	if s.QueriedData != nil {
		t := s.QueriedData.Clone()
		c.QueriedData = &t
	}
	if s.InteractionsHistory != nil {
		c.InteractionsHistory = make([]Interaction, len(s.InteractionsHistory))
		for i, in := range s.InteractionsHistory {
			c.InteractionsHistory[i] = in.Clone()
		}
	}
	c.ReasoningTraces = slices.Clone(s.ReasoningTraces)
	return c
}

// HasArtifact reports whether the named field holds a non-empty value.
func (s State) HasArtifact(field string) bool {
	switch field {
	case FieldRequest:
		return s.Request != ""
	case FieldRoutingPlan:
		return len(s.RoutingPlan) > 0
	case FieldRoutingDecision:
		return s.RoutingDecision != ""
	case FieldSQL:
		return s.SQL != ""
	case FieldSQLExplanation:
		return s.SQLExplanation != ""
	case FieldInsights:
		return s.Insights != ""
	case FieldQueriedData:
		return s.QueriedData != nil
	case FieldAnswer:
		return s.Answer != ""
	case FieldUserDataFile:
		return s.UserDataFile != ""
	case FieldInteractionsHistory:
		return len(s.InteractionsHistory) > 0
	case FieldReasoningTraces:
		return len(s.ReasoningTraces) > 0
	}
	return false
}

// Artifacts returns the populated artifact fields in ArtifactFields order.
func (s State) Artifacts() []string {
	out := make([]string, 0, len(ArtifactFields))
	for _, f := range ArtifactFields {
		if s.HasArtifact(f) {
			out = append(out, f)
		}
	}
	return out
}

// ChangedArtifacts returns the artifact fields whose value differs between
// prev and s.
func (s State) ChangedArtifacts(prev State) []string {
	var out []string
	for _, f := range ArtifactFields {
		if s.artifactValue(f) != prev.artifactValue(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s State) artifactValue(field string) string {
	switch field {
	case FieldSQL:
		return s.SQL
	case FieldSQLExplanation:
		return s.SQLExplanation
	case FieldInsights:
		return s.Insights
	case FieldQueriedData:
		if s.QueriedData == nil {
			return ""
		}
		return "\x00" + s.QueriedData.String()
	case FieldAnswer:
		return s.Answer
	}
	return ""
}

// LastInteraction returns the most recent interaction, if any.
func (s State) LastInteraction() (Interaction, bool) {
	if len(s.InteractionsHistory) == 0 {
		return Interaction{}, false
	}
	return s.InteractionsHistory[len(s.InteractionsHistory)-1], true
}

// VisitedAgents returns the agents recorded in interactions_history in order
// of first appearance.
func (s State) VisitedAgents() []string {
	var out []string
	for _, in := range s.InteractionsHistory {
		if !slices.Contains(out, in.Agent) {
			out = append(out, in.Agent)
		}
	}
	return out
}

// Fields returns a map view of the populated fields, suitable for prompt
// templates. Values are copies.
func (s State) Fields() map[string]any {
	c := s.Clone()
	m := map[string]any{
		FieldRequest:             c.Request,
		FieldInteractionsHistory: c.InteractionsHistory,
		FieldReasoningTraces:     c.ReasoningTraces,
	}
	if c.HasArtifact(FieldRoutingPlan) {
		m[FieldRoutingPlan] = c.RoutingPlan
	}
	if c.HasArtifact(FieldRoutingDecision) {
		m[FieldRoutingDecision] = c.RoutingDecision
	}
	if c.HasArtifact(FieldSQL) {
		m[FieldSQL] = c.SQL
	}
	if c.HasArtifact(FieldSQLExplanation) {
		m[FieldSQLExplanation] = c.SQLExplanation
	}
	if c.HasArtifact(FieldInsights) {
		m[FieldInsights] = c.Insights
	}
	if c.HasArtifact(FieldQueriedData) {
		m[FieldQueriedData] = *c.QueriedData
	}
	if c.HasArtifact(FieldAnswer) {
		m[FieldAnswer] = c.Answer
	}
	if c.HasArtifact(FieldUserDataFile) {
		m[FieldUserDataFile] = c.UserDataFile
	}
	return m
}

func stringSetter(field func(s *State) *string) func(s *State, v any) error {
	return func(s *State, v any) error {
		str, err := asString(v)
		if err != nil {
			return err
		}
		*field(s) = str
		return nil
	}
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asStringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of agent names, got %T", v)
	}
}
