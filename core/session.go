package core

import (
	"context"
	"slices"
	"time"
)

// SessionStatus is the outcome of a session.
type SessionStatus string

const (
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Snapshot summarizes the state after one coordinator step.
type Snapshot struct {
	Step              int       `json:"step"`
	Agent             string    `json:"agent"`
	RoutingDecision   string    `json:"routing_decision"`
	RouteReason       string    `json:"route_reason,omitempty"`
	InteractionsCount int       `json:"interactions_count"`
	Artifacts         []string  `json:"artifacts"`
	Timestamp         time.Time `json:"timestamp"`
}

// SessionRecord is the persisted trace of a session. It is built once by the
// coordinator and never mutated afterwards.
type SessionRecord struct {
	SessionID      string        `json:"session_id"`
	Request        string        `json:"request"`
	Status         SessionStatus `json:"status"`
	Error          string        `json:"error,omitempty"`
	SessionHistory []Snapshot    `json:"session_history"`
	FinalState     State         `json:"final_state"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Clone returns a deep copy of the record.
func (r SessionRecord) Clone() SessionRecord {
	c := r
	c.SessionHistory = make([]Snapshot, len(r.SessionHistory))
	for i, s := range r.SessionHistory {
		s.Artifacts = slices.Clone(s.Artifacts)
		c.SessionHistory[i] = s
	}
	c.FinalState = r.FinalState.Clone()
	return c
}

// SessionSink persists session records. Save may be called more than once for
// the same session id; implementations must treat it as an upsert.
type SessionSink interface {
	Save(ctx context.Context, rec SessionRecord) error
}
