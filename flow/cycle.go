package flow

import "github.com/hupe1980/analystmesh/core"

// CycleDetector decides whether routing to next would keep the session in
// an unproductive loop.
type CycleDetector interface {
	Detect(state core.State, next string) bool
}

// CycleDetectorFunc adapts a function to CycleDetector.
type CycleDetectorFunc func(state core.State, next string) bool

// Detect implements CycleDetector.
func (f CycleDetectorFunc) Detect(state core.State, next string) bool { return f(state, next) }

// ImmediateRepeat fires when next is the agent of the last interaction and
// that step produced no artifact.
type ImmediateRepeat struct{}

// Detect implements CycleDetector.
func (ImmediateRepeat) Detect(state core.State, next string) bool {
	last, ok := state.LastInteraction()
	return ok && last.Agent == next && len(last.Produced) == 0
}

// AlternatingPair fires when the last Window interactions alternate between
// exactly two agents, none of them produced an artifact and next would
// continue the alternation.
type AlternatingPair struct {
	Window int
}

// Detect implements CycleDetector.
func (d AlternatingPair) Detect(state core.State, next string) bool {
	w := d.Window
	if w < 2 {
		w = 2
	}
	hist := state.InteractionsHistory
	if len(hist) < w {
		return false
	}
	tail := hist[len(hist)-w:]
	a, b := tail[0].Agent, tail[1].Agent
	if a == b {
		return false
	}
	for i, in := range tail {
		want := a
		if i%2 == 1 {
			want = b
		}
		if in.Agent != want || len(in.Produced) > 0 {
			return false
		}
	}
	expected := a
	if w%2 == 1 {
		expected = b
	}
	return next == expected
}

type anyOf []CycleDetector

func (ds anyOf) Detect(state core.State, next string) bool {
	for _, d := range ds {
		if d != nil && d.Detect(state, next) {
			return true
		}
	}
	return false
}

// AnyOf fires when any of detectors fires.
func AnyOf(detectors ...CycleDetector) CycleDetector { return anyOf(detectors) }

// DefaultCycleDetector combines ImmediateRepeat with a four step
// AlternatingPair.
func DefaultCycleDetector() CycleDetector {
	return AnyOf(ImmediateRepeat{}, AlternatingPair{Window: 4})
}
