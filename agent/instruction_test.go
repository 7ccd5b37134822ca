package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/testutil"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.InvocationContext) (string, error) { return m.text, m.err }

func newTestInvocationContext() *core.InvocationContext {
	return testutil.Invocation(context.Background(), core.AgentRouter, core.NewState("hello"))
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(newTestInvocationContext(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromText("Request: {{.request}}")
	got, err := inst.Resolve(newTestInvocationContext(), map[string]any{"request": "sales by store"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Request: sales by store" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(ic *core.InvocationContext) (string, error) { return "dynamic for " + ic.AgentName, nil })
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(newTestInvocationContext(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "dynamic for router" {
		t.Fatalf("unexpected instruction %q", got)
	}
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{err: errors.New("boom")})
	if _, err := inst.Resolve(newTestInvocationContext(), nil); err == nil {
		t.Fatalf("expected provider error")
	}
	if !NewInstructionFromText("").IsZero() {
		t.Fatalf("expected zero instruction")
	}
}
