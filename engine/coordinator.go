package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/flow"
	"github.com/hupe1980/analystmesh/logging"
)

const summaryLimit = 160

// coordinator drives one session. It is owned by a single goroutine.
type coordinator struct {
	engine    *Engine
	sessionID string
	logger    logging.Logger
	limiter   *core.ModelLimiter

	state   core.State
	step    int
	history []core.Snapshot
}

func newCoordinator(e *Engine, sessionID, request string, logger logging.Logger) *coordinator {
	return &coordinator{
		engine:    e,
		sessionID: sessionID,
		logger:    logger,
		limiter:   core.NewModelLimiter(e.config.MaxModelCalls),
		state:     core.NewState(request),
	}
}

// run executes steps until a terminal agent finished or an error occurred.
func (c *coordinator) run(ctx context.Context) error {
	decision := flow.Decision{Agent: core.AgentRouter, Reason: flow.ReasonInitial}
	c.engine.metrics.RecordRoute(decision.Agent, string(decision.Reason))

	for {
		if err := ctx.Err(); err != nil {
			return sessionError(ctx, err)
		}

		agent, ok := c.engine.GetAgent(decision.Agent)
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownAgent, decision.Agent)
		}

		c.step++
		if err := c.execute(ctx, agent, decision.Reason); err != nil {
			return err
		}

		if core.IsTerminal(agent.Name()) {
			if c.state.Answer == "" {
				return &core.IncompleteSessionError{
					SessionID: c.sessionID,
					Agent:     agent.Name(),
					Missing:   core.FieldAnswer,
				}
			}
			c.snapshot(agent.Name(), "", decision.Reason)
			return nil
		}

		cursor := decision.Cursor
		if agent.Name() == core.AgentRouter {
			cursor = cursor.Replanned()
		}
		next := c.engine.gate.Next(c.state, cursor)

		state, err := c.state.Merge(core.StateDelta{core.FieldRoutingDecision: next.Agent})
		if err != nil {
			return err
		}
		c.state = state
		c.snapshot(agent.Name(), next.Agent, next.Reason)
		c.engine.metrics.RecordRoute(next.Agent, string(next.Reason))

		c.logger.Debug("session.route",
			"step", c.step,
			"from", agent.Name(),
			"to", next.Agent,
			"reason", string(next.Reason),
		)
		decision = next
	}
}

// execute runs a single agent step and merges its authorized output.
func (c *coordinator) execute(ctx context.Context, agent core.Agent, reason flow.Reason) (err error) {
	name := agent.Name()
	started := time.Now()

	ctx, span := c.engine.tracer.Start(ctx, "analyst.agent."+name, trace.WithAttributes(
		append(sessionAttrs(c.sessionID),
			attribute.String("analyst.agent", name),
			attribute.Int("analyst.step", c.step),
			attribute.String("analyst.route_reason", string(reason)),
		)...,
	))
	defer func() {
		if err != nil {
			recordSpanError(span, err)
		}
		span.End()
		c.engine.metrics.RecordStep(name, err, time.Since(started))
	}()

	prev := c.state
	cbCtx := &CallbackContext{
		SessionID: c.sessionID,
		Step:      c.step,
		AgentName: name,
		State:     prev,
	}
	if err := c.engine.callbacks.ExecuteCallbacks(ctx, CallbackBeforeAgent, cbCtx); err != nil {
		return err
	}

	var tools []string
	if tu, ok := agent.(core.ToolUser); ok {
		tools = tu.Tools()
	}
	ic := core.NewInvocationContext(ctx, c.sessionID, uuid.NewString(), c.step, name, prev, func(o *core.InvocationOptions) {
		o.Limiter = c.limiter
		o.DataFiles = c.engine.dataFiles
		o.AllowedTools = tools
		o.Logger = c.logger
	})

	out, err := agent.Invoke(ic)
	c.recordToolCalls(ic.ToolCalls())
	if err != nil {
		if ctx.Err() != nil {
			return sessionError(ctx, err)
		}
		return err
	}
	if out == nil {
		out = &core.AgentOutput{}
	}
	if err := ctx.Err(); err != nil {
		return sessionError(ctx, err)
	}

	cbCtx.Output = out
	if err := c.engine.callbacks.ExecuteCallbacks(ctx, CallbackAfterAgent, cbCtx); err != nil {
		return err
	}

	if err := authorize(name, agent.Writes(), out.Delta); err != nil {
		return err
	}

	cbCtx.Delta = out.Delta
	if err := c.engine.callbacks.ExecuteCallbacks(ctx, CallbackOnStateChange, cbCtx); err != nil {
		return err
	}

	state, err := prev.Merge(out.Delta)
	if err != nil {
		var sv *core.SchemaViolation
		if errors.As(err, &sv) && sv.Agent == "" {
			sv.Agent = name
		}
		return err
	}

	record := core.StateDelta{
		core.FieldReasoningTraces: core.ReasoningTrace{
			Agent:         name,
			Reasoning:     out.Reasoning,
			FailureReason: out.FailureReason,
		},
	}
	if name != core.AgentRouter {
		record[core.FieldInteractionsHistory] = core.Interaction{
			ID:            uuid.NewString(),
			Agent:         name,
			Timestamp:     started.UTC(),
			InputSummary:  inputSummary(prev),
			OutputSummary: truncate(out.Summary, summaryLimit),
			Produced:      state.ChangedArtifacts(prev),
			ToolCalls:     ic.ToolCalls(),
		}
	}
	state, err = state.Merge(record)
	if err != nil {
		return err
	}
	c.state = state

	span.SetAttributes(
		attribute.StringSlice("analyst.produced", state.ChangedArtifacts(prev)),
		attribute.Int("analyst.model_calls", c.limiter.Count()),
	)
	return nil
}

func (c *coordinator) recordToolCalls(calls []core.ToolCallRecord) {
	al, _ := c.logger.(*logging.AnalystLogger)
	for _, tc := range calls {
		c.engine.metrics.RecordToolCall(tc.Tool, tc.Error != "", tc.Duration)
		if al != nil {
			var err error
			if tc.Error != "" {
				err = errors.New(tc.Error)
			}
			al.LogToolCall(tc.Tool, tc.Duration, tc.Rows, err)
		}
	}
}

func (c *coordinator) snapshot(agent, next string, reason flow.Reason) {
	c.history = append(c.history, core.Snapshot{
		Step:              c.step,
		Agent:             agent,
		RoutingDecision:   next,
		RouteReason:       string(reason),
		InteractionsCount: len(c.state.InteractionsHistory),
		Artifacts:         c.state.Artifacts(),
		Timestamp:         time.Now().UTC(),
	})
}

// record builds the persisted trace of the session.
func (c *coordinator) record(started, finished time.Time, err error) core.SessionRecord {
	rec := core.SessionRecord{
		SessionID:      c.sessionID,
		Request:        c.state.Request,
		Status:         core.StatusCompleted,
		SessionHistory: slices.Clone(c.history),
		FinalState:     c.state.Clone(),
		StartedAt:      started.UTC(),
		FinishedAt:     finished.UTC(),
	}
	if rec.SessionHistory == nil {
		rec.SessionHistory = []core.Snapshot{}
	}
	if err != nil {
		rec.Status = core.StatusFailed
		rec.Error = err.Error()
	}
	return rec.Clone()
}

// authorize rejects deltas that write fields outside the agent's contract.
func authorize(agent string, writes []string, delta core.StateDelta) error {
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !slices.Contains(writes, k) {
			return &core.SchemaViolation{Agent: agent, Field: k, Reason: "field not writable by agent"}
		}
	}
	return nil
}

// sessionError maps a context failure to its cause, so timeouts surface as
// core.ErrSessionTimeout and cancellations as ErrSessionCancelled.
func sessionError(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	if cause == nil {
		return err
	}
	if errors.Is(err, cause) {
		return err
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return fmt.Errorf("%w: %v", cause, err)
}

func inputSummary(s core.State) string {
	var b strings.Builder
	b.WriteString(truncate(s.Request, summaryLimit))
	if arts := s.Artifacts(); len(arts) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(arts, ", "))
		b.WriteString("]")
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("analyst.session_id", sessionID)}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
