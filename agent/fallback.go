package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/model"
)

// DefaultFallbackTemperature is the sampling temperature of the second attempt.
const DefaultFallbackTemperature = 0.3

// FallbackOptions configures the second generation attempt.
type FallbackOptions struct {
	// Model serves the fallback attempt. Nil reuses the primary model.
	Model model.Model
	// Temperature overrides the sampling temperature of the fallback attempt.
	Temperature float64
}

// ParseError marks a reply that could not be converted into structured output.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "unparsable model output: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// WithFallback runs one structured generation with the two-attempt
// discipline: the primary model is called and its reply parsed; if parsing
// fails the fallback model is called exactly once at the fallback
// temperature. A second parse failure, or a transport failure on either
// attempt, yields a *core.AgentOutputError. Cancellation of the invocation
// context is returned unwrapped.
func WithFallback[T any](
	ic *core.InvocationContext,
	agentName string,
	primary model.Model,
	req model.Request,
	fallback FallbackOptions,
	parse func(text string) (T, error),
) (T, error) {
	var zero T

	out, err := attempt(ic, primary, req, parse)
	if err == nil {
		return out, nil
	}
	if ctxErr := ic.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		return zero, &core.AgentOutputError{Agent: agentName, Attempts: 1, Err: err}
	}

	ic.LogWarn("agent.output.fallback", "error", err.Error())

	fbModel := fallback.Model
	if fbModel == nil {
		fbModel = primary
	}
	fbReq := req
	fbReq.Temperature = model.Float(fallback.Temperature)

	out, err = attempt(ic, fbModel, fbReq, parse)
	if err == nil {
		return out, nil
	}
	if ctxErr := ic.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	return zero, &core.AgentOutputError{Agent: agentName, Attempts: 2, Err: err}
}

func attempt[T any](
	ic *core.InvocationContext,
	m model.Model,
	req model.Request,
	parse func(text string) (T, error),
) (T, error) {
	var zero T

	if err := ic.Limiter.Increment(); err != nil {
		return zero, err
	}

	start := time.Now()
	text, usage, err := model.Complete(ic.Context, m, req)
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}
	ic.LogDebug("llm.call", "model", m.Info().Name, "tokens", tokens, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		if errors.Is(err, model.ErrEmptyResponse) {
			return zero, &ParseError{Err: err}
		}
		return zero, fmt.Errorf("model %s: %w", m.Info().Name, err)
	}

	out, err := parse(text)
	if err != nil {
		return zero, &ParseError{Err: err}
	}
	return out, nil
}
