package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/analystmesh/core"
)

// Request captures the normalized model input produced by agents.
type Request struct {
	Instructions string         `json:"instructions"`
	Contents     []core.Content `json:"contents"`
	// Temperature overrides the backend default when set.
	Temperature *float64 `json:"temperature,omitempty"`
	// JSON asks the backend to constrain the output to a JSON object where
	// the provider supports it.
	JSON   bool `json:"json,omitempty"`
	Stream bool `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required by agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Send delivers r on out unless ctx is done first. It reports whether the
// response was delivered; producers stop once it returns false.
func Send(ctx context.Context, out chan<- Response, r Response) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// ErrEmptyResponse is returned by Complete when the model produced no final text.
var ErrEmptyResponse = errors.New("model returned no content")

// Complete drains a Generate call and returns the final text and usage.
// Partial chunks are ignored when a final response arrives; otherwise they
// are concatenated.
func Complete(ctx context.Context, m Model, req Request) (string, *TokenUsage, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		partial strings.Builder
		final   *Response
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Content.Text())
				continue
			}
			rc := r
			final = &rc
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", nil, err
			}
		}
	}

	if final != nil {
		text := final.Content.Text()
		if strings.TrimSpace(text) == "" {
			return "", final.Usage, ErrEmptyResponse
		}
		return text, final.Usage, nil
	}
	if partial.Len() == 0 {
		return "", nil, ErrEmptyResponse
	}
	return partial.String(), nil, nil
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }

// ScriptedReply is one canned MockModel outcome.
type ScriptedReply struct {
	Text string
	Err  error
}

// MockModel is an in-memory Model for tests. Replies are served in order;
// when the script is exhausted the Responder (if any) is consulted, else an
// error is returned. All requests are recorded.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	script    []ScriptedReply
	requests  []Request
	Responder func(req Request) (string, error)
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string, replies ...ScriptedReply) *MockModel {
	return &MockModel{
		info:   Info{Name: name, Provider: "mock"},
		script: replies,
	}
}

// Enqueue appends replies to the script.
func (m *MockModel) Enqueue(replies ...ScriptedReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) next(req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.script) > 0 {
		r := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		return r.Text, r.Err
	}
	responder := m.Responder
	m.mu.Unlock()
	if responder != nil {
		return responder(req)
	}
	return "", fmt.Errorf("mock model %s: no scripted reply left", m.info.Name)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		text, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		Send(ctx, respCh, Response{
			Content:      core.NewTextContent("assistant", text),
			FinishReason: "stop",
		})
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
