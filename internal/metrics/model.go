package metrics

import (
	"context"
	"time"

	"github.com/hupe1980/analystmesh/model"
)

// InstrumentedModel records every Generate call on a Collector.
type InstrumentedModel struct {
	model.Model
	collector *Collector
}

// InstrumentModel wraps m. A nil collector returns m unchanged.
func (c *Collector) InstrumentModel(m model.Model) model.Model {
	if c == nil || m == nil {
		return m
	}
	return &InstrumentedModel{Model: m, collector: c}
}

// Generate implements model.Model.
func (m *InstrumentedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	start := time.Now()
	respIn, errIn := m.Model.Generate(ctx, req)

	respOut := make(chan model.Response, 1)
	errOut := make(chan error, 1)

	go func() {
		defer close(respOut)
		defer close(errOut)

		var (
			usage  *model.TokenUsage
			failed error
		)
		for respIn != nil || errIn != nil {
			select {
			case r, ok := <-respIn:
				if !ok {
					respIn = nil
					continue
				}
				if r.Usage != nil {
					usage = r.Usage
				}
				select {
				case respOut <- r:
				case <-ctx.Done():
					failed = ctx.Err()
					respIn, errIn = nil, nil
				}
			case err, ok := <-errIn:
				if !ok {
					errIn = nil
					continue
				}
				if err != nil && failed == nil {
					failed = err
					errOut <- err
				}
			}
		}

		info := m.Info()
		prompt, completion := 0, 0
		if usage != nil {
			prompt, completion = usage.PromptTokens, usage.CompletionTokens
		}
		m.collector.RecordLLMRequest(info.Provider, info.Name, failed, time.Since(start), prompt, completion)
	}()

	return respOut, errOut
}
