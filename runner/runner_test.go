package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/engine"
)

type fakeAsker struct {
	mu       sync.Mutex
	requests []string
	fail     map[string]error
}

func (f *fakeAsker) Run(_ context.Context, request string) engine.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	id := fmt.Sprintf("s%d", len(f.requests))
	if err := f.fail[request]; err != nil {
		return engine.Result{SessionID: id, Err: err}
	}
	st := core.NewState(request)
	st.Answer = "answer to " + request
	st.SQL = "SELECT 1"
	return engine.Result{SessionID: id, State: st}
}

func TestConverse_UntilStopWord(t *testing.T) {
	asker := &fakeAsker{}
	in := strings.NewReader("top products?\n\nrevenue by store?\n/stop_conversation\nignored\n")
	var out bytes.Buffer

	ids, err := New(asker, in, &out).Converse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.Equal(t, []string{"top products?", "revenue by store?"}, asker.requests)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, DefaultGreeting+"\n"))
	assert.Contains(t, text, "[Agent] answer to top products?")
	assert.Contains(t, text, "[Agent] answer to revenue by store?")
	assert.True(t, strings.HasSuffix(text, DefaultFarewell+"\n"))
	assert.NotContains(t, text, "[SQL]")
}

func TestConverse_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	ids, err := New(&fakeAsker{}, strings.NewReader("hello"), &out, func(o *Options) {
		o.ShowSQL = true
	}).Converse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
	assert.Contains(t, out.String(), "[SQL] SELECT 1")
	assert.True(t, strings.HasSuffix(out.String(), DefaultFarewell+"\n"))
}

func TestConverse_FailedSessionContinues(t *testing.T) {
	asker := &fakeAsker{fail: map[string]error{"bad": core.ErrSessionTimeout}}
	var out bytes.Buffer

	ids, err := New(asker, strings.NewReader("bad\ngood\n/stop_conversation\n"), &out).Converse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.Contains(t, out.String(), "could not answer that: session timeout")
	assert.Contains(t, out.String(), "[Agent] answer to good")
}

func TestConverse_CustomOptions(t *testing.T) {
	var out bytes.Buffer
	_, err := New(&fakeAsker{}, strings.NewReader("quit\n"), &out, func(o *Options) {
		o.Greeting = "hi"
		o.Farewell = "bye"
		o.StopWord = "quit"
		o.Prompt = ""
	}).Converse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi\nbye\n", out.String())
}

func TestConverse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr, pw := io.Pipe()
	defer pw.Close()

	_, err := New(&fakeAsker{}, pr, &bytes.Buffer{}).Converse(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
