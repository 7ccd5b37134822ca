package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/internal/metrics"
	"github.com/hupe1980/analystmesh/session"
)

type fakeAgent struct {
	name   string
	writes []string
	delta  func(s core.State) core.StateDelta
}

func (a fakeAgent) Name() string        { return a.name }
func (a fakeAgent) Description() string { return a.name }
func (a fakeAgent) Writes() []string    { return a.writes }
func (a fakeAgent) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	return &core.AgentOutput{Delta: a.delta(ic.State)}, nil
}

func newEngine(t *testing.T, answer func(s core.State) core.StateDelta) (*engine.Engine, *session.InMemorySink) {
	t.Helper()
	sink := session.NewInMemorySink()
	eng := engine.New(func(o *engine.Options) { o.Sink = sink })
	eng.Register(
		fakeAgent{
			name:   core.AgentRouter,
			writes: []string{core.FieldRoutingPlan},
			delta: func(core.State) core.StateDelta {
				return core.StateDelta{core.FieldRoutingPlan: []string{core.AgentAnswerSummarizer}}
			},
		},
		fakeAgent{name: core.AgentAnswerSummarizer, writes: []string{core.FieldAnswer}, delta: answer},
	)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng, sink
}

func echo(s core.State) core.StateDelta {
	return core.StateDelta{core.FieldAnswer: "you asked: " + s.Request}
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestAsk(t *testing.T) {
	eng, _ := newEngine(t, echo)
	srv := New(eng)

	rec, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"best selling product?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "you asked: best selling product?", body["answer"])
	assert.NotEmpty(t, body["session_id"])
	assert.EqualValues(t, 2, body["steps"])
}

func TestAsk_BadRequests(t *testing.T) {
	eng, _ := newEngine(t, echo)
	h := New(eng, func(o *Options) { o.MaxBodyBytes = 64 }).Handler()

	rec, _ := do(t, h, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := `{"question":"` + strings.Repeat("x", 200) + `"}`
	rec, _ = do(t, h, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAsk_FailedSession(t *testing.T) {
	eng, sink := newEngine(t, func(core.State) core.StateDelta { return nil })
	h := New(eng).Handler()

	rec, body := do(t, h, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error"], "incomplete")

	id := body["session_id"].(string)
	require.NoError(t, eng.Flush(context.Background()))
	stored, err := sink.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, stored.Status)

	rec, got := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", got["status"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/sessions/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAskStatus(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, askStatus(errors.Join(core.ErrSessionTimeout)))
	assert.Equal(t, http.StatusConflict, askStatus(engine.ErrSessionCancelled))
	assert.Equal(t, http.StatusBadGateway, askStatus(&core.AgentOutputError{Agent: "router", Attempts: 2, Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, askStatus(&core.SchemaViolation{Field: "x"}))
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAndListFiles(t *testing.T) {
	eng, _ := newEngine(t, echo)
	h := New(eng).Handler()

	rec, body := do(t, h, uploadRequest(t, "beans.csv", "bean,kg\narabica,12\nrobusta,7\n"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 2, body["rows"])
	assert.Equal(t, []any{"bean", "kg"}, body["columns"])
	assert.True(t, strings.HasPrefix(body["ref"].(string), core.DataFileRefPrefix))

	data, err := eng.DataFiles().Get(context.Background(), body["id"].(string))
	require.NoError(t, err)
	assert.Contains(t, string(data), "arabica")

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["files"], 1)

	rec, _ = do(t, h, uploadRequest(t, "notes.txt", "hello"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

type waitingSummarizer struct {
	started chan struct{}
}

func (waitingSummarizer) Name() string        { return core.AgentAnswerSummarizer }
func (waitingSummarizer) Description() string { return "waits for cancellation" }
func (waitingSummarizer) Writes() []string    { return []string{core.FieldAnswer} }
func (a waitingSummarizer) Invoke(ic *core.InvocationContext) (*core.AgentOutput, error) {
	a.started <- struct{}{}
	<-ic.Done()
	return nil, ic.Err()
}

func TestStartAndCancelSession(t *testing.T) {
	sink := session.NewInMemorySink()
	eng := engine.New(func(o *engine.Options) { o.Sink = sink })
	started := make(chan struct{}, 1)
	eng.Register(
		fakeAgent{
			name:   core.AgentRouter,
			writes: []string{core.FieldRoutingPlan},
			delta: func(core.State) core.StateDelta {
				return core.StateDelta{core.FieldRoutingPlan: []string{core.AgentAnswerSummarizer}}
			},
		},
		waitingSummarizer{started: started},
	)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	h := New(eng).Handler()

	rec, body := do(t, h, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"question":"slow question"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "running", body["status"])
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		if err := eng.Flush(context.Background()); err != nil {
			return false
		}
		stored, err := sink.Get(context.Background(), id)
		return err == nil && stored.Status == core.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["status"])
}

func TestStartSession_RejectsBlankQuestion(t *testing.T) {
	eng, _ := newEngine(t, echo)
	rec, _ := do(t, New(eng).Handler(), httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"question":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel_UnknownSession(t *testing.T) {
	eng, _ := newEngine(t, echo)
	rec, _ := do(t, New(eng).Handler(), httptest.NewRequest(http.MethodPost, "/v1/sessions/nope/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	eng, _ := newEngine(t, echo)
	collector := metrics.NewCollector("analyst")
	healthy := true
	h := New(eng, func(o *Options) {
		o.Metrics = collector
		o.Checks = map[string]Checker{
			"database": func(context.Context) error {
				if healthy {
					return nil
				}
				return errors.New("connection refused")
			},
		}
	}).Handler()

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	healthy = false
	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `analyst_http_requests_total{method="GET",path="/healthz",status="503"}`)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	eng, _ := newEngine(t, echo)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(eng).ListenAndServe(ctx, "127.0.0.1:0", time.Second, time.Second, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
