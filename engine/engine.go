package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/analystmesh/artifact"
	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/flow"
	"github.com/hupe1980/analystmesh/internal/metrics"
	"github.com/hupe1980/analystmesh/internal/telemetry"
	"github.com/hupe1980/analystmesh/logging"
	"github.com/hupe1980/analystmesh/session"
)

// Config defines the operational limits of the Engine.
type Config struct {
	// MaxConcurrentSessions bounds the sessions running at once. Further
	// sessions wait for a slot. Zero means unlimited.
	MaxConcurrentSessions int

	// SessionTimeout bounds the runtime of one session once it holds a slot.
	// Zero disables the timeout.
	SessionTimeout time.Duration

	// MaxInteractions caps interactions_history; reaching it forces the
	// answer summarizer. The cap cannot be disabled: non-positive values
	// fall back to DefaultConfig.MaxInteractions.
	MaxInteractions int

	// MaxConsecutiveReplans bounds router re-invocations without progress.
	MaxConsecutiveReplans int

	// MaxModelCalls bounds the model calls of one session. Zero means unlimited.
	MaxModelCalls int
}

// DefaultConfig provides the default limits.
var DefaultConfig = Config{
	MaxConcurrentSessions: 10,
	SessionTimeout:        2 * time.Minute,
	MaxInteractions:       flow.DefaultMaxInteractions,
	MaxConsecutiveReplans: 2,
	MaxModelCalls:         20,
}

// Options configures an Engine.
type Options struct {
	Config Config

	// CycleDetector guards the routing gate against loops. Defaults to
	// flow.DefaultCycleDetector(); set to nil to disable detection.
	CycleDetector flow.CycleDetector

	// Sink receives the session records. Defaults to an in-memory sink.
	// Ignored when Writer is set.
	Sink core.SessionSink

	// Writer persists records asynchronously. Defaults to a writer on Sink.
	Writer *session.Writer

	// DataFiles holds user uploaded data files. Defaults to an in-memory store.
	DataFiles core.DataFileStore

	Callbacks *CallbackManager
	Metrics   *metrics.Collector
	Tracer    trace.Tracer

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Result is the outcome of one session.
type Result struct {
	SessionID string
	State     core.State
	Record    core.SessionRecord
	Err       error
}

// Answer returns the final answer, empty when the session failed before
// producing one.
func (r Result) Answer() string { return r.State.Answer }

// Engine hosts concurrent analyst sessions. It is safe for concurrent use.
type Engine struct {
	config    Config
	gate      *flow.Gate
	sink      core.SessionSink
	writer    *session.Writer
	dataFiles core.DataFileStore
	callbacks *CallbackManager
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    logging.Logger

	agents map[string]core.Agent
	mu     sync.RWMutex

	sem *semaphore.Weighted

	active   map[string]context.CancelCauseFunc
	activeMu sync.Mutex

	closeMu  sync.RWMutex
	closed   bool
	sessions sync.WaitGroup
}

// New creates an Engine. Register the agents before running sessions; the
// router and the answer summarizer are required.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		CycleDetector: flow.DefaultCycleDetector(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Config.MaxInteractions <= 0 {
		opts.Logger.Warn("engine.config.max_interactions_defaulted",
			"configured", opts.Config.MaxInteractions, "max_interactions", DefaultConfig.MaxInteractions)
		opts.Config.MaxInteractions = DefaultConfig.MaxInteractions
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer()
	}
	if opts.DataFiles == nil {
		opts.DataFiles = artifact.NewInMemoryStore()
	}
	if opts.Writer == nil {
		if opts.Sink == nil {
			opts.Sink = session.NewInMemorySink()
		}
		collector, logger := opts.Metrics, opts.Logger
		opts.Writer = session.NewWriter(opts.Sink, func(o *session.WriterOptions) {
			o.Logger = logger
			o.OnResult = func(_ core.SessionRecord, _ int, err error) { collector.RecordPersist(err) }
		})
	}

	e := &Engine{
		config:    opts.Config,
		sink:      opts.Sink,
		writer:    opts.Writer,
		dataFiles: opts.DataFiles,
		callbacks: opts.Callbacks,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    opts.Logger,
		agents:    make(map[string]core.Agent),
		active:    make(map[string]context.CancelCauseFunc),
	}
	if opts.Config.MaxConcurrentSessions > 0 {
		e.sem = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentSessions))
	}
	e.gate = flow.NewGate(func(o *flow.GateOptions) {
		o.MaxInteractions = opts.Config.MaxInteractions
		o.MaxConsecutiveReplans = opts.Config.MaxConsecutiveReplans
		o.CycleDetector = opts.CycleDetector
		o.Known = e.isRegistered
		o.Logger = opts.Logger
	})
	return e
}

// Register adds agents to the registry, replacing agents with the same name.
func (e *Engine) Register(agents ...core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range agents {
		e.agents[a.Name()] = a
	}
}

// GetAgent retrieves a registered agent by name. Aliases such as
// general_question resolve to their canonical agent.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[core.CanonicalAgent(name)]
	return a, ok
}

// Agents returns the registered agent names, sorted.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.agents))
	for n := range e.agents {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (e *Engine) isRegistered(name string) bool {
	_, ok := e.GetAgent(name)
	return ok
}

// DataFiles returns the data file store shared by all sessions.
func (e *Engine) DataFiles() core.DataFileStore { return e.dataFiles }

// Sink returns the configured sink, nil when a custom Writer was supplied.
func (e *Engine) Sink() core.SessionSink { return e.sink }

// Flush waits until every finished session has been handed to the sink.
func (e *Engine) Flush(ctx context.Context) error { return e.writer.Flush(ctx) }

// Run executes one session for request and blocks until it ends.
func (e *Engine) Run(ctx context.Context, request string) Result {
	_, results, err := e.Start(ctx, request)
	if err != nil {
		return Result{Err: err}
	}
	return <-results
}

// Start launches a session and returns its id and a channel delivering the
// Result once. The session waits for a free slot when MaxConcurrentSessions
// sessions are running.
func (e *Engine) Start(ctx context.Context, request string) (string, <-chan Result, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", nil, ErrEmptyRequest
	}
	for _, required := range []string{core.AgentRouter, core.AgentAnswerSummarizer} {
		if !e.isRegistered(required) {
			return "", nil, fmt.Errorf("%w: %s is not registered", core.ErrUnknownAgent, required)
		}
	}

	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return "", nil, ErrEngineClosed
	}

	sessionID := uuid.NewString()
	runCtx, cancel := context.WithCancelCause(ctx)

	e.activeMu.Lock()
	e.active[sessionID] = cancel
	e.activeMu.Unlock()

	results := make(chan Result, 1)
	e.sessions.Add(1)
	go func() {
		defer e.sessions.Done()
		defer func() {
			e.activeMu.Lock()
			delete(e.active, sessionID)
			e.activeMu.Unlock()
			cancel(nil)
		}()
		results <- e.runSession(runCtx, sessionID, request)
		close(results)
	}()

	return sessionID, results, nil
}

// Cancel aborts a running or waiting session. The session fails with
// ErrSessionCancelled and its partial record is persisted.
func (e *Engine) Cancel(sessionID string) error {
	e.activeMu.Lock()
	cancel, ok := e.active[sessionID]
	e.activeMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	cancel(ErrSessionCancelled)
	return nil
}

// ActiveSessions returns the ids of sessions that have not finished.
func (e *Engine) ActiveSessions() []string {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close stops accepting sessions, waits for running sessions and drains the
// persistence writer.
func (e *Engine) Close(ctx context.Context) error {
	e.closeMu.Lock()
	e.closed = true
	e.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.writer.Close(ctx)
}

func (e *Engine) runSession(ctx context.Context, sessionID, request string) Result {
	started := time.Now()
	logger := e.logger
	if al, ok := logger.(*logging.AnalystLogger); ok {
		logger = al.WithSession(sessionID, "")
	}

	ctx, span := e.tracer.Start(ctx, "analyst.session", trace.WithAttributes(sessionAttrs(sessionID)...))
	defer span.End()

	c := newCoordinator(e, sessionID, request, logger)

	var err error
	if e.sem != nil {
		if err = e.sem.Acquire(ctx, 1); err != nil {
			err = sessionError(ctx, err)
		} else {
			defer e.sem.Release(1)
		}
	}

	if err == nil {
		e.metrics.SessionStarted()
		sessCtx := ctx
		if e.config.SessionTimeout > 0 {
			var cancel context.CancelFunc
			sessCtx, cancel = context.WithTimeoutCause(ctx, e.config.SessionTimeout, core.ErrSessionTimeout)
			defer cancel()
		}
		err = c.run(sessCtx)
	}

	rec := c.record(started, time.Now(), err)
	if err != nil {
		recordSpanError(span, err)
		if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{
			SessionID: sessionID,
			Step:      c.step,
			State:     c.state,
			Err:       err,
		}); cbErr != nil {
			logger.Warn("session.callback.failed", "type", string(CallbackOnError), "error", cbErr.Error())
		}
	}
	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnSessionEnd, &CallbackContext{
		SessionID: sessionID,
		Step:      c.step,
		State:     c.state,
		Err:       err,
		Record:    &rec,
	}); cbErr != nil {
		logger.Warn("session.callback.failed", "type", string(CallbackOnSessionEnd), "error", cbErr.Error())
	}

	if qErr := e.writer.Enqueue(context.WithoutCancel(ctx), rec); qErr != nil {
		logger.Error("session.persist.enqueue_failed", "session_id", sessionID, "error", qErr.Error())
	}

	duration := time.Since(started)
	e.metrics.RecordSession(string(rec.Status), duration)
	if al, ok := logger.(*logging.AnalystLogger); ok {
		al.LogSession(len(c.history), duration, err)
	} else if err != nil {
		logger.Error("session.failed", "session_id", sessionID, "steps", len(c.history), "error", err.Error())
	} else {
		logger.Info("session.completed", "session_id", sessionID, "steps", len(c.history), "duration_ms", duration.Milliseconds())
	}

	return Result{
		SessionID: sessionID,
		State:     c.state,
		Record:    rec,
		Err:       err,
	}
}
