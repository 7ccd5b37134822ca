// Package analystmesh provides a high-level façade that assembles the analyst
// team (router, SQL writer, insight generator, answer summarizer and simple
// QA) on top of the engine. Most applications interact with this package by:
//  1. Creating an AnalystMesh via New() with a generation backend and a
//     database querier
//  2. Asking questions synchronously (Ask) or starting sessions (Start)
//  3. Closing the mesh to drain pending session persistence
//
// Defaults are safe for local development and testing: records are kept in
// memory and logging is disabled. Production deployments supply a durable
// session sink, a metrics collector and a structured logger.
package analystmesh

import (
	"context"

	"github.com/hupe1980/analystmesh/agent"
	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/flow"
	"github.com/hupe1980/analystmesh/internal/metrics"
	"github.com/hupe1980/analystmesh/logging"
	"github.com/hupe1980/analystmesh/model"
	"github.com/hupe1980/analystmesh/session"
	"github.com/hupe1980/analystmesh/tool"
)

// Options configures the AnalystMesh instance.
type Options struct {
	// EngineConfig bounds sessions (interaction cap, timeout, concurrency).
	EngineConfig engine.Config

	// CycleDetector overrides the routing gate's loop guard. Nil keeps the
	// default; use DisableCycleDetection to turn detection off.
	CycleDetector         flow.CycleDetector
	DisableCycleDetection bool

	// FallbackModel serves the second structured-output attempt. Nil reuses
	// the primary model.
	FallbackModel       model.Model
	FallbackTemperature float64

	// Schema describes the analytics database to the data agents.
	Schema string

	// DataDir restricts local files readable by the insight generator.
	DataDir string

	// MaxRows truncates tool results.
	MaxRows int

	// Sink persists session records (defaults to in-memory).
	Sink core.SessionSink
	// Writer overrides the persistence writer built on Sink.
	Writer *session.Writer
	// DataFiles stores uploaded files (defaults to in-memory).
	DataFiles core.DataFileStore

	Callbacks *engine.CallbackManager
	Metrics   *metrics.Collector

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AnalystMesh is the high-level façade aggregating the engine and the agents.
type AnalystMesh struct {
	engine *engine.Engine
}

// New creates an AnalystMesh answering questions with llm over the database
// reachable through q.
func New(llm model.Model, q tool.Querier, optFns ...func(o *Options)) *AnalystMesh {
	opts := Options{
		EngineConfig:        engine.DefaultConfig,
		FallbackTemperature: agent.DefaultFallbackTemperature,
		MaxRows:             500,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Metrics != nil {
		llm = opts.Metrics.InstrumentModel(llm)
		if opts.FallbackModel != nil {
			opts.FallbackModel = opts.Metrics.InstrumentModel(opts.FallbackModel)
		}
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		if opts.DisableCycleDetection {
			o.CycleDetector = nil
		} else if opts.CycleDetector != nil {
			o.CycleDetector = opts.CycleDetector
		}
		o.Sink = opts.Sink
		o.Writer = opts.Writer
		o.DataFiles = opts.DataFiles
		o.Callbacks = opts.Callbacks
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})

	agentOpts := func(o *agent.Options) {
		o.Schema = opts.Schema
		o.Fallback = agent.FallbackOptions{Model: opts.FallbackModel, Temperature: opts.FallbackTemperature}
	}
	dbTool := tool.NewDatabaseTool(q, func(o *tool.DatabaseToolOptions) { o.MaxRows = opts.MaxRows })
	fileTool := tool.NewFileTool(func(o *tool.FileToolOptions) {
		o.BaseDir = opts.DataDir
		o.MaxRows = opts.MaxRows
	})

	eng.Register(
		agent.NewRouter(llm, agentOpts),
		agent.NewSQLWriter(llm, agentOpts),
		agent.NewInsightGenerator(llm, dbTool, fileTool, agentOpts),
		agent.NewAnswerSummarizer(llm, agentOpts),
		agent.NewSimpleQA(llm, agentOpts),
	)

	return &AnalystMesh{engine: eng}
}

// Engine exposes the underlying engine, e.g. for the HTTP server.
func (m *AnalystMesh) Engine() *engine.Engine { return m.engine }

// Run executes one session and returns its full result.
func (m *AnalystMesh) Run(ctx context.Context, question string) engine.Result {
	return m.engine.Run(ctx, question)
}

// Start launches a session asynchronously.
func (m *AnalystMesh) Start(ctx context.Context, question string) (string, <-chan engine.Result, error) {
	return m.engine.Start(ctx, question)
}

// Ask is a synchronous helper returning only the answer and the session id.
func (m *AnalystMesh) Ask(ctx context.Context, question string) (answer, sessionID string, err error) {
	res := m.engine.Run(ctx, question)
	return res.Answer(), res.SessionID, res.Err
}

// Cancel aborts a running session.
func (m *AnalystMesh) Cancel(sessionID string) error { return m.engine.Cancel(sessionID) }

// Close waits for running sessions and drains session persistence.
func (m *AnalystMesh) Close(ctx context.Context) error { return m.engine.Close(ctx) }
