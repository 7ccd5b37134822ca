package main

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/analystmesh"
	"github.com/hupe1980/analystmesh/config"
	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/database"
	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/flow"
	"github.com/hupe1980/analystmesh/internal/metrics"
	"github.com/hupe1980/analystmesh/internal/telemetry"
	"github.com/hupe1980/analystmesh/logging"
	"github.com/hupe1980/analystmesh/model"
	"github.com/hupe1980/analystmesh/model/anthropic"
	"github.com/hupe1980/analystmesh/model/openai"
	"github.com/hupe1980/analystmesh/session"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	db        *database.Manager
	redis     *redis.Client
	metrics   *metrics.Collector
	telemetry *telemetry.Providers
	mesh      *analystmesh.AnalystMesh
	closers   []func(ctx context.Context) error
}

func loadConfig(path string) (*config.Config, logging.Logger, error) {
	cfg, err := config.NewLoader().WithConfigPath(path).Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Backend: cfg.Log.Backend,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openDatabase(cfg config.DatabaseConfig, logger logging.Logger) (*database.Manager, error) {
	return database.Open(func(o *database.Options) {
		o.Driver = cfg.Driver
		o.DSN = cfg.DSN
		o.MaxOpenConns = cfg.MaxOpenConns
		o.MaxIdleConns = cfg.MaxIdleConns
		o.ConnMaxLifetime = cfg.ConnMaxLifetime
		o.Logger = logger
	})
}

// newApp wires the analyst from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewCollector("analyst")}

	tp, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		logger.Warn("telemetry.init.failed", "error", err.Error())
	} else {
		a.telemetry = tp
		a.closers = append(a.closers, tp.Shutdown)
	}

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	sink, err := a.sessionSink(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	writer := session.NewWriter(sink, func(o *session.WriterOptions) {
		o.MaxTries = uint(cfg.Session.PersistRetries)
		o.QueueSize = cfg.Session.WriterQueue
		o.Logger = logger
		o.OnResult = func(_ core.SessionRecord, _ int, err error) { a.metrics.RecordPersist(err) }
	})

	llm, err := newModel(cfg.LLM)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.mesh = analystmesh.New(llm, db, func(o *analystmesh.Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrentSessions: cfg.Session.MaxConcurrent,
			SessionTimeout:        cfg.Session.Timeout,
			MaxInteractions:       cfg.Session.MaxInteractions,
			MaxConsecutiveReplans: cfg.Session.MaxConsecutiveReplans,
			MaxModelCalls:         cfg.Session.MaxModelCalls,
		}
		if cfg.Session.CycleDetection {
			o.CycleDetector = flow.AnyOf(flow.ImmediateRepeat{}, flow.AlternatingPair{Window: cfg.Session.CycleWindow})
		} else {
			o.DisableCycleDetection = true
		}
		o.FallbackTemperature = cfg.LLM.FallbackTemperature
		o.Schema = db.DatabaseModel()
		o.DataDir = cfg.DataDir
		o.Sink = sink
		o.Writer = writer
		o.Metrics = a.metrics
		o.Logger = logger
	})
	// The mesh drains the writer and must close before the database.
	a.closers = append(a.closers, a.mesh.Close)
	return a, nil
}

func (a *app) sessionSink(ctx context.Context) (core.SessionSink, error) {
	switch a.cfg.Session.Sink {
	case "memory":
		return session.NewInMemorySink(), nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, func(context.Context) error { return a.redis.Close() })
		sink := session.NewRedisSink(a.redis, func(o *session.RedisOptions) { o.KeyPrefix = a.cfg.Redis.KeyPrefix })
		if err := sink.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis session sink: %w", err)
		}
		return sink, nil
	default:
		sink := session.NewGormSink(a.db.DB())
		if err := sink.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate session table: %w", err)
		}
		return sink, nil
	}
}

func newModel(cfg config.LLMConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model
			o.BaseURL = cfg.BaseURL
			o.APIKey = cfg.APIKey
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.BaseURL = cfg.BaseURL
			o.APIKey = cfg.APIKey
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
