package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/internal/metrics"
	"github.com/hupe1980/analystmesh/logging"
)

const defaultMaxBodyBytes = 10 << 20

// Engine is the part of engine.Engine the server needs.
type Engine interface {
	Run(ctx context.Context, request string) engine.Result
	Start(ctx context.Context, request string) (string, <-chan engine.Result, error)
	Cancel(sessionID string) error
	ActiveSessions() []string
	DataFiles() core.DataFileStore
	Sink() core.SessionSink
}

// Checker reports the health of a dependency.
type Checker func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Metrics *metrics.Collector
	// Checks are run by /healthz, keyed by dependency name.
	Checks       map[string]Checker
	MaxBodyBytes int64
	Logger       logging.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine Engine
	opts   Options
	router chi.Router
}

// New creates a Server for eng.
func New(eng Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		MaxBodyBytes: defaultMaxBodyBytes,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{engine: eng, opts: opts}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/files", s.handleUpload)
		r.Get("/files", s.handleListFiles)
		r.Post("/sessions", s.handleStart)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/cancel", s.handleCancel)
	})
	return r
}

// instrument records request metrics under the matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.opts.Metrics.RecordHTTPRequest(r.Method, pattern, status, time.Since(start))
		s.opts.Logger.Debug("http.request",
			"method", r.Method,
			"path", pattern,
			"status", status,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.opts.Logger.Info("server.shutdown")
	return srv.Shutdown(shutdownCtx)
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
