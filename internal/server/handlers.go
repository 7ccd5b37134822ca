package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/tool"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the result of a session.
type AskResponse struct {
	SessionID    string   `json:"session_id,omitempty"`
	Status       string   `json:"status"`
	Answer       string   `json:"answer,omitempty"`
	SQL          string   `json:"sql,omitempty"`
	Insights     string   `json:"insights,omitempty"`
	Agents       []string `json:"agents,omitempty"`
	Steps        int      `json:"steps"`
	Error        string   `json:"error,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
	Interactions int      `json:"interactions"`
}

// FileResponse describes an uploaded data file.
type FileResponse struct {
	core.DataFile
	Ref     string   `json:"ref"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// statusRunning reports a session that has not finished yet.
const statusRunning = "running"

type sessionGetter interface {
	Get(ctx context.Context, sessionID string) (core.SessionRecord, error)
}

// decodeAsk reads an AskRequest and writes the error response when the body
// is unusable.
func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (AskRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res := s.engine.Run(r.Context(), req.Question)
	resp := AskResponse{
		SessionID:    res.SessionID,
		Status:       string(core.StatusCompleted),
		Answer:       res.Answer(),
		SQL:          res.State.SQL,
		Insights:     res.State.Insights,
		Agents:       res.State.VisitedAgents(),
		Steps:        len(res.Record.SessionHistory),
		Interactions: len(res.State.InteractionsHistory),
		DurationMS:   time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		resp.Status = string(core.StatusFailed)
		resp.Error = res.Err.Error()
		s.opts.Logger.Warn("http.ask.failed", "session_id", res.SessionID, "error", res.Err.Error())
	}
	writeJSON(w, askStatus(res.Err), resp)
}

// handleStart runs a session in the background and returns its id at once,
// so the caller can poll GET /v1/sessions/{id} or cancel it.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}

	id, results, err := s.engine.Start(context.WithoutCancel(r.Context()), req.Question)
	if err != nil {
		writeError(w, askStatus(err), err.Error())
		return
	}
	go func() {
		if res := <-results; res.Err != nil {
			s.opts.Logger.Warn("http.session.failed", "session_id", id, "error", res.Err.Error())
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": statusRunning})
}

func askStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrEmptyRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrSessionCancelled), errors.Is(err, context.Canceled):
		return http.StatusConflict
	}
	var incomplete *core.IncompleteSessionError
	var output *core.AgentOutputError
	if errors.As(err, &incomplete) || errors.As(err, &output) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusUnsupportedMediaType, "only .csv files are supported")
		return
	}
	tbl, err := tool.ParseCSV(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid csv: "+err.Error())
		return
	}

	df, err := s.engine.DataFiles().Put(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.opts.Logger.Info("http.file.uploaded", "file_id", df.ID, "name", df.Name, "rows", tbl.Len())
	writeJSON(w, http.StatusCreated, FileResponse{
		DataFile: df,
		Ref:      core.DataFileRefPrefix + df.ID,
		Columns:  tbl.Columns,
		Rows:     tbl.Len(),
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.engine.DataFiles().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []core.DataFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if slices.Contains(s.engine.ActiveSessions(), id) {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": statusRunning})
		return
	}

	getter, ok := s.engine.Sink().(sessionGetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "session sink does not support lookups")
		return
	}
	rec, err := getter.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Cancel(id); err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": "cancelling"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.opts.Checks[name](ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}
