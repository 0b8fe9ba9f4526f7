// Package api serves simulation runs over HTTP.
//
// Routes:
//
//	GET    /healthz               liveness and build information
//	GET    /metrics               in-process counters (when configured)
//	POST   /v1/runs               run a scenario, store and return the record
//	GET    /v1/runs               list stored runs, newest first
//	GET    /v1/runs/{id}          fetch one record
//	GET    /v1/runs/{id}/output   the rendered output alone
//	DELETE /v1/runs/{id}          delete a record
//
// POST /v1/runs accepts either a JSON body shaped like pipeline.Options or,
// with Content-Type application/toml, a scenario file; the format and
// strictness then come from the query string. Unset scenario fields keep
// their defaults.
//
// Errors are returned as {"error": {"code": ..., "message": ...}} with the
// status derived from the error code.
package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rodysim/rody/pkg/buildinfo"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/observability"
	"github.com/rodysim/rody/pkg/pipeline"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sink"
	"github.com/rodysim/rody/pkg/store"
)

// Defaults for Config.
const (
	DefaultMaxSteps     = 1_000_000
	DefaultMaxBodyBytes = 1 << 20
	DefaultRunTimeout   = 30 * time.Second
)

// Config configures a Server.
type Config struct {
	Runner *pipeline.Runner
	Store  store.Store
	Logger *log.Logger
	// Counters, when set, are exposed on /metrics.
	Counters *observability.Counters

	MaxSteps     int
	MaxBodyBytes int64
	RunTimeout   time.Duration
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	runner   *pipeline.Runner
	store    store.Store
	logger   *log.Logger
	counters *observability.Counters

	maxSteps     int
	maxBodyBytes int64
	runTimeout   time.Duration

	router chi.Router
}

// New builds a server. A nil Runner gets an uncached runner, a nil Store a
// MemoryStore.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	s := &Server{
		runner:       cfg.Runner,
		store:        cfg.Store,
		logger:       cfg.Logger,
		counters:     cfg.Counters,
		maxSteps:     cfg.MaxSteps,
		maxBodyBytes: cfg.MaxBodyBytes,
		runTimeout:   cfg.RunTimeout,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Post("/v1/runs", s.handleCreateRun)
	r.Get("/v1/runs", s.handleListRuns)
	r.Get("/v1/runs/{id}", s.handleGetRun)
	r.Get("/v1/runs/{id}/output", s.handleGetOutput)
	r.Delete("/v1/runs/{id}", s.handleDeleteRun)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
			Code:    string(errors.ErrCodeUnsupported),
			Message: r.Method + " not allowed on " + r.URL.Path,
		}})
	})
	return r
}

// instrument logs each request and reports it to the HTTP hooks.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, route)
		hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))

		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.counters == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "metrics are not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	opts, err := s.decodeRun(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := opts.Scenario.Finite(); err != nil {
		writeError(w, err)
		return
	}
	if opts.Scenario.Timeline.Steps > s.maxSteps {
		writeError(w, errors.New(errors.ErrCodeInvalidTimeline,
			"step count %d exceeds the server limit of %d", opts.Scenario.Timeline.Steps, s.maxSteps))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	res, err := s.runner.Execute(ctx, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	rec := store.NewRecord()
	rec.Scenario = opts.Scenario
	rec.Format = res.Format
	rec.Summary = res.Summary
	rec.Output = string(res.Output)
	rec.CacheHit = res.CacheHit
	rec.Warnings = res.Warnings
	if err := s.store.Put(r.Context(), rec); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "store run"))
		return
	}

	w.Header().Set("Location", "/v1/runs/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// decodeRun reads a run request from a JSON or TOML body.
func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (pipeline.Options, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/toml" {
		sc, err := scenario.Parse(body)
		if err != nil {
			return pipeline.Options{}, err
		}
		q := r.URL.Query()
		return pipeline.Options{
			Scenario: sc,
			Format:   sink.Format(q.Get("format")),
			Strict:   queryBool(q.Get("strict")),
			Refresh:  queryBool(q.Get("refresh")),
		}, nil
	}

	opts := pipeline.Options{Scenario: scenario.Default()}
	if len(body) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(body, &opts); err != nil {
		return pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	return opts, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, err)
		return
	}

	recs, err := s.store.List(r.Context(), store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "list runs"))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Runs []*store.Record `json:"runs"`
	}{recs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(rec.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, rec.Output)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !store.ValidID(id) {
		writeError(w, errors.New(errors.ErrCodeNotFound, "run %q not found", id))
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "delete run"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(r *http.Request) (*store.Record, error) {
	id := chi.URLParam(r, "id")
	if !store.ValidID(id) {
		return nil, errors.New(errors.ErrCodeNotFound, "run %q not found", id)
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get run")
	}
	if rec == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "run %q not found", id)
	}
	return rec, nil
}

// =============================================================================
// Encoding helpers
// =============================================================================

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeNotFound), errors.Is(err, errors.ErrCodeFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeCanceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrCodeUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, StatusFor(err), errorBody{Error: errorDetail{
		Code:    string(code),
		Message: errors.UserMessage(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contentType(f sink.Format) string {
	switch f {
	case sink.FormatJSON:
		return "application/x-ndjson"
	case sink.FormatCSV:
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "invalid integer %q", v)
	}
	return n, nil
}
