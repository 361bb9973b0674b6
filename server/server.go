// Package server exposes project generation over HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"repogen/generator"
	"repogen/graph"
	"repogen/manifest"
	"repogen/pipeline"
	"repogen/planner"
	"repogen/project"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultMaxRuns      = 256
)

type Options struct {
	// OutputDir holds one directory per project slug.
	OutputDir string
	// Exclude drops matching paths from planned manifests (gitignore syntax).
	Exclude []string
	// MaxBodyBytes caps request bodies and WebSocket messages. Defaults to 1 MiB.
	MaxBodyBytes int64
	// MaxRuns is the number of finished runs kept for GET /api/runs/{id}.
	// The oldest are dropped first. Defaults to 256.
	MaxRuns int
	Logger  zerolog.Logger
}

type Server struct {
	llm      generator.LLMClient
	pipeOpts pipeline.Options
	opts     Options
	store    *runStore
	upgrader websocket.Upgrader
}

// New returns a server generating with llm. pipeOpts.Observer is replaced per
// run.
func New(llm generator.LLMClient, pipeOpts pipeline.Options, opts Options) (*Server, error) {
	if llm == nil {
		return nil, errors.New("llm client required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = defaultMaxRuns
	}
	return &Server{
		llm:      llm,
		pipeOpts: pipeOpts,
		opts:     opts,
		store:    newStore(opts.MaxRuns),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/generate/ws", s.handleGenerateWS)
	mux.HandleFunc("POST /api/plan", s.handlePlan)
	mux.HandleFunc("POST /api/project/draft", s.handleDraft)
	mux.HandleFunc("POST /api/project/improve", s.handleImprove)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s.logMiddleware(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.opts.Logger.Info().Str("addr", addr).Msg("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Generation ---

type generateReq struct {
	Project project.Spec `json:"project"`
	// Files skips planning when present.
	Files []manifest.FileSpec `json:"files,omitempty"`
}

type generateResp struct {
	Message    string             `json:"message"`
	RunID      string             `json:"runId,omitempty"`
	Path       string             `json:"path,omitempty"`
	Files      []string           `json:"files"`
	Changes    []pipeline.Change  `json:"changes,omitempty"`
	Unresolved []graph.Unresolved `json:"unresolved,omitempty"`
	Error      string             `json:"error,omitempty"`
	Failed     string             `json:"failed,omitempty"`
	Errors     any                `json:"errors,omitempty"`
}

// generate runs one request to completion and returns the HTTP status and
// body. obs, when not nil, also receives the run's events.
func (s *Server) generate(ctx context.Context, req generateReq, obs pipeline.Observer) (int, generateResp) {
	if err := req.Project.Validate(); err != nil {
		var verr *project.ValidationError
		resp := generateResp{Message: "Invalid project specification.", Error: err.Error()}
		if errors.As(err, &verr) {
			resp.Errors = verr.Fields
		}
		return http.StatusBadRequest, resp
	}
	slug, err := req.Project.Slug()
	if err != nil {
		return http.StatusBadRequest, generateResp{Message: "Project name is invalid or results in an empty slug."}
	}
	projectContext, err := req.Project.ContextString()
	if err != nil {
		return http.StatusInternalServerError, generateResp{Message: "Failed to encode project.", Error: err.Error()}
	}
	root := filepath.Join(s.opts.OutputDir, slug)

	r, ok := s.store.start(req.Project.ProjectName, root)
	if !ok {
		return http.StatusConflict, generateResp{Message: fmt.Sprintf("Project '%s' is already being generated.", req.Project.ProjectName), Path: root}
	}
	defer s.store.release(r)
	logger := zerolog.Ctx(ctx).With().Str("run", r.id()).Logger()
	ctx = logger.WithContext(ctx)

	m := manifest.New(req.Files...).Normalize()
	if m.Len() == 0 {
		planned, err := planner.Plan(ctx, s.llm, projectContext)
		if err != nil {
			r.finish(nil, err)
			return http.StatusInternalServerError, generateResp{Message: "Failed to plan the project structure.", RunID: r.id(), Error: err.Error()}
		}
		m = planned
	}
	if len(s.opts.Exclude) > 0 {
		var dropped []string
		m, dropped = manifest.Exclude(m, s.opts.Exclude)
		if len(dropped) > 0 {
			logger.Info().Strs("paths", dropped).Msg("excluded files from manifest")
		}
	}

	opts := s.pipeOpts
	opts.Observer = fanout{r, obs}
	p, err := pipeline.New(s.llm, opts)
	if err != nil {
		r.finish(nil, err)
		return http.StatusInternalServerError, generateResp{Message: "Failed to start generation.", RunID: r.id(), Error: err.Error()}
	}

	res, err := p.Run(ctx, m, projectContext, root)
	r.finish(res, err)
	if err != nil {
		status, msg := http.StatusInternalServerError, "Failed to generate project."
		if errors.Is(err, graph.ErrCycle) || isManifestError(err) {
			status, msg = http.StatusBadRequest, "Invalid project structure."
		}
		resp := generateResp{Message: msg, RunID: r.id(), Path: root, Files: []string{}, Error: err.Error()}
		if res != nil {
			resp.Files = append(resp.Files, res.Written...)
			resp.Failed = res.Failed
		}
		return status, resp
	}
	return http.StatusCreated, generateResp{
		Message:    fmt.Sprintf("Project '%s' generated successfully!", req.Project.ProjectName),
		RunID:      r.id(),
		Path:       res.OutputRoot,
		Files:      res.Written,
		Changes:    res.Changes,
		Unresolved: res.Unresolved,
	}
}

func isManifestError(err error) bool {
	return errors.Is(err, manifest.ErrEmptyPath) ||
		errors.Is(err, manifest.ErrDuplicatePath) ||
		errors.Is(err, manifest.ErrInvalidPath)
}

// fanout forwards events to every non-nil observer.
type fanout []pipeline.Observer

func (f fanout) OnEvent(e pipeline.Event) {
	for _, o := range f {
		if o != nil {
			o.OnEvent(e)
		}
	}
}

// --- Handlers ---

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if !s.decode(w, r, &req) {
		return
	}
	status, resp := s.generate(r.Context(), req, nil)
	writeJSON(w, status, resp)
}

type planResp struct {
	Files []manifest.FileSpec `json:"files"`
	Order []string            `json:"order"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var spec project.Spec
	if !s.decode(w, r, &spec) {
		return
	}
	if err := spec.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, generateResp{Message: "Invalid project specification.", Error: err.Error()})
		return
	}
	projectContext, err := spec.ContextString()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, generateResp{Message: "Failed to encode project.", Error: err.Error()})
		return
	}
	m, err := planner.Plan(r.Context(), s.llm, projectContext)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, generateResp{Message: "Failed to plan the project structure.", Error: err.Error()})
		return
	}
	order, err := graph.Sort(m)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, generateResp{Message: "Planned structure is not orderable.", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, planResp{Files: m.Files, Order: order.Paths()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.store.get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, generateResp{Message: "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run.snapshot())
}

// --- Helpers ---

// decode reads a JSON body of at most MaxBodyBytes into v. On failure it
// writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, generateResp{Message: "Request body too large.", Error: err.Error()})
		return false
	}
	writeJSON(w, http.StatusBadRequest, generateResp{Message: "Invalid request body.", Error: err.Error()})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// logMiddleware attaches the server logger to the request context and logs
// one line per request.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.opts.Logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))
		logger.Info().Int("status", rec.status).Dur("elapsed", time.Since(start)).Msg("request")
	})
}
