package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"repogen/pipeline"
)

type runStatus string

const (
	statusRunning   runStatus = "running"
	statusSucceeded runStatus = "succeeded"
	statusFailed    runStatus = "failed"
)

// runView is the JSON form of a run.
type runView struct {
	ID       string           `json:"id"`
	Project  string           `json:"project"`
	Root     string           `json:"root"`
	Status   runStatus        `json:"status"`
	Started  time.Time        `json:"started"`
	Finished *time.Time       `json:"finished,omitempty"`
	Events   []pipeline.Event `json:"events"`
	Result   *pipeline.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// run is the record of one generation request, kept for GET /api/runs/{id}.
type run struct {
	mu   sync.Mutex
	view runView
}

func (r *run) OnEvent(e pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Events = append(r.view.Events, e)
}

func (r *run) finish(res *pipeline.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.view.Finished = &now
	r.view.Result = res
	r.view.Status = statusSucceeded
	if err != nil {
		r.view.Status = statusFailed
		r.view.Error = err.Error()
	}
}

// snapshot copies the record so it can be encoded without holding the lock.
func (r *run) snapshot() runView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.view
	v.Events = append([]pipeline.Event(nil), r.view.Events...)
	return v
}

func (r *run) id() string { return r.view.ID }

func (r *run) root() string { return r.view.Root }

// runStore tracks runs by ID and the output roots currently being written.
// At most limit finished runs are retained; running ones are never dropped.
type runStore struct {
	mu       sync.Mutex
	runs     map[string]*run
	inflight map[string]string
	finished []string
	limit    int
}

func newStore(limit int) *runStore {
	return &runStore{runs: make(map[string]*run), inflight: make(map[string]string), limit: limit}
}

// start registers a run for root. It returns false when another run already
// owns root.
func (s *runStore) start(projectName, root string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[root]; busy {
		return nil, false
	}
	r := &run{view: runView{
		ID:      uuid.NewString(),
		Project: projectName,
		Root:    root,
		Status:  statusRunning,
		Started: time.Now(),
		Events:  []pipeline.Event{},
	}}
	s.runs[r.id()] = r
	s.inflight[root] = r.id()
	return r, true
}

// release frees r's output root and evicts the oldest finished runs beyond
// the retention limit.
func (s *runStore) release(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[r.root()] != r.id() {
		return
	}
	delete(s.inflight, r.root())
	s.finished = append(s.finished, r.id())
	for len(s.finished) > s.limit {
		delete(s.runs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *runStore) get(id string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}
