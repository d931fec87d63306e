// Package jobs runs long operations in the background and keeps a status
// record per run that callers poll by id.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle of a job.
type State string

const (
	StatePending  State = "pending"
	StateComplete State = "complete"
	StateError    State = "error"
)

// Status is the polled record of one job. It is replaced as a whole on
// every transition and never mutated in place.
type Status struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      State      `json:"state"`
	Error      string     `json:"error,omitempty"`
	Result     any        `json:"result,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Func is the work of a job. Its result is exposed in the status record.
type Func func(ctx context.Context) (any, error)

// Registry tracks every job started through it.
type Registry struct {
	ctx  context.Context
	log  zerolog.Logger
	mu   sync.RWMutex
	jobs map[string]Status
	wg   sync.WaitGroup
}

// NewRegistry returns a registry whose jobs run under ctx.
func NewRegistry(ctx context.Context, log zerolog.Logger) *Registry {
	return &Registry{
		ctx:  ctx,
		log:  log.With().Str("component", "jobs").Logger(),
		jobs: make(map[string]Status),
	}
}

// Start runs fn in its own goroutine and returns the new job's id. The job
// is pending until fn returns.
func (r *Registry) Start(kind string, fn Func) string {
	id := uuid.NewString()
	r.set(Status{ID: id, Kind: kind, State: StatePending, StartedAt: time.Now()})
	r.log.Info().Str("job", id).Str("kind", kind).Msg("job started")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		result, err := run(r.ctx, fn)

		st, _ := r.Get(id)
		now := time.Now()
		st.FinishedAt = &now
		st.Result = result
		if err != nil {
			st.State = StateError
			st.Error = err.Error()
			r.log.Error().Err(err).Str("job", id).Str("kind", kind).Msg("job failed")
		} else {
			st.State = StateComplete
			r.log.Info().Str("job", id).Str("kind", kind).Dur("elapsed", now.Sub(st.StartedAt)).Msg("job complete")
		}
		r.set(st)
	}()
	return id
}

// run calls fn, turning a panic into an error so one job cannot take the
// process down.
func run(ctx context.Context, fn Func) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx)
}

// Get returns the status of job id.
func (r *Registry) Get(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.jobs[id]
	return st, ok
}

// List returns every known job.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.jobs))
	for _, st := range r.jobs {
		out = append(out, st)
	}
	return out
}

// Wait blocks until every started job has finished.
func (r *Registry) Wait() { r.wg.Wait() }

func (r *Registry) set(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[st.ID] = st
}
