package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Job is a named unit of scheduled work. Run must honor ctx cancellation.
type Job interface {
	Type() string
	Run(ctx context.Context) error
}

type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

func (r *Registry) Register(j Job) error {
	if j == nil {
		return fmt.Errorf("nil job")
	}
	t := j.Type()
	if t == "" {
		return fmt.Errorf("job Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[t]; exists {
		return fmt.Errorf("job already registered for job_type=%s", t)
	}
	r.jobs[t] = j
	return nil
}

func (r *Registry) Get(jobType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobType]
	return j, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.jobs))
	for t := range r.jobs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
