package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"

	"github.com/yungbote/perfinsight-backend/internal/jobs/runtime"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// Entry binds a registered job type to a cron spec. Specs carry a leading seconds field.
type Entry struct {
	JobType string
	Spec    string
	Timeout time.Duration
}

type Scheduler struct {
	log      *logger.Logger
	registry *runtime.Registry
	cron     *cron.Cron

	mu      sync.Mutex
	running map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(baseLog *logger.Logger, registry *runtime.Registry) *Scheduler {
	return &Scheduler{
		log:      baseLog.With("component", "Scheduler"),
		registry: registry,
		cron:     cron.New(),
		running:  map[string]bool{},
	}
}

// Add validates the entry against the registry and schedules it.
func (s *Scheduler) Add(e Entry) error {
	if _, ok := s.registry.Get(e.JobType); !ok {
		return fmt.Errorf("no job registered for job_type=%s", e.JobType)
	}
	if _, err := cron.Parse(e.Spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", e.JobType, e.Spec, err)
	}
	return s.cron.AddFunc(e.Spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			return
		}
		if err := s.RunOnce(ctx, e.JobType, e.Timeout); err != nil {
			s.log.Warn("scheduled job failed", "job_type", e.JobType, "error", err)
		}
	})
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.log.Info("Starting scheduler", "jobs", s.registry.Types())
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// RunOnce runs a job now. A run that overlaps a still-active run of the same type is skipped.
func (s *Scheduler) RunOnce(ctx context.Context, jobType string, timeout time.Duration) (err error) {
	job, ok := s.registry.Get(jobType)
	if !ok {
		return fmt.Errorf("no job registered for job_type=%s", jobType)
	}
	s.mu.Lock()
	if s.running[jobType] {
		s.mu.Unlock()
		s.log.Info("job still running; skipping tick", "job_type", jobType)
		return nil
	}
	s.running[jobType] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, jobType)
		s.mu.Unlock()
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Job panic", "job_type", jobType, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobType, r)
		}
	}()
	err = job.Run(ctx)
	s.log.Info("job finished", "job_type", jobType, "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	return err
}
