// Package scheduler runs background maintenance jobs on fixed intervals.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/silentsos/silentsos/internal/logging"
)

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type jobState struct {
	job    Job
	ticker *time.Ticker
	cancel context.CancelFunc

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int
}

// JobStatus describes the latest run of a job.
type JobStatus struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Runs     int           `json:"runs"`
	LastRun  time.Time     `json:"last_run"`
	LastErr  string        `json:"last_error,omitempty"`
}

type Scheduler struct {
	jobs   map[string]*jobState
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*jobState),
		ctx:    ctx,
		cancel: cancel,
		log:    logging.For("scheduler"),
	}
}

// Add starts job with an immediate first run, replacing any job of the same
// name. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.log.Info("job disabled", "job", job.Name)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[job.Name]; ok {
		existing.ticker.Stop()
		existing.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)

	state := &jobState{
		job:    job,
		ticker: time.NewTicker(job.Interval),
		cancel: jobCancel,
	}

	s.jobs[job.Name] = state

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(jobCtx, state)
		s.run(jobCtx, state)
	}()

	s.log.Info("job scheduled", "job", job.Name, "interval", job.Interval)
}

// Remove stops the named job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.jobs[name]; ok {
		state.ticker.Stop()
		state.cancel()
		delete(s.jobs, name)
	}
}

func (s *Scheduler) run(ctx context.Context, state *jobState) {
	defer state.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-state.ticker.C:
			s.execute(ctx, state)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, state *jobState) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := state.job.Run(ctx)

	state.mu.Lock()
	state.lastRun = start
	state.lastErr = err
	state.runs++
	state.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", "job", state.job.Name, "error", err)
		return
	}

	s.log.Debug("job finished", "job", state.job.Name, "duration", time.Since(start))
}

// Status reports every scheduled job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, state := range s.jobs {
		state.mu.Lock()
		status := JobStatus{
			Name:     state.job.Name,
			Interval: state.job.Interval,
			Runs:     state.runs,
			LastRun:  state.lastRun,
		}
		if state.lastErr != nil {
			status.LastErr = state.lastErr.Error()
		}
		state.mu.Unlock()

		statuses = append(statuses, status)
	}

	return statuses
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	for _, state := range s.jobs {
		state.ticker.Stop()
		state.cancel()
	}
	s.jobs = make(map[string]*jobState)
	s.mu.Unlock()

	s.wg.Wait()
}
