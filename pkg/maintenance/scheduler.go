package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrUnknownJob is returned for a job name that was never registered.
	ErrUnknownJob = errors.New("unknown maintenance job")

	// ErrInvalidInterval is returned for a negative interval.
	ErrInvalidInterval = errors.New("maintenance interval must not be negative")
)

// JobFunc is one maintenance pass.
type JobFunc func(ctx context.Context) error

// Job is a named maintenance pass run every Interval. A zero Interval
// registers the job without scheduling it; it can still be run with RunNow.
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// JobStatus reports the schedule and history of one job.
type JobStatus struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Scheduled bool          `json:"scheduled"`
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Next      time.Time     `json:"next,omitempty"`
}

type jobState struct {
	job       Job
	entry     cron.EntryID
	scheduled bool
	runs      int
	failures  int
	lastRun   time.Time
	lastErr   string
}

// Scheduler runs maintenance jobs on "@every" cron schedules.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*jobState
	order   []string
	ctx     context.Context
	running bool
	logger  *slog.Logger
}

// NewScheduler creates a scheduler for jobs. Jobs are not scheduled until
// Start is called.
func NewScheduler(jobs ...Job) *Scheduler {
	logger := slog.Default().With("component", "maintenance")
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		jobs:   make(map[string]*jobState, len(jobs)),
		ctx:    context.Background(),
		logger: logger,
	}
	for _, job := range jobs {
		if _, dup := s.jobs[job.Name]; !dup {
			s.order = append(s.order, job.Name)
		}
		s.jobs[job.Name] = &jobState{job: job}
	}
	return s
}

// Start schedules every job with a positive interval and starts the cron
// runner. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx = ctx
	for _, name := range s.order {
		if err := s.schedule(s.jobs[name]); err != nil {
			s.unscheduleAll()
			return err
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("maintenance scheduler started", "jobs", s.scheduledNames())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Reschedule changes job intervals. Jobs missing from intervals keep their
// schedule; a zero interval unschedules the job.
func (s *Scheduler) Reschedule(intervals map[string]time.Duration) error {
	for name, interval := range intervals {
		if interval < 0 {
			return fmt.Errorf("%w: %s = %s", ErrInvalidInterval, name, interval)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		st := s.jobs[name]
		interval, ok := intervals[name]
		if !ok || interval == st.job.Interval {
			continue
		}

		s.unschedule(st)
		st.job.Interval = interval
		if s.running {
			if err := s.schedule(st); err != nil {
				return err
			}
		}
		s.logger.Info("maintenance job rescheduled", "job", name, "interval", interval)
	}
	return nil
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	st, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, st)
}

// Status returns the state of every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		st := s.jobs[name]
		status := JobStatus{
			Name:      name,
			Interval:  st.job.Interval,
			Scheduled: st.scheduled,
			Runs:      st.runs,
			Failures:  st.failures,
			LastRun:   st.lastRun,
			LastError: st.lastErr,
		}
		if st.scheduled {
			status.Next = s.cron.Entry(st.entry).Next
		}
		out = append(out, status)
	}
	return out
}

// schedule must be called with s.mu held.
func (s *Scheduler) schedule(st *jobState) error {
	if st.job.Interval < 0 {
		return fmt.Errorf("%w: %s = %s", ErrInvalidInterval, st.job.Name, st.job.Interval)
	}
	if st.job.Interval == 0 || st.scheduled {
		return nil
	}

	id, err := s.cron.AddFunc("@every "+st.job.Interval.String(), func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		_ = s.run(ctx, st)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", st.job.Name, err)
	}
	st.entry = id
	st.scheduled = true
	return nil
}

// unschedule must be called with s.mu held.
func (s *Scheduler) unschedule(st *jobState) {
	if st.scheduled {
		s.cron.Remove(st.entry)
		st.scheduled = false
	}
}

func (s *Scheduler) unscheduleAll() {
	for _, st := range s.jobs {
		s.unschedule(st)
	}
}

func (s *Scheduler) scheduledNames() []string {
	var names []string
	for _, name := range s.order {
		if s.jobs[name].scheduled {
			names = append(names, name)
		}
	}
	return names
}

func (s *Scheduler) run(ctx context.Context, st *jobState) error {
	start := time.Now()
	err := st.job.Run(ctx)

	s.mu.Lock()
	st.runs++
	st.lastRun = start
	st.lastErr = ""
	if err != nil {
		st.failures++
		st.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("maintenance job failed", "job", st.job.Name, "error", err)
		return err
	}
	s.logger.Debug("maintenance job completed", "job", st.job.Name, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
