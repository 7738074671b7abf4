package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrJobRunning   = errors.New("job is already running")
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already registered")
	ErrLocked       = errors.New("job is locked by another instance")
)

// Job unit of scheduled work
type Job func(ctx context.Context) error

// JobInfo snapshot of a registered job
type JobInfo struct {
	Name         string        `json:"name"`
	Spec         string        `json:"spec"`
	Next         time.Time     `json:"next"`
	Prev         time.Time     `json:"prev"`
	Running      bool          `json:"running"`
	Runs         int64         `json:"runs"`
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

type entry struct {
	name    string
	spec    string
	job     Job
	id      cron.EntryID
	running atomic.Bool

	mu      sync.Mutex
	runs    int64
	lastRun time.Time
	lastDur time.Duration
	lastErr error
}

// Scheduler runs named jobs on cron specs. A job never overlaps itself:
// a trigger arriving while the previous run is in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	locker  Locker
	lockTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*entry
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLocker guards every run with a distributed lock held for at most ttl
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = l
		s.lockTTL = ttl
	}
}

func New(logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger))),
		logger:  logger,
		lockTTL: 30 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job under a standard five-field cron spec
func (s *Scheduler) Register(name, spec string, job Job) error {
	if name == "" || job == nil {
		return errors.New("job name and function are required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	e := &entry{name: name, spec: spec, job: job}
	id, err := s.cron.AddFunc(spec, func() {
		if err := s.execute(s.ctx, e); err != nil && !errors.Is(err, ErrJobRunning) && !errors.Is(err, ErrLocked) {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job %s: %w", name, err)
	}
	e.id = id
	s.jobs[name] = e
	s.logger.Info("job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop halts triggering and waits for running jobs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Remove unschedules one job; a run in progress finishes normally
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.cron.Remove(e.id)
	delete(s.jobs, name)
	s.logger.Info("job removed", zap.String("job", name))
	return nil
}

func (s *Scheduler) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, e := range s.jobs {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
	}
}

// RunNow runs a job synchronously. Returns ErrJobRunning when the job is
// already in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, e)
}

// Jobs registered jobs sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		e.mu.Lock()
		info := JobInfo{
			Name:         e.name,
			Spec:         e.spec,
			Next:         ce.Next,
			Prev:         ce.Prev,
			Running:      e.running.Load(),
			Runs:         e.runs,
			LastRun:      e.lastRun,
			LastDuration: e.lastDur,
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, skipping", zap.String("job", e.name))
		return ErrJobRunning
	}
	defer e.running.Store(false)

	s.wg.Add(1)
	defer s.wg.Done()

	if s.locker != nil {
		release, ok, lerr := s.locker.Acquire(ctx, "scheduler:"+e.name, s.lockTTL)
		if lerr != nil {
			return fmt.Errorf("acquire lock: %w", lerr)
		}
		if !ok {
			s.logger.Info("job locked elsewhere, skipping", zap.String("job", e.name))
			return ErrLocked
		}
		defer release()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.name, r)
			s.logger.Error("job panic", zap.String("job", e.name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		dur := time.Since(start)
		e.mu.Lock()
		e.runs++
		e.lastRun = start
		e.lastDur = dur
		e.lastErr = err
		e.mu.Unlock()
		s.logger.Info("job finished", zap.String("job", e.name), zap.Duration("duration", dur), zap.Error(err))
	}()

	s.logger.Info("job started", zap.String("job", e.name))
	return e.job(ctx)
}
