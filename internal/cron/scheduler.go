package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default timings.
const (
	DefaultPollInterval = 60 * time.Second
	DefaultCooldown     = 5 * time.Minute
)

// Cycle describes one finished run of the job.
type Cycle struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	// PollInterval bounds every sleep, and therefore the stop latency.
	PollInterval time.Duration

	// Cooldown is waited after a failed cycle.
	Cooldown time.Duration

	Clock  Clock
	Logger *slog.Logger

	// OnCycle, if set, is called after every cycle from the goroutine that
	// ran it.
	OnCycle func(Cycle)
}

// Scheduler runs one Job on its cron schedule. Cycles never overlap:
// scheduled runs and RunOnce share a lock acquired with TryLock.
type Scheduler struct {
	job          Job
	pollInterval time.Duration
	cooldown     time.Duration
	clock        Clock
	logger       *slog.Logger
	onCycle      func(Cycle)

	runMu sync.Mutex

	mu     sync.Mutex
	state  State
	next   time.Time
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler for job.
func NewScheduler(job Job, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		job:          job,
		pollInterval: opts.PollInterval,
		cooldown:     opts.Cooldown,
		clock:        opts.Clock,
		logger:       opts.Logger,
		onCycle:      opts.OnCycle,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the time of the next scheduled cycle, or the zero time when
// the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Start validates the job schedule and launches the run loop. An invalid
// expression is returned as ErrInvalidSchedule and the scheduler stays
// stopped without running any cycle.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrAlreadyRunning
	}
	s.setState(StateStarting)

	sched, err := parseScheduleAt(s.job.Schedule(), s.clock.Now())
	if err != nil {
		s.setState(StateStopped)
		s.logger.Error("cron: refusing to start", "job", s.job.Name(), "error", err)
		return fmt.Errorf("cron: starting job %q: %w", s.job.Name(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.setState(StateRunning)

	go s.loop(ctx, sched, s.stop, s.done)
	return nil
}

// Stop signals the loop and waits for it to exit, or for ctx to expire.
// A cycle already running is left to finish; its context is cancelled, so
// stages that honor cancellation end early. If ctx expires first the state
// stays StopPending until the loop exits on its own, and a later Stop
// waits again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.setState(StateStopPending)
		close(s.stop)
		s.cancel()
	case StateStopPending:
	default:
		s.mu.Unlock()
		return nil
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for job %q to stop: %w", s.job.Name(), ctx.Err())
	}
}

// RunOnce executes a single cycle synchronously. It fails with
// ErrCycleInProgress when another cycle holds the run lock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrCycleInProgress
	}
	defer s.runMu.Unlock()
	return s.runCycle(ctx)
}

// setState must be called with s.mu held.
func (s *Scheduler) setState(st State) {
	if s.state == st {
		return
	}
	s.logger.Info("cron: state changed", "job", s.job.Name(), "from", s.state.String(), "to", st.String())
	s.state = st
}

func (s *Scheduler) loop(ctx context.Context, sched Schedule, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.exited()

	for {
		next := sched.Next(s.clock.Now())
		if next.IsZero() {
			s.logger.Error("cron: schedule has no further activation, stopping", "job", s.job.Name())
			return
		}
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		s.logger.Info("cron: next run scheduled", "job", s.job.Name(), "at", next)

		if !s.waitUntil(next, stop) {
			return
		}

		if !s.runMu.TryLock() {
			s.logger.Warn("cron: cycle still running, skipping tick", "job", s.job.Name())
			continue
		}
		err := s.runCycle(ctx)
		s.runMu.Unlock()

		if err == nil {
			continue
		}
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("cron: cycle held by another process, skipping tick", "job", s.job.Name())
			continue
		}
		select {
		case <-stop:
			return
		default:
		}
		s.logger.Warn("cron: cooling down after failed cycle", "job", s.job.Name(), "cooldown", s.cooldown)
		if !s.waitUntil(s.clock.Now().Add(s.cooldown), stop) {
			return
		}
	}
}

// exited moves the scheduler to Stopped once the loop goroutine returns,
// whether or not a Stop call is still waiting for it.
func (s *Scheduler) exited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.next = time.Time{}
	s.setState(StateStopped)
}

// waitUntil sleeps until t in increments of at most pollInterval. It
// reports false if stop was signalled first.
func (s *Scheduler) waitUntil(t time.Time, stop <-chan struct{}) bool {
	for {
		remaining := t.Sub(s.clock.Now())
		if remaining <= 0 {
			return true
		}
		if remaining > s.pollInterval {
			remaining = s.pollInterval
		}
		select {
		case <-stop:
			return false
		case <-s.clock.After(remaining):
		}
	}
}

// runCycle must be called with s.runMu held.
func (s *Scheduler) runCycle(ctx context.Context) (err error) {
	started := s.clock.Now()
	name := s.job.Name()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cron: job %q panicked: %v", name, r)
		}
		c := Cycle{Job: name, Started: started, Duration: s.clock.Now().Sub(started), Err: err}
		if err != nil {
			s.logger.Error("cron: job failed", "job", name, "duration", c.Duration, "error", err)
		} else {
			s.logger.Info("cron: job completed", "job", name, "duration", c.Duration)
		}
		if s.onCycle != nil {
			s.onCycle(c)
		}
	}()

	s.logger.Debug("cron: job started", "job", name)
	return s.job.Run(ctx)
}
