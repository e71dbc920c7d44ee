// Package scheduler runs the session keepalive on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is the work run on each tick.
type Task func(ctx context.Context) error

// Parser accepts an optional seconds field and descriptors such as @every.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Stats summarises keepalive activity.
type Stats struct {
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	Skipped   int64     `json:"skipped"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Next      time.Time `json:"next,omitzero"`
}

// Scheduler runs a Task on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	mu sync.RWMutex

	task    Task
	expr    string
	logger  *slog.Logger
	timeout time.Duration

	cron    *cron.Cron
	entryID cron.EntryID
	job     cron.Job

	// Running state
	ctx    context.Context
	cancel context.CancelFunc

	stats Stats
}

// NewScheduler creates a scheduler for task. The expression is validated
// up front.
func NewScheduler(expr string, task Task) (*Scheduler, error) {
	if task == nil {
		return nil, errors.New("scheduler task is required")
	}
	if err := ValidateCron(expr); err != nil {
		return nil, err
	}
	s := &Scheduler{
		task:    task,
		expr:    expr,
		logger:  slog.Default(),
		timeout: 2 * time.Minute,
	}
	s.build()
	return s, nil
}

// WithLogger sets a custom logger. It must be called before Start.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
		s.build()
	}
	return s
}

// WithTimeout bounds each run. Zero leaves runs unbounded.
func (s *Scheduler) WithTimeout(d time.Duration) *Scheduler {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
	return s
}

func (s *Scheduler) build() {
	log := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithParser(Parser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log)),
	)
	s.job = cron.NewChain(cron.SkipIfStillRunning(skipCounter{s})).Then(cron.FuncJob(s.tick))
}

// Start registers the schedule and starts the cron runner. Runs use a
// context derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	id, err := s.cron.AddJob(s.expr, s.job)
	if err != nil {
		return fmt.Errorf("scheduling keepalive: %w", err)
	}
	s.entryID = id
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info("scheduler started",
		slog.String("schedule", s.expr),
		slog.Time("next", s.cron.Entry(id).Next))
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.cron.Stop()
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	<-done.Done()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// RunOnce runs the task immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.run(ctx)
}

// Stats returns a snapshot of run counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	if s.ctx != nil {
		st.Next = s.cron.Entry(s.entryID).Next
	}
	return st
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		return
	}
	_ = s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) error {
	s.mu.RLock()
	timeout := s.timeout
	logger := s.logger
	s.mu.RUnlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.task(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		logger.Warn("keepalive failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return err
	}
	logger.Debug("keepalive completed", slog.Duration("duration", time.Since(start)))
	return nil
}

// ParseCron validates a cron expression and returns the next run time.
func ParseCron(expr string) (time.Time, error) {
	schedule, err := Parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// ValidateCron validates a cron expression.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// skipCounter records ticks dropped by SkipIfStillRunning.
type skipCounter struct {
	s *Scheduler
}

func (c skipCounter) Info(msg string, keysAndValues ...any) {
	if msg != "skip" {
		return
	}
	c.s.mu.Lock()
	c.s.stats.Skipped++
	logger := c.s.logger
	c.s.mu.Unlock()
	logger.Info("keepalive still running, skipping tick")
}

func (skipCounter) Error(error, string, ...any) {}
