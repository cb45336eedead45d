// Package scheduler runs recurring passes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/robfig/cron/v3"
)

// Session is the state-store session of scheduled passes.
const Session = "scheduler"

const jobTimeout = 30 * time.Minute

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	mu        sync.Mutex
	cron      *cron.Cron
	jobs      map[string]Job
	isRunning bool
	logger    *log.Logger
}

// specParser accepts five-field specs, six-field specs with seconds, and descriptors such as @hourly.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduler creates a new scheduler
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "scheduler")
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]Job),
		logger: logger,
	}
}

// ValidateSpec reports whether spec is a schedule the scheduler accepts.
func ValidateSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, spec, err)
	}
	return nil
}

// AddJob adds a job to the scheduler with a cron specification
func (s *Scheduler) AddJob(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: job %s already registered", shared.ErrInvalidArgument, name)
	}

	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("starting scheduled job", "job", name)
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("completed scheduled job", "job", name, "duration", time.Since(startTime))
	})
	if err != nil {
		return fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, spec, err)
	}

	s.jobs[name] = job
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunJobNow runs a job immediately outside of schedule
func (s *Scheduler) RunJobNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: job %s not registered", shared.ErrInvalidArgument, name)
	}

	s.logger.Info("manually running job", "job", name)
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return job.Run(ctx)
}

// Starter starts a pass of an action for a session. [command.Orchestrator] implements it.
type Starter interface {
	Start(ctx context.Context, session string, action models.Action) (string, error)
}

// PassJob starts one pass through the command orchestrator under [Session].
//
// The job only submits the pass; it does not wait for it. A tick that finds the previous pass
// still active is skipped.
type PassJob struct {
	action  models.Action
	starter Starter
	logger  *log.Logger
}

// NewPassJob creates a [PassJob] for action.
func NewPassJob(action models.Action, starter Starter, logger *log.Logger) *PassJob {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PassJob{action: action, starter: starter, logger: logger}
}

// Name returns the name of the job
func (j *PassJob) Name() string { return "pass_" + string(j.action) }

// Run submits the pass.
func (j *PassJob) Run(ctx context.Context) error {
	id, err := j.starter.Start(ctx, Session, j.action)
	if errors.Is(err, shared.ErrAlreadyActive) {
		j.logger.Info("previous pass still active, skipping", "action", j.action)
		return nil
	}
	if err != nil {
		return err
	}
	j.logger.Info("scheduled pass submitted", "action", j.action, "task", id)
	return nil
}

// cronLogger adapts a charm logger to [cron.Logger].
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
