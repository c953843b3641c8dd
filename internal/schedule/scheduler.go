package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
)

// SceneController is the part of the automation manager the scheduler
// drives. Implemented by *automation.Manager.
type SceneController interface {
	FindByName(name string) (int, error)
	StartScene(id int) error
	StopScene(id int) error
}

// AuditLogger records fired jobs. Implemented by *audit.Writer.
type AuditLogger interface {
	Log(e audit.Entry)
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

type noopAudit struct{}

func (noopAudit) Log(audit.Entry) {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAudit records every fired job through a.
func WithAudit(a AuditLogger) Option {
	return func(s *Scheduler) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithLocation evaluates expressions in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Job is one resolved schedule entry.
type Job struct {
	Scene   string `json:"scene"`
	SceneID int    `json:"scene_id"`
	Action  string `json:"action"`
	Cron    string `json:"cron"`

	entryID cron.EntryID
}

// JobInfo is a Job with its next fire time, for display.
type JobInfo struct {
	Job
	Next time.Time `json:"next,omitempty"`
}

// Scheduler fires scene start and stop jobs.
type Scheduler struct {
	scenes SceneController
	audit  AuditLogger
	logger Logger
	loc    *time.Location
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	jobs    []Job
	running bool
}

// New resolves and parses every entry. All problems are reported together.
func New(scenes SceneController, entries []config.ScheduleConfig, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		scenes: scenes,
		audit:  noopAudit{},
		logger: noopLogger{},
		loc:    time.Local,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	var errs []error
	for i, entry := range entries {
		job, err := s.resolve(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %d: %w", i, err))
			continue
		}

		j := job
		id, err := s.c.AddFunc(j.Cron, func() { s.fire(j) })
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %d: %w: %w", i, ErrInvalidSchedule, err))
			continue
		}
		j.entryID = id
		s.jobs = append(s.jobs, j)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (s *Scheduler) resolve(entry config.ScheduleConfig) (Job, error) {
	switch entry.Action {
	case config.ScheduleStart, config.ScheduleStop:
	default:
		return Job{}, fmt.Errorf("%w: action %q", ErrInvalidSchedule, entry.Action)
	}
	if _, err := s.parser.Parse(entry.Cron); err != nil {
		return Job{}, fmt.Errorf("%w: cron %q: %w", ErrInvalidSchedule, entry.Cron, err)
	}
	id, err := s.scenes.FindByName(entry.Scene)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownScene, entry.Scene)
	}
	return Job{Scene: entry.Scene, SceneID: id, Action: entry.Action, Cron: entry.Cron}, nil
}

// Start begins firing jobs. Calling Start twice has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.c.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop prevents new jobs from firing and waits for running ones to finish
// or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.c.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs lists the resolved jobs with their next fire time. Next is zero
// while the scheduler is not running.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{Job: j, Next: s.c.Entry(j.entryID).Next})
	}
	return out
}

func (s *Scheduler) fire(j Job) {
	var err error
	action := audit.ActionSceneStart
	if j.Action == config.ScheduleStop {
		action = audit.ActionSceneStop
		err = s.scenes.StopScene(j.SceneID)
	} else {
		err = s.scenes.StartScene(j.SceneID)
	}

	details := map[string]any{"cron": j.Cron, "scene": j.Scene}
	if err != nil {
		details["error"] = err.Error()
		s.logger.Warn("scheduled job failed", "scene", j.Scene, "action", j.Action, "error", err)
	} else {
		s.logger.Info("scheduled job fired", "scene", j.Scene, "action", j.Action)
	}

	s.audit.Log(audit.Entry{
		Action:     action,
		EntityType: audit.EntityScene,
		EntityID:   strconv.Itoa(j.SceneID),
		Source:     audit.SourceSchedule,
		Details:    details,
	})
}
