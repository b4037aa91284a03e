// Package schedule fires a job on a cron expression in a fixed location.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSpec fires every day at 23:58.
const DefaultSpec = "58 23 * * *"

// Job is called with the firing time in the scheduler's location.
type Job func(ctx context.Context, firedAt time.Time) error

// Scheduler runs one job on a standard five-field cron spec. Firings never
// overlap; a firing due while the previous run is still going is skipped.
type Scheduler struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
	job   Job
	now   func() time.Time
	log   *slog.Logger
}

// New parses spec and binds it to loc. A nil loc means time.Local.
func New(spec string, loc *time.Location, job Job, log *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, sched: sched, loc: loc, job: job, now: time.Now, log: log}, nil
}

// Next returns the first firing strictly after t, in the scheduler's location.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc))
}

// Run blocks until ctx is done, firing the job on schedule. A failing job
// is logged and the schedule continues. Call Run once.
func (s *Scheduler) Run(ctx context.Context) {
	clog := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	c.Schedule(s.sched, cron.FuncJob(func() { s.fire(ctx) }))
	c.Start()
	s.log.Info("archive schedule started",
		slog.String("spec", s.spec),
		slog.String("location", s.loc.String()),
		slog.Time("next", s.Next(s.now())),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("archive schedule stopped")
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	at := s.now().In(s.loc)
	s.log.Info("scheduled archive run started", slog.Time("at", at))
	if err := s.job(ctx, at); err != nil {
		s.log.Error("scheduled archive run failed", slog.String("error", err.Error()))
	}
}

// cronLogger routes cron's own logging into slog; its chatter goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron "+msg, append(keysAndValues, "error", err.Error())...)
}
