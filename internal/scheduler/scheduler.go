// Package scheduler fires the weekly license check event on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/host"
)

// DefaultSchedule runs the check once a week.
const DefaultSchedule = "@weekly"

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Clock returns the current time. It is replaced in tests.
type Clock func() time.Time

// Source returns the hook registry a run dispatches to. It is called once per
// run so that every run sees freshly loaded license clients.
type Source func(ctx context.Context) (*host.Registry, error)

// StaticSource always dispatches to reg.
func StaticSource(reg *host.Registry) Source {
	return func(context.Context) (*host.Registry, error) {
		return reg, nil
	}
}

// Scheduler dispatches host.EventWeeklyScheduled on a cron schedule.
type Scheduler struct {
	source   Source
	spec     string
	schedule cron.Schedule
	location *time.Location
	clock    Clock

	cron    *cron.Cron
	stopped chan struct{}
	running atomic.Bool
	lock    sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New validates spec and returns a stopped scheduler.
func New(source Source, spec string, opts ...Option) (*Scheduler, error) {
	if source == nil {
		return nil, fmt.Errorf("registry source is required")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		source:   source,
		spec:     spec,
		schedule: schedule,
		location: time.Local,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the next activation after the current time.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.clock().In(s.location))
}

// RunOnce fires the weekly event immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.clock()
	ctx = logger.WithValues(ctx, tag.Event(host.EventWeeklyScheduled))
	logger.Info(ctx, "Running scheduled license checks")

	reg, err := s.source(ctx)
	if err == nil {
		err = reg.Do(ctx, &host.Event{Name: host.EventWeeklyScheduled})
	}
	if err != nil {
		logger.Error(ctx, "Scheduled license checks failed", tag.Error(err))
		return err
	}
	logger.Info(ctx, "Scheduled license checks finished", tag.Duration(s.clock().Sub(start)))
	return nil
}

// Start runs the schedule until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lock.Lock()
	if s.running.Load() {
		s.lock.Unlock()
		return fmt.Errorf("scheduler is already running")
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{ctx: ctx})),
	)
	if _, err := c.AddFunc(s.spec, func() {
		_ = s.RunOnce(ctx)
	}); err != nil {
		s.lock.Unlock()
		return fmt.Errorf("failed to schedule license checks: %w", err)
	}
	stopped := make(chan struct{})
	s.cron = c
	s.stopped = stopped
	s.running.Store(true)
	s.lock.Unlock()

	logger.Info(ctx, "Scheduler started", tag.Schedule(s.spec), slog.Time("next", s.Next()))
	c.Start()

	select {
	case <-ctx.Done():
		s.Stop(context.WithoutCancel(ctx))
	case <-stopped:
	}
	return nil
}

// Stop halts the schedule and waits for a running check to finish. It is a
// no-op when the scheduler is not running.
func (s *Scheduler) Stop(ctx context.Context) {
	s.lock.Lock()
	c, stopped := s.cron, s.stopped
	s.cron, s.stopped = nil, nil
	s.lock.Unlock()
	if c == nil {
		return
	}

	<-c.Stop().Done()
	s.running.Store(false)
	close(stopped)
	logger.Info(ctx, "Scheduler stopped")
}

// IsRunning reports whether Start is active.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
