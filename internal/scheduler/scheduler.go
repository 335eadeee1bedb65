package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner is the aggregation entry points the scheduler drives.
type Runner interface {
	RunDaily(ctx context.Context, now time.Time) error
	RunWeekly(ctx context.Context, now time.Time) error
	RunMonthly(ctx context.Context, now time.Time) error
}

// Scheduler fires the DAY, WEEK and MONTH aggregations once per day at a
// fixed wall-clock time in a fixed zone.
type Scheduler struct {
	runner Runner
	loc    *time.Location
	hour   int
	minute int
	logger *slog.Logger

	// now is swapped out in tests
	now func() time.Time
}

// New creates a scheduler firing daily at hour:minute in loc.
func New(runner Runner, loc *time.Location, hour, minute int, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner: runner,
		loc:    loc,
		hour:   hour,
		minute: minute,
		logger: logger.With("component", "aggregation_scheduler"),
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, firing the aggregation sequence at each
// scheduled time.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("aggregation scheduler started",
		"fire_at", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.UTC).Format("15:04"),
		"zone", s.loc.String(),
	)
	for {
		now := s.now().In(s.loc)
		next := nextFireTime(now, s.hour, s.minute, s.loc)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunSequence(ctx)
		}
	}
}

// RunSequence runs DAY, then WEEK, then MONTH aggregation for the current
// moment. The three runs are independent: a failure is logged and the
// sequence continues, since each period self-heals on the next trigger.
func (s *Scheduler) RunSequence(ctx context.Context) {
	now := s.now().In(s.loc)
	if err := s.runner.RunDaily(ctx, now); err != nil {
		s.logger.Error("daily aggregation failed", "error", err)
	}
	if err := s.runner.RunWeekly(ctx, now); err != nil {
		s.logger.Error("weekly aggregation failed", "error", err)
	}
	if err := s.runner.RunMonthly(ctx, now); err != nil {
		s.logger.Error("monthly aggregation failed", "error", err)
	}
}

// nextFireTime returns the next hour:minute strictly after now.
func nextFireTime(now time.Time, hour, minute int, loc *time.Location) time.Time {
	n := now.In(loc)
	fire := time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, loc)
	if !fire.After(n) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}
