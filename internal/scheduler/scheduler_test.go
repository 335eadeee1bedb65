package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRunner struct {
	calls    []string
	dailyAt  []time.Time
	dailyErr error
	weekErr  error
}

func (f *fakeRunner) RunDaily(ctx context.Context, now time.Time) error {
	f.calls = append(f.calls, "daily")
	f.dailyAt = append(f.dailyAt, now)
	return f.dailyErr
}

func (f *fakeRunner) RunWeekly(ctx context.Context, now time.Time) error {
	f.calls = append(f.calls, "weekly")
	return f.weekErr
}

func (f *fakeRunner) RunMonthly(ctx context.Context, now time.Time) error {
	f.calls = append(f.calls, "monthly")
	return nil
}

func TestRunSequenceOrder(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.UTC, 0, 10, nil)
	s.RunSequence(context.Background())

	want := []string{"daily", "weekly", "monthly"}
	if len(runner.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", runner.calls, want)
	}
	for i := range want {
		if runner.calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, runner.calls[i], want[i])
		}
	}
}

func TestRunSequenceMaterializesTheFiringDay(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.UTC, 23, 55, nil)
	fireAt := time.Date(2026, time.August, 28, 23, 55, 0, 0, time.UTC)
	s.now = func() time.Time { return fireAt }

	s.RunSequence(context.Background())

	// The daily run must aggregate the day that is ending, so the
	// morning's competition results land in its summary.
	if len(runner.dailyAt) != 1 {
		t.Fatalf("daily calls = %d, want 1", len(runner.dailyAt))
	}
	y, m, d := runner.dailyAt[0].Date()
	if y != 2026 || m != time.August || d != 28 {
		t.Fatalf("daily run as-of %v, want a time inside 2026-08-28", runner.dailyAt[0])
	}
}

func TestRunSequenceContinuesPastFailures(t *testing.T) {
	runner := &fakeRunner{
		dailyErr: errors.New("day boom"),
		weekErr:  errors.New("week boom"),
	}
	s := New(runner, time.UTC, 0, 10, nil)
	s.RunSequence(context.Background())

	// A WEEK failure must not block MONTH from attempting.
	if len(runner.calls) != 3 || runner.calls[2] != "monthly" {
		t.Fatalf("sequence stopped early: %v", runner.calls)
	}
}

func TestNextFireTime(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{
			// Before today's fire time: fires today.
			time.Date(2026, 8, 28, 0, 5, 0, 0, loc),
			time.Date(2026, 8, 28, 0, 10, 0, 0, loc),
		},
		{
			// Exactly at the fire time: fires tomorrow.
			time.Date(2026, 8, 28, 0, 10, 0, 0, loc),
			time.Date(2026, 8, 29, 0, 10, 0, 0, loc),
		},
		{
			// After today's fire time: fires tomorrow.
			time.Date(2026, 8, 28, 12, 0, 0, 0, loc),
			time.Date(2026, 8, 29, 0, 10, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		if got := nextFireTime(tc.now, 0, 10, loc); !got.Equal(tc.want) {
			t.Fatalf("nextFireTime(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}
