package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/internal/repository"
	"github.com/careerbee/quizrank/pkg/common"
)

const (
	defaultRewriteAttempts = 3
	defaultBackoffBase     = 3 * time.Second
	defaultBackoffMax      = 12 * time.Second
	defaultQuestionsPerDay = 5
)

const (
	runStatusOK      = "ok"
	runStatusSkipped = "skipped"
	runStatusFailed  = "failed"
)

// Store is the storage surface of the aggregator: read the raw ledger,
// replace one summary period group atomically.
type Store interface {
	ListResultsBetween(ctx context.Context, from, to time.Time) ([]model.Result, error)
	ReplacePeriodSummaries(
		ctx context.Context,
		periodType model.PeriodType,
		periodStart, periodEnd time.Time,
		rows []model.Summary,
		winnerEvent *repository.OutboxEvent,
	) error
}

// Aggregator recomputes ranked summary snapshots from the result ledger.
// Runs are idempotent: re-running a period with unchanged input converges to
// the identical end state.
type Aggregator struct {
	store           Store
	loc             *time.Location
	questionsPerDay int
	attempts        int
	backoffBase     time.Duration
	backoffMax      time.Duration
	logger          *slog.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithQuestionsPerDay sets the denominator basis of the correct rate.
func WithQuestionsPerDay(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.questionsPerDay = n
		}
	}
}

// WithRetryPolicy overrides attempt count and backoff bounds.
func WithRetryPolicy(attempts int, base, max time.Duration) Option {
	return func(a *Aggregator) {
		if attempts > 0 {
			a.attempts = attempts
		}
		if base > 0 {
			a.backoffBase = base
		}
		if max > 0 {
			a.backoffMax = max
		}
	}
}

// NewAggregator creates an aggregator for the given zone.
func NewAggregator(store Store, loc *time.Location, logger *slog.Logger, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		store:           store,
		loc:             loc,
		questionsPerDay: defaultQuestionsPerDay,
		attempts:        defaultRewriteAttempts,
		backoffBase:     defaultBackoffBase,
		backoffMax:      defaultBackoffMax,
		logger:          logger.With("component", "ranking_aggregator"),
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunDaily rewrites the DAY summary group of the day containing now and
// records the daily-winner event inside the same rewrite transaction.
func (a *Aggregator) RunDaily(ctx context.Context, now time.Time) error {
	period := DayPeriod(now, a.loc)
	return a.run(ctx, period, func(results []model.Result) ([]model.Summary, *repository.OutboxEvent, error) {
		rows := ComputeDaily(period, results)
		if len(rows) == 0 {
			return rows, nil, nil
		}
		winner := rows[0]
		payload, err := json.Marshal(model.DailyWinnerEvent{
			MemberID:    winner.MemberID,
			PeriodStart: period.Start.Format("2006-01-02"),
			SolvedCount: winner.SolvedCount,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("marshal daily winner payload: %w", err)
		}
		// The event id is derived from the period so a re-run of the
		// same day inserts the same row and storage dedups it.
		event := &repository.OutboxEvent{
			EventType: common.EventTypeDailyWinner,
			EventID:   "daily_winner:" + period.Start.Format("2006-01-02"),
			MemberID:  winner.MemberID,
			Payload:   payload,
			Status:    repository.OutboxStatusPending,
		}
		return rows, event, nil
	})
}

// RunWeekly rewrites the WEEK summary group of the week containing now.
func (a *Aggregator) RunWeekly(ctx context.Context, now time.Time) error {
	period := WeekPeriod(now, a.loc)
	return a.run(ctx, period, func(results []model.Result) ([]model.Summary, *repository.OutboxEvent, error) {
		return ComputePeriod(period, results, a.questionsPerDay, a.loc), nil, nil
	})
}

// RunMonthly rewrites the MONTH summary group of the month containing now.
func (a *Aggregator) RunMonthly(ctx context.Context, now time.Time) error {
	period := MonthPeriod(now, a.loc)
	return a.run(ctx, period, func(results []model.Result) ([]model.Summary, *repository.OutboxEvent, error) {
		return ComputePeriod(period, results, a.questionsPerDay, a.loc), nil, nil
	})
}

type computeFunc func(results []model.Result) ([]model.Summary, *repository.OutboxEvent, error)

func (a *Aggregator) run(ctx context.Context, period Period, compute computeFunc) error {
	start := time.Now()
	label := string(period.Type)
	logger := a.logger.With(
		"period", label,
		"period_start", period.Start.Format("2006-01-02"),
		"period_end", period.End.Format("2006-01-02"),
	)
	defer func() {
		aggregatorRunDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		rows, err := a.attemptRewrite(ctx, period, compute)
		if err == nil {
			aggregatorRunTotal.WithLabelValues(label, runStatusOK).Inc()
			aggregatorRowsWritten.WithLabelValues(label).Set(float64(rows))
			logger.Info("aggregation run complete", "rows", rows, "attempt", attempt)
			return nil
		}
		if errors.Is(err, repository.ErrRewriteLocked) {
			// Another run holds the period lease. Not a failure: the holder
			// will produce the same end state.
			aggregatorRunTotal.WithLabelValues(label, runStatusSkipped).Inc()
			logger.Warn("aggregation run skipped, period lease held")
			return nil
		}
		if !isRetryable(err) {
			aggregatorRunTotal.WithLabelValues(label, runStatusFailed).Inc()
			logger.Error("aggregation run failed", "attempt", attempt, "error", err)
			return fmt.Errorf("aggregate %s %s: %w", label, period.Start.Format("2006-01-02"), err)
		}

		lastErr = err
		if attempt < a.attempts {
			delay := a.backoffBase << (attempt - 1)
			if delay > a.backoffMax {
				delay = a.backoffMax
			}
			aggregatorRetryTotal.WithLabelValues(label).Inc()
			logger.Warn("rewrite attempt failed, backing off",
				"attempt", attempt, "delay", delay.String(), "error", err)
			if err := a.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	// All attempts exhausted. The run is abandoned for this invocation; a
	// subsequent scheduled run will attempt the period again.
	aggregatorRunTotal.WithLabelValues(label, runStatusFailed).Inc()
	logger.Error("aggregation run abandoned, retries exhausted",
		"attempts", a.attempts, "error", lastErr)
	return fmt.Errorf("aggregate %s %s: retries exhausted: %w",
		label, period.Start.Format("2006-01-02"), lastErr)
}

func (a *Aggregator) attemptRewrite(ctx context.Context, period Period, compute computeFunc) (int, error) {
	from, to := period.QueryRange()
	results, err := a.store.ListResultsBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}

	rows, winnerEvent, err := compute(results)
	if err != nil {
		return 0, err
	}

	if err := a.store.ReplacePeriodSummaries(ctx, period.Type, period.Start, period.End, rows, winnerEvent); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, common.ErrNonRetryable):
		return false
	case errors.Is(err, common.ErrRetryable):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return repository.IsRetryable(err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
