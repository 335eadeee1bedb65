package ranking

import (
	"time"

	"github.com/careerbee/quizrank/internal/model"
)

// Period is one concrete aggregation window. Start and End are calendar
// dates (midnight in the aggregation zone), End inclusive.
type Period struct {
	Type  model.PeriodType
	Start time.Time
	End   time.Time
}

// QueryRange returns the half-open [from, to) timestamp range covering the
// period, for querying the result ledger by created_at.
func (p Period) QueryRange() (time.Time, time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

// DayPeriod is the calendar day containing t.
func DayPeriod(t time.Time, loc *time.Location) Period {
	d := midnight(t, loc)
	return Period{Type: model.PeriodDay, Start: d, End: d}
}

// WeekPeriod is the ISO week (Monday through Sunday) containing t.
func WeekPeriod(t time.Time, loc *time.Location) Period {
	d := midnight(t, loc)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := d.AddDate(0, 0, -offset)
	return Period{Type: model.PeriodWeek, Start: start, End: start.AddDate(0, 0, 6)}
}

// MonthPeriod is the calendar month containing t.
func MonthPeriod(t time.Time, loc *time.Location) Period {
	d := midnight(t, loc)
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc)
	return Period{Type: model.PeriodMonth, Start: start, End: start.AddDate(0, 1, -1)}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
