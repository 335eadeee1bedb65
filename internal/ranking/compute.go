package ranking

import (
	"sort"
	"time"

	"github.com/careerbee/quizrank/internal/model"
)

// ComputeDaily builds the DAY summary group from one day's raw results.
// Same total order as the live ranking: solved desc, elapsed asc, then
// created_at and member id to keep exact ties deterministic. Ranks are
// sequential and 1-based. Daily summaries do not track streaks.
func ComputeDaily(period Period, results []model.Result) []model.Summary {
	sorted := append([]model.Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.SolvedCount != b.SolvedCount {
			return a.SolvedCount > b.SolvedCount
		}
		if a.ElapsedTimeMillis != b.ElapsedTimeMillis {
			return a.ElapsedTimeMillis < b.ElapsedTimeMillis
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.MemberID < b.MemberID
	})

	rows := make([]model.Summary, 0, len(sorted))
	for i, r := range sorted {
		rows = append(rows, model.Summary{
			MemberID:       r.MemberID,
			PeriodType:     period.Type,
			PeriodStart:    period.Start,
			PeriodEnd:      period.End,
			SolvedCount:    r.SolvedCount,
			ElapsedTime:    r.ElapsedTimeMillis,
			Rank:           i + 1,
			ContinuousDays: 0,
			CorrectRate:    0,
		})
	}
	return rows
}

type memberAggregate struct {
	memberID    int64
	solvedSum   int
	elapsedSum  int64
	days        map[string]time.Time // distinct participation days
	correctRate float64
	streak      int
}

// ComputePeriod builds the WEEK or MONTH summary group. Per-member sums are
// taken over every result in the period; correctRate is the share of
// solvable questions actually solved, and continuousDays the longest run of
// consecutive participation days. Rank: correctRate desc, then
// continuousDays desc, then member id asc, sequential 1-based.
func ComputePeriod(period Period, results []model.Result, questionsPerDay int, loc *time.Location) []model.Summary {
	byMember := make(map[int64]*memberAggregate)
	for _, r := range results {
		agg, ok := byMember[r.MemberID]
		if !ok {
			agg = &memberAggregate{memberID: r.MemberID, days: make(map[string]time.Time)}
			byMember[r.MemberID] = agg
		}
		agg.solvedSum += r.SolvedCount
		agg.elapsedSum += r.ElapsedTimeMillis
		day := midnight(r.CreatedAt, loc)
		agg.days[day.Format("2006-01-02")] = day
	}

	aggs := make([]*memberAggregate, 0, len(byMember))
	for _, agg := range byMember {
		participationDays := len(agg.days)
		if participationDays > 0 && questionsPerDay > 0 {
			agg.correctRate = float64(agg.solvedSum) / float64(participationDays*questionsPerDay) * 100
		}
		agg.streak = longestStreak(agg.days)
		aggs = append(aggs, agg)
	}

	sort.Slice(aggs, func(i, j int) bool {
		a, b := aggs[i], aggs[j]
		if a.correctRate != b.correctRate {
			return a.correctRate > b.correctRate
		}
		if a.streak != b.streak {
			return a.streak > b.streak
		}
		return a.memberID < b.memberID
	})

	rows := make([]model.Summary, 0, len(aggs))
	for i, agg := range aggs {
		rows = append(rows, model.Summary{
			MemberID:       agg.memberID,
			PeriodType:     period.Type,
			PeriodStart:    period.Start,
			PeriodEnd:      period.End,
			SolvedCount:    agg.solvedSum,
			ElapsedTime:    agg.elapsedSum,
			Rank:           i + 1,
			ContinuousDays: agg.streak,
			CorrectRate:    agg.correctRate,
		})
	}
	return rows
}

// longestStreak returns the longest run of consecutive calendar days in the
// participation set. Days 1,2,3,5,6,7 of a week yield 3, not 6.
func longestStreak(days map[string]time.Time) int {
	if len(days) == 0 {
		return 0
	}
	sorted := make([]time.Time, 0, len(days))
	for _, d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	best, run := 1, 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sub(sorted[i-1]) == 24*time.Hour || sorted[i].Equal(sorted[i-1].AddDate(0, 0, 1)) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best
}
