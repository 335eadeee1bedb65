package model

import (
	"time"
)

// PeriodType selects the aggregation window of a summary.
type PeriodType string

const (
	PeriodDay   PeriodType = "DAY"
	PeriodWeek  PeriodType = "WEEK"
	PeriodMonth PeriodType = "MONTH"
)

// Valid reports whether p is one of the known period types.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Competition is one timed event. Immutable once created; exactly one
// competition is current for a calendar day, found by window containment.
type Competition struct {
	ID        int64     `json:"id" db:"id"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Problem is one multiple-choice question of a competition.
type Problem struct {
	ID                 int64     `json:"id" db:"id"`
	CompetitionID      int64     `json:"competition_id" db:"competition_id"`
	Title              string    `json:"title" db:"title"`
	Description        string    `json:"description" db:"description"`
	CorrectChoiceIndex int       `json:"-" db:"correct_choice_index"`
	Explanation        string    `json:"-" db:"explanation"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Participant records one member joining one competition.
type Participant struct {
	ID            int64     `json:"id" db:"id"`
	MemberID      int64     `json:"member_id" db:"member_id"`
	CompetitionID int64     `json:"competition_id" db:"competition_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Result is the single graded outcome of one member's one attempt.
// Append-only; created by the grader, never updated.
type Result struct {
	ID                int64     `json:"id" db:"id"`
	MemberID          int64     `json:"member_id" db:"member_id"`
	CompetitionID     int64     `json:"competition_id" db:"competition_id"`
	SolvedCount       int       `json:"solved_count" db:"solved_count"`
	ElapsedTimeMillis int64     `json:"elapsed_time_millis" db:"elapsed_time_millis"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Answer is one entry of a submission: a chosen choice for one problem.
type Answer struct {
	ProblemID         int64 `json:"problem_id"`
	ChosenChoiceIndex int   `json:"chosen_choice_index"`
}

// ProblemGrade is the per-problem feedback returned after grading.
type ProblemGrade struct {
	ProblemID          int64  `json:"problem_id"`
	IsCorrect          bool   `json:"is_correct"`
	CorrectChoiceIndex int    `json:"correct_choice_index"`
	Explanation        string `json:"explanation"`
}

// GradingResult is the full outcome of grading one submission.
type GradingResult struct {
	CompetitionID     int64          `json:"competition_id"`
	MemberID          int64          `json:"member_id"`
	SolvedCount       int            `json:"solved_count"`
	TotalCount        int            `json:"total_count"`
	ElapsedTimeMillis int64          `json:"elapsed_time_millis"`
	Grades            []ProblemGrade `json:"grades"`
}

// LiveRankEntry is one row of the on-demand ranking computed from raw results.
type LiveRankEntry struct {
	MemberID          int64 `json:"member_id"`
	SolvedCount       int   `json:"solved_count"`
	ElapsedTimeMillis int64 `json:"elapsed_time_millis"`
	Rank              int   `json:"rank"`
}

// Summary is one materialized ranking snapshot row. A
// (periodType, periodStart, periodEnd) group is owned by one aggregator run
// and replaced wholesale, never partially updated.
type Summary struct {
	ID             int64      `json:"id" db:"id"`
	MemberID       int64      `json:"member_id" db:"member_id"`
	PeriodType     PeriodType `json:"period_type" db:"period_type"`
	PeriodStart    time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd      time.Time  `json:"period_end" db:"period_end"`
	SolvedCount    int        `json:"solved_count" db:"solved_count"`
	ElapsedTime    int64      `json:"elapsed_time" db:"elapsed_time"`
	Rank           int        `json:"rank" db:"rank"`
	ContinuousDays int        `json:"continuous_days" db:"continuous_days"`
	CorrectRate    float64    `json:"correct_rate" db:"correct_rate"`
}

// PointsEarnedEvent is the payload of a reward.points_earned outbox event.
type PointsEarnedEvent struct {
	MemberID      int64 `json:"member_id"`
	CompetitionID int64 `json:"competition_id"`
	Points        int   `json:"points"`
	SolvedCount   int   `json:"solved_count"`
}

// DailyWinnerEvent is the payload of a reward.daily_winner outbox event.
type DailyWinnerEvent struct {
	MemberID    int64  `json:"member_id"`
	PeriodStart string `json:"period_start"`
	SolvedCount int    `json:"solved_count"`
}
