package common

const (
	// Ranking cache key prefix
	RankingCachePrefix = "quizrank:ranking:"

	// Event types carried through the outbox
	EventTypePointsEarned = "reward.points_earned"
	EventTypeDailyWinner  = "reward.daily_winner"

	// Points credited for a graded submission
	SubmissionPointCredit = 10
)
