package contest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/internal/repository"
	"github.com/careerbee/quizrank/pkg/common"
)

// Store is the storage surface the contest service needs.
type Store interface {
	GetCompetition(ctx context.Context, id int64) (*model.Competition, error)
	GetCurrentCompetition(ctx context.Context, at time.Time) (*model.Competition, error)
	ListProblems(ctx context.Context, competitionID int64) ([]model.Problem, error)
	CreateParticipant(ctx context.Context, p *model.Participant) error
	HasResult(ctx context.Context, memberID, competitionID int64) (bool, error)
	CreateResultWithReward(ctx context.Context, result *model.Result, points int, event *repository.OutboxEvent) error
	ListResultsBetween(ctx context.Context, from, to time.Time) ([]model.Result, error)
	GetMemberPoints(ctx context.Context, memberID int64) (int64, error)
}

// Service implements join, submit/grade and the live ranking.
type Service struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger
}

// NewService creates the contest service. loc is the calendar zone used to
// resolve "today" for live rankings.
func NewService(store Store, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		loc:    loc,
		logger: logger.With("component", "contest_service"),
	}
}

// CurrentCompetition returns the competition whose window contains now.
func (s *Service) CurrentCompetition(ctx context.Context, now time.Time) (*model.Competition, error) {
	return s.store.GetCurrentCompetition(ctx, now)
}

// Problems returns the problem set of a competition. Correct choices and
// explanations are stripped from the JSON encoding at the model level, so
// this is safe to expose before grading.
func (s *Service) Problems(ctx context.Context, competitionID int64) ([]model.Problem, error) {
	if _, err := s.store.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.store.ListProblems(ctx, competitionID)
}

// Join registers a member for a competition. A second join for the same pair
// returns ErrAlreadyJoined from the storage constraint, an explicit
// rejection rather than a silent no-op.
func (s *Service) Join(ctx context.Context, memberID, competitionID int64) error {
	if _, err := s.store.GetCompetition(ctx, competitionID); err != nil {
		return err
	}
	p := &model.Participant{MemberID: memberID, CompetitionID: competitionID}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return err
	}
	s.logger.Info("member joined", "member_id", memberID, "competition_id", competitionID)
	return nil
}

// Submit grades one submission and persists its result exactly once.
//
// The HasResult pre-check is advisory: it produces a friendly early
// rejection, but under concurrent submissions only the unique constraint on
// results decides the winner. The loser's whole transaction (result, point
// credit, outbox event) rolls back and surfaces as ErrAlreadySubmitted.
func (s *Service) Submit(
	ctx context.Context,
	memberID, competitionID int64,
	answers []model.Answer,
	elapsedTimeMillis int64,
) (*model.GradingResult, error) {
	if _, err := s.store.GetCompetition(ctx, competitionID); err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: empty submission", common.ErrInvalidInput)
	}

	exists, err := s.store.HasResult(ctx, memberID, competitionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrAlreadySubmitted
	}

	problems, err := s.store.ListProblems(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	grades, solved, err := grade(problems, answers)
	if err != nil {
		return nil, err
	}

	result := &model.Result{
		MemberID:          memberID,
		CompetitionID:     competitionID,
		SolvedCount:       solved,
		ElapsedTimeMillis: elapsedTimeMillis,
	}
	event, err := repository.NewPointsEarnedEvent(uuid.NewString(), model.PointsEarnedEvent{
		MemberID:      memberID,
		CompetitionID: competitionID,
		Points:        common.SubmissionPointCredit,
		SolvedCount:   solved,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateResultWithReward(ctx, result, common.SubmissionPointCredit, event); err != nil {
		return nil, err
	}

	s.logger.Info("submission graded",
		"member_id", memberID,
		"competition_id", competitionID,
		"solved", solved,
		"total", len(answers),
		"elapsed_ms", elapsedTimeMillis,
	)
	return &model.GradingResult{
		CompetitionID:     competitionID,
		MemberID:          memberID,
		SolvedCount:       solved,
		TotalCount:        len(answers),
		ElapsedTimeMillis: elapsedTimeMillis,
		Grades:            grades,
	}, nil
}

// LiveRanking computes the ranking of one calendar day straight from the
// result ledger, bypassing the materialized summaries. Order: solved desc,
// elapsed asc; ranks are sequential 1-based, ties still get distinct ranks.
func (s *Service) LiveRanking(ctx context.Context, date time.Time) ([]model.LiveRankEntry, error) {
	from, to := dayBounds(date, s.loc)
	results, err := s.store.ListResultsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LiveRankEntry, 0, len(results))
	for i, r := range results {
		entries = append(entries, model.LiveRankEntry{
			MemberID:          r.MemberID,
			SolvedCount:       r.SolvedCount,
			ElapsedTimeMillis: r.ElapsedTimeMillis,
			Rank:              i + 1,
		})
	}
	return entries, nil
}

// MemberLiveRank locates one member inside the full ordered live ranking.
// It deliberately scans the list form rather than computing the rank
// independently, so the two views can never disagree.
func (s *Service) MemberLiveRank(ctx context.Context, memberID int64, date time.Time) (*model.LiveRankEntry, error) {
	entries, err := s.LiveRanking(ctx, date)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].MemberID == memberID {
			return &entries[i], nil
		}
	}
	return nil, common.ErrNotFound
}

// MemberPoints returns a member's accumulated point balance. Members who
// never earned points have a balance of zero.
func (s *Service) MemberPoints(ctx context.Context, memberID int64) (int64, error) {
	return s.store.GetMemberPoints(ctx, memberID)
}

func dayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	d := date.In(loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}
