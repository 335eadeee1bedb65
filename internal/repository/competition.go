package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

// GetCompetition retrieves a competition by ID.
func (db *PostgresDB) GetCompetition(ctx context.Context, id int64) (*model.Competition, error) {
	query := `
		SELECT id, start_time, end_time, created_at
		FROM competitions
		WHERE id = $1
	`
	var c model.Competition
	err := db.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.StartTime, &c.EndTime, &c.CreatedAt)
	if IsNoRows(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return &c, nil
}

// GetCurrentCompetition finds the competition whose window contains at.
// At most one competition is current for a calendar day.
func (db *PostgresDB) GetCurrentCompetition(ctx context.Context, at time.Time) (*model.Competition, error) {
	query := `
		SELECT id, start_time, end_time, created_at
		FROM competitions
		WHERE start_time <= $1 AND end_time >= $1
		ORDER BY start_time DESC
		LIMIT 1
	`
	var c model.Competition
	err := db.pool.QueryRow(ctx, query, at).Scan(&c.ID, &c.StartTime, &c.EndTime, &c.CreatedAt)
	if IsNoRows(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current competition: %w", err)
	}
	return &c, nil
}

// ListProblems loads all problems of a competition in one batched read.
// The grader builds its answer map from this, never querying per question.
func (db *PostgresDB) ListProblems(ctx context.Context, competitionID int64) ([]model.Problem, error) {
	query := `
		SELECT id, competition_id, title, description, correct_choice_index, explanation, created_at
		FROM problems
		WHERE competition_id = $1
		ORDER BY id
	`
	rows, err := db.pool.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(
			&p.ID, &p.CompetitionID, &p.Title, &p.Description,
			&p.CorrectChoiceIndex, &p.Explanation, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}
