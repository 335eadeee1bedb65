package repository

import (
	"context"
	"fmt"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

// CreateParticipant inserts one join row. A second join for the same
// (member, competition) pair hits the unique constraint and is translated
// to ErrAlreadyJoined: attempt-insert, not check-then-insert.
func (db *PostgresDB) CreateParticipant(ctx context.Context, p *model.Participant) error {
	query := `
		INSERT INTO participants (member_id, competition_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := db.pool.QueryRow(ctx, query, p.MemberID, p.CompetitionID).Scan(&p.ID, &p.CreatedAt)
	if IsUniqueViolation(err) {
		return common.ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// HasResult reports whether a graded result already exists for the pair.
// Advisory only: the unique constraint on results is the real guard.
func (db *PostgresDB) HasResult(ctx context.Context, memberID, competitionID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM results
			WHERE member_id = $1 AND competition_id = $2
		)
	`
	var exists bool
	if err := db.pool.QueryRow(ctx, query, memberID, competitionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has result: %w", err)
	}
	return exists, nil
}
