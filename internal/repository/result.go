package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

// CreateResultWithReward persists the graded result, credits the fixed point
// reward and records the points-earned outbox event in one transaction.
// If the result insert loses the uniqueness race the whole transaction rolls
// back and ErrAlreadySubmitted is returned: no stray credit, no stray event.
func (db *PostgresDB) CreateResultWithReward(
	ctx context.Context,
	result *model.Result,
	points int,
	event *OutboxEvent,
) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	resultSQL := `
		INSERT INTO results (member_id, competition_id, solved_count, elapsed_time_millis)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRow(
		ctx,
		resultSQL,
		result.MemberID,
		result.CompetitionID,
		result.SolvedCount,
		result.ElapsedTimeMillis,
	).Scan(&result.ID, &result.CreatedAt)
	if IsUniqueViolation(err) {
		return common.ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	pointsSQL := `
		INSERT INTO member_points (member_id, points, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (member_id)
		DO UPDATE SET points = member_points.points + EXCLUDED.points, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, pointsSQL, result.MemberID, points); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}

	if event != nil {
		if err := insertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetMemberPoints returns the member's current point balance, 0 when the
// member has never earned points.
func (db *PostgresDB) GetMemberPoints(ctx context.Context, memberID int64) (int64, error) {
	query := `SELECT points FROM member_points WHERE member_id = $1`
	var points int64
	err := db.pool.QueryRow(ctx, query, memberID).Scan(&points)
	if IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get member points: %w", err)
	}
	return points, nil
}

// ListResultsBetween returns all results created in [from, to), ordered by
// the live-ranking tie-break: solved desc, elapsed asc, then created_at and
// member_id for a deterministic total order.
func (db *PostgresDB) ListResultsBetween(ctx context.Context, from, to time.Time) ([]model.Result, error) {
	query := `
		SELECT id, member_id, competition_id, solved_count, elapsed_time_millis, created_at
		FROM results
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY solved_count DESC, elapsed_time_millis ASC, created_at ASC, member_id ASC
	`
	rows, err := db.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		if err := rows.Scan(
			&r.ID, &r.MemberID, &r.CompetitionID,
			&r.SolvedCount, &r.ElapsedTimeMillis, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// NewPointsEarnedEvent builds the outbox row recorded alongside a result.
func NewPointsEarnedEvent(eventID string, payload model.PointsEarnedEvent) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal points earned payload: %w", err)
	}
	return &OutboxEvent{
		EventType: common.EventTypePointsEarned,
		EventID:   eventID,
		MemberID:  payload.MemberID,
		Payload:   body,
		Status:    OutboxStatusPending,
	}, nil
}
