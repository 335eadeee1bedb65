package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

// ErrRewriteLocked means another aggregator run currently holds the lease
// for the same period group. The caller skips, it does not retry.
var ErrRewriteLocked = errors.New("period rewrite lease held")

const summaryInsertBatchSize = 200

const insertSummarySQL = `
	INSERT INTO summaries (
		member_id, period_type, period_start, period_end,
		solved_count, elapsed_time, rank, continuous_days, correct_rate
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const deletePeriodSummariesSQL = `
	DELETE FROM summaries
	WHERE period_type = $1 AND period_start = $2 AND period_end = $3
`

// periodLockKey derives the advisory lock key of one period group.
func periodLockKey(periodType model.PeriodType, periodStart, periodEnd time.Time) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s",
		periodType,
		periodStart.Format("2006-01-02"),
		periodEnd.Format("2006-01-02"),
	)
	return int64(h.Sum64())
}

// ReplacePeriodSummaries atomically replaces the whole summary group of one
// period: take the period lease, delete every existing row, bulk-insert the
// fresh rows in fixed-size batches, all in one transaction. Re-running with
// the same input converges to the same end state. An empty input still
// deletes, clearing a previously non-empty period. winnerEvent, when set, is
// recorded in the same transaction so the daily-winner notification exists
// only if the rewrite committed.
func (db *PostgresDB) ReplacePeriodSummaries(
	ctx context.Context,
	periodType model.PeriodType,
	periodStart, periodEnd time.Time,
	rows []model.Summary,
	winnerEvent *OutboxEvent,
) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Transaction-scoped advisory lock: released automatically on commit or
	// rollback, so a crashed run can never leave the period fenced off.
	var acquired bool
	lockKey := periodLockKey(periodType, periodStart, periodEnd)
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockKey).Scan(&acquired); err != nil {
		return fmt.Errorf("acquire period lease: %w", err)
	}
	if !acquired {
		return ErrRewriteLocked
	}

	if _, err := tx.Exec(ctx, deletePeriodSummariesSQL, periodType, periodStart, periodEnd); err != nil {
		return fmt.Errorf("delete period summaries: %w", err)
	}

	for offset := 0; offset < len(rows); offset += summaryInsertBatchSize {
		end := offset + summaryInsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := insertSummaryBatch(ctx, tx, rows[offset:end]); err != nil {
			return err
		}
	}

	if winnerEvent != nil {
		if err := insertOutboxEvent(ctx, tx, winnerEvent); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertSummaryBatch(ctx context.Context, tx pgx.Tx, rows []model.Summary) error {
	batch := &pgx.Batch{}
	for _, s := range rows {
		batch.Queue(
			insertSummarySQL,
			s.MemberID,
			s.PeriodType,
			s.PeriodStart,
			s.PeriodEnd,
			s.SolvedCount,
			s.ElapsedTime,
			s.Rank,
			s.ContinuousDays,
			s.CorrectRate,
		)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert summary batch: %w", err)
		}
	}
	return br.Close()
}

// TopSummaries returns the n lowest-rank rows of the period containing
// asOfDate. Lookup is by containment, not exact boundary match.
func (db *PostgresDB) TopSummaries(
	ctx context.Context,
	periodType model.PeriodType,
	asOfDate time.Time,
	n int,
) ([]model.Summary, error) {
	query := `
		SELECT id, member_id, period_type, period_start, period_end,
		       solved_count, elapsed_time, rank, continuous_days, correct_rate
		FROM summaries
		WHERE period_type = $1 AND period_start <= $2 AND period_end >= $2
		ORDER BY rank ASC
		LIMIT $3
	`
	rows, err := db.pool.Query(ctx, query, periodType, asOfDate, n)
	if err != nil {
		return nil, fmt.Errorf("top summaries: %w", err)
	}
	defer rows.Close()

	var summaries []model.Summary
	for rows.Next() {
		var s model.Summary
		if err := scanSummary(rows.Scan, &s); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// MemberSummary returns the member's row for the period containing asOfDate,
// or ErrNoSummary when the member has no row for that period.
func (db *PostgresDB) MemberSummary(
	ctx context.Context,
	memberID int64,
	periodType model.PeriodType,
	asOfDate time.Time,
) (*model.Summary, error) {
	query := `
		SELECT id, member_id, period_type, period_start, period_end,
		       solved_count, elapsed_time, rank, continuous_days, correct_rate
		FROM summaries
		WHERE member_id = $1 AND period_type = $2 AND period_start <= $3 AND period_end >= $3
	`
	var s model.Summary
	err := db.pool.QueryRow(ctx, query, memberID, periodType, asOfDate).Scan(
		&s.ID, &s.MemberID, &s.PeriodType, &s.PeriodStart, &s.PeriodEnd,
		&s.SolvedCount, &s.ElapsedTime, &s.Rank, &s.ContinuousDays, &s.CorrectRate,
	)
	if IsNoRows(err) {
		return nil, common.ErrNoSummary
	}
	if err != nil {
		return nil, fmt.Errorf("member summary: %w", err)
	}
	return &s, nil
}

func scanSummary(scan func(dest ...any) error, s *model.Summary) error {
	if err := scan(
		&s.ID, &s.MemberID, &s.PeriodType, &s.PeriodStart, &s.PeriodEnd,
		&s.SolvedCount, &s.ElapsedTime, &s.Rank, &s.ContinuousDays, &s.CorrectRate,
	); err != nil {
		return fmt.Errorf("scan summary: %w", err)
	}
	return nil
}
