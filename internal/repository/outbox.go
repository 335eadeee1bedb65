package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
)

const claimPendingOutboxSQL = `
	WITH picked AS (
		SELECT id
		FROM outbox_events
		WHERE status = $1
		  AND dispatched_at IS NULL
		  AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at, id
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	)
	UPDATE outbox_events AS o
	SET attempts = o.attempts + 1,
	    next_attempt_at = NOW() + (
	        LEAST(
	            $4::numeric,
	            GREATEST(
	                1::numeric,
	                LEAST(
	                    $3::numeric * POWER(2::numeric, LEAST(o.attempts, 30)),
	                    $4::numeric
	                ) * (0.9 + random() * 0.2)
	            )
	        )::BIGINT * interval '1 millisecond'
	    ),
	    updated_at = NOW()
	FROM picked
	WHERE o.id = picked.id
	RETURNING o.id, o.event_type, o.event_id, o.member_id, o.stream_key,
	          o.payload::text, o.status, o.attempts, o.next_attempt_at, o.created_at, o.updated_at
`

// OutboxEvent is one reward/notification event awaiting dispatch. Rows are
// written in the same transaction as the domain write that caused them, so
// an event exists only if its trigger committed (commit-then-notify).
type OutboxEvent struct {
	ID            int64
	EventType     string
	EventID       string
	MemberID      int64
	StreamKey     string
	Payload       []byte
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	DispatchedAt  *time.Time
	StreamEntryID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const insertOutboxEventSQL = `
	INSERT INTO outbox_events (
		event_type, event_id, member_id, stream_key, payload,
		status, attempts, next_attempt_at, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6, 0, NOW(), NOW(), NOW())
	ON CONFLICT (event_id) DO NOTHING
	RETURNING id, created_at, updated_at
`

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	status := strings.TrimSpace(event.Status)
	if status == "" {
		status = OutboxStatusPending
	}

	err := tx.QueryRow(
		ctx,
		insertOutboxEventSQL,
		event.EventType,
		event.EventID,
		event.MemberID,
		event.StreamKey,
		string(event.Payload),
		status,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if IsNoRows(err) {
		// Same event_id already recorded by an earlier run; keep the
		// rewrite idempotent and skip the duplicate.
		event.Status = status
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	event.Status = status
	return nil
}

// ClaimPendingOutboxEvents claims pending outbox rows with row-level locking
// and applies exponential retry backoff with jitter in SQL.
func (db *PostgresDB) ClaimPendingOutboxEvents(
	ctx context.Context,
	limit int,
	baseBackoff time.Duration,
	maxBackoff time.Duration,
) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 32
	}
	baseMs := int64(baseBackoff / time.Millisecond)
	if baseMs <= 0 {
		baseMs = int64((500 * time.Millisecond) / time.Millisecond)
	}
	maxMs := int64(maxBackoff / time.Millisecond)
	if maxMs <= 0 {
		maxMs = int64((30 * time.Second) / time.Millisecond)
	}
	if maxMs < baseMs {
		maxMs = baseMs
	}

	rows, err := db.pool.Query(ctx, claimPendingOutboxSQL, OutboxStatusPending, limit, baseMs, maxMs)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	events := make([]OutboxEvent, 0, limit)
	for rows.Next() {
		var evt OutboxEvent
		var payloadText string
		if err := rows.Scan(
			&evt.ID,
			&evt.EventType,
			&evt.EventID,
			&evt.MemberID,
			&evt.StreamKey,
			&payloadText,
			&evt.Status,
			&evt.Attempts,
			&evt.NextAttemptAt,
			&evt.CreatedAt,
			&evt.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		evt.Payload = []byte(payloadText)
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (db *PostgresDB) MarkOutboxDispatched(ctx context.Context, id int64, streamEntryID string) error {
	query := `
		UPDATE outbox_events
		SET status = $2,
		    last_error = NULL,
		    dispatched_at = NOW(),
		    stream_entry_id = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := db.pool.Exec(ctx, query, id, OutboxStatusDelivered, streamEntryID); err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

func (db *PostgresDB) MarkOutboxDispatchError(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE outbox_events
		SET status = $2,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND dispatched_at IS NULL
	`
	if _, err := db.pool.Exec(ctx, query, id, OutboxStatusPending, lastError); err != nil {
		return fmt.Errorf("mark outbox dispatch error: %w", err)
	}
	return nil
}

func (db *PostgresDB) CountOutboxPending(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(1)
		FROM outbox_events
		WHERE status = $1
		  AND dispatched_at IS NULL
	`
	var count int64
	if err := db.pool.QueryRow(ctx, query, OutboxStatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("count outbox pending: %w", err)
	}
	return count, nil
}
