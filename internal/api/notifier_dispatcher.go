package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careerbee/quizrank/internal/repository"
)

const (
	defaultRewardStreamKey    = "quizrank:rewards"
	defaultRewardStreamMaxLen = int64(100000)

	defaultOutboxDispatchInterval = 1 * time.Second
	defaultOutboxDispatchBatch    = 32
	defaultOutboxRetryBase        = 500 * time.Millisecond
	defaultOutboxRetryMax         = 30 * time.Second
)

type outboxStore interface {
	ClaimPendingOutboxEvents(ctx context.Context, limit int, baseBackoff, maxBackoff time.Duration) ([]repository.OutboxEvent, error)
	MarkOutboxDispatched(ctx context.Context, id int64, streamEntryID string) error
	MarkOutboxDispatchError(ctx context.Context, id int64, lastError string) error
	CountOutboxPending(ctx context.Context) (int64, error)
}

type rewardStreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) (string, error)
}

// notifierDispatcher drains committed reward events from the outbox to the
// notification collaborator's Redis stream. Because events are written in
// the same transaction as the domain change that caused them, an event is
// published only after its trigger committed, and delivery is retried until
// the stream accepts it.
type notifierDispatcher struct {
	store     outboxStore
	redis     rewardStreamClient
	logger    *slog.Logger
	interval  time.Duration
	batch     int
	retryBase time.Duration
	retryMax  time.Duration
}

func NewNotifierDispatcher(store outboxStore, redisClient rewardStreamClient, logger *slog.Logger) *notifierDispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	intervalMs := getEnvInt("OUTBOX_DISPATCH_INTERVAL_MS", int(defaultOutboxDispatchInterval/time.Millisecond))
	if intervalMs <= 0 {
		intervalMs = int(defaultOutboxDispatchInterval / time.Millisecond)
	}

	batch := getEnvInt("OUTBOX_DISPATCH_BATCH_SIZE", defaultOutboxDispatchBatch)
	if batch <= 0 {
		batch = defaultOutboxDispatchBatch
	}

	retryBaseMs := getEnvInt("OUTBOX_RETRY_BASE_MS", int(defaultOutboxRetryBase/time.Millisecond))
	if retryBaseMs <= 0 {
		retryBaseMs = int(defaultOutboxRetryBase / time.Millisecond)
	}
	retryMaxMs := getEnvInt("OUTBOX_RETRY_MAX_MS", int(defaultOutboxRetryMax/time.Millisecond))
	if retryMaxMs <= 0 {
		retryMaxMs = int(defaultOutboxRetryMax / time.Millisecond)
	}
	if retryMaxMs < retryBaseMs {
		retryMaxMs = retryBaseMs
	}

	return &notifierDispatcher{
		store:     store,
		redis:     redisClient,
		logger:    logger.With("component", "notifier_dispatcher"),
		interval:  time.Duration(intervalMs) * time.Millisecond,
		batch:     batch,
		retryBase: time.Duration(retryBaseMs) * time.Millisecond,
		retryMax:  time.Duration(retryMaxMs) * time.Millisecond,
	}
}

func (d *notifierDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.DispatchOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

func (d *notifierDispatcher) DispatchOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		apiOutboxDispatchLatencySeconds.Observe(time.Since(start).Seconds())
		d.updatePendingGauge(ctx)
	}()

	events, err := d.store.ClaimPendingOutboxEvents(ctx, d.batch, d.retryBase, d.retryMax)
	if err != nil {
		apiOutboxDispatchTotal.WithLabelValues("error", "db_error").Inc()
		d.logger.Error("claim outbox failed", "reason", "db_error", "error", err)
		return
	}

	for _, evt := range events {
		d.dispatchOne(ctx, evt)
	}
}

func (d *notifierDispatcher) dispatchOne(ctx context.Context, evt repository.OutboxEvent) {
	logger := d.logger.With(
		"event_id", evt.EventID,
		"event_type", evt.EventType,
		"outbox_id", evt.ID,
		"member_id", evt.MemberID,
		"attempt", evt.Attempts,
		"next_retry_at", evt.NextAttemptAt,
	)

	streamKey := strings.TrimSpace(evt.StreamKey)
	if streamKey == "" {
		streamKey = getEnvString("REWARD_STREAM_KEY", defaultRewardStreamKey)
	}
	streamMaxLen := getEnvInt64("REWARD_STREAM_MAXLEN", defaultRewardStreamMaxLen)

	entryID, err := d.redis.XAdd(ctx, buildStreamXAddArgs(streamKey, streamMaxLen, map[string]interface{}{
		"event_id":   evt.EventID,
		"event_type": evt.EventType,
		"member_id":  evt.MemberID,
		"payload":    string(evt.Payload),
	}))
	if err != nil {
		d.markDispatchError(ctx, logger, evt, "redis_xadd_error", err)
		return
	}

	if err := d.store.MarkOutboxDispatched(ctx, evt.ID, entryID); err != nil {
		apiOutboxDispatchTotal.WithLabelValues("error", "db_error").Inc()
		logger.Error("mark outbox delivered failed", "reason", "db_error", "error", err)
		return
	}

	apiOutboxDispatchTotal.WithLabelValues("ok", "ok").Inc()
	logger.Info("reward event dispatched", "stream_entry_id", entryID, "reason", "ok")
}

func (d *notifierDispatcher) markDispatchError(
	ctx context.Context,
	logger *slog.Logger,
	evt repository.OutboxEvent,
	reason string,
	err error,
) {
	apiOutboxDispatchTotal.WithLabelValues("error", reason).Inc()
	logger.Warn("reward event dispatch failed", "reason", reason, "error", err)
	if derr := d.store.MarkOutboxDispatchError(ctx, evt.ID, truncateErr(err)); derr != nil {
		apiOutboxDispatchTotal.WithLabelValues("error", "db_error").Inc()
		logger.Error("update outbox dispatch error failed", "reason", "db_error", "error", derr)
	}
}

func (d *notifierDispatcher) updatePendingGauge(ctx context.Context) {
	pending, err := d.store.CountOutboxPending(ctx)
	if err != nil {
		d.logger.Warn("count outbox pending failed", "reason", "db_error", "error", err)
		return
	}
	apiOutboxPending.Set(float64(pending))
}

func buildStreamXAddArgs(streamKey string, streamMaxLen int64, values map[string]interface{}) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: values,
	}
	if streamMaxLen > 0 {
		// Approximate trim keeps publishing O(1) on average while bounding stream memory.
		args.MaxLen = streamMaxLen
		args.Approx = true
	}
	return args
}

func truncateErr(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= 512 {
		return msg
	}
	return fmt.Sprintf("%s...", msg[:509])
}
