package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
	// AttemptMaxTries is how many failed writes an attempt survives before
	// it is parked on the dead queue for manual inspection. With the backoff
	// below that is roughly twenty minutes of database outage.
	AttemptMaxTries = 10
	// AttemptRetryBase is the wait after the first failed write. It doubles
	// per try up to AttemptRetryMax.
	AttemptRetryBase = 5 * time.Second
	AttemptRetryMax  = 5 * time.Minute
)

// AttemptWriter is the durable store for graded attempts. Both methods
// must be idempotent by attempt ID.
type AttemptWriter interface {
	RecordBatch(ctx context.Context, attempts []model.Attempt) (int, error)
	Record(ctx context.Context, a *model.Attempt) error
}

// AttemptWorker drains the retry queue of attempts whose first write failed.
// Failed writes wait in a sorted set until their backoff has passed, and
// every saved attempt id is published so live sessions learn about it.
type AttemptWorker struct {
	writer    AttemptWriter
	rdb       *redis.Client
	maxTries  int
	flushAge  time.Duration
	retryBase time.Duration
	retryMax  time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewAttemptWorker(writer AttemptWriter, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		writer:    writer,
		rdb:       rdb,
		maxTries:  AttemptMaxTries,
		flushAge:  AttemptBatchTimeout,
		retryBase: AttemptRetryBase,
		retryMax:  AttemptRetryMax,
		now:       time.Now,
		log:       log.With().Str("component", "attempt_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*model.QueuedAttempt, 0, AttemptBatchSize)
	lastFlush := time.Now()
	var lastPromote time.Time

	for {
		if time.Since(lastPromote) >= w.flushAge {
			w.promoteDue(ctx)
			lastPromote = time.Now()
		}

		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= w.flushAge) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var q model.QueuedAttempt
			if err := json.Unmarshal([]byte(item[1]), &q); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload, moving to dead queue")
				w.rdb.RPush(ctx, config.WorkerKey.DeadAttemptsQueue, item[1])
				continue
			}
			batch = append(batch, &q)
		}
	}
}

// ----------------------------------------------------------------
// Batch write with single-row fallback
// ----------------------------------------------------------------

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*model.QueuedAttempt) {
	if len(batch) == 0 {
		return
	}

	attempts := make([]model.Attempt, len(batch))
	for i, q := range batch {
		attempts[i] = q.Attempt
	}

	inserted, err := w.writer.RecordBatch(ctx, attempts)
	if err == nil {
		w.log.Info().Int("batch", len(batch)).Int("inserted", inserted).Msg("Recorded queued attempts")
		w.announce(ctx, batch)
		return
	}

	w.log.Warn().Err(err).Msg("Batch record failed, using fallback")
	saved := make([]*model.QueuedAttempt, 0, len(batch))
	for _, q := range batch {
		if err := w.writer.Record(ctx, &q.Attempt); err != nil {
			w.requeue(ctx, q, err)
			continue
		}
		saved = append(saved, q)
	}
	w.announce(ctx, saved)
}

// ----------------------------------------------------------------
// Backoff, dead letters and notifications
// ----------------------------------------------------------------

// requeue parks a failed attempt in the retry set until its backoff passes,
// or on the dead queue once it has used up its tries.
func (w *AttemptWorker) requeue(ctx context.Context, q *model.QueuedAttempt, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	q.Tries++
	id := q.Attempt.ID.String()

	if q.Tries >= w.maxTries {
		w.log.Error().Err(cause).Str("attempt_id", id).Int("tries", q.Tries).Msg("Record failed too often, parking on dead queue")
		raw, _ := json.Marshal(q)
		if err := w.rdb.RPush(ctx, config.WorkerKey.DeadAttemptsQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Str("attempt_id", id).Msg("Dead queue push failed, attempt lost")
		}
		return
	}

	q.RetryAt = w.now().Add(w.retryDelay(q.Tries))
	w.log.Warn().Err(cause).
		Str("attempt_id", id).
		Int("tries", q.Tries).
		Time("retry_at", q.RetryAt).
		Msg("Record failed, retrying later")

	raw, _ := json.Marshal(q)
	z := redis.Z{Score: float64(q.RetryAt.UnixMilli()), Member: raw}
	if err := w.rdb.ZAdd(ctx, config.WorkerKey.RetryAttemptsSet, z).Err(); err != nil {
		w.log.Error().Err(err).Str("attempt_id", id).Msg("Retry set push failed, attempt lost")
	}
}

// retryDelay is retryBase doubled per earlier try, capped at retryMax.
func (w *AttemptWorker) retryDelay(tries int) time.Duration {
	d := w.retryBase
	for i := 1; i < tries && d < w.retryMax; i++ {
		d *= 2
	}
	return min(d, w.retryMax)
}

// promoteDue moves attempts whose backoff has passed back onto the queue.
// ZREM decides ownership when several workers share the set.
func (w *AttemptWorker) promoteDue(ctx context.Context) {
	key := config.WorkerKey.RetryAttemptsSet
	due, err := w.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(w.now().UnixMilli(), 10),
		Count: AttemptBatchSize,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Reading retry set failed")
		}
		return
	}

	for _, raw := range due {
		n, err := w.rdb.ZRem(ctx, key, raw).Result()
		if err != nil || n == 0 {
			continue
		}
		if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
			w.log.Error().Err(err).Msg("Promote failed, returning attempt to retry set")
			w.rdb.ZAdd(context.WithoutCancel(ctx), key, redis.Z{Score: float64(w.now().UnixMilli()), Member: raw})
		}
	}
}

// announce publishes the ids of saved attempts.
func (w *AttemptWorker) announce(ctx context.Context, saved []*model.QueuedAttempt) {
	if len(saved) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	channel := config.CacheKey.AttemptRecordedChannel()
	pipe := w.rdb.Pipeline()
	for _, q := range saved {
		pipe.Publish(ctx, channel, q.Attempt.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Int("count", len(saved)).Msg("Announcing recorded attempts failed")
	}
}
