package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
)

const (
	delayedKey  = "sla:jobs:delayed"
	inflightKey = "sla:jobs:inflight"
)

// claimScript moves up to ARGV[2] members due at ARGV[1] from the delayed set
// into the in-flight set scored by their lease expiry ARGV[3].
var claimScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(items) do
  redis.call('ZREM', KEYS[1], member)
  redis.call('ZADD', KEYS[2], ARGV[3], member)
end
return items
`)

// requeueScript returns in-flight members whose lease expired by ARGV[1] to the delayed set.
var requeueScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, member in ipairs(items) do
  redis.call('ZREM', KEYS[1], member)
  redis.call('ZADD', KEYS[2], ARGV[1], member)
end
return #items
`)

// RedisQueue is a delayed queue on Redis sorted sets.
type RedisQueue struct {
	client *redis.Client
	dedup  dedup.Store
	clock  clock.Clock
	opts   Options
}

// NewRedisQueue builds the queue. Idempotency keys are claimed in store.
func NewRedisQueue(client *redis.Client, store dedup.Store, c clock.Clock, opts Options) *RedisQueue {
	if c == nil {
		c = clock.Real()
	}
	return &RedisQueue{client: client, dedup: store, clock: c, opts: opts.withDefaults()}
}

// Submit implements Submitter.
func (q *RedisQueue) Submit(ctx context.Context, job domain.Job, delay time.Duration) (SubmitResult, error) {
	if job.IdempotencyKey != "" {
		claimed, holder, err := q.dedup.Claim(ctx, job.IdempotencyKey, job.ID, q.opts.DedupTTL)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return SubmitResult{JobID: holder, Deduped: true}, nil
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		q.release(ctx, job)
		return SubmitResult{}, fmt.Errorf("encode job: %w", err)
	}
	if delay < 0 {
		delay = 0
	}
	readyAt := q.clock.Now().Add(delay)
	if err := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: float64(readyAt.UnixMilli()), Member: string(payload)}).Err(); err != nil {
		q.release(ctx, job)
		return SubmitResult{}, fmt.Errorf("enqueue job: %w", err)
	}
	return SubmitResult{JobID: job.ID, Enqueued: true}, nil
}

// release frees the idempotency key of a job that never reached the queue so a retry can enqueue it.
func (q *RedisQueue) release(ctx context.Context, job domain.Job) {
	if job.IdempotencyKey != "" {
		_ = q.dedup.Release(ctx, job.IdempotencyKey)
	}
}

// Claim implements Consumer.
func (q *RedisQueue) Claim(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 1
	}
	now := q.clock.Now()
	leaseUntil := now.Add(q.opts.Visibility)
	members, err := claimScript.Run(ctx, q.client,
		[]string{delayedKey, inflightKey},
		now.UnixMilli(), limit, leaseUntil.UnixMilli(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	deliveries := make([]Delivery, 0, len(members))
	for _, m := range members {
		deliveries = append(deliveries, Delivery{Raw: m})
	}
	return deliveries, nil
}

// Ack implements Consumer.
func (q *RedisQueue) Ack(ctx context.Context, d Delivery) error {
	return q.client.ZRem(ctx, inflightKey, d.Raw).Err()
}

// RequeueExpired implements Consumer.
func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	n, err := requeueScript.Run(ctx, q.client,
		[]string{inflightKey, delayedKey},
		q.clock.Now().UnixMilli(),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return n, nil
}

// Pending returns the number of delayed and in-flight jobs.
func (q *RedisQueue) Pending(ctx context.Context) (delayed, inflight int64, err error) {
	pipe := q.client.Pipeline()
	d := pipe.ZCard(ctx, delayedKey)
	f := pipe.ZCard(ctx, inflightKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return d.Val(), f.Val(), nil
}
