package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
)

type memItem struct {
	raw string
	at  time.Time
}

// MemoryQueue mirrors RedisQueue in process. It backs tests and runs
// without Redis configured.
type MemoryQueue struct {
	mu       sync.Mutex
	dedup    dedup.Store
	clock    clock.Clock
	opts     Options
	delayed  []memItem
	inflight map[string]time.Time
}

// NewMemoryQueue builds an empty queue.
func NewMemoryQueue(store dedup.Store, c clock.Clock, opts Options) *MemoryQueue {
	if c == nil {
		c = clock.Real()
	}
	if store == nil {
		store = dedup.NewMemoryStore(c)
	}
	return &MemoryQueue{
		dedup:    store,
		clock:    c,
		opts:     opts.withDefaults(),
		inflight: make(map[string]time.Time),
	}
}

// Submit implements Submitter.
func (q *MemoryQueue) Submit(ctx context.Context, job domain.Job, delay time.Duration) (SubmitResult, error) {
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
		if job.IdempotencyKey != "" {
			_ = q.dedup.Release(ctx, job.IdempotencyKey)
		}
		return SubmitResult{}, fmt.Errorf("encode job: %w", err)
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, memItem{raw: string(payload), at: q.clock.Now().Add(delay)})
	return SubmitResult{JobID: job.ID, Enqueued: true}, nil
}

// Claim implements Consumer.
func (q *MemoryQueue) Claim(_ context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	sort.SliceStable(q.delayed, func(i, j int) bool { return q.delayed[i].at.Before(q.delayed[j].at) })

	var out []Delivery
	rest := q.delayed[:0]
	for _, item := range q.delayed {
		if len(out) < limit && !item.at.After(now) {
			out = append(out, Delivery{Raw: item.raw})
			q.inflight[item.raw] = now.Add(q.opts.Visibility)
			continue
		}
		rest = append(rest, item)
	}
	q.delayed = rest
	return out, nil
}

// Ack implements Consumer.
func (q *MemoryQueue) Ack(_ context.Context, d Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, d.Raw)
	return nil
}

// RequeueExpired implements Consumer.
func (q *MemoryQueue) RequeueExpired(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock.Now()
	n := 0
	for raw, until := range q.inflight {
		if until.After(now) {
			continue
		}
		delete(q.inflight, raw)
		q.delayed = append(q.delayed, memItem{raw: raw, at: now})
		n++
	}
	return n, nil
}

// Jobs decodes every delayed job, in due order. Intended for assertions.
func (q *MemoryQueue) Jobs() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := append([]memItem(nil), q.delayed...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	jobs := make([]domain.Job, 0, len(items))
	for _, item := range items {
		var job domain.Job
		if err := json.Unmarshal([]byte(item.raw), &job); err == nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Push places a raw payload on the delayed set as if it were submitted. Tests
// use it to inject payloads the encoder would never produce.
func (q *MemoryQueue) Push(raw string, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, memItem{raw: raw, at: at})
}
