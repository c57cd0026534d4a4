// Package queue provides the delayed job queue the SLA scheduler submits to
// and the worker consumes from. Delivery is at-least-once: claimed jobs hold a
// lease and return to the delayed set if they are not acknowledged in time.
package queue

import (
	"context"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SubmitResult reports what happened to a submission.
type SubmitResult struct {
	JobID    string
	Enqueued bool
	Deduped  bool
}

// Submitter schedules a job to become deliverable after delay. A job whose
// idempotency key was already submitted within the retention window is not
// enqueued again and comes back with Deduped set.
type Submitter interface {
	Submit(ctx context.Context, job domain.Job, delay time.Duration) (SubmitResult, error)
}

// Delivery is a claimed job in its raw wire form. Decoding is left to the
// consumer so a malformed payload can be rejected without stalling the queue.
type Delivery struct {
	Raw string
}

// Consumer claims due jobs and acknowledges handled ones.
type Consumer interface {
	Claim(ctx context.Context, limit int) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	RequeueExpired(ctx context.Context) (int, error)
}

// Options tune retention and leases.
type Options struct {
	// DedupTTL bounds how long an idempotency key suppresses resubmission.
	DedupTTL time.Duration
	// Visibility is how long a claimed job stays leased before redelivery.
	Visibility time.Duration
}

func (o Options) withDefaults() Options {
	if o.DedupTTL <= 0 {
		o.DedupTTL = 14 * 24 * time.Hour
	}
	if o.Visibility <= 0 {
		o.Visibility = time.Minute
	}
	return o
}
