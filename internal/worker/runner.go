package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/queue"
)

// RunnerConfig controls polling and parallelism.
type RunnerConfig struct {
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
}

// Runner polls the delayed queue and dispatches fired jobs to the breach
// evaluator or the reminder handler with bounded parallelism.
type Runner struct {
	consumer queue.Consumer
	breach   *BreachEvaluator
	reminder *ReminderHandler
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      RunnerConfig
}

// RunnerDependencies bundles collaborators for the runner.
type RunnerDependencies struct {
	Consumer queue.Consumer
	Breach   *BreachEvaluator
	Reminder *ReminderHandler
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Config   RunnerConfig
}

// NewRunner constructs the runner.
func NewRunner(deps RunnerDependencies) *Runner {
	cfg := deps.Config
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		consumer: deps.Consumer,
		breach:   deps.Breach,
		reminder: deps.Reminder,
		clock:    c,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      cfg,
	}
}

// Run polls until ctx is cancelled. A poll that found work is followed
// immediately by another; an empty or failed poll waits PollInterval.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("sla worker started",
		zap.Int("concurrency", r.cfg.Concurrency),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Duration("poll_interval", r.cfg.PollInterval),
	)
	for {
		n, err := r.Poll(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("sla worker poll failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			r.logger.Info("sla worker stopped")
			return nil
		}
		if n > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			r.logger.Info("sla worker stopped")
			return nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// Poll returns expired leases to the queue, claims one batch of due jobs and
// handles them. It returns the number of jobs claimed.
func (r *Runner) Poll(ctx context.Context) (int, error) {
	if requeued, err := r.consumer.RequeueExpired(ctx); err != nil {
		return 0, err
	} else if requeued > 0 {
		r.logger.Info("requeued expired sla jobs", zap.Int("count", requeued))
	}

	deliveries, err := r.consumer.Claim(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, d := range deliveries {
		g.Go(func() error {
			r.process(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return len(deliveries), nil
}

// process handles one delivery. Handler errors leave the job unacknowledged
// so its lease expires and it is delivered again.
func (r *Runner) process(ctx context.Context, d queue.Delivery) {
	var job domain.Job
	if err := json.Unmarshal([]byte(d.Raw), &job); err != nil {
		r.logger.Warn("dropping malformed sla job", zap.Error(err))
		r.metrics.RecordJobEvaluated("unknown", "rejected", "malformed payload")
		r.ack(ctx, d, "")
		return
	}
	if err := job.Validate(); err != nil {
		r.logger.Warn("dropping invalid sla job", zap.String("job_id", job.ID), zap.Error(err))
		r.metrics.RecordJobEvaluated(string(job.Type), "rejected", "invalid payload")
		r.ack(ctx, d, job.ID)
		return
	}

	res, err := r.Handle(ctx, job)
	if err != nil {
		r.logger.Warn("sla job failed; will retry after lease expiry",
			zap.String("job_id", job.ID),
			zap.String("ticket_id", job.TicketID),
			zap.String("job_type", string(job.Type)),
			zap.Error(err),
		)
		r.metrics.RecordJobEvaluated(string(job.Type), "error", "")
		return
	}

	if res.Skipped {
		r.logger.Debug("sla job skipped",
			zap.String("job_id", job.ID),
			zap.String("ticket_id", job.TicketID),
			zap.String("job_type", string(job.Type)),
			zap.String("reason", res.Reason),
		)
		r.metrics.RecordJobEvaluated(string(job.Type), "skipped", res.Reason)
	} else {
		r.metrics.RecordJobEvaluated(string(job.Type), "handled", "")
	}
	r.ack(ctx, d, job.ID)
}

// Handle routes job to its handler.
func (r *Runner) Handle(ctx context.Context, job domain.Job) (Result, error) {
	switch job.Type {
	case domain.JobTypeReminder:
		if r.reminder == nil {
			return skipped(ReasonUnsupportedJobType), nil
		}
		return r.reminder.Handle(ctx, job)
	case domain.JobTypeFirstResponse, domain.JobTypeResolve:
		if r.breach == nil {
			return skipped(ReasonUnsupportedJobType), nil
		}
		return r.breach.Handle(ctx, job, r.clock.Now())
	}
	return skipped(ReasonUnsupportedJobType), nil
}

func (r *Runner) ack(ctx context.Context, d queue.Delivery, jobID string) {
	if err := r.consumer.Ack(ctx, d); err != nil {
		r.logger.Warn("sla job ack failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
