// Package scheduler turns ticket deadlines into deferred breach and reminder
// jobs on the delayed queue.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/queue"
)

// Submission is the outcome of scheduling one job.
type Submission struct {
	JobType        domain.JobType
	ReminderFor    domain.JobType
	DueAt          string
	IdempotencyKey string
	queue.SubmitResult
	Err error
}

// Scheduler submits deadline jobs for tickets.
type Scheduler struct {
	submitter    queue.Submitter
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics
	reminderLead time.Duration
}

// Dependencies bundles collaborators for the scheduler.
type Dependencies struct {
	Submitter queue.Submitter
	Clock     clock.Clock
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	// ReminderLead is how long before a deadline a reminder fires. Zero disables reminders.
	ReminderLead time.Duration
}

// New constructs a Scheduler.
func New(deps Dependencies) *Scheduler {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		submitter:    deps.Submitter,
		clock:        c,
		logger:       logger,
		metrics:      deps.Metrics,
		reminderLead: deps.ReminderLead,
	}
}

// IdempotencyKey identifies the job for one deadline of a ticket.
func IdempotencyKey(ticketID string, jobType domain.JobType, due string) string {
	return fmt.Sprintf("sla:%s:%s:%s", ticketID, jobType, due)
}

// ReminderKey identifies the reminder preceding one deadline of a ticket.
func ReminderKey(ticketID string, reminderFor domain.JobType, due string) string {
	return fmt.Sprintf("sla:%s:%s:%s:%s", ticketID, domain.JobTypeReminder, reminderFor, due)
}

type deadline struct {
	jobType domain.JobType
	due     *time.Time
}

func deadlinesOf(t *domain.Ticket) []deadline {
	return []deadline{
		{jobType: domain.JobTypeFirstResponse, due: t.FirstResponseDue},
		{jobType: domain.JobTypeResolve, due: t.ResolveDue},
	}
}

// ScheduleJobsForTicket submits a breach job for each deadline of t that is
// set and still in the future. Every deadline is attempted; failures are
// reported per submission and joined into the returned error.
func (s *Scheduler) ScheduleJobsForTicket(ctx context.Context, t *domain.Ticket) ([]Submission, error) {
	now := s.clock.Now()
	var (
		out  []Submission
		errs []error
	)
	for _, d := range deadlinesOf(t) {
		if d.due == nil || !d.due.After(now) {
			continue
		}
		due := domain.FormatDue(*d.due)
		job := s.baseJob(t, d.jobType, due)
		job.IdempotencyKey = IdempotencyKey(t.ID, d.jobType, due)

		sub := s.submit(ctx, job, d.due.Sub(now))
		if sub.Err != nil {
			errs = append(errs, sub.Err)
		}
		out = append(out, sub)
	}
	return out, errors.Join(errs...)
}

// ScheduleReminders submits one reminder per deadline, firing ReminderLead
// before it. Deadlines whose reminder time has already passed are skipped, as
// is the first-response reminder once a first response exists.
func (s *Scheduler) ScheduleReminders(ctx context.Context, t *domain.Ticket) ([]Submission, error) {
	if s.reminderLead <= 0 {
		return nil, nil
	}
	now := s.clock.Now()
	var (
		out  []Submission
		errs []error
	)
	for _, d := range deadlinesOf(t) {
		if d.due == nil {
			continue
		}
		if d.jobType == domain.JobTypeFirstResponse && t.FirstResponseAt != nil {
			continue
		}
		remindAt := d.due.Add(-s.reminderLead)
		if !remindAt.After(now) {
			continue
		}
		due := domain.FormatDue(*d.due)
		job := s.baseJob(t, domain.JobTypeReminder, due)
		job.IdempotencyKey = ReminderKey(t.ID, d.jobType, due)
		job.Reminder = &domain.ReminderDetail{
			ReminderFor: d.jobType,
			RecipientID: t.ActorID(),
			Reason:      reminderReason(d.jobType),
		}

		sub := s.submit(ctx, job, remindAt.Sub(now))
		if sub.Err != nil {
			errs = append(errs, sub.Err)
		}
		out = append(out, sub)
	}
	return out, errors.Join(errs...)
}

// ScheduleAll schedules breach jobs and reminders for t. SLA tracking is
// best effort relative to the caller: failures are logged, never returned.
func (s *Scheduler) ScheduleAll(ctx context.Context, t *domain.Ticket) []Submission {
	if t == nil {
		return nil
	}
	jobs, err := s.ScheduleJobsForTicket(ctx, t)
	if err != nil {
		s.logger.Warn("sla job scheduling failed", zap.String("ticket_id", t.ID), zap.Error(err))
	}
	reminders, err := s.ScheduleReminders(ctx, t)
	if err != nil {
		s.logger.Warn("sla reminder scheduling failed", zap.String("ticket_id", t.ID), zap.Error(err))
	}
	return append(jobs, reminders...)
}

func (s *Scheduler) baseJob(t *domain.Ticket, jobType domain.JobType, due string) domain.Job {
	return domain.Job{
		ID:             uuid.NewString(),
		Type:           jobType,
		TicketID:       t.ID,
		OrganizationID: t.OrganizationID,
		DueAt:          due,
		Priority:       t.Priority,
		CategoryID:     t.CategoryID,
	}
}

func (s *Scheduler) submit(ctx context.Context, job domain.Job, delay time.Duration) Submission {
	sub := Submission{JobType: job.Type, DueAt: job.DueAt, IdempotencyKey: job.IdempotencyKey}
	if job.Reminder != nil {
		sub.ReminderFor = job.Reminder.ReminderFor
	}
	if s.submitter == nil {
		sub.Err = errors.New("no job submitter configured")
		s.metrics.RecordJobScheduled(string(job.Type), "failed")
		return sub
	}

	res, err := s.submitter.Submit(ctx, job, delay)
	if err != nil {
		sub.Err = fmt.Errorf("submit %s job for ticket %s: %w", job.Type, job.TicketID, err)
		s.metrics.RecordJobScheduled(string(job.Type), "failed")
		return sub
	}
	sub.SubmitResult = res
	outcome := "enqueued"
	if res.Deduped {
		outcome = "deduped"
	}
	s.metrics.RecordJobScheduled(string(job.Type), outcome)
	s.logger.Debug("sla job submitted",
		zap.String("ticket_id", job.TicketID),
		zap.String("job_type", string(job.Type)),
		zap.String("due_at", job.DueAt),
		zap.String("outcome", outcome),
	)
	return sub
}

func reminderReason(t domain.JobType) string {
	if t == domain.JobTypeFirstResponse {
		return "first response due soon"
	}
	return "resolution due soon"
}
