package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/queue"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func openTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:               "t-1",
		OrganizationID:   "org-1",
		RequesterID:      "req-1",
		Status:           domain.TicketStatusOpen,
		Priority:         domain.TicketPriorityHigh,
		FirstResponseDue: ptr(now.Add(4 * time.Hour)),
		ResolveDue:       ptr(now.Add(24 * time.Hour)),
	}
}

func newScheduler(sub queue.Submitter, lead time.Duration) *Scheduler {
	return New(Dependencies{Submitter: sub, Clock: clock.NewFake(now), ReminderLead: lead})
}

func TestScheduleJobsForTicket_Idempotent(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(nil, clock.NewFake(now), queue.Options{})
	s := newScheduler(q, 0)
	ticket := openTicket()

	first, err := s.ScheduleJobsForTicket(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, first, 2)
	for _, sub := range first {
		assert.True(t, sub.Enqueued, sub.JobType)
		assert.False(t, sub.Deduped, sub.JobType)
	}

	second, err := s.ScheduleJobsForTicket(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, second, 2)
	for _, sub := range second {
		assert.False(t, sub.Enqueued, sub.JobType)
		assert.True(t, sub.Deduped, sub.JobType)
	}

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobTypeFirstResponse, jobs[0].Type)
	assert.Equal(t, "sla:t-1:first-response:2026-05-04T14:00:00.000Z", jobs[0].IdempotencyKey)
	assert.Equal(t, "2026-05-04T14:00:00.000Z", jobs[0].DueAt)
	assert.Equal(t, domain.JobTypeResolve, jobs[1].Type)
	assert.Nil(t, jobs[1].Reminder)
}

func TestScheduleJobsForTicket_ShiftedDeadlineIsNewJob(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(nil, clock.NewFake(now), queue.Options{})
	s := newScheduler(q, 0)
	ticket := openTicket()
	ticket.FirstResponseDue = nil

	_, err := s.ScheduleJobsForTicket(ctx, ticket)
	require.NoError(t, err)

	ticket.ResolveDue = ptr(ticket.ResolveDue.Add(90 * time.Minute))
	subs, err := s.ScheduleJobsForTicket(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Enqueued)
	assert.Len(t, q.Jobs(), 2, "stale job is not cancelled")
}

func TestScheduleJobsForTicket_SkipsPastAndAbsent(t *testing.T) {
	sub := new(mockSubmitter)
	s := newScheduler(sub, 0)
	ticket := openTicket()
	ticket.FirstResponseDue = ptr(now)
	ticket.ResolveDue = nil

	subs, err := s.ScheduleJobsForTicket(context.Background(), ticket)
	require.NoError(t, err)
	assert.Empty(t, subs)
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduleJobsForTicket_DelayMatchesDeadline(t *testing.T) {
	sub := new(mockSubmitter)
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(j domain.Job) bool {
		return j.Type == domain.JobTypeFirstResponse
	}), 4*time.Hour).Return(queue.SubmitResult{Enqueued: true}, nil).Once()
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(j domain.Job) bool {
		return j.Type == domain.JobTypeResolve
	}), 24*time.Hour).Return(queue.SubmitResult{Enqueued: true}, nil).Once()

	s := newScheduler(sub, 0)
	_, err := s.ScheduleJobsForTicket(context.Background(), openTicket())
	require.NoError(t, err)
	sub.AssertExpectations(t)
}

func TestScheduleJobsForTicket_QueueDownIsReported(t *testing.T) {
	sub := new(mockSubmitter)
	sub.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(queue.SubmitResult{}, errors.New("connection refused"))

	s := newScheduler(sub, time.Hour)
	subs, err := s.ScheduleJobsForTicket(context.Background(), openTicket())
	require.Error(t, err)
	require.Len(t, subs, 2)
	for _, r := range subs {
		assert.False(t, r.Enqueued)
		assert.Error(t, r.Err)
	}

	assert.NotPanics(t, func() {
		all := s.ScheduleAll(context.Background(), openTicket())
		assert.Len(t, all, 4)
	})
}

func TestScheduleReminders_InsideLeadWindow(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(nil, clock.NewFake(now), queue.Options{})
	s := newScheduler(q, 60*time.Minute)
	ticket := openTicket()
	ticket.FirstResponseDue = ptr(now.Add(30 * time.Minute))

	subs, err := s.ScheduleReminders(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, subs, 1, "only the resolve deadline is outside the lead window")
	assert.Equal(t, domain.JobTypeResolve, subs[0].ReminderFor)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].Reminder)
	assert.Equal(t, domain.JobTypeReminder, jobs[0].Type)
	assert.Equal(t, domain.JobTypeResolve, jobs[0].Reminder.ReminderFor)
	assert.Equal(t, "req-1", jobs[0].Reminder.RecipientID)
	assert.Equal(t, "sla:t-1:reminder:resolve:2026-05-05T10:00:00.000Z", jobs[0].IdempotencyKey)
}

func TestScheduleReminders_DelayAndRecipient(t *testing.T) {
	assignee := "agent-7"
	ticket := openTicket()
	ticket.AssigneeID = &assignee

	sub := new(mockSubmitter)
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(j domain.Job) bool {
		return j.Reminder != nil && j.Reminder.ReminderFor == domain.JobTypeFirstResponse && j.Reminder.RecipientID == assignee
	}), 3*time.Hour).Return(queue.SubmitResult{Enqueued: true}, nil).Once()
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(j domain.Job) bool {
		return j.Reminder != nil && j.Reminder.ReminderFor == domain.JobTypeResolve
	}), 23*time.Hour).Return(queue.SubmitResult{Enqueued: true}, nil).Once()

	s := newScheduler(sub, time.Hour)
	subs, err := s.ScheduleReminders(context.Background(), ticket)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	sub.AssertExpectations(t)
}

func TestScheduleReminders_Disabled(t *testing.T) {
	sub := new(mockSubmitter)
	s := newScheduler(sub, 0)
	subs, err := s.ScheduleReminders(context.Background(), openTicket())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestScheduleReminders_SkipsAnsweredFirstResponse(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(nil, clock.NewFake(now), queue.Options{})
	s := newScheduler(q, time.Hour)
	ticket := openTicket()
	ticket.FirstResponseAt = ptr(now.Add(-time.Minute))

	subs, err := s.ScheduleReminders(ctx, ticket)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.JobTypeResolve, subs[0].ReminderFor)
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, job domain.Job, delay time.Duration) (queue.SubmitResult, error) {
	args := m.Called(ctx, job, delay)
	return args.Get(0).(queue.SubmitResult), args.Error(1)
}
