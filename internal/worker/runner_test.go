package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/queue"
)

type runnerFixture struct {
	clock    *clock.Fake
	queue    *queue.MemoryQueue
	audit    *fakeAudit
	notifier *fakeNotifier
	runner   *Runner
}

func newRunnerFixture(ts ...*domain.Ticket) *runnerFixture {
	fake := clock.NewFake(now)
	f := &runnerFixture{
		clock:    fake,
		queue:    queue.NewMemoryQueue(nil, fake, queue.Options{Visibility: 30 * time.Second}),
		audit:    &fakeAudit{},
		notifier: newFakeNotifier(),
	}
	tickets := newFakeTickets(ts...)
	f.runner = NewRunner(RunnerDependencies{
		Consumer: f.queue,
		Breach: NewBreachEvaluator(EvaluatorDependencies{
			Tickets:  tickets,
			Audit:    f.audit,
			Notifier: f.notifier,
			Claims:   dedup.NewMemoryStore(fake),
		}),
		Reminder: NewReminderHandler(ReminderDependencies{Tickets: tickets, Notifier: f.notifier}),
		Clock:    fake,
		Config:   RunnerConfig{Concurrency: 2, BatchSize: 10},
	})
	return f
}

func TestRunner_PollHandlesAndAcks(t *testing.T) {
	ticket := breachedTicket()
	f := newRunnerFixture(ticket)
	ctx := context.Background()

	_, err := f.queue.Submit(ctx, jobFor(ticket, domain.JobTypeResolve), 0)
	require.NoError(t, err)
	_, err = f.queue.Submit(ctx, jobFor(ticket, domain.JobTypeFirstResponse), 0)
	require.NoError(t, err)
	f.queue.Push("{not json", now)

	n, err := f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, f.audit.count())

	f.clock.Advance(time.Minute)
	n, err = f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "acked jobs, including the malformed one, are not redelivered")
}

func TestRunner_FailedJobIsRedelivered(t *testing.T) {
	ticket := breachedTicket()
	f := newRunnerFixture(ticket)
	ctx := context.Background()

	_, err := f.queue.Submit(ctx, jobFor(ticket, domain.JobTypeResolve), 0)
	require.NoError(t, err)

	f.notifier.err = errUnavailable
	n, err := f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.notifier.err = nil
	n, err = f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "job is leased until visibility timeout")

	f.clock.Advance(31 * time.Second)
	n, err = f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.audit.count())
	assert.Equal(t, 1, f.notifier.count())

	f.clock.Advance(time.Minute)
	n, err = f.runner.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunner_RoutesReminders(t *testing.T) {
	ticket := upcomingTicket()
	f := newRunnerFixture(ticket)

	res, err := f.runner.Handle(context.Background(), reminderJob(ticket, domain.JobTypeResolve, "agent-1"))
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, f.notifier.count())
	assert.Zero(t, f.audit.count())
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	f := newRunnerFixture()
	f.runner.cfg.PollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
