package service

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/sla"
	util "github.com/spec-kit/sla-service/pkg/util"
)

const networkID = "6f1c3a52-0c1e-4d1b-9a57-2f3f0e1b7c11"

type ticketFixture struct {
	clock     *clock.Fake
	tickets   *fakeTicketRepo
	messages  *fakeMessageRepo
	audit     *fakeAuditRepo
	scheduler *fakeScheduler
	published []events.Event
	service   *TicketService
}

func newTicketFixture(ts ...*domain.Ticket) *ticketFixture {
	categories := newFakeCategoryRepo(domain.Category{ID: networkID, OrganizationID: "org-1", Name: "Network"})
	policies := newFakePolicyRepo(categories,
		domain.SLAPolicy{ID: "p-default", OrganizationID: "org-1", Priority: domain.TicketPriorityHigh, FirstResponseHours: intPtr(4), ResolveHours: intPtr(24)},
		domain.SLAPolicy{ID: "p-network", OrganizationID: "org-1", Priority: domain.TicketPriorityHigh, CategoryID: strPtr(networkID), FirstResponseHours: intPtr(2), ResolveHours: intPtr(8)},
	)
	f := &ticketFixture{
		clock:     clock.NewFake(now),
		tickets:   newFakeTicketRepo(ts...),
		messages:  &fakeMessageRepo{},
		audit:     &fakeAuditRepo{},
		scheduler: &fakeScheduler{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketMessageAdded} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	f.service = NewTicketService(TicketDependencies{
		TicketRepo:   f.tickets,
		MessageRepo:  f.messages,
		CategoryRepo: categories,
		AuditRepo:    f.audit,
		Policies:     sla.NewPolicyResolver(policies),
		Scheduler:    f.scheduler,
		Dispatcher:   dispatcher,
		Clock:        f.clock,
	})
	return f
}

func TestTicketService_CreateTicket(t *testing.T) {
	tests := []struct {
		name         string
		input        TicketCreateInput
		wantCategory *string
		wantFirst    *time.Time
		wantResolve  *time.Time
	}{
		{
			name:         "category policy",
			input:        TicketCreateInput{Title: "VPN down", Priority: domain.TicketPriorityHigh, CategoryID: strPtr(networkID)},
			wantCategory: strPtr(networkID),
			wantFirst:    at(now.Add(2 * time.Hour)),
			wantResolve:  at(now.Add(8 * time.Hour)),
		},
		{
			name:        "unknown category falls back to default",
			input:       TicketCreateInput{Title: "VPN down", Priority: domain.TicketPriorityHigh, CategoryID: strPtr("0b7e9a8e-64a3-4f44-9d55-7f2a3f7e3a10")},
			wantFirst:   at(now.Add(4 * time.Hour)),
			wantResolve: at(now.Add(24 * time.Hour)),
		},
		{
			name:        "malformed category id is ignored",
			input:       TicketCreateInput{Title: "VPN down", Priority: domain.TicketPriorityHigh, CategoryID: strPtr("network")},
			wantFirst:   at(now.Add(4 * time.Hour)),
			wantResolve: at(now.Add(24 * time.Hour)),
		},
		{
			name:  "no policy leaves ticket untracked",
			input: TicketCreateInput{Title: "Question", Priority: domain.TicketPriorityLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture()

			ticket, err := f.service.CreateTicket(context.Background(), requester, tt.input)
			require.NoError(t, err)
			assert.NotEmpty(t, ticket.ID)
			assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
			assert.Equal(t, "org-1", ticket.OrganizationID)
			assert.Equal(t, "req-1", ticket.RequesterID)
			assert.Equal(t, tt.wantCategory, ticket.CategoryID)
			assert.Equal(t, tt.wantFirst, ticket.FirstResponseDue)
			assert.Equal(t, tt.wantResolve, ticket.ResolveDue)

			assert.Equal(t, 1, f.scheduler.calls())
			require.Len(t, f.published, 1)
			assert.Equal(t, events.EventTicketCreated, f.published[0].Type)
		})
	}
}

func TestTicketService_CreateTicketMatchesPreview(t *testing.T) {
	f := newTicketFixture()
	categories := newFakeCategoryRepo(domain.Category{ID: networkID, OrganizationID: "org-1", Name: "Network"})
	preview := NewSLAService(SLADependencies{
		Policies: sla.NewPolicyResolver(newFakePolicyRepo(categories,
			domain.SLAPolicy{ID: "p-network", OrganizationID: "org-1", Priority: domain.TicketPriorityHigh, CategoryID: strPtr(networkID), FirstResponseHours: intPtr(2), ResolveHours: intPtr(8)},
		)),
		Clock: f.clock,
	})

	p, err := preview.Preview(context.Background(), "org-1", domain.TicketPriorityHigh, "network")
	require.NoError(t, err)
	ticket, err := f.service.CreateTicket(context.Background(), requester, TicketCreateInput{
		Title: "VPN down", Priority: domain.TicketPriorityHigh, CategoryID: strPtr(networkID),
	})
	require.NoError(t, err)
	assert.Equal(t, p.FirstResponseDue, ticket.FirstResponseDue)
	assert.Equal(t, p.ResolveDue, ticket.ResolveDue)
}

func TestTicketService_CreateTicketValidation(t *testing.T) {
	f := newTicketFixture()

	_, err := f.service.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "  "})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", util.ToDomainError(err).Code)

	_, err = f.service.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "x", Priority: "CRITICAL"})
	require.Error(t, err)
	assert.Zero(t, f.scheduler.calls())
}

func openTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:               "t-1",
		OrganizationID:   "org-1",
		RequesterID:      "req-1",
		Title:            "VPN down",
		Status:           domain.TicketStatusInProgress,
		Priority:         domain.TicketPriorityHigh,
		FirstResponseDue: at(now.Add(time.Hour)),
		ResolveDue:       at(now.Add(8 * time.Hour)),
	}
}

func TestTicketService_PauseAndResumeShiftDeadlines(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()

	paused, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusWaitingOnRequester)
	require.NoError(t, err)
	assert.False(t, paused.DeadlinesMoved)
	assert.Equal(t, domain.TicketStatusInProgress, paused.OldStatus)
	require.NotNil(t, paused.Ticket.SLAPausedAt)
	assert.Zero(t, f.scheduler.calls())

	f.clock.Advance(2 * time.Hour)
	resumed, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.True(t, resumed.DeadlinesMoved)

	stored := f.tickets.get("t-1")
	assert.Nil(t, stored.SLAPausedAt)
	assert.Equal(t, int64(7200), stored.SLAPauseTotalSeconds)
	assert.Equal(t, now.Add(3*time.Hour), *stored.FirstResponseDue)
	assert.Equal(t, now.Add(10*time.Hour), *stored.ResolveDue)

	require.Equal(t, 1, f.scheduler.calls())
	assert.Equal(t, now.Add(10*time.Hour), *f.scheduler.tickets[0].ResolveDue)

	require.Len(t, f.audit.events, 2)
	assert.Equal(t, domain.AuditActionStatusChanged, f.audit.events[1].Action)
	assert.Equal(t, true, f.audit.events[1].Data["deadlinesMoved"])
}

func TestTicketService_ResolveAndReopen(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()

	res, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, res.Ticket.ResolvedAt)
	assert.Equal(t, sla.StateHealthy, sla.Classify(res.Ticket, now.Add(48*time.Hour)).State)

	res, err = f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, res.Ticket.ResolvedAt)
	assert.Nil(t, res.Ticket.ClosedAt)
}

func TestTicketService_ResolvingPausedTicketSchedulesNothing(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()

	_, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusWaitingOnRequester)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	res, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusResolved)
	require.NoError(t, err)
	assert.True(t, res.DeadlinesMoved)
	assert.Equal(t, int64(3600), res.Ticket.SLAPauseTotalSeconds)
	assert.Empty(t, res.Scheduled)
	assert.Zero(t, f.scheduler.calls())
}

func TestStringPreview(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want string
	}{
		{"short", "  hello  ", 10, "hello"},
		{"ascii truncated", "abcdefghij", 6, "abc..."},
		{"multibyte kept whole", "héllo wörld", 8, "héllo..."},
		{"tiny max", "日本語のテキスト", 2, "日本"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stringPreview(tt.body, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTicketService_ChangeStatusRejections(t *testing.T) {
	closed := openTicket()
	closed.Status = domain.TicketStatusClosed
	other := openTicket()
	other.ID = "t-2"
	other.OrganizationID = "org-2"
	f := newTicketFixture(closed, other)
	ctx := context.Background()

	_, err := f.service.ChangeStatus(ctx, agent, "t-1", domain.TicketStatusOpen)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", util.ToDomainError(err).Code)

	_, err = f.service.ChangeStatus(ctx, agent, "t-2", domain.TicketStatusResolved)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)

	_, err = f.service.ChangeStatus(ctx, agent, "missing", domain.TicketStatusResolved)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)

	_, err = f.service.ChangeStatus(ctx, agent, "t-1", "DONE")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", util.ToDomainError(err).Code)

	assert.Empty(t, f.audit.events)
}

func TestTicketService_AddStaffReplyRecordsFirstResponseOnce(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()

	_, ticket, err := f.service.AddStaffReply(ctx, agent, "t-1", "looking into it", domain.MessageTypeInternalNote)
	require.NoError(t, err)
	assert.Nil(t, ticket.FirstResponseAt)

	f.clock.Advance(10 * time.Minute)
	_, ticket, err = f.service.AddStaffReply(ctx, agent, "t-1", "we are on it", domain.MessageTypePublicReply)
	require.NoError(t, err)
	require.NotNil(t, ticket.FirstResponseAt)
	first := *ticket.FirstResponseAt
	assert.Equal(t, now.Add(10*time.Minute), first)

	f.clock.Advance(time.Hour)
	_, ticket, err = f.service.AddStaffReply(ctx, agent, "t-1", "fixed", "")
	require.NoError(t, err)
	assert.Equal(t, first, *ticket.FirstResponseAt)
	assert.Equal(t, first, *f.tickets.get("t-1").FirstResponseAt)

	assert.Len(t, f.messages.messages, 3)
	require.Len(t, f.published, 3)
	payload := f.published[1].Payload.(events.TicketMessageAddedPayload)
	assert.True(t, payload.FirstResponse)
}

func TestTicketService_GetTicketVisibility(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()

	_, err := f.service.GetTicket(ctx, requester, "t-1")
	require.NoError(t, err)
	_, err = f.service.GetTicket(ctx, agent, "t-1")
	require.NoError(t, err)

	stranger := domain.Principal{SubjectID: "req-2", Subject: domain.SubjectTypeUser, OrganizationID: "org-1"}
	_, err = f.service.GetTicket(ctx, stranger, "t-1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)
}

func TestTicketService_ListTickets(t *testing.T) {
	mine := openTicket()
	other := openTicket()
	other.ID, other.RequesterID = "t-2", "req-2"
	other.Status = domain.TicketStatusResolved
	foreign := openTicket()
	foreign.ID, foreign.OrganizationID = "t-3", "org-2"
	f := newTicketFixture(mine, other, foreign)
	ctx := context.Background()

	got, err := f.service.ListTickets(ctx, requester, TicketListQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t-1", got[0].ID)

	got, err = f.service.ListTickets(ctx, agent, TicketListQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.service.ListTickets(ctx, agent, TicketListQuery{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t-2", got[0].ID)

	_, err = f.service.ListTickets(ctx, agent, TicketListQuery{Priorities: []domain.TicketPriority{"ASAP"}})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", util.ToDomainError(err).Code)
}

func TestTicketService_GetThreadHidesInternalNotesFromRequester(t *testing.T) {
	f := newTicketFixture(openTicket())
	ctx := context.Background()
	f.messages.messages = []domain.TicketMessage{
		{ID: "m-1", TicketID: "t-1", MessageType: domain.MessageTypePublicReply, Body: "on it"},
		{ID: "m-2", TicketID: "t-1", MessageType: domain.MessageTypeInternalNote, Body: "router again"},
	}
	f.audit.events = []domain.AuditEvent{{ID: "a-1", TicketID: "t-1", Action: domain.AuditActionStatusChanged}}

	thread, err := f.service.GetThread(ctx, requester, "t-1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "m-1", thread.Messages[0].ID)
	assert.Empty(t, thread.Audit)

	thread, err = f.service.GetThread(ctx, agent, "t-1")
	require.NoError(t, err)
	assert.Len(t, thread.Messages, 2)
	assert.Len(t, thread.Audit, 1)

	outsider := domain.Principal{SubjectID: "req-9", Subject: domain.SubjectTypeUser, OrganizationID: "org-1"}
	_, err = f.service.GetThread(ctx, outsider, "t-1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)
}
