package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/scheduler"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func at(t time.Time) *time.Time { return &t }

func uniqueErr() error { return &pgconn.PgError{Code: "23505", ConstraintName: "uniq"} }

func staffRole(r domain.StaffRole) *domain.StaffRole { return &r }

var (
	requester = domain.Principal{SubjectID: "req-1", Subject: domain.SubjectTypeUser, OrganizationID: "org-1"}
	agent     = domain.Principal{SubjectID: "agent-1", Subject: domain.SubjectTypeStaff, OrganizationID: "org-1", Role: staffRole(domain.StaffRoleAgent)}
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	updates int
}

func newFakeTicketRepo(ts ...*domain.Ticket) *fakeTicketRepo {
	f := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
	for _, t := range ts {
		f.tickets[t.ID] = t
	}
	return f
}

func (f *fakeTicketRepo) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.updates++
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTicketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeTicketRepo) ListOpenByOrganization(_ context.Context, organizationID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.OrganizationID == organizationID && !t.Status.Terminal() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if filter.OrganizationID != nil && t.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !slices.Contains(filter.Priorities, t.Priority) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTicketRepo) get(id string) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

type fakeMessageRepo struct {
	messages []domain.TicketMessage
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = now
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	for _, m := range f.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCategoryRepo struct {
	categories map[string]domain.Category
}

func newFakeCategoryRepo(cs ...domain.Category) *fakeCategoryRepo {
	f := &fakeCategoryRepo{categories: map[string]domain.Category{}}
	for _, c := range cs {
		f.categories[c.ID] = c
	}
	return f
}

func (f *fakeCategoryRepo) Create(_ context.Context, c *domain.Category) error {
	c.ID = uuid.NewString()
	f.categories[c.ID] = *c
	return nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (f *fakeCategoryRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.categories {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	events []domain.AuditEvent
	err    error
}

func (f *fakeAuditRepo) Create(_ context.Context, e *domain.AuditEvent) error {
	if f.err != nil {
		return f.err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, e := range f.events {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTeamRepo struct {
	teams map[string]domain.Team
}

func newFakeTeamRepo(ts ...domain.Team) *fakeTeamRepo {
	f := &fakeTeamRepo{teams: map[string]domain.Team{}}
	for _, t := range ts {
		f.teams[t.ID] = t
	}
	return f
}

func (f *fakeTeamRepo) Create(_ context.Context, t *domain.Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	f.teams[t.ID] = *t
	return nil
}

func (f *fakeTeamRepo) Update(_ context.Context, t *domain.Team) error {
	f.teams[t.ID] = *t
	return nil
}

func (f *fakeTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	t, ok := f.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (f *fakeTeamRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.Team, error) {
	var out []domain.Team
	for _, t := range f.teams {
		if t.OrganizationID == organizationID {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakePolicyRepo enforces the (organization, priority, category) uniqueness
// the database index provides.
type fakePolicyRepo struct {
	policies   map[string]domain.SLAPolicy
	categories *fakeCategoryRepo
}

func newFakePolicyRepo(categories *fakeCategoryRepo, ps ...domain.SLAPolicy) *fakePolicyRepo {
	f := &fakePolicyRepo{policies: map[string]domain.SLAPolicy{}, categories: categories}
	for _, p := range ps {
		f.policies[p.ID] = p
	}
	return f
}

func sameScope(a, b domain.SLAPolicy) bool {
	if a.OrganizationID != b.OrganizationID || a.Priority != b.Priority {
		return false
	}
	if a.CategoryID == nil || b.CategoryID == nil {
		return a.CategoryID == nil && b.CategoryID == nil
	}
	return *a.CategoryID == *b.CategoryID
}

func (f *fakePolicyRepo) Create(_ context.Context, p *domain.SLAPolicy) error {
	for _, existing := range f.policies {
		if sameScope(existing, *p) {
			return uniqueErr()
		}
	}
	p.ID = uuid.NewString()
	f.policies[p.ID] = *p
	return nil
}

func (f *fakePolicyRepo) Update(_ context.Context, p *domain.SLAPolicy) error {
	for id, existing := range f.policies {
		if id != p.ID && sameScope(existing, *p) {
			return uniqueErr()
		}
	}
	f.policies[p.ID] = *p
	return nil
}

func (f *fakePolicyRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.policies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.policies, id)
	return nil
}

func (f *fakePolicyRepo) GetByID(_ context.Context, id string) (*domain.SLAPolicy, error) {
	p, ok := f.policies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (f *fakePolicyRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	var out []domain.SLAPolicy
	for _, p := range f.policies {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) FindByCategoryName(_ context.Context, organizationID string, priority domain.TicketPriority, name string) (*domain.SLAPolicy, error) {
	for _, p := range f.policies {
		if p.OrganizationID != organizationID || p.Priority != priority || p.CategoryID == nil {
			continue
		}
		if c, ok := f.categories.categories[*p.CategoryID]; ok && strings.EqualFold(c.Name, name) {
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePolicyRepo) FindDefault(_ context.Context, organizationID string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	for _, p := range f.policies {
		if p.OrganizationID == organizationID && p.Priority == priority && p.CategoryID == nil {
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeEscalationStore struct {
	chains map[string][]domain.EscalationLevel
}

func chainKey(categoryID *string) string {
	if categoryID == nil {
		return ""
	}
	return *categoryID
}

func (f *fakeEscalationStore) ListLevels(_ context.Context, _ string, _ domain.TicketPriority, categoryID *string) ([]domain.EscalationLevel, error) {
	return f.chains[chainKey(categoryID)], nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	tickets []domain.Ticket
}

func (f *fakeScheduler) ScheduleAll(_ context.Context, t *domain.Ticket) []scheduler.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, *t)
	return nil
}

func (f *fakeScheduler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	records   []domain.Notification
	err       error
	lastLimit int
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if n.IdempotencyKey != nil {
		for _, r := range f.records {
			if r.IdempotencyKey != nil && *r.IdempotencyKey == *n.IdempotencyKey {
				return uniqueErr()
			}
		}
	}
	n.CreatedAt = now
	f.records = append(f.records, *n)
	return nil
}

func (f *fakeNotificationRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.IdempotencyKey != nil && *r.IdempotencyKey == key {
			cp := r
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []domain.Notification
	for _, r := range f.records {
		if r.RecipientID == recipientID {
			out = append(out, r)
		}
	}
	return out, nil
}
