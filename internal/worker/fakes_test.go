package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	err     error
}

func newFakeTickets(ts ...*domain.Ticket) *fakeTickets {
	f := &fakeTickets{tickets: map[string]*domain.Ticket{}}
	for _, t := range ts {
		f.tickets[t.ID] = t
	}
	return f
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (f *fakeAudit) Create(_ context.Context, e *domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeNotifier honors idempotency keys like the real notification service.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []domain.Notification
	byKey map[string]domain.Notification
	err   error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{byKey: map[string]domain.Notification{}}
}

func (f *fakeNotifier) Send(_ context.Context, msg domain.Notification) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if msg.IdempotencyKey != nil {
		if existing, ok := f.byKey[*msg.IdempotencyKey]; ok {
			existing.Status = domain.NotificationDeduped
			return &existing, nil
		}
	}
	msg.ID = uuid.NewString()
	msg.Status = domain.NotificationSent
	f.sent = append(f.sent, msg)
	if msg.IdempotencyKey != nil {
		f.byKey[*msg.IdempotencyKey] = msg
	}
	return &msg, nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errUnavailable = errors.New("collaborator unavailable")
