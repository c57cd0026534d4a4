// Package sla holds the deadline arithmetic of the SLA engine: policy
// resolution, due-date computation, pause accounting, escalation chain lookup
// and status classification. Apart from the resolvers, which read through the
// store interfaces below, everything here is a pure function of its inputs.
package sla

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PolicyStore is the read side of SLA policy storage.
type PolicyStore interface {
	FindByCategoryName(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryName string) (*domain.SLAPolicy, error)
	FindDefault(ctx context.Context, organizationID string, priority domain.TicketPriority) (*domain.SLAPolicy, error)
}

// PolicyResolver finds the most specific policy for a ticket.
type PolicyResolver struct {
	store PolicyStore
}

// NewPolicyResolver constructs a resolver over store.
func NewPolicyResolver(store PolicyStore) *PolicyResolver {
	return &PolicyResolver{store: store}
}

// Resolve returns the category-specific policy when categoryName matches one,
// otherwise the organization default for the priority. A nil policy with a nil
// error means the ticket is not SLA tracked.
func (r *PolicyResolver) Resolve(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryName string) (*domain.SLAPolicy, error) {
	if name := strings.TrimSpace(categoryName); name != "" {
		policy, err := r.store.FindByCategoryName(ctx, organizationID, priority, name)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if policy != nil {
			return policy, nil
		}
	}
	policy, err := r.store.FindDefault(ctx, organizationID, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return policy, nil
}

// ComputeDueDates derives deadlines from policy relative to now. A nil policy
// yields no deadlines; each field is nil when its hours are absent.
func ComputeDueDates(policy *domain.SLAPolicy, now time.Time) domain.DueDates {
	if policy == nil {
		return domain.DueDates{}
	}
	base := domain.NormalizeDeadline(now)
	return domain.DueDates{
		FirstResponseDue: addHours(base, policy.FirstResponseHours),
		ResolveDue:       addHours(base, policy.ResolveHours),
	}
}

func addHours(base time.Time, hours *int) *time.Time {
	if hours == nil {
		return nil
	}
	due := base.Add(time.Duration(*hours) * time.Hour)
	return &due
}
