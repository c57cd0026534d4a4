package sla

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

type policyKey struct {
	org      string
	priority domain.TicketPriority
	category string
}

type fakePolicyStore struct {
	policies map[policyKey]*domain.SLAPolicy
	err      error
	calls    []string
}

func (f *fakePolicyStore) FindByCategoryName(_ context.Context, org string, priority domain.TicketPriority, name string) (*domain.SLAPolicy, error) {
	f.calls = append(f.calls, "category:"+name)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.policies[policyKey{org, priority, strings.ToLower(name)}]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePolicyStore) FindDefault(_ context.Context, org string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	f.calls = append(f.calls, "default")
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.policies[policyKey{org, priority, ""}]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func newPolicy(id string, categoryID *string, first, resolve int) *domain.SLAPolicy {
	return &domain.SLAPolicy{
		ID:                 id,
		OrganizationID:     "org-1",
		Priority:           domain.TicketPriorityHigh,
		CategoryID:         categoryID,
		FirstResponseHours: intPtr(first),
		ResolveHours:       intPtr(resolve),
	}
}

func TestPolicyResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	defaultPolicy := newPolicy("default-high", nil, 4, 24)
	networking := newPolicy("networking-high", strPtr("cat-net"), 2, 12)
	store := &fakePolicyStore{policies: map[policyKey]*domain.SLAPolicy{
		{"org-1", domain.TicketPriorityHigh, ""}:           defaultPolicy,
		{"org-1", domain.TicketPriorityHigh, "networking"}: networking,
	}}
	resolver := NewPolicyResolver(store)

	t.Run("category override wins", func(t *testing.T) {
		policy, err := resolver.Resolve(ctx, "org-1", domain.TicketPriorityHigh, "Networking")
		require.NoError(t, err)
		assert.Equal(t, "networking-high", policy.ID)
	})

	t.Run("unknown category falls back to default", func(t *testing.T) {
		policy, err := resolver.Resolve(ctx, "org-1", domain.TicketPriorityHigh, "Hardware")
		require.NoError(t, err)
		assert.Equal(t, "default-high", policy.ID)
	})

	t.Run("blank category skips category lookup", func(t *testing.T) {
		store.calls = nil
		policy, err := resolver.Resolve(ctx, "org-1", domain.TicketPriorityHigh, "   ")
		require.NoError(t, err)
		assert.Equal(t, "default-high", policy.ID)
		assert.Equal(t, []string{"default"}, store.calls)
	})

	t.Run("no policy at all is not an error", func(t *testing.T) {
		policy, err := resolver.Resolve(ctx, "org-1", domain.TicketPriorityLow, "")
		require.NoError(t, err)
		assert.Nil(t, policy)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		failing := NewPolicyResolver(&fakePolicyStore{err: errors.New("db down")})
		_, err := failing.Resolve(ctx, "org-1", domain.TicketPriorityHigh, "Networking")
		assert.EqualError(t, err, "db down")
	})
}

func TestComputeDueDates(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 123456789, time.UTC)

	t.Run("nil policy yields no deadlines", func(t *testing.T) {
		due := ComputeDueDates(nil, now)
		assert.Nil(t, due.FirstResponseDue)
		assert.Nil(t, due.ResolveDue)
	})

	t.Run("hours are added to a millisecond base", func(t *testing.T) {
		due := ComputeDueDates(newPolicy("p", nil, 4, 24), now)
		base := now.Truncate(time.Millisecond)
		require.NotNil(t, due.FirstResponseDue)
		require.NotNil(t, due.ResolveDue)
		assert.True(t, due.FirstResponseDue.Equal(base.Add(4*time.Hour)))
		assert.True(t, due.ResolveDue.Equal(base.Add(24*time.Hour)))
	})

	t.Run("absent fields stay nil independently", func(t *testing.T) {
		policy := &domain.SLAPolicy{ResolveHours: intPtr(8)}
		due := ComputeDueDates(policy, now)
		assert.Nil(t, due.FirstResponseDue)
		require.NotNil(t, due.ResolveDue)
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		policy := newPolicy("p", nil, 2, 12)
		first := ComputeDueDates(policy, now)
		second := ComputeDueDates(policy, now)
		assert.Equal(t, domain.FormatDue(*first.FirstResponseDue), domain.FormatDue(*second.FirstResponseDue))
		assert.Equal(t, domain.FormatDue(*first.ResolveDue), domain.FormatDue(*second.ResolveDue))
	})
}
