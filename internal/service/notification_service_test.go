package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
)

type brokenStore struct{}

func (brokenStore) Claim(context.Context, string, string, time.Duration) (bool, string, error) {
	return false, "", errors.New("redis down")
}

func (brokenStore) Release(context.Context, string) error { return nil }

func TestNotificationService_Send(t *testing.T) {
	repo := &fakeNotificationRepo{}
	n := NewNotificationService(NotificationDependencies{Repo: repo, Dedup: dedup.NewMemoryStore(clock.NewFake(now))})
	ctx := context.Background()
	key := "breach:t-1:resolve:2026-05-04T18:00:00.000Z"

	first, err := n.Send(ctx, domain.Notification{RecipientID: "req-1", Subject: "s", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSent, first.Status)
	assert.Equal(t, domain.ChannelInApp, first.Channel)

	second, err := n.Send(ctx, domain.Notification{RecipientID: "req-1", Subject: "s", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationDeduped, second.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.records, 1)

	_, err = n.Send(ctx, domain.Notification{Subject: "no one"})
	require.Error(t, err)
}

func TestNotificationService_FailedInsertReleasesClaim(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("db down")}
	n := NewNotificationService(NotificationDependencies{Repo: repo, Dedup: dedup.NewMemoryStore(clock.NewFake(now))})
	ctx := context.Background()
	key := "reminder:t-1:resolve"

	_, err := n.Send(ctx, domain.Notification{RecipientID: "agent-1", IdempotencyKey: &key})
	require.Error(t, err)

	repo.err = nil
	sent, err := n.Send(ctx, domain.Notification{RecipientID: "agent-1", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSent, sent.Status)
}

func TestNotificationService_UniqueIndexBacksUnavailableDedupStore(t *testing.T) {
	repo := &fakeNotificationRepo{}
	n := NewNotificationService(NotificationDependencies{Repo: repo, Dedup: brokenStore{}})
	ctx := context.Background()
	key := "escalation:t-1:1"

	first, err := n.Send(ctx, domain.Notification{RecipientID: "agent-1", IdempotencyKey: &key})
	require.NoError(t, err)
	second, err := n.Send(ctx, domain.Notification{RecipientID: "agent-1", IdempotencyKey: &key})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationDeduped, second.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.records, 1)
}

func TestNotificationService_ListForRecipient(t *testing.T) {
	repo := &fakeNotificationRepo{}
	n := NewNotificationService(NotificationDependencies{Repo: repo})
	ctx := context.Background()

	_, err := n.Send(ctx, domain.Notification{RecipientID: "agent-1", Subject: "a"})
	require.NoError(t, err)
	_, err = n.Send(ctx, domain.Notification{RecipientID: "agent-2", Subject: "b"})
	require.NoError(t, err)

	inbox, err := n.ListForRecipient(ctx, "agent-1", 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "a", inbox[0].Subject)
	assert.Equal(t, 50, repo.lastLimit)

	_, err = n.ListForRecipient(ctx, "agent-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, 200, repo.lastLimit)

	_, err = n.ListForRecipient(ctx, "agent-1", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.lastLimit)
}
