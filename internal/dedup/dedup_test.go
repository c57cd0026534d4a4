package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/clock"
)

func TestRedisStore_Claim(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client)

	claimed, value, err := store.Claim(ctx, "sla:t-1:resolve:x", "job-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "job-1", value)

	claimed, value, err = store.Claim(ctx, "sla:t-1:resolve:x", "job-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "job-1", value, "duplicate claim reports the original holder")

	mr.FastForward(2 * time.Hour)
	claimed, _, err = store.Claim(ctx, "sla:t-1:resolve:x", "job-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed, "key is claimable again after retention expires")

	require.NoError(t, store.Release(ctx, "sla:t-1:resolve:x"))
	claimed, _, err = store.Claim(ctx, "sla:t-1:resolve:x", "job-4", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryStore_Claim(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(fake)

	claimed, _, err := store.Claim(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, value, err := store.Claim(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "a", value)

	fake.Advance(time.Minute)
	claimed, value, err = store.Claim(ctx, "k", "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "c", value)
}
