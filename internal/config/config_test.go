package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_DB", "")
	t.Setenv("SLA_REMINDER_LEAD_MINUTES", "")
	t.Setenv("WORKER_CONCURRENCY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.SLA.ReminderLead())
	assert.Equal(t, 14*24*time.Hour, cfg.SLA.JobDedupTTL())
	assert.True(t, cfg.SLA.EscalateOnBreach)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, time.Second, cfg.Worker.PollInterval())
	assert.Equal(t, time.Minute, cfg.Worker.VisibilityTimeout())
	assert.Equal(t, 5, cfg.Postgres.ConnectAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_REMINDER_LEAD_MINUTES", "0")
	t.Setenv("SLA_ESCALATE_ON_BREACH", "false")
	t.Setenv("WORKER_CONCURRENCY", "-3")
	t.Setenv("WORKER_POLL_INTERVAL_MS", "250")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("APP_HOST", "")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("WORKER_EMBEDDED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.SLA.ReminderLead())
	assert.False(t, cfg.SLA.EscalateOnBreach)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, "0.0.0.0:9000", cfg.App.Addr())
	assert.True(t, cfg.Worker.Embedded)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SLA_REMINDER_LEAD_MINUTES", "-5")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SLA_REMINDER_LEAD_MINUTES", "")
	t.Setenv("REDIS_DB", "one")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("REDIS_DB", "")
	t.Setenv("SLA_JOB_DEDUP_TTL_HOURS", "0")
	t.Setenv("POSTGRES_MIN_CONNS", "20")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLA_JOB_DEDUP_TTL_HOURS")
	assert.Contains(t, err.Error(), "POSTGRES_MIN_CONNS")
}
