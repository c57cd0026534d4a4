package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Worker       WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup retries while the database comes up.
	ConnectAttempts int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom     string
	WebhookURL    string
	DedupTTLHours int
}

// SLAConfig tunes deadline tracking.
type SLAConfig struct {
	// ReminderLeadMinutes before a deadline a reminder fires; 0 disables reminders.
	ReminderLeadMinutes int
	JobDedupTTLHours    int
	EscalateOnBreach    bool
}

// WorkerConfig controls the deferred job consumer.
type WorkerConfig struct {
	Concurrency              int
	PollIntervalMS           int
	BatchSize                int
	VisibilityTimeoutSeconds int
	// Embedded runs the job runner inside the API process.
	Embedded bool
	// MetricsAddr is where the standalone worker serves /metrics; empty disables it.
	MetricsAddr string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			DedupTTLHours: getEnvAsInt("NOTIFY_DEDUP_TTL_HOURS", 24*14),
		},
		SLA: SLAConfig{
			ReminderLeadMinutes: getEnvAsInt("SLA_REMINDER_LEAD_MINUTES", 60),
			JobDedupTTLHours:    getEnvAsInt("SLA_JOB_DEDUP_TTL_HOURS", 24*14),
			EscalateOnBreach:    getEnvAsBool("SLA_ESCALATE_ON_BREACH", true),
		},
		Worker: WorkerConfig{
			Concurrency:              getEnvAsInt("WORKER_CONCURRENCY", 4),
			PollIntervalMS:           getEnvAsInt("WORKER_POLL_INTERVAL_MS", 1000),
			BatchSize:                getEnvAsInt("WORKER_BATCH_SIZE", 32),
			VisibilityTimeoutSeconds: getEnvAsInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", 60),
			Embedded:                 getEnvAsBool("WORKER_EMBEDDED", false),
			MetricsAddr:              getEnv("WORKER_METRICS_ADDR", ":9091"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects values that would silently break deadline tracking and
// clamps the ones that have a safe floor.
func (c *Config) validate() error {
	var errs []error
	if c.SLA.ReminderLeadMinutes < 0 {
		errs = append(errs, errors.New("invalid SLA_REMINDER_LEAD_MINUTES: must not be negative"))
	}
	if c.SLA.JobDedupTTLHours <= 0 {
		errs = append(errs, errors.New("invalid SLA_JOB_DEDUP_TTL_HOURS: must be positive"))
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns && c.Postgres.MaxConns > 0 {
		errs = append(errs, fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 1
	}
	if c.Postgres.ConnectAttempts <= 0 {
		c.Postgres.ConnectAttempts = 1
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReminderLead returns the reminder lead time; zero disables reminders.
func (s SLAConfig) ReminderLead() time.Duration {
	return time.Duration(s.ReminderLeadMinutes) * time.Minute
}

// JobDedupTTL returns the idempotency retention window for scheduled jobs.
func (s SLAConfig) JobDedupTTL() time.Duration {
	return time.Duration(s.JobDedupTTLHours) * time.Hour
}

// DedupTTL returns the idempotency retention window for notifications.
func (n NotificationConfig) DedupTTL() time.Duration {
	return time.Duration(n.DedupTTLHours) * time.Hour
}

// PollInterval returns the delay between empty polls.
func (w WorkerConfig) PollInterval() time.Duration {
	if w.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// VisibilityTimeout returns how long a claimed job stays leased.
func (w WorkerConfig) VisibilityTimeout() time.Duration {
	return time.Duration(w.VisibilityTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
