// Package app assembles the repositories, services and job pipeline shared by
// the API and worker binaries.
package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/persistence"
	"github.com/spec-kit/sla-service/internal/queue"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/scheduler"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
	"github.com/spec-kit/sla-service/internal/worker"
)

// Container holds the wired components.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Postgres *persistence.Postgres
	// Redis is nil when the server was unreachable at startup.
	Redis *persistence.Redis
	// LocalQueue is set when jobs live in process memory; such jobs only
	// fire if the runner shares this process.
	LocalQueue bool

	Dispatcher events.Dispatcher
	Scheduler  *scheduler.Scheduler
	Runner     *worker.Runner

	Tickets       *service.TicketService
	SLA           *service.SLAService
	Policies      *service.PolicyService
	Org           *service.OrgService
	Assignment    *service.AssignmentService
	Escalation    *service.EscalationService
	Notifications *service.NotificationService
}

// Build connects to the stores and wires every component. Close releases them.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	pool := pg.PoolHandle()
	if pool == nil {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Metrics:    metrics,
		Postgres:   pg,
		Dispatcher: events.NewInMemoryDispatcher(),
	}

	realClock := clock.Real()
	queueOpts := queue.Options{DedupTTL: cfg.SLA.JobDedupTTL(), Visibility: cfg.Worker.VisibilityTimeout()}
	var (
		store     dedup.Store
		submitter queue.Submitter
		consumer  queue.Consumer
	)
	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err == nil {
		c.Redis = redis
		store = dedup.NewRedisStore(redis.Client)
		q := queue.NewRedisQueue(redis.Client, store, realClock, queueOpts)
		submitter, consumer = q, q
	} else {
		logger.Warn("redis unavailable; using in-process queue and dedup", zap.Error(err))
		c.LocalQueue = true
		memStore := dedup.NewMemoryStore(realClock)
		store = memStore
		q := queue.NewMemoryQueue(memStore, realClock, queueOpts)
		submitter, consumer = q, q
	}

	tickets := repository.NewTicketRepository(pool)
	messages := repository.NewTicketMessageRepository(pool)
	categories := repository.NewCategoryRepository(pool)
	teams := repository.NewTeamRepository(pool)
	audit := repository.NewAuditRepository(pool)
	policies := repository.NewPolicyRepository(pool)
	escalations := repository.NewEscalationRepository(pool)
	notifications := repository.NewNotificationRepository(pool)
	tx := repository.NewTransactionManager(pool)

	policyResolver := sla.NewPolicyResolver(policies)

	c.Scheduler = scheduler.New(scheduler.Dependencies{
		Submitter:    submitter,
		Clock:        realClock,
		Logger:       logger,
		Metrics:      metrics,
		ReminderLead: cfg.SLA.ReminderLead(),
	})
	c.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Repo:       notifications,
		Dedup:      store,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Config:     cfg.Notification,
	})
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:   tickets,
		MessageRepo:  messages,
		CategoryRepo: categories,
		AuditRepo:    audit,
		Transactor:   tx,
		Policies:     policyResolver,
		Scheduler:    c.Scheduler,
		Dispatcher:   c.Dispatcher,
		Clock:        realClock,
		Logger:       logger,
	})
	c.SLA = service.NewSLAService(service.SLADependencies{
		TicketRepo: tickets,
		Policies:   policyResolver,
		Clock:      realClock,
	})
	c.Policies = service.NewPolicyService(service.PolicyDependencies{
		PolicyRepo:   policies,
		CategoryRepo: categories,
		Logger:       logger,
	})
	c.Org = service.NewOrgService(service.OrgDependencies{TeamRepo: teams, CategoryRepo: categories})
	c.Assignment = service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: tickets,
		TeamRepo:   teams,
		AuditRepo:  audit,
		Transactor: tx,
		Dispatcher: c.Dispatcher,
		Clock:      realClock,
		Logger:     logger,
	})
	c.Escalation = service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:       tickets,
		TeamRepo:         teams,
		AuditRepo:        audit,
		Transactor:       tx,
		Resolver:         sla.NewEscalationResolver(escalations),
		Notifier:         c.Notifications,
		Dispatcher:       c.Dispatcher,
		Clock:            realClock,
		Logger:           logger,
		Metrics:          metrics,
		EscalateOnBreach: cfg.SLA.EscalateOnBreach,
	})

	c.Runner = worker.NewRunner(worker.RunnerDependencies{
		Consumer: consumer,
		Breach: worker.NewBreachEvaluator(worker.EvaluatorDependencies{
			Tickets:    tickets,
			Audit:      audit,
			Notifier:   c.Notifications,
			Claims:     store,
			ClaimTTL:   cfg.SLA.JobDedupTTL(),
			Dispatcher: c.Dispatcher,
			Logger:     logger,
			Metrics:    metrics,
		}),
		Reminder: worker.NewReminderHandler(worker.ReminderDependencies{
			Tickets:  tickets,
			Notifier: c.Notifications,
			Logger:   logger,
		}),
		Clock:   realClock,
		Logger:  logger,
		Metrics: metrics,
		Config: worker.RunnerConfig{
			Concurrency:  cfg.Worker.Concurrency,
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval(),
		},
	})

	worker.StartEventHandlers(c.Notifications, c.Escalation)
	return c, nil
}

// Close releases store connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
