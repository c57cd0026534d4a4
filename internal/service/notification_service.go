package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/repository"
	util "github.com/spec-kit/sla-service/pkg/util"
)

const notifyKeyPrefix = "notify:"

// NotificationService persists and delivers notifications. Sends carrying an
// idempotency key are delivered at most once per retention window.
type NotificationService struct {
	repo       repository.NotificationRepository
	dedup      dedup.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Repo       repository.NotificationRepository
	Dedup      dedup.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:       deps.Repo,
		dedup:      deps.Dedup,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		cfg:        deps.Config,
	}
}

// Send records and delivers msg. A repeated idempotency key returns the
// original notification with status DEDUPED.
func (n *NotificationService) Send(ctx context.Context, msg domain.Notification) (*domain.Notification, error) {
	if strings.TrimSpace(msg.RecipientID) == "" {
		return nil, util.NewValidationError("notification recipient required", nil)
	}
	if msg.Channel == "" {
		msg.Channel = domain.ChannelInApp
	}
	msg.ID = uuid.NewString()
	msg.Status = domain.NotificationSent

	key := ""
	if msg.IdempotencyKey != nil {
		key = *msg.IdempotencyKey
	}
	if key != "" && n.dedup != nil {
		claimed, holder, err := n.dedup.Claim(ctx, notifyKeyPrefix+key, msg.ID, n.dedupTTL())
		switch {
		case err != nil:
			// the unique index on idempotency_key still guards the insert
			n.logger.Warn("notification dedup store unavailable", zap.String("idempotency_key", key), zap.Error(err))
		case !claimed:
			return n.deduped(ctx, msg, key, holder), nil
		}
	}

	if err := n.repo.Create(ctx, &msg); err != nil {
		if key != "" && util.IsUniqueViolation(err) {
			return n.deduped(ctx, msg, key, ""), nil
		}
		if key != "" && n.dedup != nil {
			_ = n.dedup.Release(ctx, notifyKeyPrefix+key)
		}
		n.metrics.RecordNotification(string(msg.Channel), "failed")
		return nil, err
	}

	n.deliver(ctx, msg)
	n.metrics.RecordNotification(string(msg.Channel), string(domain.NotificationSent))
	return &msg, nil
}

// ListForRecipient returns the newest notifications addressed to recipientID.
func (n *NotificationService) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	return n.repo.ListByRecipient(ctx, recipientID, limit)
}

func (n *NotificationService) deduped(ctx context.Context, msg domain.Notification, key, holder string) *domain.Notification {
	n.metrics.RecordNotification(string(msg.Channel), string(domain.NotificationDeduped))
	if existing, err := n.repo.GetByIdempotencyKey(ctx, key); err == nil {
		existing.Status = domain.NotificationDeduped
		return existing
	} else if !errors.Is(err, pgx.ErrNoRows) {
		n.logger.Warn("lookup deduplicated notification", zap.String("idempotency_key", key), zap.Error(err))
	}
	msg.ID = holder
	msg.Status = domain.NotificationDeduped
	return &msg
}

func (n *NotificationService) deliver(ctx context.Context, msg domain.Notification) {
	switch msg.Channel {
	case domain.ChannelEmail:
		n.sendEmailNotificationStub(ctx, msg.RecipientID, msg.Subject)
	default:
		// in-app notifications are delivered by being stored
	}
}

func (n *NotificationService) dedupTTL() time.Duration {
	if ttl := n.cfg.DedupTTL(); ttl > 0 {
		return ttl
	}
	return 14 * 24 * time.Hour
}

// RegisterHandlers subscribes webhook fan-out to domain events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleEvent)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleEvent)
	n.dispatcher.Subscribe(events.EventSLAEscalated, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, recipientID, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", recipientID),
		zap.String("subject", subject))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
