package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	CategoryID *string               `json:"category_id"`
}

// TicketResponse carries a ticket with its SLA clock.
type TicketResponse struct {
	ID                   string                `json:"id"`
	OrganizationID       string                `json:"organization_id"`
	RequesterID          string                `json:"requester_id"`
	AssigneeID           *string               `json:"assignee_id"`
	TeamID               *string               `json:"team_id"`
	CategoryID           *string               `json:"category_id"`
	Title                string                `json:"title"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	EscalationLevel      *int                  `json:"escalation_level"`
	FirstResponseAt      *time.Time            `json:"first_response_at"`
	FirstResponseDue     *time.Time            `json:"first_response_due"`
	ResolveDue           *time.Time            `json:"resolve_due"`
	ResolvedAt           *time.Time            `json:"resolved_at"`
	ClosedAt             *time.Time            `json:"closed_at"`
	SLAPausedAt          *time.Time            `json:"sla_paused_at"`
	SLAResumedAt         *time.Time            `json:"sla_resumed_at"`
	SLAPauseTotalSeconds int64                 `json:"sla_pause_total_seconds"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ChangeStatusResponse reports the transition and any rescheduled jobs.
type ChangeStatusResponse struct {
	Ticket         TicketResponse      `json:"ticket"`
	OldStatus      domain.TicketStatus `json:"old_status"`
	DeadlinesMoved bool                `json:"deadlines_moved"`
	JobsScheduled  int                 `json:"jobs_scheduled"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	Body        string                   `json:"body"`
	MessageType domain.TicketMessageType `json:"message_type"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	TicketID    string                   `json:"ticket_id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    string                   `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AuditEventResponse is one audit trail entry.
type AuditEventResponse struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// ThreadResponse is a ticket conversation with its audit trail.
type ThreadResponse struct {
	Messages []TicketMessageResponse `json:"messages"`
	Audit    []AuditEventResponse    `json:"audit"`
}

// NotificationResponse representation.
type NotificationResponse struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// EscalationResponse reports an escalation attempt.
type EscalationResponse struct {
	Escalated      bool    `json:"escalated"`
	Reason         string  `json:"reason"`
	Level          int     `json:"level,omitempty"`
	TeamID         string  `json:"team_id,omitempty"`
	PreviousTeamID *string `json:"previous_team_id,omitempty"`
	NotificationID string  `json:"notification_id,omitempty"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
	TeamID     string `json:"team_id"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                   t.ID,
		OrganizationID:       t.OrganizationID,
		RequesterID:          t.RequesterID,
		AssigneeID:           t.AssigneeID,
		TeamID:               t.TeamID,
		CategoryID:           t.CategoryID,
		Title:                t.Title,
		Status:               t.Status,
		Priority:             t.Priority,
		EscalationLevel:      t.EscalationLevel,
		FirstResponseAt:      t.FirstResponseAt,
		FirstResponseDue:     t.FirstResponseDue,
		ResolveDue:           t.ResolveDue,
		ResolvedAt:           t.ResolvedAt,
		ClosedAt:             t.ClosedAt,
		SLAPausedAt:          t.SLAPausedAt,
		SLAResumedAt:         t.SLAResumedAt,
		SLAPauseTotalSeconds: t.SLAPauseTotalSeconds,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// NewTicketMessageResponse maps a domain message.
func NewTicketMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:          m.ID,
		TicketID:    m.TicketID,
		MessageType: m.MessageType,
		AuthorType:  m.AuthorType,
		AuthorID:    m.AuthorID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
	}
}
