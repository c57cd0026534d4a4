package events

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventSLABreached         EventType = "sla_breached"
	EventSLAEscalated        EventType = "sla_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OrganizationID   string                `json:"organization_id"`
	CategoryID       *string               `json:"category_id,omitempty"`
	Priority         domain.TicketPriority `json:"priority"`
	Title            string                `json:"title"`
	FirstResponseDue *time.Time            `json:"first_response_due,omitempty"`
	ResolveDue       *time.Time            `json:"resolve_due,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	DeadlinesMoved bool                `json:"deadlines_moved"`
	PauseTotalSec  int64               `json:"sla_pause_total_seconds"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	TeamID     *string `json:"team_id,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID     string                   `json:"message_id"`
	MessageType   domain.TicketMessageType `json:"message_type"`
	AuthorType    domain.MessageAuthorType `json:"author_type"`
	FirstResponse bool                     `json:"first_response"`
	BodyPreview   string                   `json:"body_preview"`
}

// SLABreachedPayload describes a recorded breach.
type SLABreachedPayload struct {
	OrganizationID string                `json:"organization_id"`
	JobType        domain.JobType        `json:"job_type"`
	DueAt          string                `json:"due_at"`
	Priority       domain.TicketPriority `json:"priority"`
	CategoryID     *string               `json:"category_id,omitempty"`
	AuditID        string                `json:"audit_id"`
}

// SLAEscalatedPayload describes a completed escalation.
type SLAEscalatedPayload struct {
	Level      int     `json:"level"`
	TeamID     string  `json:"team_id"`
	PreviousID *string `json:"previous_team_id,omitempty"`
	Reason     string  `json:"reason"`
}
