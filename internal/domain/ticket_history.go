package domain

import "time"

// AuditAction captures what an audit entry records.
type AuditAction string

const (
	AuditActionSLABreached   AuditAction = "SLA_BREACHED"
	AuditActionSLAEscalated  AuditAction = "SLA_ESCALATED"
	AuditActionStatusChanged AuditAction = "STATUS_CHANGED"
	AuditActionAssigned      AuditAction = "ASSIGNED"
)

// AuditEvent is an immutable audit trail entry for a ticket.
type AuditEvent struct {
	ID        string
	TicketID  string
	ActorID   string
	Action    AuditAction
	Data      map[string]any
	CreatedAt time.Time
}
