package domain

import "time"

// MessageAuthorType is the side of the conversation a message came from.
type MessageAuthorType string

const (
	AuthorTypeUser  MessageAuthorType = "USER"
	AuthorTypeStaff MessageAuthorType = "STAFF"
)

// TicketMessageType separates requester-visible replies from staff-only notes.
type TicketMessageType string

const (
	MessageTypePublicReply  TicketMessageType = "PUBLIC_REPLY"
	MessageTypeInternalNote TicketMessageType = "INTERNAL_NOTE"
)

// Valid reports whether t is a known message type.
func (t TicketMessageType) Valid() bool {
	return t == MessageTypePublicReply || t == MessageTypeInternalNote
}

// TicketMessage is one entry of a ticket thread.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorType  MessageAuthorType
	AuthorID    string
	MessageType TicketMessageType
	Body        string
	CreatedAt   time.Time
}

// IsFirstResponse reports whether m stops the first-response clock.
func (m TicketMessage) IsFirstResponse() bool {
	return m.AuthorType == AuthorTypeStaff && m.MessageType == MessageTypePublicReply
}

// VisibleTo hides internal notes from anyone but staff.
func (m TicketMessage) VisibleTo(p Principal) bool {
	return p.IsStaff() || m.MessageType != MessageTypeInternalNote
}
