package domain

import "time"

// NotificationChannel is the delivery surface for a notification.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "IN_APP"
	ChannelEmail NotificationChannel = "EMAIL"
)

// NotificationStatus reports the outcome of a send.
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "SENT"
	NotificationDeduped NotificationStatus = "DEDUPED"
)

// Notification is a persisted record of a message delivered to a recipient.
type Notification struct {
	ID             string
	Channel        NotificationChannel
	RecipientID    string
	Subject        string
	Body           string
	Data           map[string]any
	IdempotencyKey *string
	Status         NotificationStatus
	CreatedAt      time.Time
}
