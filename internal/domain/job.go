package domain

import (
	"fmt"
	"time"
)

// JobType discriminates deferred SLA jobs.
type JobType string

const (
	JobTypeFirstResponse JobType = "first-response"
	JobTypeResolve       JobType = "resolve"
	JobTypeReminder      JobType = "reminder"
)

// DueLayout is the wire format of job due timestamps. Deadlines are stored at
// millisecond precision so a formatted due value round-trips exactly.
const DueLayout = "2006-01-02T15:04:05.000Z07:00"

// Job is the payload submitted to the delayed queue. Reminder is set only
// on reminder jobs.
type Job struct {
	ID             string          `json:"job_id"`
	Type           JobType         `json:"job_type"`
	TicketID       string          `json:"ticket_id"`
	OrganizationID string          `json:"organization_id"`
	DueAt          string          `json:"due_at"`
	Priority       TicketPriority  `json:"priority"`
	CategoryID     *string         `json:"category_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Reminder       *ReminderDetail `json:"reminder,omitempty"`
}

// ReminderDetail carries the reminder-specific fields.
type ReminderDetail struct {
	ReminderFor JobType `json:"reminder_for"`
	RecipientID string  `json:"recipient_id"`
	Reason      string  `json:"reason,omitempty"`
}

// Validate rejects payloads that cannot be processed at all.
func (j Job) Validate() error {
	if j.TicketID == "" {
		return fmt.Errorf("job %q: ticket_id required", j.ID)
	}
	switch j.Type {
	case JobTypeFirstResponse, JobTypeResolve, JobTypeReminder:
	default:
		return fmt.Errorf("job %q: unknown job type %q", j.ID, j.Type)
	}
	return nil
}

// NormalizeDeadline truncates t to the precision deadlines are stored and compared at.
func NormalizeDeadline(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatDue renders a deadline in the job wire format.
func FormatDue(t time.Time) string {
	return NormalizeDeadline(t).Format(DueLayout)
}

// ParseDue parses a job due timestamp. Any RFC3339 value is accepted.
func ParseDue(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDeadline(t), nil
}
