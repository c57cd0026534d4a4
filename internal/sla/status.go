package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// State is the coarse SLA health of a ticket.
type State string

const (
	StateHealthy  State = "healthy"
	StateBreached State = "breached"
)

// Milestone names the deadline a status refers to.
type Milestone string

const (
	MilestoneNone          Milestone = ""
	MilestoneFirstResponse Milestone = "first_response"
	MilestoneResolution    Milestone = "resolution"
)

// Status is the classifier output for one ticket.
type Status struct {
	State     State
	Label     string
	Milestone Milestone
	// NextDue is the deadline a healthy ticket is counting down to.
	NextDue   *time.Time
	Remaining time.Duration
}

// Classify computes the SLA status of t at now. Terminal tickets are always
// healthy because the SLA is moot once work is done.
func Classify(t *domain.Ticket, now time.Time) Status {
	if t.IsTerminal() {
		return Status{State: StateHealthy, Label: "Met"}
	}
	if t.ResolveDue != nil && t.ResolveDue.Before(now) {
		return Status{State: StateBreached, Label: "Breached (resolution)", Milestone: MilestoneResolution}
	}
	firstResponseDone := t.FirstResponseAt != nil
	if t.FirstResponseDue != nil && t.FirstResponseDue.Before(now) && !firstResponseDone {
		return Status{State: StateBreached, Label: "Breached (first response)", Milestone: MilestoneFirstResponse}
	}

	next, milestone := t.ResolveDue, MilestoneResolution
	if !firstResponseDone && t.FirstResponseDue != nil {
		next, milestone = t.FirstResponseDue, MilestoneFirstResponse
	}
	if next == nil {
		return Status{State: StateHealthy, Label: "In progress (untracked)"}
	}
	remaining := next.Sub(now)
	label := "Due in " + formatRemaining(remaining)
	if t.IsWaiting() {
		label = "Paused (" + formatRemaining(remaining) + " left)"
	}
	return Status{
		State:     StateHealthy,
		Label:     label,
		Milestone: milestone,
		NextDue:   next,
		Remaining: remaining,
	}
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Summary counts SLA health across open tickets.
type Summary struct {
	Open     int `json:"open"`
	Breached int `json:"breached"`
	Healthy  int `json:"healthy"`
}

// Summarize classifies every non-terminal ticket and counts the results.
// Terminal tickets are skipped so they do not inflate the healthy count.
func Summarize(tickets []domain.Ticket, now time.Time) Summary {
	var s Summary
	for i := range tickets {
		t := &tickets[i]
		if t.IsTerminal() {
			continue
		}
		s.Open++
		if Classify(t, now).State == StateBreached {
			s.Breached++
		} else {
			s.Healthy++
		}
	}
	return s
}
