package sla

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PauseState is the pause accounting carried on a ticket.
type PauseState struct {
	PausedAt     *time.Time
	ResumedAt    *time.Time
	TotalSeconds int64
}

// PauseStateOf extracts the pause fields of a ticket.
func PauseStateOf(t *domain.Ticket) PauseState {
	return PauseState{
		PausedAt:     t.SLAPausedAt,
		ResumedAt:    t.SLAResumedAt,
		TotalSeconds: t.SLAPauseTotalSeconds,
	}
}

// Paused reports whether a pause interval is currently open.
func (s PauseState) Paused() bool {
	return s.PausedAt != nil
}

// StartPause opens a pause interval at now. Already paused states are returned unchanged.
func StartPause(s PauseState, now time.Time) PauseState {
	if s.Paused() {
		return s
	}
	at := now.UTC()
	return PauseState{PausedAt: &at, ResumedAt: nil, TotalSeconds: s.TotalSeconds}
}

// ResumePause closes the open pause interval at now and adds its whole seconds
// to the total. States that are not paused are returned unchanged.
func ResumePause(s PauseState, now time.Time) PauseState {
	if !s.Paused() {
		return s
	}
	elapsed := int64(now.Sub(*s.PausedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	at := now.UTC()
	return PauseState{PausedAt: nil, ResumedAt: &at, TotalSeconds: s.TotalSeconds + elapsed}
}

// TransitionUpdate is the set of SLA fields a status change rewrites.
// Nil fields are left untouched.
type TransitionUpdate struct {
	Pause            *PauseState
	FirstResponseDue *time.Time
	ResolveDue       *time.Time
}

// Empty reports whether the update changes nothing.
func (u TransitionUpdate) Empty() bool {
	return u.Pause == nil && u.FirstResponseDue == nil && u.ResolveDue == nil
}

// DeadlinesShifted reports whether the update moves any deadline.
func (u TransitionUpdate) DeadlinesShifted() bool {
	return u.FirstResponseDue != nil || u.ResolveDue != nil
}

// Apply writes the update onto t.
func (u TransitionUpdate) Apply(t *domain.Ticket) {
	if u.Pause != nil {
		t.SLAPausedAt = u.Pause.PausedAt
		t.SLAResumedAt = u.Pause.ResumedAt
		t.SLAPauseTotalSeconds = u.Pause.TotalSeconds
	}
	if u.FirstResponseDue != nil {
		t.FirstResponseDue = u.FirstResponseDue
	}
	if u.ResolveDue != nil {
		t.ResolveDue = u.ResolveDue
	}
}

// DeriveTransitionUpdates computes the SLA changes implied by moving t to target.
// Entering the waiting state opens a pause; leaving it closes the pause and
// pushes both deadlines forward by the paused seconds so the remaining budget
// is preserved. Every other transition is a no-op.
func DeriveTransitionUpdates(t *domain.Ticket, target domain.TicketStatus, now time.Time) TransitionUpdate {
	if target == "" || target == t.Status {
		return TransitionUpdate{}
	}

	waitingNow := t.Status == domain.TicketStatusWaitingOnRequester
	waitingNext := target == domain.TicketStatusWaitingOnRequester
	current := PauseStateOf(t)

	switch {
	case !waitingNow && waitingNext:
		next := StartPause(current, now)
		return TransitionUpdate{Pause: &next}
	case waitingNow && !waitingNext:
		next := ResumePause(current, now)
		update := TransitionUpdate{Pause: &next}
		added := next.TotalSeconds - current.TotalSeconds
		if added > 0 {
			shift := time.Duration(added) * time.Second
			update.FirstResponseDue = shiftDeadline(t.FirstResponseDue, shift)
			update.ResolveDue = shiftDeadline(t.ResolveDue, shift)
		}
		return update
	default:
		return TransitionUpdate{}
	}
}

func shiftDeadline(due *time.Time, by time.Duration) *time.Time {
	if due == nil {
		return nil
	}
	shifted := domain.NormalizeDeadline(due.Add(by))
	return &shifted
}
