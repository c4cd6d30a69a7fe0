// Package sla computes first-response and resolution SLA clocks for tickets
// and turns them into alerts and queue order. Everything here is a pure
// function of the ticket snapshot and the supplied time.
package sla

import (
	"errors"
	"fmt"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

var (
	// ErrInvalidTicket marks ticket data the clocks cannot be computed from.
	ErrInvalidTicket = errors.New("invalid ticket")
)

// AlertType names one of the two SLA clocks.
type AlertType string

const (
	AlertTypeFRT AlertType = "frt"
	AlertTypeRT  AlertType = "rt"
)

// Info is a point-in-time snapshot of both clocks.
type Info struct {
	FRTTarget    time.Duration
	FRTElapsed   time.Duration
	FRTRemaining time.Duration
	FRTStatus    Status
	FRTCompleted bool

	RTTarget    time.Duration
	RTElapsed   time.Duration
	RTRemaining time.Duration
	RTStatus    Status
	RTCompleted bool

	IsPaused       bool
	PausedDuration time.Duration
}

// Timer evaluates the SLA clocks of a single ticket.
type Timer struct {
	ticket    domain.Ticket
	frtTarget time.Duration
	rtTarget  time.Duration
}

// NewTimer validates the ticket and resolves its targets.
func NewTimer(ticket *domain.Ticket, targets Targets) (*Timer, error) {
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}
	return &Timer{
		ticket:    *ticket,
		frtTarget: targets.FRT(ticket.Priority),
		rtTarget:  targets.RT(ticket.Priority, ticket.Type),
	}, nil
}

func validateTicket(ticket *domain.Ticket) error {
	if ticket == nil {
		return fmt.Errorf("%w: nil ticket", ErrInvalidTicket)
	}
	if ticket.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTicket)
	}
	if ticket.CreatedAt.IsZero() {
		return fmt.Errorf("%w: ticket %s missing created_at", ErrInvalidTicket, ticket.ID)
	}
	if ticket.FirstResponseAt != nil && ticket.FirstResponseAt.IsZero() {
		return fmt.Errorf("%w: ticket %s has zero first_response_at", ErrInvalidTicket, ticket.ID)
	}
	if ticket.ResolvedAt != nil && ticket.ResolvedAt.IsZero() {
		return fmt.Errorf("%w: ticket %s has zero resolved_at", ErrInvalidTicket, ticket.ID)
	}
	if ticket.SLA.PausedDuration < 0 {
		return fmt.Errorf("%w: ticket %s has negative paused duration", ErrInvalidTicket, ticket.ID)
	}
	return nil
}

// FRTTarget returns the first-response deadline length.
func (t *Timer) FRTTarget() time.Duration { return t.frtTarget }

// RTTarget returns the resolution deadline length.
func (t *Timer) RTTarget() time.Duration { return t.rtTarget }

// FRTElapsed is frozen at the first response once one exists.
func (t *Timer) FRTElapsed(now time.Time) time.Duration {
	end := now
	if t.ticket.FirstResponseAt != nil {
		end = *t.ticket.FirstResponseAt
	}
	return nonNegative(end.Sub(t.ticket.CreatedAt))
}

// FRTRemaining never goes below zero.
func (t *Timer) FRTRemaining(now time.Time) time.Duration {
	return nonNegative(t.frtTarget - t.FRTElapsed(now))
}

// FRTStatus classifies the first-response clock.
func (t *Timer) FRTStatus(now time.Time) Status {
	if t.FRTCompleted() {
		return StatusCompleted
	}
	return classify(t.FRTRemaining(now), t.frtTarget)
}

// FRTCompleted reports whether a first response has been recorded.
func (t *Timer) FRTCompleted() bool {
	return t.ticket.FirstResponseAt != nil
}

// RTElapsed is the span from creation to resolution (or now) minus all
// paused time, including a pause that is still running.
func (t *Timer) RTElapsed(now time.Time) time.Duration {
	end := now
	if t.ticket.ResolvedAt != nil {
		end = *t.ticket.ResolvedAt
	}
	elapsed := end.Sub(t.ticket.CreatedAt) - t.PausedDuration(now)
	return nonNegative(elapsed)
}

// RTRemaining never goes below zero.
func (t *Timer) RTRemaining(now time.Time) time.Duration {
	return nonNegative(t.rtTarget - t.RTElapsed(now))
}

// RTStatus classifies the resolution clock.
func (t *Timer) RTStatus(now time.Time) Status {
	if t.RTCompleted() {
		return StatusCompleted
	}
	return classify(t.RTRemaining(now), t.rtTarget)
}

// RTCompleted reports whether the ticket is resolved or otherwise finished.
func (t *Timer) RTCompleted() bool {
	return t.ticket.ResolvedAt != nil || t.ticket.Status.Phase() == domain.PhaseTerminal
}

// IsPaused reports whether the ticket currently waits on an outside party.
func (t *Timer) IsPaused() bool {
	return t.ticket.IsPaused()
}

// PausedDuration is the persisted pause total plus the in-flight pause.
func (t *Timer) PausedDuration(now time.Time) time.Duration {
	total := t.ticket.SLA.PausedDuration
	if t.IsPaused() && t.ticket.SLA.PauseStartedAt != nil && t.ticket.ResolvedAt == nil {
		total += nonNegative(now.Sub(*t.ticket.SLA.PauseStartedAt))
	}
	return total
}

// Info bundles both clocks into a snapshot.
func (t *Timer) Info(now time.Time) Info {
	return Info{
		FRTTarget:      t.frtTarget,
		FRTElapsed:     t.FRTElapsed(now),
		FRTRemaining:   t.FRTRemaining(now),
		FRTStatus:      t.FRTStatus(now),
		FRTCompleted:   t.FRTCompleted(),
		RTTarget:       t.rtTarget,
		RTElapsed:      t.RTElapsed(now),
		RTRemaining:    t.RTRemaining(now),
		RTStatus:       t.RTStatus(now),
		RTCompleted:    t.RTCompleted(),
		IsPaused:       t.IsPaused(),
		PausedDuration: t.PausedDuration(now),
	}
}

// ShouldAlert returns the clocks that are urgent or violated.
func (t *Timer) ShouldAlert(now time.Time) []AlertType {
	var out []AlertType
	if t.FRTStatus(now).Critical() {
		out = append(out, AlertTypeFRT)
	}
	if t.RTStatus(now).Critical() {
		out = append(out, AlertTypeRT)
	}
	return out
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
