package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusWaitingCustomer TicketStatus = "waiting_customer"
	TicketStatusWaitingVendor   TicketStatus = "waiting_vendor"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusArchived        TicketStatus = "archived"
)

// StatusPhase groups ticket statuses by how they drive the resolution clock.
type StatusPhase int

const (
	PhaseRunning StatusPhase = iota
	PhasePaused
	PhaseTerminal
)

func (p StatusPhase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseTerminal:
		return "terminal"
	}
	return "unknown"
}

// Phase reports whether the status keeps the SLA clock running, pauses it,
// or ends it. Unknown statuses are treated as running.
func (s TicketStatus) Phase() StatusPhase {
	switch s {
	case TicketStatusWaitingCustomer, TicketStatusWaitingVendor:
		return PhasePaused
	case TicketStatusResolved, TicketStatusClosed, TicketStatusArchived:
		return PhaseTerminal
	case TicketStatusOpen, TicketStatusInProgress:
		return PhaseRunning
	}
	return PhaseRunning
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer,
		TicketStatusWaitingVendor, TicketStatusResolved, TicketStatusClosed, TicketStatusArchived:
		return true
	}
	return false
}

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
	return s, nil
}

// OpenTicketStatuses lists the statuses a periodic SLA scan looks at.
func OpenTicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusWaitingCustomer,
		TicketStatusWaitingVendor,
	}
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityUrgent TicketPriority = "urgent"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityLow    TicketPriority = "low"
)

// Rank orders priorities, lower is more urgent.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityUrgent:
		return 0
	case TicketPriorityHigh:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityLow:
		return 3
	}
	return 4
}

// ParseTicketPriority validates a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	p := TicketPriority(raw)
	if p.Rank() > 3 {
		return "", fmt.Errorf("unknown ticket priority %q", raw)
	}
	return p, nil
}

// TicketPriorities lists every known priority, most urgent first.
func TicketPriorities() []TicketPriority {
	return []TicketPriority{TicketPriorityUrgent, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow}
}

// TicketType classifies the business context of a ticket.
type TicketType string

const (
	TicketTypePreSale   TicketType = "pre_sale"
	TicketTypeAfterSale TicketType = "after_sale"
	TicketTypeComplaint TicketType = "complaint"
)

// ParseTicketType validates a raw ticket type.
func ParseTicketType(raw string) (TicketType, error) {
	switch t := TicketType(raw); t {
	case TicketTypePreSale, TicketTypeAfterSale, TicketTypeComplaint:
		return t, nil
	}
	return "", fmt.Errorf("unknown ticket type %q", raw)
}

// TicketTypes lists every known ticket type.
func TicketTypes() []TicketType {
	return []TicketType{TicketTypePreSale, TicketTypeAfterSale, TicketTypeComplaint}
}

// SLAMetadata carries pause bookkeeping persisted alongside a ticket.
// PauseStartedAt is set exactly while the ticket sits in a paused status.
type SLAMetadata struct {
	PauseStartedAt *time.Time
	PausedDuration time.Duration
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	Title           string
	Priority        TicketPriority
	Type            TicketType
	Status          TicketStatus
	AssignedAgentID *string
	SLA             SLAMetadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

// IsPaused reports whether the ticket currently waits on an outside party.
func (t *Ticket) IsPaused() bool {
	return t.Status.Phase() == PhasePaused
}
