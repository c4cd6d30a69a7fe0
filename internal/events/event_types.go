package events

import (
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketFirstResponse EventType = "ticket_first_response"
	EventSLAAlertRaised      EventType = "sla_alert_raised"
	EventSessionAssigned     EventType = "session_assigned"
	EventSessionQueued       EventType = "session_queued"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus             domain.TicketStatus `json:"old_status"`
	NewStatus             domain.TicketStatus `json:"new_status"`
	PausedDurationSeconds float64             `json:"sla_paused_duration"`
	Paused                bool                `json:"sla_paused"`
}

// SLAAlertPayload payload.
type SLAAlertPayload struct {
	Alert   sla.Alert `json:"alert"`
	Message string    `json:"message"`
}

// SessionAssignedPayload payload.
type SessionAssignedPayload struct {
	AgentID         string   `json:"agent_id"`
	AgentName       string   `json:"agent_name"`
	MatchedTags     []string `json:"matched_tags"`
	ManualSessions  int      `json:"manual_sessions"`
	PendingSessions int      `json:"pending_sessions"`
	Score           float64  `json:"score"`
}

// SessionQueuedPayload payload.
type SessionQueuedPayload struct {
	Reason string `json:"reason"`
}
