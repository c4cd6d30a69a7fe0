package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus        TicketChangeType = "STATUS_CHANGE"
	ChangeTypeFirstResponse TicketChangeType = "FIRST_RESPONSE"
)

// TicketHistory is an immutable audit trail entry. PausedDuration is the
// ticket's accumulated pause right after the change.
type TicketHistory struct {
	ID             string
	TicketID       string
	ChangeType     TicketChangeType
	OldStatus      TicketStatus
	NewStatus      TicketStatus
	PausedDuration time.Duration
	CreatedAt      time.Time
}
