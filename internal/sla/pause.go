package sla

import (
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// ApplyStatusChange returns the pause bookkeeping that must be persisted
// when a ticket moves to status to at now.
//
// Entering a paused status stamps PauseStartedAt. Leaving it for any other
// status folds the pause into PausedDuration and clears the stamp. Moving
// between two paused statuses keeps the running pause.
func ApplyStatusChange(meta domain.SLAMetadata, to domain.TicketStatus, now time.Time) domain.SLAMetadata {
	out := domain.SLAMetadata{PausedDuration: meta.PausedDuration}
	if meta.PauseStartedAt != nil {
		started := *meta.PauseStartedAt
		out.PauseStartedAt = &started
	}

	nowPaused := to.Phase() == domain.PhasePaused

	switch {
	case nowPaused && out.PauseStartedAt == nil:
		stamp := now
		out.PauseStartedAt = &stamp
	case !nowPaused && out.PauseStartedAt != nil:
		out.PausedDuration += nonNegative(now.Sub(*out.PauseStartedAt))
		out.PauseStartedAt = nil
	}
	return out
}
