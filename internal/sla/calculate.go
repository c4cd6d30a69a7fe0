package sla

import (
	"math"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// TicketSLA is the flat view of Info used by UI and notification layers.
type TicketSLA struct {
	TicketID string `json:"ticket_id"`

	FRTTargetSeconds    float64 `json:"frt_target"`
	FRTElapsedSeconds   float64 `json:"frt_elapsed"`
	FRTRemainingSeconds float64 `json:"frt_remaining"`
	FRTRemainingMinutes float64 `json:"frt_remaining_minutes"`
	FRTStatus           Status  `json:"frt_status"`
	FRTCompleted        bool    `json:"frt_completed"`

	RTTargetSeconds    float64 `json:"rt_target"`
	RTElapsedSeconds   float64 `json:"rt_elapsed"`
	RTRemainingSeconds float64 `json:"rt_remaining"`
	RTRemainingHours   float64 `json:"rt_remaining_hours"`
	RTStatus           Status  `json:"rt_status"`
	RTCompleted        bool    `json:"rt_completed"`

	IsPaused              bool    `json:"is_paused"`
	PausedDurationSeconds float64 `json:"paused_duration"`
	CalculatedAt          int64   `json:"calculated_at"`
}

// CalculateTicketSLA snapshots a ticket's clocks at now.
func CalculateTicketSLA(ticket *domain.Ticket, targets Targets, now time.Time) (TicketSLA, error) {
	timer, err := NewTimer(ticket, targets)
	if err != nil {
		return TicketSLA{}, err
	}
	info := timer.Info(now)
	return TicketSLA{
		TicketID:              ticket.ID,
		FRTTargetSeconds:      info.FRTTarget.Seconds(),
		FRTElapsedSeconds:     info.FRTElapsed.Seconds(),
		FRTRemainingSeconds:   info.FRTRemaining.Seconds(),
		FRTRemainingMinutes:   round1(info.FRTRemaining.Minutes()),
		FRTStatus:             info.FRTStatus,
		FRTCompleted:          info.FRTCompleted,
		RTTargetSeconds:       info.RTTarget.Seconds(),
		RTElapsedSeconds:      info.RTElapsed.Seconds(),
		RTRemainingSeconds:    info.RTRemaining.Seconds(),
		RTRemainingHours:      round1(info.RTRemaining.Hours()),
		RTStatus:              info.RTStatus,
		RTCompleted:           info.RTCompleted,
		IsPaused:              info.IsPaused,
		PausedDurationSeconds: info.PausedDuration.Seconds(),
		CalculatedAt:          now.Unix(),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
