package sla

import (
	"sort"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// QueueEntry is one ticket in SLA-priority order.
type QueueEntry struct {
	Ticket   domain.Ticket
	Info     Info
	Severity Status
	Ratio    float64
}

// RankQueue orders tickets so the most endangered SLA comes first: worst
// clock status, then smallest remaining ratio, then ticket priority, then
// oldest creation, then id.
func RankQueue(tickets []domain.Ticket, targets Targets, now time.Time) ([]QueueEntry, error) {
	entries := make([]QueueEntry, 0, len(tickets))
	for i := range tickets {
		timer, err := NewTimer(&tickets[i], targets)
		if err != nil {
			return nil, err
		}
		info := timer.Info(now)
		severity, ratio := worstClock(info)
		entries = append(entries, QueueEntry{
			Ticket:   tickets[i],
			Info:     info,
			Severity: severity,
			Ratio:    ratio,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Severity.Severity() != b.Severity.Severity() {
			return a.Severity.Severity() > b.Severity.Severity()
		}
		if a.Ratio != b.Ratio {
			return a.Ratio < b.Ratio
		}
		if a.Ticket.Priority.Rank() != b.Ticket.Priority.Rank() {
			return a.Ticket.Priority.Rank() < b.Ticket.Priority.Rank()
		}
		if !a.Ticket.CreatedAt.Equal(b.Ticket.CreatedAt) {
			return a.Ticket.CreatedAt.Before(b.Ticket.CreatedAt)
		}
		return a.Ticket.ID < b.Ticket.ID
	})
	return entries, nil
}

// worstClock picks the more endangered of the two running clocks.
func worstClock(info Info) (Status, float64) {
	status, ratio := StatusCompleted, 1.0
	consider := func(s Status, remaining, target time.Duration) {
		if s == StatusCompleted {
			return
		}
		r := remainingRatio(remaining, target)
		if s.Severity() > status.Severity() || (s.Severity() == status.Severity() && r < ratio) {
			status, ratio = s, r
		}
	}
	consider(info.FRTStatus, info.FRTRemaining, info.FRTTarget)
	consider(info.RTStatus, info.RTRemaining, info.RTTarget)
	return status, ratio
}
