package sla

import (
	"fmt"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// Targets holds the first-response and resolution deadlines.
type Targets struct {
	FirstResponse map[domain.TicketPriority]time.Duration
	Resolution    map[domain.TicketPriority]map[domain.TicketType]time.Duration
}

// DefaultTargets returns the stock SLA table.
func DefaultTargets() Targets {
	return Targets{
		FirstResponse: map[domain.TicketPriority]time.Duration{
			domain.TicketPriorityUrgent: 5 * time.Minute,
			domain.TicketPriorityHigh:   15 * time.Minute,
			domain.TicketPriorityMedium: 30 * time.Minute,
			domain.TicketPriorityLow:    60 * time.Minute,
		},
		Resolution: map[domain.TicketPriority]map[domain.TicketType]time.Duration{
			domain.TicketPriorityUrgent: {
				domain.TicketTypePreSale:   2 * time.Hour,
				domain.TicketTypeAfterSale: 4 * time.Hour,
				domain.TicketTypeComplaint: 3 * time.Hour,
			},
			domain.TicketPriorityHigh: {
				domain.TicketTypePreSale:   4 * time.Hour,
				domain.TicketTypeAfterSale: 8 * time.Hour,
				domain.TicketTypeComplaint: 6 * time.Hour,
			},
			domain.TicketPriorityMedium: {
				domain.TicketTypePreSale:   8 * time.Hour,
				domain.TicketTypeAfterSale: 24 * time.Hour,
				domain.TicketTypeComplaint: 12 * time.Hour,
			},
			domain.TicketPriorityLow: {
				domain.TicketTypePreSale:   24 * time.Hour,
				domain.TicketTypeAfterSale: 48 * time.Hour,
				domain.TicketTypeComplaint: 24 * time.Hour,
			},
		},
	}
}

// FRT returns the first-response target for a priority. Unknown priorities
// use the medium target.
func (t Targets) FRT(priority domain.TicketPriority) time.Duration {
	if d, ok := t.FirstResponse[priority]; ok && d > 0 {
		return d
	}
	if d, ok := t.FirstResponse[domain.TicketPriorityMedium]; ok && d > 0 {
		return d
	}
	return DefaultTargets().FirstResponse[domain.TicketPriorityMedium]
}

// RT returns the resolution target for a priority and ticket type. Missing
// cells fall back to medium/after_sale.
func (t Targets) RT(priority domain.TicketPriority, ticketType domain.TicketType) time.Duration {
	if row, ok := t.Resolution[priority]; ok {
		if d, ok := row[ticketType]; ok && d > 0 {
			return d
		}
	}
	return t.fallbackRT()
}

func (t Targets) fallbackRT() time.Duration {
	if row, ok := t.Resolution[domain.TicketPriorityMedium]; ok {
		if d, ok := row[domain.TicketTypeAfterSale]; ok && d > 0 {
			return d
		}
	}
	return DefaultTargets().Resolution[domain.TicketPriorityMedium][domain.TicketTypeAfterSale]
}

// Merge overlays the non-zero entries of override on top of t.
func (t Targets) Merge(override Targets) Targets {
	out := Targets{
		FirstResponse: make(map[domain.TicketPriority]time.Duration, len(t.FirstResponse)),
		Resolution:    make(map[domain.TicketPriority]map[domain.TicketType]time.Duration, len(t.Resolution)),
	}
	for p, d := range t.FirstResponse {
		out.FirstResponse[p] = d
	}
	for p, row := range t.Resolution {
		out.Resolution[p] = make(map[domain.TicketType]time.Duration, len(row))
		for tt, d := range row {
			out.Resolution[p][tt] = d
		}
	}
	for p, d := range override.FirstResponse {
		if d > 0 {
			out.FirstResponse[p] = d
		}
	}
	for p, row := range override.Resolution {
		if out.Resolution[p] == nil {
			out.Resolution[p] = make(map[domain.TicketType]time.Duration, len(row))
		}
		for tt, d := range row {
			if d > 0 {
				out.Resolution[p][tt] = d
			}
		}
	}
	return out
}

// Validate rejects negative or zero entries.
func (t Targets) Validate() error {
	for p, d := range t.FirstResponse {
		if d <= 0 {
			return fmt.Errorf("first response target for %s must be positive", p)
		}
	}
	for p, row := range t.Resolution {
		for tt, d := range row {
			if d <= 0 {
				return fmt.Errorf("resolution target for %s/%s must be positive", p, tt)
			}
		}
	}
	return nil
}
