package config

import (
	"fmt"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/assignment"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
)

// Targets overlays configured overrides on the default SLA table.
func (c SLAConfig) Targets() (sla.Targets, error) {
	override := sla.Targets{}
	if len(c.FirstResponse) > 0 {
		override.FirstResponse = make(map[domain.TicketPriority]time.Duration, len(c.FirstResponse))
	}
	for raw, d := range c.FirstResponse {
		p, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return sla.Targets{}, fmt.Errorf("first response targets: %w", err)
		}
		override.FirstResponse[p] = d
	}
	if len(c.Resolution) > 0 {
		override.Resolution = make(map[domain.TicketPriority]map[domain.TicketType]time.Duration, len(c.Resolution))
	}
	for rawPriority, row := range c.Resolution {
		p, err := domain.ParseTicketPriority(rawPriority)
		if err != nil {
			return sla.Targets{}, fmt.Errorf("resolution targets: %w", err)
		}
		override.Resolution[p] = make(map[domain.TicketType]time.Duration, len(row))
		for rawType, d := range row {
			tt, err := domain.ParseTicketType(rawType)
			if err != nil {
				return sla.Targets{}, fmt.Errorf("resolution targets: %w", err)
			}
			override.Resolution[p][tt] = d
		}
	}

	targets := sla.DefaultTargets().Merge(override)
	if err := targets.Validate(); err != nil {
		return sla.Targets{}, err
	}
	return targets, nil
}

// Weights converts the assignment settings to engine weights.
func (c AssignmentConfig) Weights() assignment.Weights {
	return assignment.Weights{
		TagMatch:       c.TagMatchWeight,
		CategoryMatch:  c.CategoryMatchWeight,
		Load:           c.LoadWeight,
		DefaultMaxLoad: c.DefaultMaxSessions,
	}
}
