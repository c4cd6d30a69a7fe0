package repository

import (
	"context"

	"github.com/yzh317179958/customer-service-sub000/internal/assignment"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

type agentPool struct {
	profiles AgentRepository
	presence AgentPresenceRepository
	limit    int
}

// NewAgentPool joins stored agent profiles with their live presence.
func NewAgentPool(profiles AgentRepository, presence AgentPresenceRepository, limit int) assignment.AgentPool {
	return &agentPool{profiles: profiles, presence: presence, limit: limit}
}

func (p *agentPool) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	active := true
	agents, err := p.profiles.List(ctx, AgentFilter{Active: &active, Limit: p.limit})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	live, err := p.presence.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range agents {
		applyPresence(&agents[i], live[agents[i].ID])
	}
	return agents, nil
}

func applyPresence(agent *domain.Agent, presence Presence) {
	agent.Status = presence.Status
	agent.ManualSessions = presence.ManualSessions
	agent.PendingSessions = presence.PendingSessions
	agent.LastActiveAt = presence.LastActiveAt
}
