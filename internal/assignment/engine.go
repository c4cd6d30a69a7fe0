// Package assignment recommends a human agent for an escalated session.
package assignment

import (
	"context"
	"sort"
	"strings"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// AgentPool supplies the current agent snapshot.
type AgentPool interface {
	ListAgents(ctx context.Context) ([]domain.Agent, error)
}

// Weights tunes candidate scoring.
type Weights struct {
	TagMatch       float64
	CategoryMatch  float64
	Load           float64
	DefaultMaxLoad int
}

// DefaultWeights returns the stock scoring weights.
func DefaultWeights() Weights {
	return Weights{
		TagMatch:       10,
		CategoryMatch:  5,
		Load:           20,
		DefaultMaxLoad: 5,
	}
}

// Assignment is a ranked agent recommendation.
type Assignment struct {
	Agent           domain.Agent
	MatchedTags     []string
	ManualSessions  int
	PendingSessions int
	Score           float64
}

// Engine scores agents against escalated sessions.
type Engine struct {
	pool    AgentPool
	weights Weights
}

// NewEngine constructs the engine.
func NewEngine(pool AgentPool, weights Weights) *Engine {
	if weights.DefaultMaxLoad <= 0 {
		weights.DefaultMaxLoad = DefaultWeights().DefaultMaxLoad
	}
	return &Engine{pool: pool, weights: weights}
}

// AssignSession returns the best eligible agent, or nil when nobody can
// take the session and it should wait for manual pickup.
func (e *Engine) AssignSession(ctx context.Context, session *domain.Session) (*Assignment, error) {
	agents, err := e.pool.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	return e.Recommend(agents, session), nil
}

// Recommend picks the top candidate from a snapshot.
func (e *Engine) Recommend(agents []domain.Agent, session *domain.Session) *Assignment {
	ranked := e.Rank(agents, session)
	if len(ranked) == 0 {
		return nil
	}
	best := ranked[0]
	return &best
}

// Rank returns every eligible agent, best first. Ties go to the agent idle
// the longest, then to the lower id.
func (e *Engine) Rank(agents []domain.Agent, session *domain.Session) []Assignment {
	topic := newTopic(session)

	out := make([]Assignment, 0, len(agents))
	for i := range agents {
		agent := agents[i]
		if !e.eligible(&agent) {
			continue
		}
		matched, skillScore := e.skillScore(&agent, topic)
		out = append(out, Assignment{
			Agent:           agent,
			MatchedTags:     matched,
			ManualSessions:  agent.ManualSessions,
			PendingSessions: agent.PendingSessions,
			Score:           skillScore + e.loadScore(&agent),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Agent.LastActiveAt.Equal(b.Agent.LastActiveAt) {
			return a.Agent.LastActiveAt.Before(b.Agent.LastActiveAt)
		}
		return a.Agent.ID < b.Agent.ID
	})
	return out
}

// MaxSessions returns the capacity used for the agent.
func (e *Engine) MaxSessions(agent *domain.Agent) int {
	if agent.MaxSessions > 0 {
		return agent.MaxSessions
	}
	return e.weights.DefaultMaxLoad
}

func (e *Engine) eligible(agent *domain.Agent) bool {
	if !agent.Status.AcceptsWork() {
		return false
	}
	return agent.Load() < e.MaxSessions(agent)
}

func (e *Engine) loadScore(agent *domain.Agent) float64 {
	capacity := e.MaxSessions(agent)
	free := float64(capacity-agent.Load()) / float64(capacity)
	if free < 0 {
		free = 0
	}
	return e.weights.Load * free
}

// skillScore sums tag matches weighted by skill level plus a bonus for a
// matching category. Matched tags are returned sorted and deduplicated.
func (e *Engine) skillScore(agent *domain.Agent, topic topic) ([]string, float64) {
	seen := make(map[string]struct{})
	var score float64
	for _, skill := range agent.Skills {
		factor := levelFactor(skill.Level)
		if topic.category != "" && normalize(skill.Category) == topic.category {
			score += e.weights.CategoryMatch * factor
		}
		for _, tag := range skill.Tags {
			key := normalize(tag)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if topic.matches(key) {
				seen[key] = struct{}{}
				score += e.weights.TagMatch * factor
			}
		}
	}
	matched := make([]string, 0, len(seen))
	for tag := range seen {
		matched = append(matched, tag)
	}
	sort.Strings(matched)
	return matched, score
}

// levelFactor maps skill level 1..5 onto 1.0..1.4.
func levelFactor(level int) float64 {
	switch {
	case level < 1:
		level = 1
	case level > 5:
		level = 5
	}
	return 1 + 0.1*float64(level-1)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
