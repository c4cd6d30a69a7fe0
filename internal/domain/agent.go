package domain

import (
	"fmt"
	"time"
)

// AgentStatus enumerates agent availability.
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusAway    AgentStatus = "away"
	AgentStatusOffline AgentStatus = "offline"
)

// AcceptsWork reports whether new sessions may be routed to the agent.
func (s AgentStatus) AcceptsWork() bool {
	switch s {
	case AgentStatusOnline:
		return true
	case AgentStatusBusy, AgentStatusAway, AgentStatusOffline:
		return false
	}
	return false
}

// ParseAgentStatus validates a raw status value.
func ParseAgentStatus(raw string) (AgentStatus, error) {
	s := AgentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown agent status %q", raw)
	}
	return s, nil
}

// Valid reports whether the status is known.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusOnline, AgentStatusBusy, AgentStatusAway, AgentStatusOffline:
		return true
	}
	return false
}

// Skill describes one area an agent can handle.
type Skill struct {
	Category string   `json:"category"`
	Level    int      `json:"level"`
	Tags     []string `json:"tags"`
}

// Agent models a human support agent together with its live load.
type Agent struct {
	ID              string
	Name            string
	Skills          []Skill
	Status          AgentStatus
	MaxSessions     int
	ManualSessions  int
	PendingSessions int
	LastActiveAt    time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Load returns the number of sessions currently held by the agent.
func (a *Agent) Load() int {
	return a.ManualSessions + a.PendingSessions
}
