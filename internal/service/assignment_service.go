package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/assignment"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/observability"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
	apperrors "github.com/yzh317179958/customer-service-sub000/pkg/util"
)

const (
	queueReasonNoAgent  = "no_eligible_agent"
	queueReasonCapacity = "capacity_exhausted"
)

// AssignmentService routes escalated sessions to agents.
type AssignmentService struct {
	pool       assignment.AgentPool
	engine     *assignment.Engine
	agents     repository.AgentRepository
	presence   repository.AgentPresenceRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	attempts   int
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Pool            assignment.AgentPool
	Weights         assignment.Weights
	AgentRepo       repository.AgentRepository
	PresenceRepo    repository.AgentPresenceRepository
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	ReserveAttempts int
	Clock           func() time.Time
}

// SessionAssignment is the outcome for one escalated session. Exactly one
// of Assignment and Queued is set.
type SessionAssignment struct {
	SessionID  string                 `json:"session_id"`
	Assignment *assignment.Assignment `json:"assignment,omitempty"`
	Queued     bool                   `json:"queued"`
	Reason     string                 `json:"reason,omitempty"`
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	svc := &AssignmentService{
		pool:       deps.Pool,
		engine:     assignment.NewEngine(deps.Pool, deps.Weights),
		agents:     deps.AgentRepo,
		presence:   deps.PresenceRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		attempts:   deps.ReserveAttempts,
		now:        deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.attempts <= 0 {
		svc.attempts = 3
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// AssignEscalatedSession picks the best agent and takes one of its session
// slots. When a slot is lost to a concurrent assignment the next ranked agent
// is tried. If nobody can take the session it is left for manual pickup.
func (s *AssignmentService) AssignEscalatedSession(ctx context.Context, session *domain.Session) (*SessionAssignment, error) {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return nil, apperrors.NewValidationError("session id required", nil)
	}

	agents, err := s.pool.ListAgents(ctx)
	if err != nil {
		s.metrics.RecordAssignment("failed")
		return nil, apperrors.NewUnavailable("load agents", err)
	}
	ranked := s.engine.Rank(agents, session)
	if len(ranked) == 0 {
		return s.queue(ctx, session, queueReasonNoAgent)
	}

	now := s.now()
	tries := 0
	for i := range ranked {
		if tries == s.attempts {
			break
		}
		tries++
		candidate := ranked[i]
		presence, err := s.presence.Reserve(ctx, candidate.Agent.ID, s.engine.MaxSessions(&candidate.Agent), now)
		if errors.Is(err, repository.ErrCapacityExhausted) {
			s.logger.Debug("agent filled up before reservation", zap.String("agent_id", candidate.Agent.ID))
			continue
		}
		if err != nil {
			s.metrics.RecordAssignment("failed")
			return nil, apperrors.NewUnavailable("reserve agent capacity", err)
		}

		candidate.ManualSessions = presence.ManualSessions
		candidate.PendingSessions = presence.PendingSessions
		s.metrics.RecordAssignment("assigned")
		err = publish(ctx, s.dispatcher, events.Event{
			Type:      events.EventSessionAssigned,
			SessionID: session.ID,
			Timestamp: now,
			Payload: events.SessionAssignedPayload{
				AgentID:         candidate.Agent.ID,
				AgentName:       candidate.Agent.Name,
				MatchedTags:     candidate.MatchedTags,
				ManualSessions:  candidate.ManualSessions,
				PendingSessions: candidate.PendingSessions,
				Score:           candidate.Score,
			},
		})
		if err != nil {
			s.logger.Warn("assignment notification failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		return &SessionAssignment{SessionID: session.ID, Assignment: &candidate}, nil
	}
	return s.queue(ctx, session, queueReasonCapacity)
}

// ReleaseSession returns a pending slot once the agent picks up or drops the
// session.
func (s *AssignmentService) ReleaseSession(ctx context.Context, agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewValidationError("agent id required", nil)
	}
	if err := s.presence.Release(ctx, agentID); err != nil {
		return apperrors.NewUnavailable("release agent capacity", err)
	}
	return nil
}

// UpdateAgentStatus records an agent's availability as reported by the
// workspace client.
func (s *AssignmentService) UpdateAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error {
	if strings.TrimSpace(agentID) == "" {
		return apperrors.NewValidationError("agent id required", nil)
	}
	if !status.Valid() {
		return apperrors.NewValidationError("invalid agent status", map[string]any{"status": status})
	}
	if s.agents != nil {
		if _, err := s.agents.GetByID(ctx, agentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
			}
			return apperrors.MapError(err)
		}
	}
	if err := s.presence.SetStatus(ctx, agentID, status, s.now()); err != nil {
		return apperrors.NewUnavailable("update agent status", err)
	}
	return nil
}

func (s *AssignmentService) queue(ctx context.Context, session *domain.Session, reason string) (*SessionAssignment, error) {
	s.metrics.RecordAssignment("queued")
	err := publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventSessionQueued,
		SessionID: session.ID,
		Timestamp: s.now(),
		Payload:   events.SessionQueuedPayload{Reason: reason},
	})
	if err != nil {
		s.logger.Warn("queue notification failed", zap.String("session_id", session.ID), zap.Error(err))
	}
	return &SessionAssignment{SessionID: session.ID, Queued: true, Reason: reason}, nil
}
