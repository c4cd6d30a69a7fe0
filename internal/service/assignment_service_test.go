package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yzh317179958/customer-service-sub000/internal/assignment"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/observability"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
)

func refundSession() *domain.Session {
	return &domain.Session{
		ID:          "S-1",
		CustomerID:  "C-9",
		Category:    "after_sale",
		Keywords:    []string{"退款"},
		Text:        "订单退款一直没有到账",
		Reason:      "customer_request",
		EscalatedAt: base,
	}
}

func agentWithSkill(id string, tags ...string) domain.Agent {
	return domain.Agent{
		ID:           id,
		Name:         "agent " + id,
		Status:       domain.AgentStatusOnline,
		MaxSessions:  3,
		Skills:       []domain.Skill{{Category: "after_sale", Level: 3, Tags: tags}},
		LastActiveAt: base.Add(-time.Hour),
	}
}

func TestAssignEscalatedSessionPicksBestAgent(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	rec.subscribe(dispatcher, events.EventSessionAssigned)
	presence := &memPresence{}
	metrics := observability.NewMetrics()

	svc := NewAssignmentService(AssignmentDependencies{
		Pool:         staticPool{agents: []domain.Agent{agentWithSkill("a1", "物流"), agentWithSkill("a2", "退款")}},
		Weights:      assignment.DefaultWeights(),
		PresenceRepo: presence,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Clock:        fixedClock(base),
	})

	result, err := svc.AssignEscalatedSession(context.Background(), refundSession())
	if err != nil {
		t.Fatalf("assign error: %v", err)
	}
	if result.Queued || result.Assignment == nil || result.Assignment.Agent.ID != "a2" {
		t.Fatalf("expected a2, got %+v", result)
	}
	if result.Assignment.PendingSessions != 1 {
		t.Fatalf("reserved counts not applied: %+v", result.Assignment)
	}
	if len(presence.reserved) != 1 || presence.reserved[0] != "a2" {
		t.Fatalf("unexpected reservations %v", presence.reserved)
	}

	got := rec.all()
	if len(got) != 1 || got[0].SessionID != "S-1" {
		t.Fatalf("expected one assignment event, got %+v", got)
	}
	payload := got[0].Payload.(events.SessionAssignedPayload)
	if payload.AgentID != "a2" || len(payload.MatchedTags) != 1 || payload.MatchedTags[0] != "退款" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if metrics.Snapshot().Assignments["assigned"] != 1 {
		t.Fatal("assignment not counted")
	}
}

func TestAssignEscalatedSessionFallsBackWhenCapacityLost(t *testing.T) {
	presence := &memPresence{max: map[string]int{"a2": 0}}
	svc := NewAssignmentService(AssignmentDependencies{
		Pool:         staticPool{agents: []domain.Agent{agentWithSkill("a1", "物流"), agentWithSkill("a2", "退款")}},
		Weights:      assignment.DefaultWeights(),
		PresenceRepo: presence,
	})

	result, err := svc.AssignEscalatedSession(context.Background(), refundSession())
	if err != nil {
		t.Fatalf("assign error: %v", err)
	}
	if result.Assignment == nil || result.Assignment.Agent.ID != "a1" {
		t.Fatalf("expected fallback to a1, got %+v", result)
	}
}

func TestAssignEscalatedSessionQueues(t *testing.T) {
	tests := []struct {
		name     string
		agents   []domain.Agent
		max      map[string]int
		attempts int
		reason   string
	}{
		{
			name:   "nobody online",
			agents: []domain.Agent{{ID: "a1", Status: domain.AgentStatusAway, MaxSessions: 3}},
			reason: queueReasonNoAgent,
		},
		{
			name:   "everyone full",
			agents: []domain.Agent{agentWithSkill("a1"), agentWithSkill("a2")},
			max:    map[string]int{"a1": 0, "a2": 0},
			reason: queueReasonCapacity,
		},
		{
			name:     "attempts exhausted",
			agents:   []domain.Agent{agentWithSkill("a1", "退款"), agentWithSkill("a2")},
			max:      map[string]int{"a1": 0},
			attempts: 1,
			reason:   queueReasonCapacity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := events.NewInMemoryDispatcher()
			rec := &recorder{}
			rec.subscribe(dispatcher, events.EventSessionQueued)
			svc := NewAssignmentService(AssignmentDependencies{
				Pool:            staticPool{agents: tt.agents},
				Weights:         assignment.DefaultWeights(),
				PresenceRepo:    &memPresence{max: tt.max},
				Dispatcher:      dispatcher,
				ReserveAttempts: tt.attempts,
			})
			result, err := svc.AssignEscalatedSession(context.Background(), refundSession())
			if err != nil {
				t.Fatalf("assign error: %v", err)
			}
			if !result.Queued || result.Assignment != nil || result.Reason != tt.reason {
				t.Fatalf("unexpected result %+v", result)
			}
			if len(rec.all()) != 1 {
				t.Fatal("expected a queued event")
			}
		})
	}
}

func TestAssignEscalatedSessionErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewAssignmentService(AssignmentDependencies{Pool: staticPool{}, PresenceRepo: &memPresence{}})
	if _, err := svc.AssignEscalatedSession(ctx, &domain.Session{}); errorCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error, got %v", err)
	}

	svc = NewAssignmentService(AssignmentDependencies{Pool: staticPool{err: errors.New("db down")}, PresenceRepo: &memPresence{}})
	if _, err := svc.AssignEscalatedSession(ctx, refundSession()); errorCode(err) != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("expected unavailable, got %v", err)
	}

	svc = NewAssignmentService(AssignmentDependencies{
		Pool:         staticPool{agents: []domain.Agent{agentWithSkill("a1")}},
		PresenceRepo: &memPresence{err: errors.New("redis down")},
	})
	if _, err := svc.AssignEscalatedSession(ctx, refundSession()); errorCode(err) != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestReleaseSession(t *testing.T) {
	presence := &memPresence{}
	svc := NewAssignmentService(AssignmentDependencies{Pool: staticPool{}, PresenceRepo: presence})
	if err := svc.ReleaseSession(context.Background(), " "); errorCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.ReleaseSession(context.Background(), "a1"); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if len(presence.released) != 1 || presence.released[0] != "a1" {
		t.Fatalf("unexpected releases %v", presence.released)
	}
}

type agentLookup struct {
	known map[string]bool
}

func (a agentLookup) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	if !a.known[id] {
		return nil, pgx.ErrNoRows
	}
	return &domain.Agent{ID: id}, nil
}

func (a agentLookup) List(context.Context, repository.AgentFilter) ([]domain.Agent, error) {
	return nil, nil
}

type statusPresence struct {
	memPresence
	statuses map[string]domain.AgentStatus
}

func (s *statusPresence) SetStatus(_ context.Context, id string, status domain.AgentStatus, _ time.Time) error {
	if s.statuses == nil {
		s.statuses = make(map[string]domain.AgentStatus)
	}
	s.statuses[id] = status
	return nil
}

func TestUpdateAgentStatus(t *testing.T) {
	presence := &statusPresence{}
	svc := NewAssignmentService(AssignmentDependencies{
		Pool:         staticPool{},
		AgentRepo:    agentLookup{known: map[string]bool{"a1": true}},
		PresenceRepo: presence,
	})
	ctx := context.Background()

	if err := svc.UpdateAgentStatus(ctx, "a1", domain.AgentStatusBusy); err != nil {
		t.Fatalf("update: %v", err)
	}
	if presence.statuses["a1"] != domain.AgentStatusBusy {
		t.Fatalf("status not stored: %v", presence.statuses)
	}
	if err := svc.UpdateAgentStatus(ctx, "a1", domain.AgentStatus("napping")); errorCode(err) != "VALIDATION_FAILED" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.UpdateAgentStatus(ctx, "ghost", domain.AgentStatusOnline); errorCode(err) != "NOT_FOUND" {
		t.Fatalf("expected not found, got %v", err)
	}
}
