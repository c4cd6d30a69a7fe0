package worker

import (
	"context"
	"testing"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/assignment"
	"github.com/yzh317179958/customer-service-sub000/internal/config"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/mq"
	"github.com/yzh317179958/customer-service-sub000/internal/service"
)

type fakeBus struct {
	handlers map[string]mq.Handler
}

func (b *fakeBus) Subscribe(_ context.Context, topic string, handler mq.Handler) error {
	if b.handlers == nil {
		b.handlers = make(map[string]mq.Handler)
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) deliver(topic, payload string) {
	b.handlers[topic](context.Background(), topic, []byte(payload))
}

type fakeAssigner struct {
	sessions []domain.Session
	statuses map[string]domain.AgentStatus
	released []string
}

func (f *fakeAssigner) UpdateAgentStatus(_ context.Context, id string, status domain.AgentStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]domain.AgentStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeAssigner) ReleaseSession(_ context.Context, id string) error {
	f.released = append(f.released, id)
	return nil
}

func (f *fakeAssigner) AssignEscalatedSession(_ context.Context, s *domain.Session) (*service.SessionAssignment, error) {
	f.sessions = append(f.sessions, *s)
	return &service.SessionAssignment{
		SessionID:  s.ID,
		Assignment: &assignment.Assignment{Agent: domain.Agent{ID: "a1"}},
	}, nil
}

type fakeTickets struct {
	statuses  map[string]domain.TicketStatus
	responded []string
}

func (f *fakeTickets) ChangeStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if f.statuses == nil {
		f.statuses = make(map[string]domain.TicketStatus)
	}
	f.statuses[id] = status
	return &domain.Ticket{ID: id, Status: status}, nil
}

func (f *fakeTickets) RecordFirstResponse(_ context.Context, id string) (*domain.Ticket, error) {
	f.responded = append(f.responded, id)
	return &domain.Ticket{ID: id}, nil
}

func TestIntakeConsumerRoutesMessages(t *testing.T) {
	topics := config.MQTTConfig{
		EscalationTopic:    "esc",
		TicketStatusTopic:  "status",
		FirstResponseTopic: "first",
		AgentStatusTopic:   "agents",
		SessionDoneTopic:   "done",
	}
	assigner := &fakeAssigner{}
	tickets := &fakeTickets{}
	bus := &fakeBus{}
	consumer := NewIntakeConsumer(assigner, tickets, topics, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	consumer.now = func() time.Time { return now }

	if err := consumer.Start(context.Background(), bus); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(bus.handlers) != 5 {
		t.Fatalf("expected 5 subscriptions, got %d", len(bus.handlers))
	}

	bus.deliver("esc", `{"session_id":"S-1","category":"after_sale","keywords":["退款"],"text":"退款没到"}`)
	bus.deliver("esc", `{"category":"after_sale"}`)
	bus.deliver("esc", `not json`)
	if len(assigner.sessions) != 1 {
		t.Fatalf("expected one routed session, got %d", len(assigner.sessions))
	}
	if got := assigner.sessions[0]; got.ID != "S-1" || got.Keywords[0] != "退款" || !got.EscalatedAt.Equal(now) {
		t.Fatalf("unexpected session %+v", got)
	}

	bus.deliver("status", `{"ticket_id":"T-1","status":"waiting_customer"}`)
	bus.deliver("status", `{"ticket_id":"T-2","status":"snoozed"}`)
	if len(tickets.statuses) != 1 || tickets.statuses["T-1"] != domain.TicketStatusWaitingCustomer {
		t.Fatalf("unexpected status changes %v", tickets.statuses)
	}

	bus.deliver("first", `{"ticket_id":"T-1"}`)
	bus.deliver("first", `{}`)
	if len(tickets.responded) != 1 || tickets.responded[0] != "T-1" {
		t.Fatalf("unexpected first responses %v", tickets.responded)
	}

	bus.deliver("agents", `{"agent_id":"a1","status":"away"}`)
	bus.deliver("agents", `{"agent_id":"a2","status":"sleeping"}`)
	if len(assigner.statuses) != 1 || assigner.statuses["a1"] != domain.AgentStatusAway {
		t.Fatalf("unexpected agent statuses %v", assigner.statuses)
	}

	bus.deliver("done", `{"agent_id":"a1"}`)
	bus.deliver("done", `[]`)
	if len(assigner.released) != 1 || assigner.released[0] != "a1" {
		t.Fatalf("unexpected releases %v", assigner.released)
	}
}

func TestIntakeConsumerSkipsEmptyTopics(t *testing.T) {
	bus := &fakeBus{}
	consumer := NewIntakeConsumer(&fakeAssigner{}, &fakeTickets{}, config.MQTTConfig{EscalationTopic: "esc"}, nil)
	if err := consumer.Start(context.Background(), bus); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(bus.handlers) != 1 {
		t.Fatalf("expected only the escalation subscription, got %d", len(bus.handlers))
	}
}
