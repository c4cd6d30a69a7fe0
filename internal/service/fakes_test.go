package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrTime(t time.Time) *time.Time { return &t }

type memTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
	listErr error
	pages   int
}

func newMemTickets(tickets ...domain.Ticket) *memTickets {
	m := &memTickets{tickets: make(map[string]domain.Ticket)}
	for _, t := range tickets {
		m.tickets[t.ID] = t
	}
	return m
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (m *memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages++
	if m.listErr != nil {
		return nil, m.listErr
	}
	wanted := make(map[domain.TicketStatus]bool)
	for _, s := range filter.Statuses {
		wanted[s] = true
	}
	var out []domain.Ticket
	for _, t := range m.tickets {
		if len(wanted) > 0 && !wanted[t.Status] {
			continue
		}
		if filter.AfterID != "" && t.ID <= filter.AfterID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memTickets) Mutate(_ context.Context, id string, fn repository.TicketMutation) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if err := fn(&t); err != nil {
		return nil, err
	}
	m.tickets[id] = t
	return &t, nil
}

type memDedup struct {
	seen map[string]bool
	err  error
}

func (m *memDedup) Claim(_ context.Context, alert sla.Alert, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	key := repository.AlertDedupKey(alert)
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memDedup) Release(_ context.Context, alert sla.Alert) error {
	if m.err != nil {
		return m.err
	}
	delete(m.seen, repository.AlertDedupKey(alert))
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) subscribe(d events.Dispatcher, types ...events.EventType) {
	for _, t := range types {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

type staticPool struct {
	agents []domain.Agent
	err    error
}

func (p staticPool) ListAgents(context.Context) ([]domain.Agent, error) {
	return append([]domain.Agent(nil), p.agents...), p.err
}

type memPresence struct {
	mu       sync.Mutex
	load     map[string]int
	max      map[string]int
	err      error
	reserved []string
	released []string
}

func (m *memPresence) Get(context.Context, []string) (map[string]repository.Presence, error) {
	return nil, nil
}

func (m *memPresence) SetStatus(context.Context, string, domain.AgentStatus, time.Time) error {
	return nil
}

func (m *memPresence) Reserve(_ context.Context, id string, maxSessions int, _ time.Time) (repository.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return repository.Presence{}, m.err
	}
	if m.load == nil {
		m.load = make(map[string]int)
	}
	capacity := maxSessions
	if c, ok := m.max[id]; ok {
		capacity = c
	}
	if m.load[id]+1 > capacity {
		return repository.Presence{}, repository.ErrCapacityExhausted
	}
	m.load[id]++
	m.reserved = append(m.reserved, id)
	return repository.Presence{Status: domain.AgentStatusOnline, PendingSessions: m.load[id]}, nil
}

func (m *memPresence) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, id)
	if m.load[id] > 0 {
		m.load[id]--
	}
	return nil
}

type capturePublisher struct {
	topics []string
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, topic string, _ any) error {
	c.topics = append(c.topics, topic)
	return c.err
}

type memHistory struct {
	entries []domain.TicketHistory
}

func (m *memHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	h.ID = h.TicketID + "-" + string(rune('a'+len(m.entries)))
	m.entries = append(m.entries, *h)
	return nil
}

func (m *memHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for _, h := range m.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}
