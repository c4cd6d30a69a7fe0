package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
	apperrors "github.com/yzh317179958/customer-service-sub000/pkg/util"
)

// TicketService coordinates ticket status changes and their SLA bookkeeping.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	targets    sla.Targets
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Targets     sla.Targets
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		targets:    deps.Targets,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// ChangeStatus moves a ticket to a new status and keeps the pause ledger in
// step. Entering resolved, closed or archived stamps ResolvedAt; leaving
// those statuses reopens the resolution clock.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": status})
	}

	var oldStatus domain.TicketStatus
	now := s.now()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		oldStatus = t.Status
		t.SLA = sla.ApplyStatusChange(t.SLA, status, now)
		switch status.Phase() {
		case domain.PhaseTerminal:
			if t.ResolvedAt == nil {
				resolved := now
				t.ResolvedAt = &resolved
			}
		case domain.PhaseRunning, domain.PhasePaused:
			t.ResolvedAt = nil
		}
		t.Status = status
		return nil
	})
	if err != nil {
		return nil, ticketLookupError(ticketID, err)
	}
	if err := s.recordChange(ctx, ticket, domain.ChangeTypeStatus, oldStatus, now); err != nil {
		return nil, err
	}

	err = publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:             oldStatus,
			NewStatus:             ticket.Status,
			PausedDurationSeconds: ticket.SLA.PausedDuration.Seconds(),
			Paused:                ticket.IsPaused(),
		},
	})
	if err != nil {
		s.logger.Warn("status change notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return ticket, nil
}

// RecordFirstResponse stops the first-response clock. Later calls keep the
// original timestamp.
func (s *TicketService) RecordFirstResponse(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	stamped := false
	now := s.now()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		if t.FirstResponseAt != nil {
			return nil
		}
		at := now
		t.FirstResponseAt = &at
		stamped = true
		return nil
	})
	if err != nil {
		return nil, ticketLookupError(ticketID, err)
	}
	if stamped {
		if err := s.recordChange(ctx, ticket, domain.ChangeTypeFirstResponse, ticket.Status, now); err != nil {
			return nil, err
		}
		err = publish(ctx, s.dispatcher, events.Event{
			Type:      events.EventTicketFirstResponse,
			TicketID:  ticket.ID,
			Timestamp: now,
		})
		if err != nil {
			s.logger.Warn("first response notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// GetSLA returns the current SLA snapshot of one ticket.
func (s *TicketService) GetSLA(ctx context.Context, ticketID string) (sla.TicketSLA, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return sla.TicketSLA{}, ticketLookupError(ticketID, err)
	}
	snapshot, err := sla.CalculateTicketSLA(ticket, s.targets, s.now())
	if err != nil {
		return sla.TicketSLA{}, slaError(ticketID, err)
	}
	return snapshot, nil
}

// StatusHistory lists the recorded lifecycle changes of a ticket, oldest
// first.
func (s *TicketService) StatusHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return nil, nil
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, ticketLookupError(ticketID, err)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) recordChange(ctx context.Context, ticket *domain.Ticket, changeType domain.TicketChangeType, oldStatus domain.TicketStatus, at time.Time) error {
	if s.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:       ticket.ID,
		ChangeType:     changeType,
		OldStatus:      oldStatus,
		NewStatus:      ticket.Status,
		PausedDuration: ticket.SLA.PausedDuration,
		CreatedAt:      at,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func ticketLookupError(ticketID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func slaError(ticketID string, err error) error {
	if errors.Is(err, sla.ErrInvalidTicket) {
		return apperrors.NewInvalidData(err, map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) error {
	if dispatcher == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return dispatcher.Publish(ctx, event)
}
