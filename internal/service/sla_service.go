package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
	"github.com/yzh317179958/customer-service-sub000/internal/observability"
	"github.com/yzh317179958/customer-service-sub000/internal/repository"
	"github.com/yzh317179958/customer-service-sub000/internal/sla"
	apperrors "github.com/yzh317179958/customer-service-sub000/pkg/util"
)

const releaseTimeout = 2 * time.Second

// SLAService scans open tickets for SLA risk.
type SLAService struct {
	tickets    repository.TicketRepository
	dedup      repository.AlertDedupRepository
	targets    sla.Targets
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	formatter  sla.MessageFormatter
	batchSize  int
	dedupTTL   time.Duration
	queueLimit int
	now        func() time.Time
}

// SLADependencies bundles collaborators for the SLA service. DedupRepo may be
// nil, in which case every alert is delivered on every scan.
type SLADependencies struct {
	TicketRepo     repository.TicketRepository
	DedupRepo      repository.AlertDedupRepository
	Targets        sla.Targets
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Formatter      sla.MessageFormatter
	BatchSize      int
	DedupTTL       time.Duration
	QueuePageLimit int
	Clock          func() time.Time
}

// ScanReport summarizes one pass over the open tickets.
type ScanReport struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Scanned    int           `json:"scanned"`
	Alerts     int           `json:"alerts"`
	Suppressed int           `json:"suppressed"`
	Failed     int           `json:"failed"`
	Invalid    int           `json:"invalid"`
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	svc := &SLAService{
		tickets:    deps.TicketRepo,
		dedup:      deps.DedupRepo,
		targets:    deps.Targets,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		formatter:  deps.Formatter,
		batchSize:  deps.BatchSize,
		dedupTTL:   deps.DedupTTL,
		queueLimit: deps.QueuePageLimit,
		now:        deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.formatter == nil {
		svc.formatter = sla.FormatAlertMessage
	}
	if svc.batchSize <= 0 {
		svc.batchSize = 500
	}
	if svc.dedupTTL <= 0 {
		svc.dedupTTL = 15 * time.Minute
	}
	if svc.queueLimit <= 0 {
		svc.queueLimit = 200
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Scan checks every open ticket and publishes an sla_alert_raised event per
// alert not delivered within the dedup window. An alert whose delivery fails
// is released from the dedup store so the next scan retries it. Tickets the
// clocks cannot be computed from are counted and skipped.
func (s *SLAService) Scan(ctx context.Context) (ScanReport, error) {
	report := ScanReport{StartedAt: s.now()}
	err := s.forEachOpenTicket(ctx, func(ticket *domain.Ticket) {
		report.Scanned++
		alerts, err := sla.CheckAlerts(ticket, s.targets, report.StartedAt)
		if err != nil {
			report.Invalid++
			s.logger.Warn("skip ticket with invalid sla data", zap.String("ticket_id", ticket.ID), zap.Error(err))
			return
		}
		for _, alert := range alerts {
			if !s.claim(ctx, alert) {
				report.Suppressed++
				continue
			}
			if !s.deliver(ctx, alert) {
				report.Failed++
				s.release(ctx, alert)
				continue
			}
			report.Alerts++
		}
	})
	report.Duration = s.now().Sub(report.StartedAt)
	if report.Duration < 0 {
		report.Duration = 0
	}
	s.metrics.RecordScan(report.StartedAt, report.Duration, err != nil)
	if err != nil {
		return report, apperrors.NewUnavailable("list open tickets", err)
	}
	s.logger.Info("sla scan finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("alerts", report.Alerts),
		zap.Int("suppressed", report.Suppressed),
		zap.Int("failed", report.Failed),
		zap.Int("invalid", report.Invalid),
		zap.Duration("took", report.Duration))
	return report, nil
}

// Queue returns open tickets ordered by SLA risk, most endangered first.
func (s *SLAService) Queue(ctx context.Context) ([]sla.QueueEntry, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Statuses: domain.OpenTicketStatuses(),
		Limit:    s.queueLimit,
	})
	if err != nil {
		return nil, apperrors.NewUnavailable("list open tickets", err)
	}

	valid := tickets[:0]
	for i := range tickets {
		if _, err := sla.NewTimer(&tickets[i], s.targets); err != nil {
			s.logger.Warn("drop ticket with invalid sla data from queue", zap.String("ticket_id", tickets[i].ID), zap.Error(err))
			continue
		}
		valid = append(valid, tickets[i])
	}

	entries, err := sla.RankQueue(valid, s.targets, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *SLAService) forEachOpenTicket(ctx context.Context, fn func(*domain.Ticket)) error {
	filter := repository.TicketFilter{
		Statuses: domain.OpenTicketStatuses(),
		Limit:    s.batchSize,
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.tickets.List(ctx, filter)
		if err != nil {
			return err
		}
		for i := range page {
			fn(&page[i])
		}
		if len(page) < filter.Limit {
			return nil
		}
		filter.AfterID = page[len(page)-1].ID
	}
}

// claim reports whether the alert should be delivered. A failing dedup store
// does not block delivery.
func (s *SLAService) claim(ctx context.Context, alert sla.Alert) bool {
	if s.dedup == nil {
		return true
	}
	fresh, err := s.dedup.Claim(ctx, alert, s.dedupTTL)
	if err != nil {
		s.logger.Warn("alert dedup unavailable", zap.String("ticket_id", alert.TicketID), zap.Error(err))
		return true
	}
	return fresh
}

// release drops the claim of an undelivered alert, also after ctx is done.
func (s *SLAService) release(ctx context.Context, alert sla.Alert) {
	if s.dedup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.dedup.Release(ctx, alert); err != nil {
		s.logger.Error("release alert dedup key", zap.String("ticket_id", alert.TicketID), zap.Error(err))
	}
}

func (s *SLAService) deliver(ctx context.Context, alert sla.Alert) bool {
	err := publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventSLAAlertRaised,
		TicketID:  alert.TicketID,
		Timestamp: alert.CreatedAt,
		Payload: events.SLAAlertPayload{
			Alert:   alert,
			Message: s.formatter(alert),
		},
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("alert delivery failed", zap.String("ticket_id", alert.TicketID), zap.Error(err))
		}
		return false
	}
	s.metrics.RecordAlert(string(alert.Type), string(alert.Status))
	return true
}
