package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/config"
	"github.com/yzh317179958/customer-service-sub000/internal/events"
)

// Publisher forwards a payload to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	logger     *zap.Logger
	cfg        config.MQTTConfig
}

// NewNotificationService creates the service. A nil publisher keeps
// notifications in the log only.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, logger *zap.Logger, cfg config.MQTTConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLAAlertRaised, n.handleSLAAlert)
	n.dispatcher.Subscribe(events.EventSessionAssigned, n.handleSessionAssigned)
	n.dispatcher.Subscribe(events.EventSessionQueued, n.handleSessionQueued)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleSLAAlert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAAlertPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	fields := []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("alert_type", string(payload.Alert.Type)),
		zap.String("status", string(payload.Alert.Status)),
		zap.Duration("remaining", payload.Alert.Remaining),
	}
	if payload.Alert.Status.Critical() {
		n.logger.Warn(payload.Message, fields...)
	} else {
		n.logger.Info(payload.Message, fields...)
	}
	return n.forward(ctx, n.cfg.AlertTopic, event)
}

func (n *NotificationService) handleSessionAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("SessionAssigned", zap.String("session_id", event.SessionID), zap.Any("payload", event.Payload))
	return n.forward(ctx, n.cfg.AssignmentTopic, event)
}

func (n *NotificationService) handleSessionQueued(ctx context.Context, event events.Event) error {
	n.logger.Info("SessionQueued", zap.String("session_id", event.SessionID), zap.Any("payload", event.Payload))
	return n.forward(ctx, n.cfg.AssignmentTopic, event)
}

func (n *NotificationService) handleTicketStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Debug("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) forward(ctx context.Context, topic string, event events.Event) error {
	if n.publisher == nil || topic == "" {
		return nil
	}
	if err := n.publisher.Publish(ctx, topic, event); err != nil {
		n.logger.Warn("forward notification failed",
			zap.String("topic", topic),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
