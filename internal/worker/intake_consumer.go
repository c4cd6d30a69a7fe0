package worker

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/config"
	"github.com/yzh317179958/customer-service-sub000/internal/domain"
	"github.com/yzh317179958/customer-service-sub000/internal/mq"
	"github.com/yzh317179958/customer-service-sub000/internal/service"
)

const intakeTimeout = 10 * time.Second

// Subscriber attaches a handler to a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler mq.Handler) error
}

// SessionAssigner routes escalated sessions and tracks agent availability.
type SessionAssigner interface {
	AssignEscalatedSession(ctx context.Context, session *domain.Session) (*service.SessionAssignment, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error
	ReleaseSession(ctx context.Context, agentID string) error
}

// TicketUpdater applies ticket lifecycle changes.
type TicketUpdater interface {
	ChangeStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
	RecordFirstResponse(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

type escalationMessage struct {
	SessionID   string    `json:"session_id"`
	CustomerID  string    `json:"customer_id"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`
	Text        string    `json:"text"`
	Reason      string    `json:"reason"`
	EscalatedAt time.Time `json:"escalated_at"`
}

type ticketStatusMessage struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

type firstResponseMessage struct {
	TicketID string `json:"ticket_id"`
}

type agentMessage struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

// IntakeConsumer turns broker messages from the chat and ticket systems into
// service calls.
type IntakeConsumer struct {
	assigner SessionAssigner
	tickets  TicketUpdater
	topics   config.MQTTConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewIntakeConsumer creates the consumer.
func NewIntakeConsumer(assigner SessionAssigner, tickets TicketUpdater, topics config.MQTTConfig, logger *zap.Logger) *IntakeConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeConsumer{
		assigner: assigner,
		tickets:  tickets,
		topics:   topics,
		logger:   logger,
		now:      time.Now,
	}
}

// Start subscribes to every configured intake topic.
func (c *IntakeConsumer) Start(ctx context.Context, sub Subscriber) error {
	routes := []struct {
		topic   string
		handler mq.Handler
	}{
		{c.topics.EscalationTopic, c.handleEscalation},
		{c.topics.TicketStatusTopic, c.handleTicketStatus},
		{c.topics.FirstResponseTopic, c.handleFirstResponse},
		{c.topics.AgentStatusTopic, c.handleAgentStatus},
		{c.topics.SessionDoneTopic, c.handleSessionDone},
	}
	for _, r := range routes {
		if r.topic == "" {
			continue
		}
		if err := sub.Subscribe(ctx, r.topic, r.handler); err != nil {
			return err
		}
		c.logger.Info("subscribed", zap.String("topic", r.topic))
	}
	return nil
}

func (c *IntakeConsumer) handleEscalation(ctx context.Context, topic string, payload []byte) {
	var msg escalationMessage
	if err := json.Unmarshal(payload, &msg); err != nil || strings.TrimSpace(msg.SessionID) == "" {
		c.logger.Warn("drop malformed escalation", zap.String("topic", topic), zap.Error(err))
		return
	}
	if msg.EscalatedAt.IsZero() {
		msg.EscalatedAt = c.now()
	}

	ctx, cancel := context.WithTimeout(ctx, intakeTimeout)
	defer cancel()
	result, err := c.assigner.AssignEscalatedSession(ctx, &domain.Session{
		ID:          msg.SessionID,
		CustomerID:  msg.CustomerID,
		Category:    msg.Category,
		Keywords:    msg.Keywords,
		Text:        msg.Text,
		Reason:      msg.Reason,
		EscalatedAt: msg.EscalatedAt,
	})
	if err != nil {
		c.logger.Error("assign escalated session", zap.String("session_id", msg.SessionID), zap.Error(err))
		return
	}
	if result.Queued {
		c.logger.Info("session queued for manual pickup", zap.String("session_id", msg.SessionID), zap.String("reason", result.Reason))
		return
	}
	c.logger.Info("session assigned",
		zap.String("session_id", msg.SessionID),
		zap.String("agent_id", result.Assignment.Agent.ID),
		zap.Float64("score", result.Assignment.Score))
}

func (c *IntakeConsumer) handleTicketStatus(ctx context.Context, topic string, payload []byte) {
	var msg ticketStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.TicketID == "" {
		c.logger.Warn("drop malformed status change", zap.String("topic", topic), zap.Error(err))
		return
	}
	status, err := domain.ParseTicketStatus(msg.Status)
	if err != nil {
		c.logger.Warn("drop status change", zap.String("ticket_id", msg.TicketID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, intakeTimeout)
	defer cancel()
	if _, err := c.tickets.ChangeStatus(ctx, msg.TicketID, status); err != nil {
		c.logger.Error("apply status change", zap.String("ticket_id", msg.TicketID), zap.Error(err))
	}
}

func (c *IntakeConsumer) handleFirstResponse(ctx context.Context, topic string, payload []byte) {
	var msg firstResponseMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.TicketID == "" {
		c.logger.Warn("drop malformed first response", zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, intakeTimeout)
	defer cancel()
	if _, err := c.tickets.RecordFirstResponse(ctx, msg.TicketID); err != nil {
		c.logger.Error("record first response", zap.String("ticket_id", msg.TicketID), zap.Error(err))
	}
}

func (c *IntakeConsumer) handleAgentStatus(ctx context.Context, topic string, payload []byte) {
	var msg agentMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.AgentID == "" {
		c.logger.Warn("drop malformed agent status", zap.String("topic", topic), zap.Error(err))
		return
	}
	status, err := domain.ParseAgentStatus(msg.Status)
	if err != nil {
		c.logger.Warn("drop agent status", zap.String("agent_id", msg.AgentID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, intakeTimeout)
	defer cancel()
	if err := c.assigner.UpdateAgentStatus(ctx, msg.AgentID, status); err != nil {
		c.logger.Error("update agent status", zap.String("agent_id", msg.AgentID), zap.Error(err))
	}
}

func (c *IntakeConsumer) handleSessionDone(ctx context.Context, topic string, payload []byte) {
	var msg agentMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.AgentID == "" {
		c.logger.Warn("drop malformed session release", zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, intakeTimeout)
	defer cancel()
	if err := c.assigner.ReleaseSession(ctx, msg.AgentID); err != nil {
		c.logger.Error("release session slot", zap.String("agent_id", msg.AgentID), zap.Error(err))
	}
}
