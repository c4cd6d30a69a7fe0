package sla

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// Alert reports one SLA clock that crossed a warning threshold.
type Alert struct {
	TicketID   string
	Type       AlertType
	Status     Status
	Remaining  time.Duration
	Target     time.Duration
	AssignedTo *string
	Priority   domain.TicketPriority
	TicketType domain.TicketType
	CreatedAt  time.Time
}

type alertJSON struct {
	TicketID         string                `json:"ticket_id"`
	Type             AlertType             `json:"alert_type"`
	Status           Status                `json:"status"`
	RemainingSeconds float64               `json:"remaining_seconds"`
	TargetSeconds    float64               `json:"target_seconds"`
	AssignedTo       *string               `json:"assigned_to,omitempty"`
	Priority         domain.TicketPriority `json:"priority"`
	TicketType       domain.TicketType     `json:"ticket_type"`
	CreatedAt        int64                 `json:"created_at"`
}

// MarshalJSON encodes durations as seconds and the timestamp as unix time.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(alertJSON{
		TicketID:         a.TicketID,
		Type:             a.Type,
		Status:           a.Status,
		RemainingSeconds: a.Remaining.Seconds(),
		TargetSeconds:    a.Target.Seconds(),
		AssignedTo:       a.AssignedTo,
		Priority:         a.Priority,
		TicketType:       a.TicketType,
		CreatedAt:        a.CreatedAt.Unix(),
	})
}

// CheckAlerts evaluates both clocks and returns an alert for every clock in
// warning, urgent or violated state. It keeps no memory between calls, so a
// ticket that stays overdue alerts on every scan.
func CheckAlerts(ticket *domain.Ticket, targets Targets, now time.Time) ([]Alert, error) {
	timer, err := NewTimer(ticket, targets)
	if err != nil {
		return nil, err
	}

	info := timer.Info(now)
	var alerts []Alert
	if info.FRTStatus.Alerting() {
		alerts = append(alerts, newAlert(ticket, AlertTypeFRT, info.FRTStatus, info.FRTRemaining, info.FRTTarget, now))
	}
	if info.RTStatus.Alerting() {
		alerts = append(alerts, newAlert(ticket, AlertTypeRT, info.RTStatus, info.RTRemaining, info.RTTarget, now))
	}
	return alerts, nil
}

func newAlert(ticket *domain.Ticket, alertType AlertType, status Status, remaining, target time.Duration, now time.Time) Alert {
	var assigned *string
	if ticket.AssignedAgentID != nil {
		id := *ticket.AssignedAgentID
		assigned = &id
	}
	return Alert{
		TicketID:   ticket.ID,
		Type:       alertType,
		Status:     status,
		Remaining:  remaining,
		Target:     target,
		AssignedTo: assigned,
		Priority:   ticket.Priority,
		TicketType: ticket.Type,
		CreatedAt:  now,
	}
}

// MessageFormatter renders an alert for a notification channel.
type MessageFormatter func(Alert) string

// FormatAlertMessage is the default one-line alert summary.
func FormatAlertMessage(alert Alert) string {
	label := alertLabel(alert.Status)
	clock := clockName(alert.Type)
	if alert.Status == StatusViolated {
		return fmt.Sprintf("%s 工单 %s %s已超时", label, alert.TicketID, clock)
	}
	return fmt.Sprintf("%s 工单 %s %s剩余 %.1f 分钟", label, alert.TicketID, clock, alert.Remaining.Minutes())
}

func alertLabel(status Status) string {
	switch status {
	case StatusWarning:
		return "🟡 预警"
	case StatusUrgent:
		return "🔴 紧急"
	case StatusViolated:
		return "⛔ 超时"
	case StatusNormal, StatusCompleted:
		return "ℹ️ 提示"
	}
	return "ℹ️ 提示"
}

func clockName(t AlertType) string {
	switch t {
	case AlertTypeFRT:
		return "首次响应时效"
	case AlertTypeRT:
		return "解决时效"
	}
	return string(t)
}
